// Package backtest replays historical candles through the strategy
// scorer and position manager with paper fills and fee modelling.
package backtest

import (
	"context"
	"fmt"
	"time"

	"coinhero/internal/model"
	"coinhero/internal/position"
	"coinhero/internal/strategy"
)

// Config tunes one backtest run.
type Config struct {
	InitialKRW     float64
	OrderAmountKRW float64
	FeeRate        float64 // per side, defaults to Upbit's 0.05%
	Position       position.Config
}

// DefaultConfig mirrors the live defaults: 1M KRW bankroll, 100k per
// entry.
func DefaultConfig() Config {
	return Config{
		InitialKRW:     1_000_000,
		OrderAmountKRW: 100_000,
		FeeRate:        0.0005,
		Position:       position.DefaultConfig(),
	}
}

// Result summarizes one market's replay.
type Result struct {
	Market      string              `json:"market"`
	Candles     int                 `json:"candles"`
	Trades      []model.TradeRecord `json:"trades"`
	Buys        int                 `json:"buys"`
	Sells       int                 `json:"sells"`
	Wins        int                 `json:"wins"`
	Losses      int                 `json:"losses"`
	ProfitKRW   float64             `json:"profit_krw"`
	ReturnPct   float64             `json:"return_pct"`
	WinRate     float64             `json:"win_rate"`
	FinalKRW    float64             `json:"final_krw"`
	OpenAtClose bool                `json:"open_at_close"` // position still open when data ran out
}

// Runner replays candle series through a strategy set.
type Runner struct {
	scorer *strategy.Scorer
	cfg    Config
}

// New builds a runner. Zero config fields fall back to defaults.
func New(scorer *strategy.Scorer, cfg Config) *Runner {
	def := DefaultConfig()
	if cfg.InitialKRW <= 0 {
		cfg.InitialKRW = def.InitialKRW
	}
	if cfg.OrderAmountKRW <= 0 {
		cfg.OrderAmountKRW = def.OrderAmountKRW
	}
	if cfg.FeeRate <= 0 {
		cfg.FeeRate = def.FeeRate
	}
	if len(cfg.Position.Bands) == 0 && cfg.Position.HardStopPct == 0 {
		cfg.Position = def.Position
	}
	return &Runner{scorer: scorer, cfg: cfg}
}

// Run replays one market's chronological candles. Each candle close is
// treated as one tick: open positions see the close as the current
// price first, then a flat book may take a new entry on the same bar.
func (r *Runner) Run(market string, candles []model.Candle) (*Result, error) {
	if len(candles) < strategy.MinCandles {
		return nil, fmt.Errorf("%s: need at least %d candles, got %d", market, strategy.MinCandles, len(candles))
	}

	ctx := context.Background()
	mgr := position.NewManager(r.cfg.Position, nil)
	res := &Result{Market: market, Candles: len(candles)}
	krw := r.cfg.InitialKRW

	for i := strategy.MinCandles - 1; i < len(candles); i++ {
		c := candles[i]
		now := c.TS
		if now.IsZero() {
			// Synthetic series without timestamps still replay; space
			// the bars a day apart so holding-time rules engage.
			now = time.Unix(int64(i)*86_400, 0)
		}

		if _, ok := mgr.Get(market); ok {
			dec, err := mgr.Tick(ctx, market, c.Close, now)
			if err != nil {
				return nil, err
			}
			if dec.Exit {
				closed, err := mgr.Close(ctx, market)
				if err != nil {
					return nil, err
				}
				proceeds := c.Close * closed.Quantity * (1 - r.cfg.FeeRate)
				cost := closed.EntryPrice * closed.Quantity
				profit := proceeds - cost
				rate := closed.ProfitPct(c.Close)
				krw += proceeds

				res.Sells++
				if profit >= 0 {
					res.Wins++
				} else {
					res.Losses++
				}
				res.Trades = append(res.Trades, model.TradeRecord{
					Market:     market,
					Action:     model.ActionSell,
					Price:      c.Close,
					Quantity:   closed.Quantity,
					TotalKRW:   proceeds,
					Strategy:   closed.Strategy,
					Rationale:  dec.Label,
					TS:         now,
					Profit:     &profit,
					ProfitRate: &rate,
				})
			}
			continue
		}

		if krw < r.cfg.OrderAmountKRW {
			continue
		}
		sig := r.scorer.Score(market, candles[:i+1])
		if sig.Action != model.ActionBuy {
			continue
		}

		amount := r.cfg.OrderAmountKRW
		qty := amount * (1 - r.cfg.FeeRate) / c.Close
		if err := mgr.Open(ctx, model.Position{
			Market:     market,
			EntryPrice: c.Close,
			Quantity:   qty,
			EntryTime:  now,
			Target:     sig.Target,
			StopLoss:   sig.StopLoss,
			Strategy:   sig.Strategy,
			Rationale:  firstReason(sig),
		}); err != nil {
			return nil, err
		}
		krw -= amount
		res.Buys++
		res.Trades = append(res.Trades, model.TradeRecord{
			Market:    market,
			Action:    model.ActionBuy,
			Price:     c.Close,
			Quantity:  qty,
			TotalKRW:  amount,
			Strategy:  sig.Strategy,
			Rationale: firstReason(sig),
			TS:        now,
		})
	}

	// Liquidate any leftover position at the last close so the final
	// bankroll is comparable across runs.
	if pos, ok := mgr.Get(market); ok {
		last := candles[len(candles)-1]
		krw += last.Close * pos.Quantity * (1 - r.cfg.FeeRate)
		res.OpenAtClose = true
	}

	res.FinalKRW = krw
	res.ProfitKRW = krw - r.cfg.InitialKRW
	res.ReturnPct = res.ProfitKRW / r.cfg.InitialKRW * 100
	if res.Sells > 0 {
		res.WinRate = float64(res.Wins) / float64(res.Sells) * 100
	}
	return res, nil
}

func firstReason(sig model.Signal) string {
	if len(sig.Reasons) == 0 {
		return ""
	}
	return sig.Reasons[0]
}
