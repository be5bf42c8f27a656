// Package scanner sweeps the KRW markets for trade candidates: enough
// turnover to exit cleanly, and a strategy score above the cut.
package scanner

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"coinhero/internal/model"
	"coinhero/internal/strategy"
)

// Defaults tuned for daily candles on KRW markets.
const (
	// DefaultMinTradeValue filters out thin markets (KRW turnover of
	// the latest daily candle).
	DefaultMinTradeValue = 1_000_000_000

	// DefaultMinScore is the scan cut, stricter than the trading buy
	// threshold since scan winners go on to the advisor debate.
	DefaultMinScore = 70.0

	// CandleCount is the daily window fetched per market.
	CandleCount = 25
)

// Candidate is one market that passed the scan.
type Candidate struct {
	Market     string              `json:"market"`
	Price      float64             `json:"price"`
	TradeValue float64             `json:"trade_value"`
	Signal     model.Signal        `json:"signal"`
	Context    model.MarketContext `json:"context"`
}

// Config tunes a scan sweep.
type Config struct {
	MinTradeValue float64
	MinScore      float64
	MaxCandidates int
	Exclude       []string // markets never to propose (e.g. already held)
}

// Scanner scores all KRW markets sequentially within one sweep.
type Scanner struct {
	ex     model.Exchange
	scorer *strategy.Scorer
}

// New builds a scanner over an exchange and scorer.
func New(ex model.Exchange, scorer *strategy.Scorer) *Scanner {
	return &Scanner{ex: ex, scorer: scorer}
}

// Score evaluates a single market window with the scanner's strategy set.
func (s *Scanner) Score(market string, candles []model.Candle) model.Signal {
	return s.scorer.Score(market, candles)
}

// SellSignal scores the mirrored sell side for a market already held.
func (s *Scanner) SellSignal(market string, candles []model.Candle, profitPct float64) model.Signal {
	return s.scorer.SellSignal(market, candles, profitPct)
}

// Scan sweeps every KRW market and returns candidates sorted by score,
// best first. Individual market failures are skipped and logged; only
// a failure to list markets aborts the sweep.
func (s *Scanner) Scan(ctx context.Context, cfg Config) ([]Candidate, error) {
	if cfg.MinTradeValue <= 0 {
		cfg.MinTradeValue = DefaultMinTradeValue
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}

	markets, err := s.ex.Markets(ctx)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(cfg.Exclude))
	for _, m := range cfg.Exclude {
		excluded[m] = true
	}

	started := time.Now()
	scanned := 0
	var out []Candidate
	for _, market := range markets {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if excluded[market] {
			continue
		}

		candles, err := s.ex.Candles(ctx, market, model.IntervalDay, CandleCount)
		if err != nil {
			if !errors.Is(err, model.ErrUnavailable) {
				log.Printf("[scanner] %s: candles: %v", market, err)
			}
			continue
		}
		if len(candles) < strategy.MinCandles {
			continue
		}
		scanned++

		latest := candles[len(candles)-1]
		if latest.TradeValue() < cfg.MinTradeValue {
			continue
		}

		sig := s.scorer.Score(market, candles)
		if sig.Score < cfg.MinScore {
			continue
		}

		out = append(out, Candidate{
			Market:     market,
			Price:      latest.Close,
			TradeValue: latest.TradeValue(),
			Signal:     sig,
			Context:    Analyze(market, candles, sig),
		})
		log.Printf("[scanner] %s: %.0f점 - %v", market, sig.Score, sig.Reasons)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Signal.Score > out[j].Signal.Score })
	if cfg.MaxCandidates > 0 && len(out) > cfg.MaxCandidates {
		out = out[:cfg.MaxCandidates]
	}
	log.Printf("[scanner] swept %d markets (%d scored) in %v, %d candidates",
		len(markets), scanned, time.Since(started).Round(time.Millisecond), len(out))
	return out, nil
}
