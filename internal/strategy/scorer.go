package strategy

import (
	"fmt"
	"time"

	"coinhero/internal/model"
)

// Scorer defaults. The corroboration bonus rewards windows where
// several independent strategies see the same setup.
const (
	DefaultBuyThreshold  = 60.0
	DefaultSellThreshold = 60.0
	CorroborationBonus   = 5.0
	HardStopPct          = 5.0
)

// Scorer runs a strategy set over candle windows and produces signals.
type Scorer struct {
	strategies    []Strategy
	buyThreshold  float64
	sellThreshold float64
}

// NewScorer builds a scorer over the given strategies. A zero buy or
// sell threshold falls back to the default.
func NewScorer(strategies []Strategy, buyThreshold, sellThreshold float64) *Scorer {
	if buyThreshold <= 0 {
		buyThreshold = DefaultBuyThreshold
	}
	if sellThreshold <= 0 {
		sellThreshold = DefaultSellThreshold
	}
	return &Scorer{strategies: strategies, buyThreshold: buyThreshold, sellThreshold: sellThreshold}
}

// BuyThreshold reports the configured buy cutoff.
func (sc *Scorer) BuyThreshold() float64 { return sc.buyThreshold }

// Score evaluates every strategy against the window and merges the
// results: best single score, plus a corroboration bonus for each
// additional strategy that also fired, clamped to 100. A window below
// MinCandles scores 0 with an explanatory reason and never buys.
func (sc *Scorer) Score(market string, candles []model.Candle) model.Signal {
	sig := model.Signal{Market: market, Action: model.ActionHold, TS: time.Now()}

	w := NewWindow(candles)
	if !w.OK {
		sig.Reasons = []string{fmt.Sprintf("데이터 부족 (%d캔들, 최소 %d)", len(candles), MinCandles)}
		return sig
	}

	best := 0.0
	var bestStrategy Strategy
	matched := 0
	for _, s := range sc.strategies {
		score, reason := s.Evaluate(w)
		if score <= 0 {
			continue
		}
		matched++
		sig.Reasons = append(sig.Reasons, reason)
		if score > best {
			best = score
			bestStrategy = s
		}
	}
	if matched == 0 {
		return sig
	}

	sig.Score = model.Clamp100(best + CorroborationBonus*float64(matched-1))
	if sig.Score >= sc.buyThreshold {
		sig.Action = model.ActionBuy
		sig.Strategy = bestStrategy.Name()
		sig.Target = w.Price * (1 + bestStrategy.TargetPct()/100)
		sig.StopLoss = w.Price * (1 - HardStopPct/100)
	}
	return sig
}

// SellSignal evaluates the mirrored sell side for an instrument
// already held: overbought RSI, close above the upper band, momentum
// rolling over, and realized profit milestones. Crossing the sell
// threshold yields an ActionSell signal; otherwise hold.
func (sc *Scorer) SellSignal(market string, candles []model.Candle, profitPct float64) model.Signal {
	sig := model.Signal{Market: market, Action: model.ActionHold, TS: time.Now()}

	w := NewWindow(candles)
	if !w.OK {
		sig.Reasons = []string{fmt.Sprintf("데이터 부족 (%d캔들, 최소 %d)", len(candles), MinCandles)}
		return sig
	}

	score := 0.0
	if w.Snap.RSI > 75 {
		score += 30
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("RSI 과매수 (%.1f)", w.Snap.RSI))
	}
	if w.Snap.PercentB > 95 {
		score += 30
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("볼린저 상단 돌파 (%%B %.0f)", w.Snap.PercentB))
	}
	if w.Snap.MACD.Histogram < 0 {
		score += 20
		sig.Reasons = append(sig.Reasons, "MACD 히스토그램 음전환")
	}
	if profitPct >= 10 {
		score += 20
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("수익 실현 구간 (+%.1f%%)", profitPct))
	} else if profitPct >= 5 {
		score += 10
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("수익 구간 (+%.1f%%)", profitPct))
	}

	sig.Score = model.Clamp100(score)
	if sig.Score >= sc.sellThreshold {
		sig.Action = model.ActionSell
	}
	return sig
}
