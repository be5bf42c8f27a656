package strategy

import "fmt"

// VolatilityBreakout buys when price clears the volatility target
// (today's open + K × yesterday's range) on expanding volume. The
// classic Larry Williams range-breakout entry.
type VolatilityBreakout struct{}

func (VolatilityBreakout) Name() string       { return "volatility_breakout" }
func (VolatilityBreakout) TargetPct() float64 { return 6.0 }

func (VolatilityBreakout) Evaluate(w Window) (float64, string) {
	if !w.OK {
		return 0, ""
	}
	if w.Price <= w.VolatilityTarget || w.Snap.VolumeRatio <= 1.2 {
		return 0, ""
	}
	breakoutPct := (w.Price - w.VolatilityTarget) / w.VolatilityTarget * 100
	score := 65 + min2(35, breakoutPct*10+w.Snap.VolumeRatio*5)
	return score, fmt.Sprintf("변동성 돌파 +%.1f%%", breakoutPct)
}

// MomentumBreakout buys a 20-day new high confirmed by volume. Trend
// following: breakouts of the prior high tend to keep running.
type MomentumBreakout struct{}

func (MomentumBreakout) Name() string       { return "momentum_breakout" }
func (MomentumBreakout) TargetPct() float64 { return 10.0 }

func (MomentumBreakout) Evaluate(w Window) (float64, string) {
	if !w.OK {
		return 0, ""
	}
	if w.Price <= w.High20 || w.Snap.VolumeRatio <= 1.3 {
		return 0, ""
	}
	breakoutPct := (w.Price - w.High20) / w.High20 * 100
	score := 68 + min2(32, breakoutPct*8+w.Snap.VolumeRatio*4)
	return score, fmt.Sprintf("20일 신고가 돌파 +%.1f%%", breakoutPct)
}

// VolumeSurge buys a bullish candle on at least twice the average
// volume. Surging turnover at the start of a move, not at its end.
type VolumeSurge struct{}

func (VolumeSurge) Name() string       { return "volume_surge" }
func (VolumeSurge) TargetPct() float64 { return 8.0 }

func (VolumeSurge) Evaluate(w Window) (float64, string) {
	if !w.OK {
		return 0, ""
	}
	if w.Snap.VolumeRatio <= 2.0 || w.PriceChangePct <= 1 {
		return 0, ""
	}
	score := 60 + min2(40, (w.Snap.VolumeRatio-2)*15+w.PriceChangePct*3)
	return score, fmt.Sprintf("거래량 급증 %.1f배", w.Snap.VolumeRatio)
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
