package strategy

import "fmt"

// RSIReversal buys an oversold RSI that has started turning up on a
// green candle. The deeper the oversold reading, the higher the score.
type RSIReversal struct{}

func (RSIReversal) Name() string       { return "rsi_reversal" }
func (RSIReversal) TargetPct() float64 { return 8.0 }

func (RSIReversal) Evaluate(w Window) (float64, string) {
	if !w.OK {
		return 0, ""
	}
	rsi := w.Snap.RSI
	if rsi >= 38 || rsi <= w.PrevRSI || w.PriceChangePct <= 0 {
		return 0, ""
	}
	score := 85 - rsi + (w.PrevRSI-rsi)*2
	return score, fmt.Sprintf("RSI 과매도 반등 (RSI %.1f)", rsi)
}

// BollingerBounce buys near or below the lower Bollinger band. Two
// tiers: a bounce off the lower 15% of the band on a green candle, and
// a stronger signal for a close pushed outside the band entirely.
type BollingerBounce struct{}

func (BollingerBounce) Name() string       { return "bollinger_bounce" }
func (BollingerBounce) TargetPct() float64 { return 7.0 }

func (BollingerBounce) Evaluate(w Window) (float64, string) {
	if !w.OK {
		return 0, ""
	}
	pb := w.Snap.PercentB
	switch {
	case pb < 15 && w.PriceChangePct > 0:
		return 75 + (15-pb)*2, fmt.Sprintf("볼린저 하단 반등 (%%B %.0f)", pb)
	case pb < 5:
		return 80 + (5-pb)*3, fmt.Sprintf("볼린저 하단 이탈 (%%B %.0f)", pb)
	}
	return 0, ""
}
