package indicator

import "coinhero/internal/model"

// WilliamsR computes Williams %R over the trailing period candles:
// (highest high - close) / (highest high - lowest low) × -100.
// The result lives in [-100, 0]; below -80 is oversold, above -20
// overbought. Returns -50 on a short window or zero-width range.
func WilliamsR(candles []model.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return NeutralWilliamsR
	}
	window := candles[len(candles)-period:]

	hh, ll := windowRange(window)
	if hh == ll {
		return NeutralWilliamsR
	}

	close := window[len(window)-1].Close
	return (hh - close) / (hh - ll) * -100.0
}

// windowRange returns the highest high and lowest low of candles.
func windowRange(candles []model.Candle) (hh, ll float64) {
	hh = candles[0].High
	ll = candles[0].Low
	for _, c := range candles[1:] {
		if c.High > hh {
			hh = c.High
		}
		if c.Low < ll {
			ll = c.Low
		}
	}
	return hh, ll
}
