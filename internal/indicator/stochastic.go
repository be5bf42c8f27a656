package indicator

import "coinhero/internal/model"

// Stoch holds one stochastic oscillator computation.
type Stoch struct {
	K float64
	D float64
}

// Stochastic computes the fast stochastic oscillator:
// %K = (close - lowest low) / (highest high - lowest low) × 100 over
// kPeriod candles, %D = SMA of the last dPeriod %K values. Both fall
// back to 50 when data is short or the range is zero-width.
func Stochastic(candles []model.Candle, kPeriod, dPeriod int) Stoch {
	k := stochK(candles, kPeriod)

	if dPeriod <= 0 || len(candles) < kPeriod+dPeriod-1 {
		return Stoch{K: k, D: NeutralStochK}
	}

	ks := make([]float64, 0, dPeriod)
	for i := dPeriod - 1; i >= 0; i-- {
		ks = append(ks, stochK(candles[:len(candles)-i], kPeriod))
	}
	return Stoch{K: k, D: mean(ks)}
}

func stochK(candles []model.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return NeutralStochK
	}
	window := candles[len(candles)-period:]

	hh, ll := windowRange(window)
	if hh == ll {
		return NeutralStochK
	}

	close := window[len(window)-1].Close
	return (close - ll) / (hh - ll) * 100.0
}
