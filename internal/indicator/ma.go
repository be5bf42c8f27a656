package indicator

// SMA is the simple moving average of the trailing period closes.
// Returns the mean of whatever is available when the window is short,
// and 0 for an empty slice.
func SMA(closes []float64, period int) float64 {
	if period <= 0 {
		return 0
	}
	return mean(last(closes, period))
}

// EMA returns the exponential moving average of the trailing period
// closes, seeded with an SMA of the first period values. Falls back to
// SMA when the window is shorter than the period.
func EMA(closes []float64, period int) float64 {
	series := emaSeries(closes, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// emaSeries computes the full EMA series aligned with closes[period-1:].
// Returns nil when closes is shorter than period.
func emaSeries(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) == 0 {
		return nil
	}
	if len(closes) < period {
		return []float64{mean(closes)}
	}

	out := make([]float64, 0, len(closes)-period+1)
	ema := mean(closes[:period])
	out = append(out, ema)

	k := 2.0 / float64(period+1)
	for _, c := range closes[period:] {
		ema = (c-ema)*k + ema
		out = append(out, ema)
	}
	return out
}
