// Package indicator provides pure technical-indicator functions over
// candle windows. Every function takes a chronological slice (oldest
// first, latest last) and returns a documented neutral fallback when
// the window is too short or a denominator degenerates. Nothing here
// panics on market data; callers check for the neutral sentinel before
// feeding a value into scoring.
package indicator

// Neutral fallbacks returned on insufficient data or degenerate input.
const (
	NeutralRSI       = 50.0
	NeutralPercentB  = 50.0
	NeutralWilliamsR = -50.0
	NeutralStochK    = 50.0
	NeutralVolRatio  = 1.0
)

// last returns the trailing n elements of vals, or vals itself when
// shorter than n.
func last(vals []float64, n int) []float64 {
	if len(vals) <= n {
		return vals
	}
	return vals[len(vals)-n:]
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
