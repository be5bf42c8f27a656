package indicator

// RSI computes the Relative Strength Index over the trailing period
// deltas of closes: simple rolling means of gains and losses, then
// 100 - 100/(1+RS). Returns 50 when the window is too short or the
// loss average is zero, so callers never divide by zero and never
// score a half-empty window.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return NeutralRSI
	}
	window := closes[len(closes)-period-1:]

	var gains, losses float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return NeutralRSI
	}

	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
