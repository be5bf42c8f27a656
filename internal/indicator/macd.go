package indicator

// MACDResult holds a MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes EMA(fast) - EMA(slow) over closes, smooths the
// resulting series with an EMA(signal) for the signal line, and
// reports histogram = MACD - signal. With too few closes for the slow
// EMA everything collapses toward zero, which reads as "no momentum"
// downstream.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	if len(closes) < slow+1 {
		return MACDResult{}
	}

	fastSeries := emaSeries(closes, fast)
	slowSeries := emaSeries(closes, slow)

	// Align the two series on their tails; the slow series is shorter.
	n := len(slowSeries)
	fastSeries = fastSeries[len(fastSeries)-n:]

	macdSeries := make([]float64, n)
	for i := 0; i < n; i++ {
		macdSeries[i] = fastSeries[i] - slowSeries[i]
	}

	macd := macdSeries[n-1]
	sig := EMA(macdSeries, signal)
	return MACDResult{MACD: macd, Signal: sig, Histogram: macd - sig}
}
