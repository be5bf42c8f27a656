package indicator

import "coinhero/internal/model"

// ATR computes the Average True Range over the trailing period
// candles as a simple mean of true ranges. True range covers gaps:
// max(high-low, |high-prevClose|, |low-prevClose|). Returns 0 when
// fewer than two candles are available.
func ATR(candles []model.Candle, period int) float64 {
	if period <= 0 || len(candles) < 2 {
		return 0
	}
	if len(candles) > period+1 {
		candles = candles[len(candles)-period-1:]
	}

	var sum float64
	n := 0
	for i := 1; i < len(candles); i++ {
		sum += trueRange(candles[i], candles[i-1].Close)
		n++
	}
	return sum / float64(n)
}

func trueRange(c model.Candle, prevClose float64) float64 {
	tr := c.High - c.Low
	if d := abs(c.High - prevClose); d > tr {
		tr = d
	}
	if d := abs(c.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
