package indicator

import "math"

// Bands holds one Bollinger Bands computation.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes mean ± k·stddev over the trailing period closes.
// With a short window it uses whatever closes are available, so the
// bands degrade toward a zero-width band around the mean instead of
// erroring out.
func Bollinger(closes []float64, period int, k float64) Bands {
	window := last(closes, period)
	m := mean(window)

	var variance float64
	for _, c := range window {
		d := c - m
		variance += d * d
	}
	if len(window) > 0 {
		variance /= float64(len(window))
	}
	sd := math.Sqrt(variance)

	return Bands{Upper: m + k*sd, Middle: m, Lower: m - k*sd}
}

// PercentB locates close inside the bands as a 0..100 percentage.
// 0 sits on the lower band, 100 on the upper. Returns 50 for a
// zero-width band (flat prices or an empty window).
func PercentB(close float64, b Bands) float64 {
	width := b.Upper - b.Lower
	if width == 0 {
		return NeutralPercentB
	}
	return (close - b.Lower) / width * 100.0
}
