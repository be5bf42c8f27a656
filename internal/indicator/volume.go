package indicator

import "coinhero/internal/model"

// VolumeRatio compares the latest candle's volume to the rolling mean
// volume of the preceding period candles (the current candle is
// excluded from the baseline so a surge cannot dilute itself).
// Returns 1.0 when there is no baseline or the mean is zero.
func VolumeRatio(candles []model.Candle, period int) float64 {
	if period <= 0 || len(candles) < 2 {
		return NeutralVolRatio
	}

	current := candles[len(candles)-1].Volume
	prior := candles[:len(candles)-1]
	if len(prior) > period {
		prior = prior[len(prior)-period:]
	}

	var sum float64
	for _, c := range prior {
		sum += c.Volume
	}
	avg := sum / float64(len(prior))
	if avg == 0 {
		return NeutralVolRatio
	}
	return current / avg
}
