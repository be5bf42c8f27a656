package strategy

import "fmt"

// Larry Williams pattern strategies. These read two or three daily
// candles for a specific shape rather than a smoothed indicator, so
// they fire rarely but with conviction.

// LarryWilliamsR buys a %R reading at or below -80 that has begun
// rising. Oversold by Williams' own oscillator, with the turn already
// underway.
type LarryWilliamsR struct{}

func (LarryWilliamsR) Name() string       { return "larry_williams_r" }
func (LarryWilliamsR) TargetPct() float64 { return 7.0 }

func (LarryWilliamsR) Evaluate(w Window) (float64, string) {
	if !w.OK {
		return 0, ""
	}
	wr := w.Snap.WilliamsR
	if wr > -80 || wr <= w.PrevWilliamsR {
		return 0, ""
	}
	score := 70 + abs2(wr+80) + (wr-w.PrevWilliamsR)*2
	return score, fmt.Sprintf("Williams %%R 과매도 반등 (%.1f)", wr)
}

// LarryOops buys the "Oops!" pattern: a gap down below yesterday's low
// that gets reclaimed intraday. Trapped sellers fuel the recovery.
type LarryOops struct{}

func (LarryOops) Name() string       { return "larry_oops" }
func (LarryOops) TargetPct() float64 { return 8.0 }

func (LarryOops) Evaluate(w Window) (float64, string) {
	if !w.OK {
		return 0, ""
	}
	gapDown := w.TodayOpen < w.Yesterday.Low
	reclaimed := w.Price > w.Yesterday.Low
	bullish := w.Price > w.TodayOpen
	if !gapDown || !reclaimed || !bullish {
		return 0, ""
	}
	gapSize := (w.Yesterday.Low - w.TodayOpen) / w.Yesterday.Low * 100
	recovery := (w.Price - w.TodayOpen) / w.TodayOpen * 100
	score := 65 + gapSize*5 + recovery*3
	return score, fmt.Sprintf("OOPS 갭하락 회복 +%.1f%%", recovery)
}

// LarrySmashDay buys the day after a smash-down candle once price has
// recovered above both today's open and yesterday's close.
type LarrySmashDay struct{}

func (LarrySmashDay) Name() string       { return "larry_smash_day" }
func (LarrySmashDay) TargetPct() float64 { return 8.0 }

func (LarrySmashDay) Evaluate(w Window) (float64, string) {
	if !w.OK || w.Yesterday.Open == 0 || w.DayBefore.Close == 0 {
		return 0, ""
	}
	dailyDrop := (w.Yesterday.Close - w.Yesterday.Open) / w.Yesterday.Open * 100
	vsPrevDrop := (w.Yesterday.Close - w.DayBefore.Close) / w.DayBefore.Close * 100

	smashDay := dailyDrop < -3 || vsPrevDrop < -5
	recovering := w.Price > w.TodayOpen
	aboveSmash := w.Price > w.Yesterday.Close
	if !smashDay || !recovering || !aboveSmash {
		return 0, ""
	}
	recoveryPct := (w.Price - w.Yesterday.Close) / w.Yesterday.Close * 100
	score := 60 + abs2(dailyDrop)*3 + recoveryPct*5
	return score, fmt.Sprintf("Smash Day 반등 +%.1f%%", recoveryPct)
}

// LarryCombo requires at least three of four conditions: volatility
// target cleared, %R leaving oversold, volume expansion, and a bullish
// candle. Each satisfied condition adds to the score.
type LarryCombo struct{}

func (LarryCombo) Name() string       { return "larry_combo" }
func (LarryCombo) TargetPct() float64 { return 10.0 }

func (LarryCombo) Evaluate(w Window) (float64, string) {
	if !w.OK {
		return 0, ""
	}
	wr := w.Snap.WilliamsR
	volatilityHit := w.Price > w.VolatilityTarget
	wrSignal := wr >= -80 && wr <= -50 && wr > w.PrevWilliamsR
	volumeHit := w.Snap.VolumeRatio > 1.5
	bullish := w.Price > w.TodayOpen

	met := 0
	for _, c := range []bool{volatilityHit, wrSignal, volumeHit, bullish} {
		if c {
			met++
		}
	}
	if met < 3 {
		return 0, ""
	}

	score := 50 + float64(met)*12
	if volatilityHit {
		score += 5
	}
	if wrSignal {
		score += abs2(wr + 65)
	}
	if volumeHit {
		score += min2(20, (w.Snap.VolumeRatio-1)*10)
	}
	return score, fmt.Sprintf("래리 종합 %d조건 충족", met)
}

func abs2(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
