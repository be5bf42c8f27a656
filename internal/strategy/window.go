package strategy

import (
	"coinhero/internal/indicator"
	"coinhero/internal/model"
)

// MinCandles is the shortest daily window the strategies will score.
// Anything thinner produces a zero signal instead of a guess.
const MinCandles = 21

// VolatilityK is the breakout range multiplier for the volatility
// target price (prior day's range × K added to today's open).
const VolatilityK = 0.5

// Window is the per-instrument evaluation context, computed once per
// tick and shared by every strategy so they all see the same numbers.
type Window struct {
	Snap indicator.Snapshot

	Price          float64 // latest close
	PrevClose      float64
	PriceChangePct float64 // latest close vs previous close, percent

	PrevRSI       float64 // RSI of the window excluding the latest candle
	PrevWilliamsR float64

	TodayOpen        float64
	Yesterday        model.Candle
	DayBefore        model.Candle
	VolatilityTarget float64 // today's open + K × yesterday's range
	High20           float64 // highest high of the prior 20 candles

	OK bool // true when the window meets MinCandles
}

// NewWindow derives the evaluation context from chronological candles.
// A short window comes back with OK=false and neutral indicator values;
// strategies check OK before scoring.
func NewWindow(candles []model.Candle) Window {
	w := Window{Snap: indicator.Compute(candles)}
	if len(candles) < MinCandles {
		return w
	}
	w.OK = true

	n := len(candles)
	today := candles[n-1]
	w.Price = today.Close
	w.TodayOpen = today.Open
	w.Yesterday = candles[n-2]
	w.DayBefore = candles[n-3]
	w.PrevClose = w.Yesterday.Close
	if w.PrevClose != 0 {
		w.PriceChangePct = (w.Price - w.PrevClose) / w.PrevClose * 100
	}

	closes := model.Closes(candles)
	w.PrevRSI = indicator.RSI(closes[:n-1], indicator.RSIPeriod)
	w.PrevWilliamsR = prevWilliamsR(candles)

	w.VolatilityTarget = w.TodayOpen + (w.Yesterday.High-w.Yesterday.Low)*VolatilityK

	prior := candles[:n-1]
	if len(prior) > 20 {
		prior = prior[len(prior)-20:]
	}
	w.High20 = prior[0].High
	for _, c := range prior[1:] {
		if c.High > w.High20 {
			w.High20 = c.High
		}
	}
	return w
}

func prevWilliamsR(candles []model.Candle) float64 {
	// %R of the window shifted back one candle, using the previous
	// close against the previous period's range.
	return indicator.WilliamsR(candles[:len(candles)-1], indicator.WilliamsPeriod)
}
