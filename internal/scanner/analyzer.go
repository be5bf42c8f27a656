package scanner

import (
	"coinhero/internal/model"
	"coinhero/internal/strategy"
)

// Analyze condenses a candle window and its signal into the market
// context handed to advisors: one consistent set of numbers per tick.
func Analyze(market string, candles []model.Candle, sig model.Signal) model.MarketContext {
	w := strategy.NewWindow(candles)

	mc := model.MarketContext{
		Market:      market,
		Price:       w.Price,
		RSI:         w.Snap.RSI,
		PercentB:    w.Snap.PercentB,
		MACDHist:    w.Snap.MACD.Histogram,
		WilliamsR:   w.Snap.WilliamsR,
		VolumeRatio: w.Snap.VolumeRatio,
		Score:       sig.Score,
		Reasons:     sig.Reasons,
	}
	mc.ChangeRate24h = w.PriceChangePct
	mc.Support, mc.Resistance = supportResistance(candles)
	mc.Condition = condition(w)
	return mc
}

// supportResistance takes the extremes of the trailing window as the
// nearest meaningful levels.
func supportResistance(candles []model.Candle) (support, resistance float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	window := candles
	if len(window) > 20 {
		window = window[len(window)-20:]
	}
	support = window[0].Low
	resistance = window[0].High
	for _, c := range window[1:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return support, resistance
}

func condition(w strategy.Window) string {
	switch {
	case w.Snap.RSI <= 30:
		return "oversold"
	case w.Snap.RSI >= 70:
		return "overbought"
	case w.Snap.SMA5 > w.Snap.SMA20 && w.Snap.MACD.Histogram > 0:
		return "bullish"
	case w.Snap.SMA5 < w.Snap.SMA20 && w.Snap.MACD.Histogram < 0:
		return "bearish"
	default:
		return "neutral"
	}
}
