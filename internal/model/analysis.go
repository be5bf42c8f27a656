package model

// MarketContext is the technical snapshot handed to advisors and the
// consensus debate. All indicator fields are already computed from the
// same candle window, so every advisor argues over identical numbers.
type MarketContext struct {
	Market        string   `json:"market"`
	Price         float64  `json:"price"`
	ChangeRate24h float64  `json:"change_rate_24h"` // percent
	RSI           float64  `json:"rsi"`
	PercentB      float64  `json:"percent_b"`
	MACDHist      float64  `json:"macd_hist"`
	WilliamsR     float64  `json:"williams_r"`
	VolumeRatio   float64  `json:"volume_ratio"`
	Support       float64  `json:"support"`
	Resistance    float64  `json:"resistance"`
	Condition     string   `json:"condition"` // oversold, overbought, bullish, bearish, neutral
	Score         float64  `json:"score"`     // rule-based signal score, 0..100
	Reasons       []string `json:"reasons"`
}

// Consensus is the aggregated outcome of a multi-advisor debate round.
type Consensus struct {
	Market        string    `json:"market"`
	Verdict       Verdict   `json:"verdict"`
	WeightedScore float64   `json:"weighted_score"` // confidence-weighted mean in [-2, +2]
	AvgConfidence float64   `json:"avg_confidence"` // 0..100
	BuyVotes      int       `json:"buy_votes"`
	Opinions      []Opinion `json:"opinions"`
	KeyPoints     []string  `json:"key_points"`
}

// Tradable reports whether the round cleared both entry gates: a
// buy-side verdict and at least two advisors on the buy side.
func (c Consensus) Tradable() bool {
	return c.Verdict.BuySide() && c.BuyVotes >= 2
}
