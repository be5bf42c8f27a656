package model

import "time"

// Verdict is the five-level recommendation scale used by advisors and the
// consensus aggregator.
type Verdict string

const (
	VerdictStrongBuy  Verdict = "strong_buy"
	VerdictBuy        Verdict = "buy"
	VerdictHold       Verdict = "hold"
	VerdictSell       Verdict = "sell"
	VerdictStrongSell Verdict = "strong_sell"
)

// Weight maps a verdict onto the signed consensus scale.
func (v Verdict) Weight() float64 {
	switch v {
	case VerdictStrongBuy:
		return 2
	case VerdictBuy:
		return 1
	case VerdictSell:
		return -1
	case VerdictStrongSell:
		return -2
	default:
		return 0
	}
}

// BuySide reports whether the verdict recommends committing capital.
func (v Verdict) BuySide() bool {
	return v == VerdictBuy || v == VerdictStrongBuy
}

// Opinion is one advisor's view of a market. Opinions are combined by the
// consensus aggregator and never persisted individually.
type Opinion struct {
	Source     string    `json:"source"` // advisor identifier
	Market     string    `json:"market"`
	Verdict    Verdict   `json:"verdict"`
	Confidence float64   `json:"confidence"` // always in [0,100]
	Rationale  string    `json:"rationale"`
	KeyPoints  []string  `json:"key_points,omitempty"`
	TS         time.Time `json:"ts"`
}
