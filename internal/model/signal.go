package model

import "time"

// Action represents a trading action decided by the scorer or consensus.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal is the output of scoring one market against the active strategy
// set. Immutable once created; consumed at most once by the engine.
type Signal struct {
	Market   string    `json:"market"`
	Action   Action    `json:"action"`
	Score    float64   `json:"score"` // always in [0,100]
	Reasons  []string  `json:"reasons"`
	Strategy string    `json:"strategy,omitempty"`  // best contributing strategy on a buy
	Target   float64   `json:"target,omitempty"`    // suggested take-profit price, 0 = none
	StopLoss float64   `json:"stop_loss,omitempty"` // suggested stop price, 0 = none
	TS       time.Time `json:"ts"`
}

// Clamp100 bounds a score or confidence to [0,100].
func Clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
