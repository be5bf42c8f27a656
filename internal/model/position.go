package model

import "time"

// Position is one open holding for a market. Created when a buy fills,
// mutated on every monitoring tick (MaxProfitPct, TrailingStop), removed
// from the open set when the position closes. At most one Position exists
// per market at a time.
type Position struct {
	Market       string    `json:"market"`
	EntryPrice   float64   `json:"entry_price"`
	Quantity     float64   `json:"quantity"` // always > 0 while open
	EntryTime    time.Time `json:"entry_time"`
	Target       float64   `json:"target,omitempty"`
	StopLoss     float64   `json:"stop_loss,omitempty"`
	Strategy     string    `json:"strategy"`
	Rationale    string    `json:"rationale,omitempty"`
	MaxProfitPct float64   `json:"max_profit_pct"`          // high-water mark of profit %
	TrailingStop float64   `json:"trailing_stop,omitempty"` // 0 = not yet activated
}

// ProfitPct returns the unrealized profit percentage at the given price.
func (p *Position) ProfitPct(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// HoldingTime returns how long the position has been open as of now.
func (p *Position) HoldingTime(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
