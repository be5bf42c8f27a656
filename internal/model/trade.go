package model

import "time"

// TradeRecord is one row of the append-only trade log, written once when
// an order is confirmed filled (or rejected) and never mutated afterward.
type TradeRecord struct {
	ID         int64     `json:"id,omitempty"`
	Market     string    `json:"market"`
	Action     Action    `json:"action"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	TotalKRW   float64   `json:"total_krw"`
	Strategy   string    `json:"strategy"`
	Rationale  string    `json:"rationale"`
	TS         time.Time `json:"ts"`
	Profit     *float64  `json:"profit,omitempty"`      // realized KRW profit (sells only)
	ProfitRate *float64  `json:"profit_rate,omitempty"` // realized profit % (sells only)
	Rejected   bool      `json:"rejected,omitempty"`    // order was rejected by the exchange
	Error      string    `json:"error,omitempty"`
}
