package model

import (
	"encoding/json"
	"time"
)

// Interval identifies a candle timeframe as used by the Upbit REST API.
type Interval string

const (
	IntervalMinute1  Interval = "minute1"
	IntervalMinute5  Interval = "minute5"
	IntervalMinute15 Interval = "minute15"
	IntervalMinute60 Interval = "minute60"
	IntervalDay      Interval = "day"
)

// Candle represents one OHLCV bar for a single market.
// Prices are KRW; quantities are fractional coin amounts, so everything
// stays float64 (Upbit quotes sub-KRW ticks on low-priced coins).
type Candle struct {
	Market string    `json:"market"` // e.g. "KRW-BTC"
	TS     time.Time `json:"ts"`     // bucket start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"` // base-asset volume in this bucket
}

// TradeValue returns the approximate KRW turnover of this candle.
func (c *Candle) TradeValue() float64 {
	return c.Close * c.Volume
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Closes extracts the close series from a chronological candle window.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}
