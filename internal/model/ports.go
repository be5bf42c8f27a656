package model

import (
	"context"
	"errors"
)

// ── Collaborator port interfaces ──
// These interfaces decouple the trading core from concrete collaborators
// (Upbit REST client, OpenRouter advisor, SQLite/Redis/in-memory stores).

// ErrUnavailable is returned by collaborators for transient failures
// (timeouts, empty responses). The engine skips the market for the
// current tick and retries on the next one; it never treats this as a
// reason to open or close a position.
var ErrUnavailable = errors.New("data unavailable")

// Exchange is the execution adapter the core trades through. All calls
// are synchronous with an internal timeout; failures come back as typed
// errors, never panics.
type Exchange interface {
	// CurrentPrice returns the last traded price for a market.
	CurrentPrice(ctx context.Context, market string) (float64, error)

	// Candles returns up to count chronological candles for the market.
	Candles(ctx context.Context, market string, interval Interval, count int) ([]Candle, error)

	// Balance returns the available quantity of an asset ("KRW", "BTC", ...).
	Balance(ctx context.Context, asset string) (float64, error)

	// Markets lists tradable KRW market codes.
	Markets(ctx context.Context) ([]string, error)

	// MarketBuy submits a market buy spending amountKRW.
	MarketBuy(ctx context.Context, market string, amountKRW float64) (*Fill, error)

	// MarketSell submits a market sell of quantity units.
	MarketSell(ctx context.Context, market string, quantity float64) (*Fill, error)
}

// Fill is the exchange's confirmation of an executed market order.
type Fill struct {
	OrderID   string  `json:"order_id"`
	Market    string  `json:"market"`
	Price     float64 `json:"price"`    // average fill price, 0 if not yet known
	Quantity  float64 `json:"quantity"` // filled base quantity
	AmountKRW float64 `json:"amount_krw"`
}

// OrderRejectedError reports an exchange-side rejection (insufficient
// balance, market suspended). It is logged as a failed TradeRecord and
// never mutates position state.
type OrderRejectedError struct {
	Market  string
	Message string
}

func (e *OrderRejectedError) Error() string {
	return "order rejected for " + e.Market + ": " + e.Message
}

// Advisor produces an independent opinion about a market. A nil opinion
// with ErrUnavailable means "no opinion this tick" and degrades the
// consensus gracefully.
type Advisor interface {
	Name() string
	RequestOpinion(ctx context.Context, market string, mc MarketContext, prior []Opinion) (*Opinion, error)
}

// PositionStore persists open positions keyed by market.
type PositionStore interface {
	SavePosition(ctx context.Context, pos Position) error
	UpdatePosition(ctx context.Context, pos Position) error
	DeletePosition(ctx context.Context, market string) error
	OpenPositions(ctx context.Context) ([]Position, error)
}

// TradeStore is the append-only trade log.
type TradeStore interface {
	RecordTrade(ctx context.Context, rec TradeRecord) error
	Trades(ctx context.Context, limit int) ([]TradeRecord, error)
}
