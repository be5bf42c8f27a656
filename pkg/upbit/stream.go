package upbit

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamTicker is one real-time quote pushed by the websocket.
type StreamTicker struct {
	Market           string  `json:"code"`
	TradePrice       float64 `json:"trade_price"`
	SignedChangeRate float64 `json:"signed_change_rate"`
	AccTradeVolume   float64 `json:"acc_trade_volume"`
	Timestamp        int64   `json:"timestamp"` // ms since epoch
}

// Stream maintains a websocket subscription to Upbit's public ticker
// feed with automatic reconnect and resubscribe. Quotes arrive on the
// Tickers channel; a full channel drops the oldest semantics in favor
// of skipping, since only the latest quote matters.
type Stream struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	markets []string

	tickers chan StreamTicker

	// OnReconnect, when set, is called once per successful connect
	// after the first (so it counts recoveries, not the initial dial).
	OnReconnect func()

	connects int
}

// NewStream builds a stream for the given markets. Markets can be
// changed later with Subscribe.
func NewStream(streamURL string, markets []string) *Stream {
	if streamURL == "" {
		streamURL = DefaultStreamURL
	}
	return &Stream{
		url:     streamURL,
		dialer:  websocket.DefaultDialer,
		markets: append([]string(nil), markets...),
		tickers: make(chan StreamTicker, 256),
	}
}

// Tickers returns the quote channel. Closed when Run returns.
func (s *Stream) Tickers() <-chan StreamTicker { return s.tickers }

// Subscribe replaces the market set; it takes effect on the next
// (re)connect.
func (s *Stream) Subscribe(markets []string) {
	s.mu.Lock()
	s.markets = append([]string(nil), markets...)
	s.mu.Unlock()
}

// Run connects and pumps quotes until ctx is cancelled, reconnecting
// with jittered backoff on any failure.
func (s *Stream) Run(ctx context.Context) {
	defer close(s.tickers)

	backoff := time.Second
	for ctx.Err() == nil {
		started := time.Now()
		if err := s.connectAndPump(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[upbit-ws] connection lost: %v (retrying in %s)", err, backoff)
		}
		if time.Since(started) > time.Minute {
			backoff = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff + time.Duration(rand.Int63n(int64(backoff/2)+1))):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Stream) connectAndPump(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := s.sendSubscription(conn); err != nil {
		return err
	}
	log.Printf("[upbit-ws] connected, %d markets", len(s.snapshotMarkets()))
	s.connects++
	if s.connects > 1 && s.OnReconnect != nil {
		s.OnReconnect()
	}

	// Close the connection when ctx dies so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var t StreamTicker
		if err := json.Unmarshal(data, &t); err != nil || t.Market == "" {
			continue // keepalive or status frame
		}
		select {
		case s.tickers <- t:
		default:
			// Consumer is behind; the next quote supersedes this one.
		}
	}
}

// sendSubscription issues the Upbit subscribe frame: a ticket segment,
// a ticker type segment with the market codes, and a format segment.
func (s *Stream) sendSubscription(conn *websocket.Conn) error {
	frame := []any{
		map[string]string{"ticket": "coinhero"},
		map[string]any{"type": "ticker", "codes": s.snapshotMarkets()},
		map[string]string{"format": "DEFAULT"},
	}
	return conn.WriteJSON(frame)
}

func (s *Stream) snapshotMarkets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.markets...)
}
