// Command ticksim is a demo WebSocket server emitting simulated Upbit ticker
// frames, for local runs without touching the real exchange.
//
// Frame shape matches the live feed fields the client reads:
//
//	{"type":"ticker","code":"KRW-BTC","trade_price":51000000,...}
//
// Point the trader at it with STREAM_URL=ws://localhost:9001/websocket/v1.
//
// Config (env vars):
//
//	TICKSIM_ADDR         listen address (default: ":9001")
//	TICKSIM_MARKETS      comma-separated markets (default: "KRW-BTC,KRW-ETH")
//	TICKSIM_INTERVAL_MS  broadcast interval milliseconds (default: "200")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// tickerFrame mirrors the Upbit websocket ticker message.
type tickerFrame struct {
	Type             string  `json:"type"`
	Code             string  `json:"code"`
	TradePrice       float64 `json:"trade_price"`
	SignedChangeRate float64 `json:"signed_change_rate"`
	AccTradeVolume   float64 `json:"acc_trade_volume"`
	Timestamp        int64   `json:"timestamp"`
}

// market holds per-market simulation state.
type market struct {
	Code      string
	Price     float64
	OpenPrice float64
	Volume    float64
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client, drop tick
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[ticksim] upgrade error: %v", err)
			return
		}
		log.Printf("[ticksim] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[ticksim] client disconnected: %s", r.RemoteAddr)
		}()

		// Drain reads so the live client can send its subscribe frame
		// (its content is ignored; every client gets every market).
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Tick generator ──────────────────────────────────────────────────────────

// walkPrice applies a tiny random walk (±0.1%) to simulate movement.
func walkPrice(price float64) float64 {
	pct := (rand.Float64()*0.2 - 0.1) / 100.0
	next := price * (1 + pct)
	if next < 1 {
		next = 1
	}
	return next
}

func runGenerator(h *hub, markets []market, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		for i := range markets {
			m := &markets[i]
			m.Price = walkPrice(m.Price)
			m.Volume += rand.Float64() * 10
			frame := tickerFrame{
				Type:             "ticker",
				Code:             m.Code,
				TradePrice:       m.Price,
				SignedChangeRate: (m.Price - m.OpenPrice) / m.OpenPrice,
				AccTradeVolume:   m.Volume,
				Timestamp:        time.Now().UnixMilli(),
			}
			b, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("[ticksim] starting demo ticker server...")

	addr := envOrDefault("TICKSIM_ADDR", ":9001")
	marketsEnv := envOrDefault("TICKSIM_MARKETS", "KRW-BTC,KRW-ETH")
	intervalMs := envIntOrDefault("TICKSIM_INTERVAL_MS", 200)

	markets := parseMarkets(marketsEnv)
	if len(markets) == 0 {
		log.Fatalf("[ticksim] no markets configured via TICKSIM_MARKETS")
	}
	log.Printf("[ticksim] markets: %v, interval: %dms", marketsEnv, intervalMs)

	h := newHub()
	go runGenerator(h, markets, intervalMs)

	http.HandleFunc("/websocket/v1", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"ticksim"}`)
	})

	log.Printf("[ticksim] listening on %s (ws://localhost%s/websocket/v1)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[ticksim] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// Rough KRW starting prices per well-known market; unknown markets
// start at 10,000.
var startPrices = map[string]float64{
	"KRW-BTC": 95_000_000,
	"KRW-ETH": 4_800_000,
	"KRW-XRP": 3_200,
	"KRW-SOL": 280_000,
}

func parseMarkets(s string) []market {
	var result []market
	for _, part := range strings.Split(s, ",") {
		code := strings.TrimSpace(part)
		if code == "" {
			continue
		}
		price, ok := startPrices[code]
		if !ok {
			price = 10_000
		}
		result = append(result, market{Code: code, Price: price, OpenPrice: price})
	}
	return result
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
