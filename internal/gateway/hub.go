// Package gateway fans engine events out to WebSocket clients, with a
// replay buffer so reconnecting clients can backfill missed events.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coinhero/internal/engine"
)

// Hub manages WebSocket clients and event fan-out. Every event gets a
// monotonic sequence number; clients detect gaps and backfill via the
// replay endpoint or the last_seq query parameter on reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	replay  *ReplayBuffer

	upgrader websocket.Upgrader
}

// NewHub creates a hub with the given replay capacity (<=0 uses the
// buffer default).
func NewHub(replayCapacity int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replayCapacity),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run consumes the engine event stream until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, events <-chan engine.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Publish(ev)
		}
	}
}

// envelope is the wire format for one event.
type envelope struct {
	Seq  int64     `json:"seq"`
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data any       `json:"data,omitempty"`
}

// Publish assigns the next sequence number, buffers the event for
// replay, and fans it out. Slow clients lose events (they recover via
// the gap protocol).
func (h *Hub) Publish(ev engine.Event) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	data, err := json.Marshal(envelope{Seq: seq, Type: ev.Type, TS: ev.TS, Data: ev.Data})
	if err != nil {
		log.Printf("[gateway] marshal event %s: %v", ev.Type, err)
		return
	}
	h.replay.Push(seq, data)

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default: // slow client, it will backfill
		}
	}
	h.mu.RUnlock()
}

// Seq returns the sequence number of the last published event.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the connection and registers the client. A
// last_seq query parameter replays buffered events after that sequence
// before live delivery starts.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade: %v", err)
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, 256), hub: h}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] ws client connected (%d total)", count)

	if raw := r.URL.Query().Get("last_seq"); raw != "" {
		if from, err := strconv.ParseInt(raw, 10, 64); err == nil {
			for _, data := range h.Replay(from+1, h.Seq()) {
				select {
				case client.send <- data:
				default:
				}
			}
		}
	}

	go client.writePump()
	go client.readPump()
}

// HandleMissed serves buffered envelopes in [from, to] as a JSON array
// for REST gap backfill. to defaults to the latest sequence.
func (h *Hub) HandleMissed(w http.ResponseWriter, r *http.Request) {
	from, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"from required"}`, http.StatusBadRequest)
		return
	}
	to := h.Seq()
	if raw := r.URL.Query().Get("to"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			to = v
		}
	}

	entries := h.Replay(from, to)
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte{'['})
	for i, e := range entries {
		if i > 0 {
			w.Write([]byte{','})
		}
		w.Write(e)
	}
	w.Write([]byte{']'})
}

// Replay returns buffered envelopes with sequence in [from, to].
func (h *Hub) Replay(from, to int64) [][]byte {
	entries := h.replay.Range(from, to)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
