package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"coinhero/internal/engine"
	"coinhero/internal/model"
	"coinhero/internal/position"
)

// A full sweep hits the exchange for every market; orders need a few
// round trips at most.
const (
	scanTimeout  = 2 * time.Minute
	orderTimeout = 30 * time.Second
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Status())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	positions := s.posmgr.Positions()
	if positions == nil {
		positions = []model.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}
	trades, err := s.trades.Trades(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []model.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// handleScan runs a one-shot sweep. It hits the exchange for every
// market, so responses can take tens of seconds.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), scanTimeout)
	defer cancel()

	cands, err := s.eng.ScanOnce(ctx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cands)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	s.eng.Start()
	writeJSON(w, http.StatusOK, map[string]bool{"running": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	s.eng.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": false})
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var cfg engine.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config: "+err.Error())
		return
	}
	s.eng.Configure(cfg)
	writeJSON(w, http.StatusOK, s.eng.Config())
}

type orderRequest struct {
	Market    string  `json:"market"`
	Side      string  `json:"side"` // "buy" or "sell"
	AmountKRW float64 `json:"amount_krw,omitempty"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order: "+err.Error())
		return
	}
	if req.Market == "" {
		writeError(w, http.StatusBadRequest, "market required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), orderTimeout)
	defer cancel()

	var err error
	switch req.Side {
	case "buy":
		err = s.eng.ManualBuy(ctx, req.Market, req.AmountKRW)
	case "sell":
		err = s.eng.ManualSell(ctx, req.Market)
	default:
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	if err != nil {
		code := http.StatusBadGateway
		switch {
		case errors.Is(err, position.ErrNoPosition), errors.Is(err, position.ErrPositionExists):
			code = http.StatusConflict
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}
