// Package position is the per-instrument state machine: no position,
// open, closing. It owns the open-position set, the banded trailing
// stop, and the exit decision for every monitoring tick. Order
// execution lives elsewhere; this package only decides.
package position

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"coinhero/internal/model"
)

// ErrPositionExists rejects a second open for an instrument that
// already has one. The existing position is never overwritten.
var ErrPositionExists = errors.New("position already open")

// ErrNoPosition is returned when closing or ticking an instrument with
// no open position.
var ErrNoPosition = errors.New("no open position")

// ExitReason tags why a position was closed.
type ExitReason string

const (
	ExitHardStop     ExitReason = "hard_stop"
	ExitTarget       ExitReason = "target"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitMaxHold      ExitReason = "max_hold"
	ExitDrawdown     ExitReason = "drawdown"

	// ExitSignal is decided outside the banding, by the sell-side
	// score on held markets.
	ExitSignal ExitReason = "sell_signal"
)

// Decision is the outcome of one monitoring tick for one position.
type Decision struct {
	Exit      bool
	Reason    ExitReason
	Label     string // operator-facing description for the trade log
	ProfitPct float64
	Price     float64
}

// Manager tracks open positions behind a mutex. A single trading loop
// mutates it; the API layer reads eventually-consistent snapshots.
type Manager struct {
	mu    sync.RWMutex
	cfg   Config
	open  map[string]*model.Position
	store model.PositionStore
}

// NewManager builds a manager over the given store. A nil store keeps
// positions in memory only.
func NewManager(cfg Config, store model.PositionStore) *Manager {
	return &Manager{cfg: cfg, open: make(map[string]*model.Position), store: store}
}

// Restore loads open positions from the store, typically after a
// restart, so a running position is never orphaned by a crash.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	saved, err := m.store.OpenPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore positions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range saved {
		p := saved[i]
		m.open[p.Market] = &p
	}
	return len(saved), nil
}

// Open records a new position. Opening over an existing position is a
// logged no-op returning ErrPositionExists; the invariant is one
// position per instrument.
func (m *Manager) Open(ctx context.Context, pos model.Position) error {
	m.mu.Lock()
	if _, exists := m.open[pos.Market]; exists {
		m.mu.Unlock()
		log.Printf("[position] %s: open rejected, position already exists", pos.Market)
		return ErrPositionExists
	}
	pos.MaxProfitPct = 0
	pos.TrailingStop = 0
	m.open[pos.Market] = &pos
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SavePosition(ctx, pos); err != nil {
			log.Printf("[position] %s: save failed: %v", pos.Market, err)
		}
	}
	return nil
}

// Tick advances the state machine for one instrument with a fresh
// price: updates max favorable excursion, arms and tightens the
// trailing stop, and evaluates the exit rules in priority order. The
// caller executes the sell when Decision.Exit is set and then calls
// Close.
func (m *Manager) Tick(ctx context.Context, market string, price float64, now time.Time) (Decision, error) {
	m.mu.Lock()
	pos, ok := m.open[market]
	if !ok {
		m.mu.Unlock()
		return Decision{}, ErrNoPosition
	}

	d := m.advance(pos, price, now)
	snapshot := *pos
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.UpdatePosition(ctx, snapshot); err != nil {
			log.Printf("[position] %s: update failed: %v", market, err)
		}
	}
	return d, nil
}

// advance mutates pos under the manager lock and returns the decision.
func (m *Manager) advance(pos *model.Position, price float64, now time.Time) Decision {
	cfg := m.cfg
	profit := pos.ProfitPct(price)
	held := pos.HoldingTime(now)

	if profit > pos.MaxProfitPct {
		pos.MaxProfitPct = profit
	}

	// Arm the trailing stop once profit clears the activation level.
	if profit >= cfg.TrailingActivatePct && pos.TrailingStop == 0 {
		pos.TrailingStop = pos.EntryPrice * (1 + cfg.ActivationFloorPct/100)
		log.Printf("[position] %s: trailing stop armed at %.0f (profit %.2f%%)", pos.Market, pos.TrailingStop, profit)
	}

	// Tighten per band. The stop only ever moves up.
	if ratio := cfg.protectRatio(pos.MaxProfitPct); ratio > 0 {
		if stop := pos.EntryPrice * (1 + pos.MaxProfitPct*ratio/100); stop > pos.TrailingStop {
			pos.TrailingStop = stop
		}
	}

	d := Decision{ProfitPct: profit, Price: price}

	switch {
	case profit <= cfg.HardStopPct:
		d.Exit = true
		d.Reason = ExitHardStop
		d.Label = fmt.Sprintf("손절 (%+.2f%%)", profit)

	case pos.Target > 0 && price >= pos.Target && held >= cfg.MinHolding:
		d.Exit = true
		d.Reason = ExitTarget
		d.Label = fmt.Sprintf("목표 수익 도달 (%+.2f%%)", profit)

	case pos.TrailingStop > 0 && price <= pos.TrailingStop && profit >= cfg.MinProfitForExitPct:
		d.Exit = true
		d.Reason = ExitTrailingStop
		d.Label = fmt.Sprintf("트레일링 스탑 (%+.2f%%, 최고 %.1f%%)", profit, pos.MaxProfitPct)

	case held >= cfg.MaxHolding && profit >= cfg.MinProfitForExitPct:
		d.Exit = true
		d.Reason = ExitMaxHold
		d.Label = fmt.Sprintf("시간 기반 익절 (%+.2f%%, %.0f분 보유)", profit, held.Minutes())

	case pos.MaxProfitPct >= cfg.TrailingActivatePct &&
		pos.MaxProfitPct-profit >= pos.MaxProfitPct*cfg.DrawdownExitFraction &&
		profit >= cfg.MinProfitForExitPct:
		d.Exit = true
		d.Reason = ExitDrawdown
		d.Label = fmt.Sprintf("수익 급감 익절 (%+.2f%%, 최고 %.1f%%)", profit, pos.MaxProfitPct)
	}
	return d
}

// Close removes an instrument's position. Idempotent: closing an
// already-closed instrument returns ErrNoPosition without side
// effects, so a retried sell confirmation cannot double-close.
func (m *Manager) Close(ctx context.Context, market string) (model.Position, error) {
	m.mu.Lock()
	pos, ok := m.open[market]
	if !ok {
		m.mu.Unlock()
		return model.Position{}, ErrNoPosition
	}
	closed := *pos
	delete(m.open, market)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.DeletePosition(ctx, market); err != nil {
			log.Printf("[position] %s: delete failed: %v", market, err)
		}
	}
	return closed, nil
}

// Get returns a copy of one open position.
func (m *Manager) Get(market string) (model.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.open[market]
	if !ok {
		return model.Position{}, false
	}
	return *pos, true
}

// Positions returns a snapshot of all open positions.
func (m *Manager) Positions() []model.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Position, 0, len(m.open))
	for _, p := range m.open {
		out = append(out, *p)
	}
	return out
}

// Count reports the number of open positions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.open)
}
