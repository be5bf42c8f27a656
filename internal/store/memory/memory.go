// Package memory keeps positions and trades in process memory. It is
// the test double and the fallback when no database is configured.
package memory

import (
	"context"
	"sync"

	"coinhero/internal/model"
)

// Store implements model.PositionStore and model.TradeStore in memory.
type Store struct {
	mu        sync.RWMutex
	positions map[string]model.Position
	trades    []model.TradeRecord
}

// New returns an empty store.
func New() *Store {
	return &Store{positions: make(map[string]model.Position)}
}

func (s *Store) SavePosition(_ context.Context, p model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.Market] = p
	return nil
}

func (s *Store) UpdatePosition(ctx context.Context, p model.Position) error {
	return s.SavePosition(ctx, p)
}

func (s *Store) DeletePosition(_ context.Context, market string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, market)
	return nil
}

func (s *Store) OpenPositions(_ context.Context) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) RecordTrade(_ context.Context, rec model.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, rec)
	return nil
}

// Trades returns the most recent records, newest first.
func (s *Store) Trades(_ context.Context, limit int) ([]model.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.trades) {
		limit = len(s.trades)
	}
	out := make([]model.TradeRecord, 0, limit)
	for i := len(s.trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.trades[i])
	}
	return out, nil
}
