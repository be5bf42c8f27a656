// Package sqlite is the durable store for positions and the trade
// log, one file, WAL mode, single writer connection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"coinhero/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists positions and trades. Implements model.PositionStore
// and model.TradeStore.
type Store struct {
	db *sql.DB
}

// DB returns the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (or creates) the database at path with WAL mode and the
// schema applied.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			market          TEXT PRIMARY KEY,
			entry_price     REAL NOT NULL,
			quantity        REAL NOT NULL,
			entry_time      INTEGER NOT NULL,
			target          REAL NOT NULL DEFAULT 0,
			stop_loss       REAL NOT NULL DEFAULT 0,
			strategy        TEXT NOT NULL DEFAULT '',
			rationale       TEXT NOT NULL DEFAULT '',
			max_profit_pct  REAL NOT NULL DEFAULT 0,
			trailing_stop   REAL NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			market      TEXT NOT NULL,
			action      TEXT NOT NULL,
			price       REAL NOT NULL,
			quantity    REAL NOT NULL,
			total_krw   REAL NOT NULL,
			strategy    TEXT NOT NULL DEFAULT '',
			rationale   TEXT NOT NULL DEFAULT '',
			profit      REAL,
			profit_rate REAL,
			rejected    INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			ts          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts);
		CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market, ts);
	`)
	return err
}

// SavePosition inserts or replaces a position row.
func (s *Store) SavePosition(ctx context.Context, p model.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO positions
		(market, entry_price, quantity, entry_time, target, stop_loss, strategy, rationale, max_profit_pct, trailing_stop)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Market, p.EntryPrice, p.Quantity, p.EntryTime.UnixMilli(),
		p.Target, p.StopLoss, p.Strategy, p.Rationale, p.MaxProfitPct, p.TrailingStop)
	if err != nil {
		return fmt.Errorf("save position %s: %w", p.Market, err)
	}
	return nil
}

// UpdatePosition is SavePosition; the primary key makes it an upsert.
func (s *Store) UpdatePosition(ctx context.Context, p model.Position) error {
	return s.SavePosition(ctx, p)
}

// DeletePosition removes a position row if present.
func (s *Store) DeletePosition(ctx context.Context, market string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE market = ?`, market); err != nil {
		return fmt.Errorf("delete position %s: %w", market, err)
	}
	return nil
}

// OpenPositions returns every stored position.
func (s *Store) OpenPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market, entry_price, quantity, entry_time, target, stop_loss, strategy, rationale, max_profit_pct, trailing_stop
		FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var p model.Position
		var entryMs int64
		if err := rows.Scan(&p.Market, &p.EntryPrice, &p.Quantity, &entryMs,
			&p.Target, &p.StopLoss, &p.Strategy, &p.Rationale, &p.MaxProfitPct, &p.TrailingStop); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p.EntryTime = time.UnixMilli(entryMs).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordTrade appends one trade record. The row id is assigned by the
// database; the caller's ID field is ignored.
func (s *Store) RecordTrade(ctx context.Context, rec model.TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
		(market, action, price, quantity, total_krw, strategy, rationale, profit, profit_rate, rejected, error, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Market, string(rec.Action), rec.Price, rec.Quantity, rec.TotalKRW,
		rec.Strategy, rec.Rationale, rec.Profit, rec.ProfitRate, rec.Rejected, rec.Error, rec.TS.UnixMilli())
	if err != nil {
		return fmt.Errorf("record trade %s: %w", rec.Market, err)
	}
	return nil
}

// Trades returns the most recent trades, newest first.
func (s *Store) Trades(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market, action, price, quantity, total_krw, strategy, rationale, profit, profit_rate, rejected, error, ts
		FROM trades ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	defer rows.Close()

	var out []model.TradeRecord
	for rows.Next() {
		var rec model.TradeRecord
		var action string
		var ms int64
		if err := rows.Scan(&rec.ID, &rec.Market, &action, &rec.Price, &rec.Quantity, &rec.TotalKRW,
			&rec.Strategy, &rec.Rationale, &rec.Profit, &rec.ProfitRate, &rec.Rejected, &rec.Error, &ms); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		rec.Action = model.Action(action)
		rec.TS = time.UnixMilli(ms).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
