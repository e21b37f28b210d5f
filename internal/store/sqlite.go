package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"macross/internal/domain"
	"macross/internal/util"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ BarStore = (*SQLiteStore)(nil)

const barsSchema = `
CREATE TABLE IF NOT EXISTS bars (
	market      TEXT    NOT NULL,
	symbol      TEXT    NOT NULL,
	date        TEXT    NOT NULL,
	open        REAL    NOT NULL,
	high        REAL    NOT NULL,
	low         REAL    NOT NULL,
	close       REAL    NOT NULL,
	adj_close   REAL    NOT NULL DEFAULT 0,
	volume      INTEGER NOT NULL DEFAULT 0,
	trade_count INTEGER NOT NULL DEFAULT 0,
	vwap        REAL    NOT NULL DEFAULT 0,
	PRIMARY KEY (market, symbol, date)
)`

// SQLiteStore implements BarStore backed by a SQLite database. Dates are
// stored as YYYY-MM-DD text so that range scans sort lexically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// bars table if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(barsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bars table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars upserts bars in a single transaction.
func (s *SQLiteStore) WriteBars(ctx context.Context, market string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO bars
		(market, symbol, date, open, high, low, close, adj_close, volume, trade_count, vwap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, market, strings.ToUpper(b.Symbol), util.FormatDay(b.Date),
			b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume, b.TradeCount, b.VWAP); err != nil {
			return fmt.Errorf("insert %s %s: %w", b.Symbol, util.FormatDay(b.Date), err)
		}
	}
	return tx.Commit()
}

// ReadBars selects bars of symbol within [start, end] ordered by date.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error) {
	lo, hi := "0000-00-00", "9999-99-99"
	if !start.IsZero() {
		lo = util.FormatDay(start)
	}
	if !end.IsZero() {
		hi = util.FormatDay(end)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT symbol, date, open, high, low, close, adj_close, volume, trade_count, vwap
		FROM bars WHERE market = ? AND symbol = ? AND date >= ? AND date <= ?
		ORDER BY date`, market, strings.ToUpper(symbol), lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			b    domain.Bar
			date string
		)
		if err := rows.Scan(&b.Symbol, &date, &b.Open, &b.High, &b.Low, &b.Close,
			&b.AdjClose, &b.Volume, &b.TradeCount, &b.VWAP); err != nil {
			return nil, err
		}
		if b.Date, err = util.ParseDay(date); err != nil {
			return nil, fmt.Errorf("bar date %q: %w", date, err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSymbols returns the distinct symbols stored for market.
func (s *SQLiteStore) ListSymbols(ctx context.Context, market string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars WHERE market = ? ORDER BY symbol`, market)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
