// Package store defines the BarStore interface for persisting and retrieving
// daily bars, with Parquet, SQLite and CSV implementations.
package store

import (
	"context"
	"fmt"
	"time"

	"macross/internal/config"
	"macross/internal/domain"
	"macross/internal/series"
)

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars under market, replacing any bar
	// already stored for the same symbol and day.
	WriteBars(ctx context.Context, market string, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within
	// [start, end], ascending by date. A zero start or end leaves that side
	// unbounded.
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)

	// Close releases any underlying resources.
	Close() error
}

// Open returns the BarStore selected by cfg.Backend.
func Open(cfg config.Storage) (BarStore, error) {
	switch cfg.Backend {
	case "", "parquet":
		return NewParquetStore(cfg.DataDir), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "csv":
		return NewCSVStore(cfg.CSVDir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q: %w", cfg.Backend, domain.ErrInvalidConfiguration)
	}
}

// LoadSeries reads every stored bar of symbol and validates them into a
// Series. A symbol with no bars fails with domain.ErrNoDataInRange.
func LoadSeries(ctx context.Context, bs BarStore, symbol, market string) (*series.Series, error) {
	bars, err := bs.ReadBars(ctx, symbol, market, time.Time{}, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", market, symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s/%s: no stored bars: %w", market, symbol, domain.ErrNoDataInRange)
	}
	return series.New(symbol, bars)
}

// inRange reports whether day lies in [start, end], treating zero bounds as
// open.
func inRange(day, start, end time.Time) bool {
	if !start.IsZero() && day.Before(start) {
		return false
	}
	if !end.IsZero() && day.After(end) {
		return false
	}
	return true
}
