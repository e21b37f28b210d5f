package domain

import "errors"

var (
	// ErrInsufficientHistory is returned when an evaluation index precedes the
	// longest averaging window.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrNoDataInRange is returned when a requested date range cannot be
	// resolved to bars inside the series.
	ErrNoDataInRange = errors.New("no data in range")

	// ErrSingularSystem is returned when the crossing point of two average
	// lines cannot be solved (parallel lines). Sweeps absorb it as a skipped
	// vote.
	ErrSingularSystem = errors.New("singular system")

	// ErrInvalidConfiguration is returned for out-of-range fractions, windows
	// or other run parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidSeries is returned when bars are unordered, duplicated, or
	// carry non-positive prices.
	ErrInvalidSeries = errors.New("invalid price series")

	// ErrLedgerInvariant is returned when a book row would break date order,
	// non-negativity, or value conservation.
	ErrLedgerInvariant = errors.New("ledger invariant violated")
)
