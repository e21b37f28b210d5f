// Package gather holds the background jobs that download market data into a
// bar store.
package gather

import (
	"context"
	"time"

	"macross/internal/util"
)

// Gatherer is one data download job.
type Gatherer interface {
	Name() string
	// Run downloads and stores data, returning when the job completes or
	// ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange is an inclusive span of calendar days. A zero End means "up to
// the latest finished trading day".
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether both bounds are set and ordered.
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.Start.After(r.End)
}

func (r DateRange) String() string {
	end := "latest"
	if !r.End.IsZero() {
		end = util.FormatDay(r.End)
	}
	return util.FormatDay(r.Start) + ".." + end
}
