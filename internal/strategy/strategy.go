// Package strategy defines the Strategy interface for daily signal generators,
// a Registry of strategy factories, and the Backtester that replays a price
// series through a strategy into a blotter and ledger.
package strategy

import (
	"context"
	"fmt"
	"sort"

	"macross/internal/config"
	"macross/internal/domain"
	"macross/internal/series"
	"macross/internal/signal"
)

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init binds the strategy to the series it will evaluate and performs any
	// precomputation.
	Init(ctx context.Context, s *series.Series) error

	// Warmup is the first bar index Evaluate accepts.
	Warmup() int

	// Evaluate returns the signal for the bar at index. Indices below
	// Warmup fail with domain.ErrInsufficientHistory.
	Evaluate(ctx context.Context, index int) (domain.Signal, error)
}

// Spec carries every parameter a built-in strategy may need. Each factory
// reads the fields relevant to it.
type Spec struct {
	ShortWindow int               `json:"short_window"`
	LongWindow  int               `json:"long_window"`
	ShortRange  signal.Range      `json:"short_range"`
	LongRange   signal.Range      `json:"long_range"`
	Fields      series.Blend      `json:"-"`
	Thresholds  signal.Thresholds `json:"thresholds"`
}

// Factory builds a fresh Strategy from a Spec.
type Factory func(spec Spec) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Get retrieves a factory by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// New builds the named strategy. Unknown names wrap
// domain.ErrInvalidConfiguration.
func (r *Registry) New(name string, spec Spec) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q: %w", name, domain.ErrInvalidConfiguration)
	}
	return f(spec)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SpecFromConfig translates the backtest section of the configuration into
// a Spec. An empty price_fields list leaves Fields nil so that each strategy
// applies its own default blend.
func SpecFromConfig(b config.Backtest) (Spec, error) {
	spec := Spec{
		ShortWindow: b.ShortWindow,
		LongWindow:  b.LongWindow,
		ShortRange:  signal.Range{Min: b.Sweep.Short.Min, Max: b.Sweep.Short.Max},
		LongRange:   signal.Range{Min: b.Sweep.Long.Min, Max: b.Sweep.Long.Max},
		Thresholds: signal.Thresholds{
			MinBuyStrength:  b.Sweep.MinBuyStrength,
			MinSellStrength: b.Sweep.MinSellStrength,
		},
	}
	if len(b.PriceFields) > 0 {
		blend, err := series.ParseBlend(b.PriceFields)
		if err != nil {
			return Spec{}, err
		}
		spec.Fields = blend
	}
	return spec, nil
}

// ParamsFromConfig extracts the run parameters of the backtest section.
func ParamsFromConfig(b config.Backtest) (Params, error) {
	start, end, err := b.Dates()
	if err != nil {
		return Params{}, fmt.Errorf("%v: %w", err, domain.ErrInvalidConfiguration)
	}
	return Params{
		InitialCash:  b.InitialCash,
		BuyFraction:  b.BuyFraction,
		SellFraction: b.SellFraction,
		Start:        start,
		End:          end,
	}, nil
}
