// Package engine converts signals into fills and keeps the append-only
// blotter and ledger of a backtest run.
package engine

import (
	"fmt"
	"math"

	"macross/internal/domain"
)

// Default sizing fractions.
const (
	DefaultBuyFraction  = 0.5
	DefaultSellFraction = 0.5
)

// Policy sizes market orders as fixed fractions of the available cash (on
// BUY) or of the held position (on SELL).
type Policy struct {
	buyFraction  float64
	sellFraction float64
}

// NewPolicy creates a Policy. Both fractions must lie in [0, 1].
//
//   - buyFraction: share of cash spent on a BUY (0.5 spends half).
//   - sellFraction: share of the position liquidated on a SELL.
func NewPolicy(buyFraction, sellFraction float64) (*Policy, error) {
	if buyFraction < 0 || buyFraction > 1 {
		return nil, fmt.Errorf("buy fraction %v outside [0,1]: %w", buyFraction, domain.ErrInvalidConfiguration)
	}
	if sellFraction < 0 || sellFraction > 1 {
		return nil, fmt.Errorf("sell fraction %v outside [0,1]: %w", sellFraction, domain.ErrInvalidConfiguration)
	}
	return &Policy{buyFraction: buyFraction, sellFraction: sellFraction}, nil
}

// BuyFraction returns the share of cash spent on a BUY.
func (p *Policy) BuyFraction() float64 { return p.buyFraction }

// SellFraction returns the share of the position sold on a SELL.
func (p *Policy) SellFraction() float64 { return p.sellFraction }

// Fill is the post-trade state produced by Apply.
type Fill struct {
	Cash     float64
	Position float64
	Size     float64 // shares traded, always >= 0
}

// Apply executes sig at price against the given state. A trade only moves
// value between cash and position at a single price, so cash+position*price
// is unchanged. HOLD returns the state untouched with Size 0.
func (p *Policy) Apply(sig domain.Signal, cash, position, price float64) (Fill, error) {
	if !finite(cash) || !finite(position) || cash < 0 || position < 0 {
		return Fill{}, fmt.Errorf("invalid state cash=%v position=%v: %w", cash, position, domain.ErrLedgerInvariant)
	}
	if sig != domain.SignalHold && !finite(price) {
		return Fill{}, fmt.Errorf("%s at non-finite price %v: %w", sig, price, domain.ErrInvalidSeries)
	}

	switch sig {
	case domain.SignalBuy:
		if price <= 0 {
			return Fill{}, fmt.Errorf("buy at non-positive price %v: %w", price, domain.ErrInvalidSeries)
		}
		spend := p.buyFraction * cash
		size := spend / price
		return Fill{Cash: cash - spend, Position: position + size, Size: size}, nil

	case domain.SignalSell:
		if price <= 0 {
			return Fill{}, fmt.Errorf("sell at non-positive price %v: %w", price, domain.ErrInvalidSeries)
		}
		size := p.sellFraction * position
		return Fill{Cash: cash + size*price, Position: position - size, Size: size}, nil

	case domain.SignalHold:
		return Fill{Cash: cash, Position: position}, nil

	default:
		return Fill{}, fmt.Errorf("unknown signal %q: %w", sig, domain.ErrInvalidConfiguration)
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
