package engine

import (
	"fmt"
	"math"
	"time"

	"macross/internal/domain"
	"macross/internal/util"
)

// valueTolerance bounds the relative drift allowed between the portfolio
// value before and after a fill.
const valueTolerance = 1e-9

// Book is the append-only blotter and ledger of one run. It starts with the
// initial cash and no position, and each Record appends exactly one row to
// both logs. A Book is owned by a single run and is not safe for concurrent
// use.
type Book struct {
	symbol      string
	initialCash float64

	cash     float64
	position float64

	orders    []domain.Order
	snapshots []domain.Snapshot
}

// NewBook creates an empty Book for symbol funded with initialCash.
func NewBook(symbol string, initialCash float64) (*Book, error) {
	if initialCash <= 0 || math.IsNaN(initialCash) || math.IsInf(initialCash, 0) {
		return nil, fmt.Errorf("initial cash %v must be positive: %w", initialCash, domain.ErrInvalidConfiguration)
	}
	return &Book{symbol: symbol, initialCash: initialCash, cash: initialCash}, nil
}

// Cash returns the cash after the last recorded day.
func (b *Book) Cash() float64 { return b.cash }

// Position returns the shares held after the last recorded day.
func (b *Book) Position() float64 { return b.position }

// InitialCash returns the starting cash.
func (b *Book) InitialCash() float64 { return b.initialCash }

// Len returns the number of recorded days.
func (b *Book) Len() int { return len(b.orders) }

// Record appends the blotter order and ledger snapshot for one day. It
// refuses rows that are not strictly after the previous date, carry a
// non-finite or non-positive price, leave cash or position negative or
// non-finite, or trade a negative size. The position must move by exactly
// size in the direction of action (not at all on HOLD), and the portfolio
// value at price must not change beyond floating tolerance.
func (b *Book) Record(date time.Time, action domain.Signal, size, price, cashAfter, positionAfter float64) (domain.Order, domain.Snapshot, error) {
	date = util.Day(date)
	if n := len(b.snapshots); n > 0 && !date.After(b.snapshots[n-1].Date) {
		return domain.Order{}, domain.Snapshot{}, fmt.Errorf("date %s not after %s: %w",
			util.FormatDay(date), util.FormatDay(b.snapshots[n-1].Date), domain.ErrLedgerInvariant)
	}
	if !finite(price) || price <= 0 {
		return domain.Order{}, domain.Snapshot{}, fmt.Errorf("%s: price %v: %w",
			util.FormatDay(date), price, domain.ErrInvalidSeries)
	}
	if !finite(cashAfter) || !finite(positionAfter) || !finite(size) {
		return domain.Order{}, domain.Snapshot{}, fmt.Errorf("%s: non-finite cash=%v position=%v size=%v: %w",
			util.FormatDay(date), cashAfter, positionAfter, size, domain.ErrLedgerInvariant)
	}
	if cashAfter < 0 || positionAfter < 0 || size < 0 {
		return domain.Order{}, domain.Snapshot{}, fmt.Errorf("%s: negative cash=%v position=%v size=%v: %w",
			util.FormatDay(date), cashAfter, positionAfter, size, domain.ErrLedgerInvariant)
	}
	if action == domain.SignalHold && size != 0 {
		return domain.Order{}, domain.Snapshot{}, fmt.Errorf("%s: HOLD with size %v: %w",
			util.FormatDay(date), size, domain.ErrLedgerInvariant)
	}
	var want float64
	switch action {
	case domain.SignalBuy:
		want = size
	case domain.SignalSell:
		want = -size
	case domain.SignalHold:
	default:
		return domain.Order{}, domain.Snapshot{}, fmt.Errorf("%s: unknown action %q: %w",
			util.FormatDay(date), action, domain.ErrLedgerInvariant)
	}
	delta := positionAfter - b.position
	scale := math.Max(1, math.Max(size, math.Max(b.position, positionAfter)))
	if math.Abs(delta-want) > valueTolerance*scale {
		return domain.Order{}, domain.Snapshot{}, fmt.Errorf("%s: %s of size %v moved position from %v to %v: %w",
			util.FormatDay(date), action, size, b.position, positionAfter, domain.ErrLedgerInvariant)
	}

	before := b.cash + b.position*price
	value := cashAfter + positionAfter*price
	if math.Abs(value-before) > valueTolerance*math.Max(1, math.Abs(before)) {
		return domain.Order{}, domain.Snapshot{}, fmt.Errorf("%s: value moved from %v to %v at price %v: %w",
			util.FormatDay(date), before, value, price, domain.ErrLedgerInvariant)
	}

	order := domain.Order{
		Date:   date,
		ID:     len(b.orders) + 1,
		Action: action,
		Symbol: b.symbol,
		Size:   size,
		Price:  price,
		Type:   domain.OrderTypeMarket,
		Status: domain.OrderStatusFilled,
	}
	snap := domain.Snapshot{
		Date:     date,
		Position: positionAfter,
		Price:    price,
		Cash:     cashAfter,
		Value:    value,
		Return:   value/b.initialCash - 1,
	}

	b.orders = append(b.orders, order)
	b.snapshots = append(b.snapshots, snap)
	b.cash, b.position = cashAfter, positionAfter
	return order, snap, nil
}

// Blotter returns a copy of the recorded orders.
func (b *Book) Blotter() []domain.Order {
	out := make([]domain.Order, len(b.orders))
	copy(out, b.orders)
	return out
}

// Ledger returns a copy of the recorded snapshots.
func (b *Book) Ledger() []domain.Snapshot {
	out := make([]domain.Snapshot, len(b.snapshots))
	copy(out, b.snapshots)
	return out
}
