// Package domain defines the core value types shared across the backtesting
// system: daily bars, trading signals, blotter orders, and ledger snapshots.
package domain

import "time"

// Market identifies the exchange family a symbol trades on.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is one trading day's OHLCV record. Bars are immutable once loaded.
type Bar struct {
	Symbol     string
	Date       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	AdjClose   float64 // 0 when the source has no adjusted close
	Volume     int64
	TradeCount int64
	VWAP       float64 // 0 when the source has no VWAP
}

// Signal is the discrete trading decision produced for one day.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// OrderType is the execution style of a blotter order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus is the lifecycle state of a blotter order.
type OrderStatus string

const (
	OrderStatusFilled OrderStatus = "FILLED"
)

// Order is one blotter row. A row is written for every simulated day,
// including HOLD days where Size is zero.
type Order struct {
	Date   time.Time   `json:"date"`
	ID     int         `json:"id"`
	Action Signal      `json:"action"`
	Symbol string      `json:"symbol"`
	Size   float64     `json:"size"`
	Price  float64     `json:"price"`
	Type   OrderType   `json:"type"`
	Status OrderStatus `json:"status"`
}

// Snapshot is one ledger row: the portfolio state after the day's order.
type Snapshot struct {
	Date     time.Time `json:"date"`
	Position float64   `json:"position"`
	Price    float64   `json:"price"`
	Cash     float64   `json:"cash"`
	Value    float64   `json:"portfolio_value"`
	Return   float64   `json:"portfolio_return"`
}
