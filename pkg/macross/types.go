package macross

import "time"

// Range is an inclusive window range.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// BacktestRequest overrides the server's configured backtest parameters.
// Zero values and nil pointers keep the server default.
type BacktestRequest struct {
	Symbol      string   `json:"symbol,omitempty"`
	Market      string   `json:"market,omitempty"`
	Strategy    string   `json:"strategy,omitempty"`
	StartDate   string   `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate     string   `json:"end_date,omitempty"`
	InitialCash float64  `json:"initial_cash,omitempty"`
	ShortWindow int      `json:"short_window,omitempty"`
	LongWindow  int      `json:"long_window,omitempty"`
	ShortRange  *Range   `json:"short_range,omitempty"`
	LongRange   *Range   `json:"long_range,omitempty"`
	PriceFields []string `json:"price_fields,omitempty"`

	BuyFraction     *float64 `json:"buy_fraction,omitempty"`
	SellFraction    *float64 `json:"sell_fraction,omitempty"`
	MinBuyStrength  *float64 `json:"min_buy_strength,omitempty"`
	MinSellStrength *float64 `json:"min_sell_strength,omitempty"`
}

// OptimizeRequest asks for a grid search over (short, long) window pairs.
type OptimizeRequest struct {
	BacktestRequest
	Short   *Range `json:"short,omitempty"`
	Long    *Range `json:"long,omitempty"`
	Workers int    `json:"workers,omitempty"`
	Top     int    `json:"top,omitempty"` // 0: all candidates
}

// Order is one blotter row.
type Order struct {
	Date   time.Time `json:"date"`
	ID     int       `json:"id"`
	Action string    `json:"action"`
	Symbol string    `json:"symbol"`
	Size   float64   `json:"size"`
	Price  float64   `json:"price"`
	Type   string    `json:"type"`
	Status string    `json:"status"`
}

// Snapshot is one ledger row.
type Snapshot struct {
	Date     time.Time `json:"date"`
	Position float64   `json:"position"`
	Price    float64   `json:"price"`
	Cash     float64   `json:"cash"`
	Value    float64   `json:"portfolio_value"`
	Return   float64   `json:"portfolio_return"`
}

// Summary holds the performance metrics of a finished run.
type Summary struct {
	FinalValue       float64 `json:"final_value"`
	TotalReturn      float64 `json:"total_return"`
	BuyAndHold       float64 `json:"buy_and_hold"`
	BuyAndHoldReturn float64 `json:"buy_and_hold_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	Volatility       float64 `json:"volatility"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	TotalTrades      int     `json:"total_trades"`
	Buys             int     `json:"buys"`
	Sells            int     `json:"sells"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
}

// Backtest is the result of one run.
type Backtest struct {
	RunID       string     `json:"run_id"`
	Strategy    string     `json:"strategy"`
	Symbol      string     `json:"symbol"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	TradeStart  time.Time  `json:"trade_start"`
	InitialCash float64    `json:"initial_cash"`
	BuyAndHold  float64    `json:"buy_and_hold"`
	Blotter     []Order    `json:"blotter"`
	Ledger      []Snapshot `json:"ledger"`
	Summary     Summary    `json:"summary"`
}

// Pair is one (short, long) window combination.
type Pair struct {
	Short int `json:"short"`
	Long  int `json:"long"`
}

// Candidate is the score of one grid point.
type Candidate struct {
	Pair        Pair    `json:"pair"`
	FinalValue  float64 `json:"final_value"`
	TotalReturn float64 `json:"total_return"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	TotalTrades int     `json:"total_trades"`
}

// OptimizeResponse lists candidates best first.
type OptimizeResponse struct {
	Symbol     string      `json:"symbol"`
	Strategy   string      `json:"strategy"`
	Candidates []Candidate `json:"candidates"`
}

// SymbolsResponse lists the symbols stored for a market.
type SymbolsResponse struct {
	Market  string   `json:"market"`
	Symbols []string `json:"symbols"`
}

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
