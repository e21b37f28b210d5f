package strategy

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"macross/internal/domain"
)

// tradingDays annualises daily return statistics.
const tradingDays = 252

// Summary holds the performance metrics derived from a finished run.
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

// Summarize computes the Summary of a run. Daily returns are taken between
// consecutive ledger values, the first against initialCash. Sells are scored
// against the running average cost of the position; ProfitFactor is 0 when
// no sell lost money.
func Summarize(blotter []domain.Order, ledger []domain.Snapshot, initialCash, buyAndHold float64) Summary {
	sum := Summary{
		FinalValue: initialCash,
		BuyAndHold: buyAndHold,
	}
	if initialCash > 0 {
		sum.BuyAndHoldReturn = buyAndHold/initialCash - 1
	}
	if len(ledger) == 0 {
		return sum
	}

	sum.FinalValue = ledger[len(ledger)-1].Value
	sum.TotalReturn = ledger[len(ledger)-1].Return

	returns := make([]float64, len(ledger))
	prev, peak := initialCash, initialCash
	for i, snap := range ledger {
		returns[i] = snap.Value/prev - 1
		prev = snap.Value
		if snap.Value > peak {
			peak = snap.Value
		}
		if dd := (peak - snap.Value) / peak; dd > sum.MaxDrawdown {
			sum.MaxDrawdown = dd
		}
	}
	if len(returns) > 1 {
		mean, std := stat.MeanStdDev(returns, nil)
		sum.Volatility = std * math.Sqrt(tradingDays)
		if std > 0 {
			sum.SharpeRatio = mean / std * math.Sqrt(tradingDays)
		}
	}

	var shares, cost, grossProfit, grossLoss float64
	wins := 0
	for _, o := range blotter {
		if o.Size <= 0 {
			continue
		}
		switch o.Action {
		case domain.SignalBuy:
			sum.Buys++
			shares += o.Size
			cost += o.Size * o.Price
		case domain.SignalSell:
			sum.Sells++
			if shares <= 0 {
				continue
			}
			avg := cost / shares
			pnl := o.Size * (o.Price - avg)
			switch {
			case pnl > 0:
				wins++
				grossProfit += pnl
			case pnl < 0:
				grossLoss -= pnl
			}
			shares -= o.Size
			cost -= o.Size * avg
		}
	}
	sum.TotalTrades = sum.Buys + sum.Sells
	if sum.Sells > 0 {
		sum.WinRate = float64(wins) / float64(sum.Sells)
	}
	if grossLoss > 0 {
		sum.ProfitFactor = grossProfit / grossLoss
	}
	return sum
}
