package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"macross/internal/domain"
	"macross/internal/strategy"
	"macross/internal/util"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	buyStyle    = cellStyle.Foreground(lipgloss.Color("10"))
	sellStyle   = cellStyle.Foreground(lipgloss.Color("9"))
)

// pctStyle colours a return by sign.
func pctStyle(f float64) lipgloss.Style {
	if f < 0 {
		return lossStyle
	}
	return gainStyle
}

// Summary renders the headline metrics of a run as a two-column panel.
func Summary(res *strategy.BacktestResult) string {
	s := res.Summary
	rows := [][2]string{
		{"Symbol", res.Symbol},
		{"Range", util.FormatDay(res.Start) + " .. " + util.FormatDay(res.End)},
		{"Trading from", util.FormatDay(res.TradeStart)},
		{"Days", strconv.Itoa(len(res.Ledger))},
		{"Initial cash", FormatMoney(res.InitialCash)},
		{"Final value", FormatMoney(s.FinalValue)},
		{"Total return", pctStyle(s.TotalReturn).Render(FormatPct(s.TotalReturn))},
		{"Buy and hold", FormatMoney(s.BuyAndHold)},
		{"B&H return", pctStyle(s.BuyAndHoldReturn).Render(FormatPct(s.BuyAndHoldReturn))},
		{"Sharpe", FormatRatio(s.SharpeRatio)},
		{"Volatility", FormatPct(s.Volatility)},
		{"Max drawdown", lossStyle.Render(FormatPct(-s.MaxDrawdown))},
		{"Trades", fmt.Sprintf("%d (%d buy / %d sell)", s.TotalTrades, s.Buys, s.Sells)},
		{"Win rate", FormatPct(s.WinRate)},
		{"Profit factor", FormatRatio(s.ProfitFactor)},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(res.Strategy + " backtest"))
	b.WriteByte('\n')
	for _, r := range rows {
		b.WriteString(labelStyle.Width(16).Render(r[0]))
		b.WriteString(r[1])
		b.WriteByte('\n')
	}
	return b.String()
}

// LedgerTable renders the last n days of a run, joining each ledger row
// with its order. n <= 0 renders every day.
func LedgerTable(blotter []domain.Order, ledger []domain.Snapshot, n int) string {
	from := 0
	if n > 0 && len(ledger) > n {
		from = len(ledger) - n
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers("DATE", "ACTION", "SIZE", "PRICE", "POSITION", "CASH", "VALUE", "RETURN")

	actions := make([]domain.Signal, 0, len(ledger)-from)
	for i := from; i < len(ledger); i++ {
		snap := ledger[i]
		action, size := domain.SignalHold, 0.0
		if i < len(blotter) {
			action, size = blotter[i].Action, blotter[i].Size
		}
		actions = append(actions, action)
		t.Row(
			util.FormatDay(snap.Date),
			string(action),
			FormatShares(size),
			FormatMoney(snap.Price),
			FormatShares(snap.Position),
			FormatMoney(snap.Cash),
			FormatMoney(snap.Value),
			FormatPct(snap.Return),
		)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 1 && row >= 0 && row < len(actions) {
			switch actions[row] {
			case domain.SignalBuy:
				return buyStyle
			case domain.SignalSell:
				return sellStyle
			}
		}
		return cellStyle
	})
	return t.String()
}

// CandidatesTable renders the top n optimisation results. n <= 0 renders
// all of them.
func CandidatesTable(cands []strategy.Candidate, n int) string {
	if n > 0 && len(cands) > n {
		cands = cands[:n]
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers("#", "SHORT", "LONG", "FINAL VALUE", "RETURN", "SHARPE", "MAX DD", "TRADES").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for i, c := range cands {
		t.Row(
			strconv.Itoa(i+1),
			strconv.Itoa(c.Pair.Short),
			strconv.Itoa(c.Pair.Long),
			FormatMoney(c.FinalValue),
			FormatPct(c.TotalReturn),
			FormatRatio(c.SharpeRatio),
			FormatPct(-c.MaxDrawdown),
			strconv.Itoa(c.TotalTrades),
		)
	}
	return t.String()
}
