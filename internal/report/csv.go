// Package report renders backtest results: blotter and ledger CSV exports
// and terminal summaries.
package report

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"macross/internal/domain"
	"macross/internal/util"
)

// blotterRow is the CSV layout of one blotter order.
type blotterRow struct {
	Date   string `csv:"date"`
	ID     int    `csv:"id"`
	Action string `csv:"action"`
	Symbol string `csv:"symbol"`
	Size   string `csv:"size"`
	Price  string `csv:"price"`
	Type   string `csv:"type"`
	Status string `csv:"status"`
}

// ledgerRow is the CSV layout of one ledger snapshot.
type ledgerRow struct {
	Date     string `csv:"date"`
	Position string `csv:"position"`
	Price    string `csv:"price"`
	Cash     string `csv:"cash"`
	Value    string `csv:"portfolio_value"`
	Return   string `csv:"portfolio_return"`
}

// fixed renders v with places decimals; numbers stay machine-readable.
func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// WriteBlotterCSV writes orders with a header row.
func WriteBlotterCSV(w io.Writer, orders []domain.Order) error {
	rows := make([]*blotterRow, len(orders))
	for i, o := range orders {
		rows[i] = &blotterRow{
			Date:   util.FormatDay(o.Date),
			ID:     o.ID,
			Action: string(o.Action),
			Symbol: o.Symbol,
			Size:   fixed(o.Size, 6),
			Price:  fixed(o.Price, 4),
			Type:   string(o.Type),
			Status: string(o.Status),
		}
	}
	return gocsv.Marshal(&rows, w)
}

// WriteLedgerCSV writes snapshots with a header row.
func WriteLedgerCSV(w io.Writer, ledger []domain.Snapshot) error {
	rows := make([]*ledgerRow, len(ledger))
	for i, s := range ledger {
		rows[i] = &ledgerRow{
			Date:     util.FormatDay(s.Date),
			Position: fixed(s.Position, 6),
			Price:    fixed(s.Price, 4),
			Cash:     fixed(s.Cash, 4),
			Value:    fixed(s.Value, 4),
			Return:   fixed(s.Return, 6),
		}
	}
	return gocsv.Marshal(&rows, w)
}
