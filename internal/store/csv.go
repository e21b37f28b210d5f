package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"macross/internal/domain"
	"macross/internal/util"
)

// Compile-time interface check.
var _ BarStore = (*CSVStore)(nil)

// CSVStore implements BarStore over one Yahoo-style CSV file per symbol:
//
//	<Dir>/<SYMBOL>.csv  with header Date,Open,High,Low,Close,Adj Close,Volume
//
// The market argument is ignored.
type CSVStore struct {
	Dir string
}

// NewCSVStore creates a CSVStore reading and writing files in dir.
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{Dir: dir}
}

// csvRow keeps every column as text; quotes, thousands separators and
// placeholder rows are handled by parseRow.
type csvRow struct {
	Date     string `csv:"Date"`
	Open     string `csv:"Open"`
	High     string `csv:"High"`
	Low      string `csv:"Low"`
	Close    string `csv:"Close"`
	AdjClose string `csv:"Adj Close"`
	Volume   string `csv:"Volume"`
	VWAP     string `csv:"VWAP"`
}

// Date layouts accepted in the Date column.
var csvDateLayouts = []string{util.DateLayout, "Jan 02, 2006", "Jan 2, 2006", "02.01.2006", "01/02/2006"}

// errSkipRow marks dividend, split and null rows.
var errSkipRow = errors.New("not a price row")

// ReadBars parses <Dir>/<SYMBOL>.csv, skips rows without numeric prices and
// returns the bars within [start, end] in ascending date order.
func (s *CSVStore) ReadBars(_ context.Context, symbol string, _ string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := readCSVFile(s.path(symbol), symbol, start, end)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return bars, err
}

// ReadCSVFile parses a daily bar export at path, such as a Yahoo Finance
// download, labelling every bar with symbol.
func ReadCSVFile(path, symbol string) ([]domain.Bar, error) {
	return readCSVFile(path, symbol, time.Time{}, time.Time{})
}

func readCSVFile(path, symbol string, start, end time.Time) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Dividend and split rows carry fewer columns than price rows.
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows []*csvRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	start, end = dayOrZero(start), dayOrZero(end)
	bars := make([]domain.Bar, 0, len(rows))
	for i, r := range rows {
		b, err := parseRow(r)
		if errors.Is(err, errSkipRow) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		b.Symbol = strings.ToUpper(symbol)
		if inRange(b.Date, start, end) {
			bars = append(bars, b)
		}
	}
	// Yahoo exports are often newest first.
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// WriteBars merges bars into the per-symbol files, replacing rows of the same
// day.
func (s *CSVStore) WriteBars(ctx context.Context, market string, bars []domain.Bar) error {
	bySymbol := make(map[string][]domain.Bar)
	for _, b := range bars {
		sym := strings.ToUpper(b.Symbol)
		bySymbol[sym] = append(bySymbol[sym], b)
	}

	for sym, incoming := range bySymbol {
		existing, err := s.ReadBars(ctx, sym, market, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		merged := make(map[time.Time]domain.Bar, len(existing)+len(incoming))
		for _, b := range existing {
			merged[b.Date] = b
		}
		for _, b := range incoming {
			b.Date = util.Day(b.Date)
			merged[b.Date] = b
		}
		out := make([]domain.Bar, 0, len(merged))
		for _, b := range merged {
			out = append(out, b)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

		if err := s.writeFile(sym, out); err != nil {
			return fmt.Errorf("writing %s: %w", sym, err)
		}
	}
	return nil
}

// ListSymbols returns the base names of the CSV files in Dir.
func (s *CSVStore) ListSymbols(_ context.Context, _ string) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		symbols = append(symbols, strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name))))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Close is a no-op.
func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) path(symbol string) string {
	return filepath.Join(s.Dir, strings.ToUpper(symbol)+".csv")
}

func (s *CSVStore) writeFile(symbol string, bars []domain.Bar) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	rows := make([]*csvRow, len(bars))
	for i, b := range bars {
		rows[i] = &csvRow{
			Date:     util.FormatDay(b.Date),
			Open:     formatPrice(b.Open),
			High:     formatPrice(b.High),
			Low:      formatPrice(b.Low),
			Close:    formatPrice(b.Close),
			AdjClose: formatPrice(b.AdjClose),
			Volume:   decimal.NewFromInt(b.Volume).String(),
			VWAP:     formatPrice(b.VWAP),
		}
	}
	f, err := os.Create(s.path(symbol))
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// parseRow converts one text row into a bar. Rows whose open or close is not
// numeric (dividends, splits, "null") yield errSkipRow.
func parseRow(r *csvRow) (domain.Bar, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return domain.Bar{}, err
	}
	open, okOpen := parseNumber(r.Open)
	closePx, okClose := parseNumber(r.Close)
	if !okOpen || !okClose {
		return domain.Bar{}, errSkipRow
	}
	high, ok := parseNumber(r.High)
	if !ok {
		high = max(open, closePx)
	}
	low, ok := parseNumber(r.Low)
	if !ok {
		low = min(open, closePx)
	}
	adj, _ := parseNumber(r.AdjClose)
	vwap, _ := parseNumber(r.VWAP)
	vol, _ := parseNumber(r.Volume)

	return domain.Bar{
		Date:     date,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		AdjClose: adj,
		Volume:   int64(vol),
		VWAP:     vwap,
	}, nil
}

// parseNumber reads a decimal that may carry quotes or thousands separators.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// formatPrice renders v without trailing zeros; 0 renders empty.
func formatPrice(v float64) string {
	if v == 0 {
		return ""
	}
	return decimal.NewFromFloat(v).String()
}
