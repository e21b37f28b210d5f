package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"macross/internal/config"
	"macross/internal/domain"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func sampleBars() []domain.Bar {
	return []domain.Bar{
		{Symbol: "IVV", Date: day(2015, 4, 6), Open: 206.5, High: 209.0, Low: 206.0, Close: 208.4, AdjClose: 190.1, Volume: 3100000, VWAP: 207.9},
		{Symbol: "IVV", Date: day(2015, 4, 7), Open: 208.3, High: 209.3, Low: 207.6, Close: 207.7, AdjClose: 189.5, Volume: 2400000},
		{Symbol: "IVV", Date: day(2016, 1, 4), Open: 200.5, High: 202.0, Low: 197.0, Close: 201.8, AdjClose: 188.0, Volume: 5500000},
	}
}

// checkRoundTrip writes sampleBars, reads a sub-range and the full history.
func checkRoundTrip(t *testing.T, bs BarStore) {
	t.Helper()
	ctx := context.Background()
	if err := bs.WriteBars(ctx, "us", sampleBars()); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := bs.ReadBars(ctx, "IVV", "us", day(2015, 4, 7), day(2016, 12, 31))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if !got[0].Date.Equal(day(2015, 4, 7)) || got[0].Close != 207.7 {
		t.Errorf("first bar = %+v", got[0])
	}
	if got[1].AdjClose != 188.0 || got[1].Volume != 5500000 {
		t.Errorf("second bar = %+v", got[1])
	}

	all, err := bs.ReadBars(ctx, "ivv", "us", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars(all): %v", err)
	}
	if len(all) != 3 || all[0].VWAP != 207.9 {
		t.Fatalf("ReadBars(all) = %+v", all)
	}

	// Rewriting a day replaces it.
	fix := sampleBars()[0]
	fix.Close = 208.0
	if err := bs.WriteBars(ctx, "us", []domain.Bar{fix}); err != nil {
		t.Fatalf("WriteBars (replace): %v", err)
	}
	all, err = bs.ReadBars(ctx, "IVV", "us", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars after replace: %v", err)
	}
	if len(all) != 3 || all[0].Close != 208.0 {
		t.Errorf("after replace = %+v", all)
	}

	syms, err := bs.ListSymbols(ctx, "us")
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(syms) != 1 || syms[0] != "IVV" {
		t.Errorf("ListSymbols = %v, want [IVV]", syms)
	}
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")
	bp := ps.barPath("aapl", "us", 2024)
	want := filepath.Join("/data", "us", "daily", "AAPL", "2024.parquet")
	if bp != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, want)
	}
}

func TestParquetStoreRoundTrip(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	checkRoundTrip(t, ps)

	years, err := ps.years("IVV", "us")
	if err != nil {
		t.Fatalf("years: %v", err)
	}
	if len(years) != 2 || years[0] != 2015 || years[1] != 2016 {
		t.Errorf("years = %v, want [2015 2016]", years)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "AAPL", Date: day(2024, 1, 2), Open: 185.0, High: 186.0, Low: 184.0, Close: 185.5, Volume: 50000000},
		{Symbol: "GOOGL", Date: day(2024, 1, 2), Open: 140.0, High: 141.0, Low: 139.0, Close: 140.5, Volume: 20000000},
	}
	if err := ps.WriteBars(ctx, "us", bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx, "us")
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}

	none, err := ps.ListSymbols(ctx, "cn")
	if err != nil || len(none) != 0 {
		t.Errorf("ListSymbols(cn) = %v, %v", none, err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()

	if err := store.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
	checkRoundTrip(t, store)
}

func TestCSVStoreRoundTrip(t *testing.T) {
	checkRoundTrip(t, NewCSVStore(t.TempDir()))
}

func TestCSVStoreYahooExport(t *testing.T) {
	dir := t.TempDir()
	content := `Date,Open,High,Low,Close,Adj Close,Volume
"Apr 08, 2015","208.00","209.50","207.10","208.90","190.50","2,950,100"
"Apr 07, 2015","208.30","209.30","207.60","207.70","189.50","2,400,000"
"Mar 25, 2015","0.56 Dividend"
"Apr 06, 2015","206.50","209.00","206.00","208.40","190.10","3,100,000"
"Apr 03, 2015",null,null,null,null,null,null
`
	if err := os.WriteFile(filepath.Join(dir, "IVV.csv"), []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	cs := NewCSVStore(dir)
	bars, err := cs.ReadBars(context.Background(), "ivv", "us", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("ReadBars returned %d bars, want 3", len(bars))
	}
	if !bars[0].Date.Equal(day(2015, 4, 6)) || !bars[2].Date.Equal(day(2015, 4, 8)) {
		t.Errorf("bars not ascending: %v .. %v", bars[0].Date, bars[2].Date)
	}
	if bars[2].Volume != 2950100 {
		t.Errorf("Volume = %d, want 2950100", bars[2].Volume)
	}
	if bars[0].Symbol != "IVV" || bars[0].AdjClose != 190.10 {
		t.Errorf("first bar = %+v", bars[0])
	}
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ivv-2015.csv")
	content := "Date,Open,High,Low,Close,Adj Close,Volume\n2015-04-07,208.30,209.30,207.60,207.70,189.50,2400000\n2015-04-06,206.50,209.00,206.00,208.40,190.10,3100000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	bars, err := ReadCSVFile(path, "ivv")
	if err != nil {
		t.Fatalf("ReadCSVFile: %v", err)
	}
	if len(bars) != 2 || bars[0].Symbol != "IVV" || !bars[0].Date.Equal(day(2015, 4, 6)) {
		t.Errorf("bars = %+v", bars)
	}

	if _, err := ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"), "X"); !os.IsNotExist(err) {
		t.Errorf("missing file err = %v, want not-exist", err)
	}
}

func TestCSVStoreBadDate(t *testing.T) {
	dir := t.TempDir()
	content := "Date,Open,High,Low,Close\nyesterday,1,1,1,1\n"
	if err := os.WriteFile(filepath.Join(dir, "X.csv"), []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	_, err := NewCSVStore(dir).ReadBars(context.Background(), "X", "us", time.Time{}, time.Time{})
	if err == nil || !strings.Contains(err.Error(), "yesterday") {
		t.Errorf("ReadBars err = %v, want date error", err)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"208.40", 208.4, true},
		{`"1,234.5"`, 1234.5, true},
		{" 42 ", 42, true},
		{"null", 0, false},
		{"-", 0, false},
		{"", 0, false},
		{"0.56 Dividend", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseNumber(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"parquet", "sqlite", "csv", ""} {
		bs, err := Open(config.Storage{
			Backend:    backend,
			DataDir:    filepath.Join(dir, "pq"),
			SQLitePath: filepath.Join(dir, "macross.db"),
			CSVDir:     filepath.Join(dir, "csv"),
		})
		if err != nil {
			t.Fatalf("Open(%q): %v", backend, err)
		}
		if err := bs.Close(); err != nil {
			t.Errorf("Close(%q): %v", backend, err)
		}
	}
	if _, err := Open(config.Storage{Backend: "redis"}); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("Open(redis) err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestLoadSeries(t *testing.T) {
	cs := NewCSVStore(t.TempDir())
	ctx := context.Background()
	if _, err := LoadSeries(ctx, cs, "IVV", "us"); !errors.Is(err, domain.ErrNoDataInRange) {
		t.Fatalf("LoadSeries(empty) err = %v, want ErrNoDataInRange", err)
	}
	if err := cs.WriteBars(ctx, "us", sampleBars()); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	s, err := LoadSeries(ctx, cs, "IVV", "us")
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if s.Len() != 3 || !s.Last().Equal(day(2016, 1, 4)) {
		t.Errorf("series len=%d last=%v", s.Len(), s.Last())
	}
}
