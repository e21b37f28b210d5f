package main

import (
	"flag"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"macross/internal/gather"
	"macross/internal/gather/us"
	"macross/internal/store"
	"macross/internal/util"
)

// runImport loads a CSV export (for example a Yahoo Finance download) into
// the configured store.
func runImport(args []string) error {
	cfg := loadConfig()

	fs := flag.NewFlagSet("import", flag.ExitOnError)
	file := fs.String("file", "", "CSV file to import (required)")
	symbol := fs.String("symbol", "", "symbol of the file (default: file name)")
	market := fs.String("market", cfg.Backtest.Market, "market to store the bars under")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}
	sym := *symbol
	if sym == "" {
		sym = strings.TrimSuffix(filepath.Base(*file), filepath.Ext(*file))
	}

	bars, err := store.ReadCSVFile(*file, sym)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("%s: no price rows", *file)
	}

	bs, err := store.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer bs.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := bs.WriteBars(ctx, *market, bars); err != nil {
		return err
	}
	slog.Info("imported bars",
		"symbol", strings.ToUpper(sym),
		"market", *market,
		"backend", cfg.Storage.Backend,
		"bars", len(bars),
		"from", util.FormatDay(bars[0].Date),
		"to", util.FormatDay(bars[len(bars)-1].Date),
	)
	return nil
}

// runFetch downloads adjusted US daily bars from Alpaca into the store.
func runFetch(args []string) error {
	cfg := loadConfig()
	job := cfg.Gather.USDaily

	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	symbols := fs.String("symbols", cfg.Backtest.Symbol, "comma-separated symbols")
	start := fs.String("start", job.StartDate, "first day, YYYY-MM-DD")
	end := fs.String("end", "", "last day, YYYY-MM-DD (default: latest finished trading day)")
	fs.Parse(args)

	rng := gather.DateRange{}
	var err error
	if rng.Start, err = util.ParseDay(*start); err != nil {
		return fmt.Errorf("-start: %w", err)
	}
	if *end != "" {
		if rng.End, err = util.ParseDay(*end); err != nil {
			return fmt.Errorf("-end: %w", err)
		}
	}

	var syms []string
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			syms = append(syms, strings.ToUpper(s))
		}
	}

	bs, err := store.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer bs.Close()

	g := us.NewDailyBarGatherer(us.DailyBarConfig{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		BaseURL:         cfg.Alpaca.BaseURL,
		Symbols:         syms,
		Range:           rng,
		RateLimitPerMin: job.RateLimitPerMin,
		MaxAttempts:     job.MaxAttempts,
	}, bs, slog.Default())

	ctx, cancel := signalContext()
	defer cancel()

	started := time.Now()
	slog.Info("starting gatherer", "name", g.Name(), "symbols", len(syms))
	if err := g.Run(ctx); err != nil {
		return err
	}
	slog.Info("gatherer finished", "name", g.Name(), "elapsed", time.Since(started))
	return nil
}

func runSymbols(args []string) error {
	cfg := loadConfig()

	fs := flag.NewFlagSet("symbols", flag.ExitOnError)
	market := fs.String("market", cfg.Backtest.Market, "market to list")
	fs.Parse(args)

	bs, err := store.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer bs.Close()

	ctx, cancel := signalContext()
	defer cancel()

	syms, err := bs.ListSymbols(ctx, *market)
	if err != nil {
		return err
	}
	for _, s := range syms {
		fmt.Println(s)
	}
	return nil
}
