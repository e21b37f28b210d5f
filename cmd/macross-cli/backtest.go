package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"macross/internal/config"
	"macross/internal/metrics"
	"macross/internal/report"
	sig "macross/internal/signal"
	"macross/internal/store"
	"macross/internal/strategy"
	"macross/internal/strategy/builtins"
	"macross/pkg/macross"
)

// backtestFlags binds the flags shared by run, optimize and remote onto b.
func backtestFlags(fs *flag.FlagSet, b *config.Backtest) {
	fs.StringVar(&b.Symbol, "symbol", b.Symbol, "ticker symbol")
	fs.StringVar(&b.Market, "market", b.Market, "market of the symbol (us, cn)")
	fs.StringVar(&b.Strategy, "strategy", b.Strategy, "strategy name (sma-cross, vote-sweep)")
	fs.StringVar(&b.StartDate, "start", b.StartDate, "first day to simulate, YYYY-MM-DD")
	fs.StringVar(&b.EndDate, "end", b.EndDate, "last day to simulate, YYYY-MM-DD")
	fs.Float64Var(&b.InitialCash, "cash", b.InitialCash, "initial cash")
	fs.IntVar(&b.ShortWindow, "short", b.ShortWindow, "short averaging window")
	fs.IntVar(&b.LongWindow, "long", b.LongWindow, "long averaging window")
	fs.Float64Var(&b.BuyFraction, "buy-fraction", b.BuyFraction, "fraction of cash spent on BUY")
	fs.Float64Var(&b.SellFraction, "sell-fraction", b.SellFraction, "fraction of position sold on SELL")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runBacktest(args []string) error {
	cfg := loadConfig()
	b := cfg.Backtest

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	backtestFlags(fs, &b)
	rows := fs.Int("rows", 20, "ledger rows to print (0: all)")
	blotterOut := fs.String("blotter", "", "write the blotter CSV to this file")
	ledgerOut := fs.String("ledger", "", "write the ledger CSV to this file")
	fs.Parse(args)

	if err := b.Validate(); err != nil {
		return err
	}
	spec, err := strategy.SpecFromConfig(b)
	if err != nil {
		return err
	}
	params, err := strategy.ParamsFromConfig(b)
	if err != nil {
		return err
	}
	strat, err := builtins.NewRegistry().New(b.Strategy, spec)
	if err != nil {
		return err
	}

	bs, err := store.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer bs.Close()

	ctx, cancel := signalContext()
	defer cancel()

	ser, err := store.LoadSeries(ctx, bs, b.Symbol, b.Market)
	if err != nil {
		return err
	}
	bt, err := strategy.NewBacktester(strat, params, slog.Default())
	if err != nil {
		return err
	}
	started := time.Now()
	res, err := bt.Run(ctx, ser)
	if err != nil {
		metrics.ObserveBacktest(b.Strategy, time.Since(started), 0, err)
		return err
	}
	metrics.ObserveBacktest(b.Strategy, time.Since(started), len(res.Ledger), nil)

	fmt.Println(report.Summary(res))
	fmt.Println(report.LedgerTable(res.Blotter, res.Ledger, *rows))

	if *blotterOut != "" {
		if err := writeFile(*blotterOut, func(f *os.File) error { return report.WriteBlotterCSV(f, res.Blotter) }); err != nil {
			return err
		}
	}
	if *ledgerOut != "" {
		if err := writeFile(*ledgerOut, func(f *os.File) error { return report.WriteLedgerCSV(f, res.Ledger) }); err != nil {
			return err
		}
	}
	return nil
}

func runOptimize(args []string) error {
	cfg := loadConfig()
	b := cfg.Backtest
	o := cfg.Optimize

	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	backtestFlags(fs, &b)
	fs.IntVar(&o.Short.Min, "short-min", o.Short.Min, "smallest short window")
	fs.IntVar(&o.Short.Max, "short-max", o.Short.Max, "largest short window")
	fs.IntVar(&o.Long.Min, "long-min", o.Long.Min, "smallest long window")
	fs.IntVar(&o.Long.Max, "long-max", o.Long.Max, "largest long window")
	fs.IntVar(&o.Workers, "workers", o.Workers, "concurrent backtests (0: GOMAXPROCS)")
	top := fs.Int("top", 10, "candidates to print (0: all)")
	fs.Parse(args)

	if err := b.Validate(); err != nil {
		return err
	}
	reg := builtins.NewRegistry()
	factory, ok := reg.Get(b.Strategy)
	if !ok {
		return fmt.Errorf("unknown strategy %q (have %v)", b.Strategy, reg.List())
	}
	spec, err := strategy.SpecFromConfig(b)
	if err != nil {
		return err
	}
	params, err := strategy.ParamsFromConfig(b)
	if err != nil {
		return err
	}

	bs, err := store.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer bs.Close()

	ctx, cancel := signalContext()
	defer cancel()

	ser, err := store.LoadSeries(ctx, bs, b.Symbol, b.Market)
	if err != nil {
		return err
	}
	started := time.Now()
	cands, err := strategy.Optimize(ctx, ser, strategy.OptimizeRequest{
		Factory: factory,
		Spec:    spec,
		Params:  params,
		Short:   sig.Range{Min: o.Short.Min, Max: o.Short.Max},
		Long:    sig.Range{Min: o.Long.Min, Max: o.Long.Max},
		Workers: o.Workers,
	}, slog.Default())
	if err != nil {
		return err
	}
	slog.Info("optimize complete", "symbol", b.Symbol, "candidates", len(cands), "elapsed", time.Since(started))

	fmt.Println(report.CandidatesTable(cands, *top))
	return nil
}

// runRemote runs a backtest on a macross-server instead of locally.
func runRemote(args []string) error {
	cfg := loadConfig()
	b := cfg.Backtest

	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	backtestFlags(fs, &b)
	server := fs.String("server", fmt.Sprintf("http://localhost:%d", cfg.Server.Port), "macross-server base URL")
	fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()

	buy, sell := b.BuyFraction, b.SellFraction
	res, err := macross.NewClient(*server).RunBacktest(ctx, macross.BacktestRequest{
		Symbol:       b.Symbol,
		Market:       b.Market,
		Strategy:     b.Strategy,
		StartDate:    b.StartDate,
		EndDate:      b.EndDate,
		InitialCash:  b.InitialCash,
		ShortWindow:  b.ShortWindow,
		LongWindow:   b.LongWindow,
		BuyFraction:  &buy,
		SellFraction: &sell,
	})
	if err != nil {
		return err
	}

	s := res.Summary
	fmt.Printf("run %s: %s %s %s..%s\n", res.RunID, res.Strategy, res.Symbol,
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02"))
	fmt.Printf("  final value   %s (%s)\n", report.FormatMoney(s.FinalValue), report.FormatPct(s.TotalReturn))
	fmt.Printf("  buy and hold  %s (%s)\n", report.FormatMoney(s.BuyAndHold), report.FormatPct(s.BuyAndHoldReturn))
	fmt.Printf("  trades        %d (%d buys, %d sells)\n", s.TotalTrades, s.Buys, s.Sells)
	fmt.Printf("  max drawdown  %s\n", report.FormatPct(-s.MaxDrawdown))
	return nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("wrote file", "path", path)
	return nil
}
