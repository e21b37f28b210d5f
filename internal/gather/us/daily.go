// Package us gathers daily US equity bars from the Alpaca market-data API.
package us

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"macross/internal/domain"
	"macross/internal/gather"
	"macross/internal/store"
	"macross/internal/util"
)

// Compile-time interface check.
var _ gather.Gatherer = (*DailyBarGatherer)(nil)

// barsClient is the subset of marketdata.Client used by the gatherer.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// DailyBarConfig parameterises a DailyBarGatherer.
type DailyBarConfig struct {
	APIKey    string
	APISecret string
	DataURL   string
	BaseURL   string // trading API, used for the calendar when Range.End is zero

	Symbols         []string
	Range           gather.DateRange
	RateLimitPerMin int
	MaxAttempts     int
}

// DailyBarGatherer fetches split- and dividend-adjusted daily bars for a
// fixed symbol list and writes them to a BarStore under market "us".
type DailyBarGatherer struct {
	client     barsClient
	store      store.BarStore
	cfg        DailyBarConfig
	limiter    *util.RateLimiter
	latestDay  func() (time.Time, error)
	retryDelay time.Duration
	log        *slog.Logger
}

// NewDailyBarGatherer creates a DailyBarGatherer configured with the given
// Alpaca credentials and target store.
func NewDailyBarGatherer(cfg DailyBarConfig, s store.BarStore, log *slog.Logger) *DailyBarGatherer {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return newDailyBarGatherer(marketdata.NewClient(opts), cfg, s, log)
}

func newDailyBarGatherer(client barsClient, cfg DailyBarConfig, s store.BarStore, log *slog.Logger) *DailyBarGatherer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &DailyBarGatherer{
		client:  client,
		store:   s,
		cfg:     cfg,
		limiter: util.NewRateLimiter(cfg.RateLimitPerMin, 1),
		latestDay: func() (time.Time, error) {
			return LatestFinishedTradingDay(cfg.APIKey, cfg.APISecret, cfg.BaseURL)
		},
		retryDelay: time.Second,
		log:        util.OrDefault(log).With("gatherer", "us-daily"),
	}
}

// Name returns the gatherer identifier.
func (g *DailyBarGatherer) Name() string { return "us-daily" }

// Run fetches every configured symbol in turn. A symbol that still fails
// after retries is logged and skipped; Run reports how many failed.
func (g *DailyBarGatherer) Run(ctx context.Context) error {
	if len(g.cfg.Symbols) == 0 {
		return fmt.Errorf("no symbols to fetch: %w", domain.ErrInvalidConfiguration)
	}
	rng := g.cfg.Range
	if rng.End.IsZero() {
		end, err := g.latestDay()
		if err != nil {
			return fmt.Errorf("determining end date: %w", err)
		}
		rng.End = end
	}
	if !rng.Valid() {
		return fmt.Errorf("date range %s: %w", rng, domain.ErrInvalidConfiguration)
	}

	runStart := time.Now()
	g.log.Info("fetching daily bars", "symbols", len(g.cfg.Symbols), "range", rng.String())
	var failed, total int
	for _, sym := range g.cfg.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}

		var bars []domain.Bar
		err := util.Retry(ctx, g.log, "GetBars "+sym, g.cfg.MaxAttempts, g.retryDelay, func(ctx context.Context) error {
			var err error
			bars, err = g.fetch(sym, rng)
			return err
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			g.log.Error("fetch failed", "symbol", sym, "err", err)
			failed++
			continue
		}
		if len(bars) == 0 {
			g.log.Warn("no bars returned", "symbol", sym)
			continue
		}
		if err := g.store.WriteBars(ctx, string(domain.MarketUS), bars); err != nil {
			return fmt.Errorf("writing %s: %w", sym, err)
		}
		total += len(bars)
		g.log.Info("symbol done", "symbol", sym, "bars", len(bars),
			"first", util.FormatDay(bars[0].Date), "last", util.FormatDay(bars[len(bars)-1].Date))
	}

	g.log.Info("complete",
		"symbols", len(g.cfg.Symbols),
		"failed", failed,
		"bars", total,
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d symbols failed", failed, len(g.cfg.Symbols))
	}
	return nil
}

// fetch requests adjusted daily bars of symbol over rng.
func (g *DailyBarGatherer) fetch(symbol string, rng gather.DateRange) ([]domain.Bar, error) {
	abs, err := g.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      rng.Start,
		End:        rng.End.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars: %w", err)
	}
	et := eastern()
	bars := make([]domain.Bar, 0, len(abs))
	for _, ab := range abs {
		bars = append(bars, toDomainBar(symbol, ab, et))
	}
	return bars, nil
}

// toDomainBar converts an Alpaca daily bar. Alpaca stamps daily bars at
// midnight New York time, so the date is taken in et. Prices are already
// adjusted, so AdjClose equals Close.
func toDomainBar(symbol string, ab marketdata.Bar, et *time.Location) domain.Bar {
	return domain.Bar{
		Symbol:     strings.ToUpper(symbol),
		Date:       util.Day(ab.Timestamp.In(et)),
		Open:       ab.Open,
		High:       ab.High,
		Low:        ab.Low,
		Close:      ab.Close,
		AdjClose:   ab.Close,
		Volume:     int64(ab.Volume),
		TradeCount: int64(ab.TradeCount),
		VWAP:       ab.VWAP,
	}
}
