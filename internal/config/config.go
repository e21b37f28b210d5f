package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"macross/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for macross.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Backtest Backtest       `yaml:"backtest"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Gather   GatherConfig   `yaml:"gather"`
}

// Storage selects and locates the bar store backend.
type Storage struct {
	Backend    string `yaml:"backend"` // parquet, sqlite or csv
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	CSVDir     string `yaml:"csv_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	GRPCPort    int    `yaml:"grpc_port"`
	MetricsPath string `yaml:"metrics_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WindowRange is an inclusive range of averaging windows.
type WindowRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// SweepConfig parameterises the vote-sweep strategy.
type SweepConfig struct {
	Short           WindowRange `yaml:"short"`
	Long            WindowRange `yaml:"long"`
	MinBuyStrength  float64     `yaml:"min_buy_strength"`
	MinSellStrength float64     `yaml:"min_sell_strength"`
}

// Backtest holds the per-run parameters.
type Backtest struct {
	Symbol       string      `yaml:"symbol"`
	Market       string      `yaml:"market"`
	Strategy     string      `yaml:"strategy"`
	StartDate    string      `yaml:"start_date"`
	EndDate      string      `yaml:"end_date"`
	InitialCash  float64     `yaml:"initial_cash"`
	ShortWindow  int         `yaml:"short_window"`
	LongWindow   int         `yaml:"long_window"`
	Sweep        SweepConfig `yaml:"sweep"`
	PriceFields  []string    `yaml:"price_fields"` // empty: strategy default
	BuyFraction  float64     `yaml:"buy_fraction"`
	SellFraction float64     `yaml:"sell_fraction"`
}

// OptimizeConfig defines the (short, long) grid searched by optimize.
type OptimizeConfig struct {
	Short   WindowRange `yaml:"short"`
	Long    WindowRange `yaml:"long"`
	Workers int         `yaml:"workers"`
}

// GatherConfig controls data gathering jobs.
type GatherConfig struct {
	USDaily GatherJobConfig `yaml:"us_daily"`
}

// GatherJobConfig holds parameters for a single data gathering job.
type GatherJobConfig struct {
	StartDate       string `yaml:"start_date"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxAttempts     int    `yaml:"max_attempts"`
}

// ---------------------------------------------------------------------------
// Defaults and validation
// ---------------------------------------------------------------------------

// Default returns the configuration used when a field is absent from YAML.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Backend:    "parquet",
			DataDir:    "data",
			SQLitePath: "data/macross.db",
			CSVDir:     "data/csv",
		},
		Server: Server{
			Host:        "0.0.0.0",
			Port:        8080,
			GRPCPort:    9090,
			MetricsPath: "/metrics",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Backtest: Backtest{
			Symbol:      "IVV",
			Market:      string(domain.MarketUS),
			Strategy:    strategySMACross,
			InitialCash: 10000.0,
			ShortWindow: 2,
			LongWindow:  10,
			Sweep: SweepConfig{
				Short: WindowRange{Min: 5, Max: 6},
				Long:  WindowRange{Min: 10, Max: 12},
			},
			BuyFraction:  0.5,
			SellFraction: 0.5,
		},
		Optimize: OptimizeConfig{
			Short:   WindowRange{Min: 1, Max: 39},
			Long:    WindowRange{Min: 2, Max: 99},
			Workers: 0,
		},
		Gather: GatherConfig{
			USDaily: GatherJobConfig{StartDate: "2015-01-01", RateLimitPerMin: 200, MaxAttempts: 3},
		},
	}
}

// Strategy names with their own parameter sections.
const (
	strategySMACross  = "sma-cross"
	strategyVoteSweep = "vote-sweep"
)

// Validate checks the run parameters. Every failure wraps
// domain.ErrInvalidConfiguration and names the offending field. Only the
// parameter section the chosen strategy reads is checked: the sweep for
// vote-sweep, the window pair for everything else.
func (b Backtest) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("backtest: "+format+": %w", append(args, domain.ErrInvalidConfiguration)...)
	}
	if strings.TrimSpace(b.Symbol) == "" {
		return bad("symbol is empty")
	}
	if !(b.InitialCash > 0) {
		return bad("initial_cash %v must be positive", b.InitialCash)
	}
	if b.BuyFraction < 0 || b.BuyFraction > 1 {
		return bad("buy_fraction %v outside [0,1]", b.BuyFraction)
	}
	if b.SellFraction < 0 || b.SellFraction > 1 {
		return bad("sell_fraction %v outside [0,1]", b.SellFraction)
	}
	if b.Strategy == strategyVoteSweep {
		s, l := b.Sweep.Short, b.Sweep.Long
		if s.Min <= 0 || s.Max < s.Min || l.Min <= 0 || l.Max < l.Min {
			return bad("sweep ranges short [%d,%d] long [%d,%d] malformed", s.Min, s.Max, l.Min, l.Max)
		}
		if s.Max >= l.Min {
			return bad("sweep short max %d must be below long min %d", s.Max, l.Min)
		}
		for _, v := range []float64{b.Sweep.MinBuyStrength, b.Sweep.MinSellStrength} {
			if v < 0 || v > 1 {
				return bad("vote strength %v outside [0,1]", v)
			}
		}
	} else {
		if b.ShortWindow <= 0 || b.LongWindow <= 0 {
			return bad("windows %d/%d must be positive", b.ShortWindow, b.LongWindow)
		}
		if b.ShortWindow >= b.LongWindow {
			return bad("short_window %d must be below long_window %d", b.ShortWindow, b.LongWindow)
		}
	}
	start, end, err := b.Dates()
	if err != nil {
		return bad("%v", err)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return bad("end_date %s before start_date %s", b.EndDate, b.StartDate)
	}
	return nil
}

// Dates parses StartDate and EndDate. Empty values yield zero times.
func (b Backtest) Dates() (start, end time.Time, err error) {
	if b.StartDate != "" {
		if start, err = time.Parse("2006-01-02", b.StartDate); err != nil {
			return start, end, fmt.Errorf("start_date %q: %w", b.StartDate, err)
		}
	}
	if b.EndDate != "" {
		if end, err = time.Parse("2006-01-02", b.EndDate); err != nil {
			return start, end, fmt.Errorf("end_date %q: %w", b.EndDate, err)
		}
	}
	return start, end, nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at path over Default(), then
// applies environment variable overrides. A missing file is an error; use
// LoadOrDefault to tolerate it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default() plus environment
// overrides when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	cfg = Default()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("CSV_DIR"); v != "" {
		cfg.Storage.CSVDir = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MACROSS_INITIAL_CASH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.InitialCash = f
		}
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Standard Alpaca SDK env vars take priority.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
