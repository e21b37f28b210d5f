package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"macross/internal/config"
	"macross/internal/util"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: macross-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  run        Backtest one strategy over stored bars\n")
		fmt.Fprintf(os.Stderr, "  optimize   Grid-search short/long windows\n")
		fmt.Fprintf(os.Stderr, "  import     Load a CSV export into the configured store\n")
		fmt.Fprintf(os.Stderr, "  fetch      Download US daily bars from Alpaca\n")
		fmt.Fprintf(os.Stderr, "  symbols    List stored symbols\n")
		fmt.Fprintf(os.Stderr, "  remote     Run a backtest on a macross-server\n")
		fmt.Fprintf(os.Stderr, "\nRun 'macross-cli <command> -h' for command options.\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	// Credentials may live in a local .env; a missing file is fine.
	_ = godotenv.Load()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("macross-cli %s\n", version)
		return
	case "run":
		err = runBacktest(args)
	case "optimize":
		err = runOptimize(args)
	case "import":
		err = runImport(args)
	case "fetch":
		err = runFetch(args)
	case "symbols":
		err = runSymbols(args)
	case "remote":
		err = runRemote(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "macross-cli %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// configPath returns the config file location, honouring MACROSS_CONFIG.
func configPath() string {
	if p := os.Getenv("MACROSS_CONFIG"); p != "" {
		return p
	}
	return "config/macross.yaml"
}

// loadConfig loads the configuration and installs the default logger on
// stderr so that reports on stdout stay clean.
func loadConfig() *config.Config {
	cfg, err := config.LoadOrDefault(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slog.SetDefault(util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text"))
	return cfg
}
