package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"macross/internal/api"
	"macross/internal/config"
	"macross/internal/store"
	"macross/internal/strategy/builtins"
	"macross/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := "config/macross.yaml"
	if p := os.Getenv("MACROSS_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/macross-server-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()

	logger := util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	bs, err := store.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.Storage.Backend, err)
	}
	defer bs.Close()

	srv := api.NewServer(cfg, bs, builtins.NewRegistry(), logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("macross-server starting",
		"http", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"grpc", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort),
		"backend", cfg.Storage.Backend,
		"logFile", logFileName,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("macross-server stopped")
}
