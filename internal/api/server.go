// Package api provides the HTTP and gRPC servers for macross, exposing
// backtest, optimisation and symbol endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"macross/internal/config"
	"macross/internal/metrics"
	"macross/internal/store"
	"macross/internal/strategy"
	"macross/internal/util"
)

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	cfg      *config.Config
	store    store.BarStore
	registry *strategy.Registry
	log      *slog.Logger

	// Completed runs by run ID.
	results sync.Map

	httpAddr string
	grpcAddr string
	httpSrv  *http.Server
	grpcSrv  *grpc.Server
	health   *healthService
}

// NewServer creates a new Server configured from the given Config, reading
// bars from bs and building strategies from reg.
func NewServer(cfg *config.Config, bs store.BarStore, reg *strategy.Registry, log *slog.Logger) *Server {
	log = util.OrDefault(log)
	s := &Server{
		cfg:      cfg,
		store:    bs,
		registry: reg,
		log:      log,
		httpAddr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		grpcAddr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)),
	}
	s.grpcSrv, s.health = newGRPCServer()
	return s
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	s.route(mux, "GET /healthz", s.handleHealth)
	s.route(mux, "GET /api/v1/strategies", s.handleStrategies)
	s.route(mux, "GET /api/v1/symbols", s.handleSymbols)
	s.route(mux, "POST /api/v1/backtests", s.handleRunBacktest)
	s.route(mux, "GET /api/v1/backtests/{id}", s.handleGetBacktest)
	s.route(mux, "GET /api/v1/backtests/{id}/blotter.csv", s.handleBlotterCSV)
	s.route(mux, "GET /api/v1/backtests/{id}/ledger.csv", s.handleLedgerCSV)
	s.route(mux, "POST /api/v1/optimize", s.handleOptimize)

	path := s.cfg.Server.MetricsPath
	if path == "" {
		path = "/metrics"
	}
	mux.Handle("GET "+path, metrics.Handler())
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)
}

// route registers h under pattern, counting responses by pattern and code.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs. Cancellation triggers a
// graceful shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	grpcLn, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		httpLn.Close()
		return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve runs both servers on the given listeners.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := s.httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.log.Info("gRPC server listening", "addr", grpcLn.Addr().String())
		s.health.serving()
		if err := s.grpcSrv.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down API server")
	s.health.shutdown()

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.grpcSrv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcSrv.Stop()
	}
	return err
}
