// Package metrics exposes Prometheus collectors for backtest activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BacktestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "macross_backtests_total", Help: "Backtest runs by strategy and outcome"},
		[]string{"strategy", "status"},
	)
	BacktestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "macross_backtest_duration_seconds",
			Help:    "Wall time of completed backtest runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"strategy"},
	)
	SimulatedDays = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "macross_simulated_days_total", Help: "Ledger rows produced"},
		[]string{"strategy"},
	)
	OptimizeCandidates = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "macross_optimize_candidates_total", Help: "Window pairs scored by optimize runs"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "macross_http_requests_total", Help: "HTTP API requests by route and status code"},
		[]string{"route", "code"},
	)
)

func init() {
	prometheus.MustRegister(BacktestsTotal, BacktestDuration, SimulatedDays, OptimizeCandidates, HTTPRequests)
}

// ObserveBacktest records one backtest outcome. days is ignored on failure.
func ObserveBacktest(strategy string, elapsed time.Duration, days int, err error) {
	if err != nil {
		BacktestsTotal.WithLabelValues(strategy, "error").Inc()
		return
	}
	BacktestsTotal.WithLabelValues(strategy, "ok").Inc()
	BacktestDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	SimulatedDays.WithLabelValues(strategy).Add(float64(days))
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
