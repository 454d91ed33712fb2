// Package metrics exposes the Prometheus instrumentation the bot updates
// during operation, served at /metrics in text exposition format:
//   - bot_decisions_total{action} – evaluation outcomes (NONE|BUY|SELL_PARTIAL|SELL_FULL)
//   - bot_blocked_total{reason}   – buys vetoed by a gate, split by reason
//   - bot_orders_total{mode,side} – orders placed (mode: paper|live)
//   - bot_open_positions          – currently open positions (gauge)
//   - bot_equity_usd              – available quote balance snapshot (gauge)
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spot-trading-bot/internal/types"
)

var (
	mtxDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Evaluation outcomes by action",
		},
		[]string{"action"},
	)

	mtxBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_blocked_total",
			Help: "Buys vetoed by a gate, split by reason",
		},
		[]string{"reason"},
	)

	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders placed",
		},
		[]string{"mode", "side"},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Currently open positions",
		},
	)

	mtxEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_usd",
			Help: "Available quote balance in USD",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxDecisions, mtxBlocked, mtxOrders)
	prometheus.MustRegister(mtxOpenPositions, mtxEquity)
}

// ObserveDecision records one evaluation outcome.
func ObserveDecision(d types.Decision) {
	mtxDecisions.WithLabelValues(string(d.Action)).Inc()
	if d.Blocked() {
		mtxBlocked.WithLabelValues(d.BlockedBy).Inc()
	}
}

// ObserveOrder records one placed order.
func ObserveOrder(mode, side string) {
	mtxOrders.WithLabelValues(mode, side).Inc()
}

// SetOpenPositions updates the open-position gauge.
func SetOpenPositions(n int) {
	mtxOpenPositions.Set(float64(n))
}

// SetEquity updates the balance gauge.
func SetEquity(usd float64) {
	mtxEquity.Set(usd)
}

// Serve starts the /metrics endpoint on addr. Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
