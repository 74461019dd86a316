package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "momo"

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ticks_total", Help: "Ticker updates routed to the strategy"},
		[]string{"symbol"},
	)
	BookUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "book_updates_total", Help: "Order book updates routed to the strategy"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "signals_total", Help: "Signals emitted by the strategy"},
		[]string{"strategy", "action"},
	)
	RiskRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "risk_rejections_total", Help: "Signals rejected by the risk gate"},
		[]string{"reason"},
	)
	TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "trades_total", Help: "Paper fills"},
		[]string{"action", "reason"},
	)
	StreamReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "stream_reconnects_total", Help: "Market data reconnect attempts"},
	)
	HeartbeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "heartbeats_total", Help: "Heartbeats answered"},
	)
	BudgetUSDT = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "budget_usdt", Help: "Current paper budget"},
	)
	PositionQty = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "position_qty", Help: "Open position quantity, 0 when flat"},
	)
	BreakerPaused = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "breaker_paused", Help: "1 while a risk breaker is tripped"},
		[]string{"breaker"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		BookUpdatesTotal,
		SignalsTotal,
		RiskRejectionsTotal,
		TradesTotal,
		StreamReconnectsTotal,
		HeartbeatsTotal,
		BudgetUSDT,
		PositionQty,
		BreakerPaused,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBreaker records a breaker flag as 0 or 1.
func SetBreaker(name string, paused bool) {
	v := 0.0
	if paused {
		v = 1
	}
	BreakerPaused.WithLabelValues(name).Set(v)
}
