package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	TradesTotal        *prometheus.CounterVec
	TradeRetries       prometheus.Counter
	TradeDuration      *prometheus.HistogramVec
	BalanceAdjustments *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		TradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_trades_total",
				Help: "Total trade requests by type and outcome code.",
			},
			[]string{"type", "outcome"},
		),
		TradeRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_trade_retries_total",
				Help: "Total trade attempts retried after a write conflict.",
			},
		),
		TradeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_trade_duration_seconds",
				Help:    "Trade execution duration in seconds, retries included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		BalanceAdjustments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_balance_adjustments_total",
				Help: "Total admin balance adjustments by outcome.",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.TradesTotal,
		m.TradeRetries,
		m.TradeDuration,
		m.BalanceAdjustments,
	)
	return m
}

// NewRegistry returns a registry preloaded with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTrade(txType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(txType, outcome).Inc()
	m.TradeDuration.WithLabelValues(txType).Observe(duration.Seconds())
}

func (m *Metrics) IncTradeRetry() {
	if m == nil {
		return
	}
	m.TradeRetries.Inc()
}

func (m *Metrics) IncBalanceAdjustment(outcome string) {
	if m == nil {
		return
	}
	m.BalanceAdjustments.WithLabelValues(outcome).Inc()
}
