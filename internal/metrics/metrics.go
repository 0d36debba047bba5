// Package metrics exposes Prometheus instrumentation for the trading engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Trades = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundledger_trades_total",
			Help: "Total number of trade attempts",
		},
		[]string{"type", "status"}, // type: purchase|redeem, status: committed|rejected|error
	)

	TradeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fundledger_trade_duration_seconds",
			Help:    "Trade processing duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"type"},
	)

	QuoteLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundledger_quote_lookups_total",
			Help: "Total number of price quote lookups",
		},
		[]string{"source", "status"}, // source: postgres|redis, status: hit|miss|error
	)
)
