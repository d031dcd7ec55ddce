// Copyright 2025 Certen Protocol

// Package obsmetrics exposes Prometheus instrumentation for the cranker
// loops. The teacher module declares github.com/prometheus/client_golang
// as a direct dependency but never wires it to a collector; this package
// gives it a home.
package obsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter/gauge/histogram the cranker updates.
// Constructed once at startup and passed by reference into the match,
// epoch, and settlement loops; the cleanup worker does not receive it.
type Metrics struct {
	registry *prometheus.Registry

	OrdersAccepted   *prometheus.CounterVec
	MatchesExecuted  prometheus.Counter
	EpochsFinalized  prometheus.Counter
	EpochRotations   prometheus.Counter
	SettlementsOK    prometheus.Counter
	SettlementsFailed *prometheus.CounterVec
	ReceiptsReclaimed prometheus.Counter
	BookDepthBid      prometheus.Gauge
	BookDepthAsk      prometheus.Gauge
	MatchLoopSeconds  prometheus.Histogram
	SettlementSeconds prometheus.Histogram
}

// New constructs a Metrics bundle registered against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		OrdersAccepted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cranker_orders_accepted_total",
			Help: "Orders accepted into the off-chain book, labeled by side.",
		}, []string{"side"}),
		MatchesExecuted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "cranker_matches_executed_total",
			Help: "Total number of maker/taker fills produced by the match loop.",
		}),
		EpochsFinalized: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "cranker_epochs_finalized_total",
			Help: "Total number of epochs that reached Finalized.",
		}),
		EpochRotations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "cranker_epoch_rotations_total",
			Help: "Total number of epoch rotations triggered by the epoch loop.",
		}),
		SettlementsOK: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "cranker_settlements_total",
			Help: "Total number of settlement.Verify calls that succeeded.",
		}),
		SettlementsFailed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "cranker_settlements_failed_total",
			Help: "Total number of settlement.Verify calls that failed, labeled by error kind.",
		}, []string{"kind"}),
		ReceiptsReclaimed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "cranker_receipts_reclaimed_total",
			Help: "Total number of settled receipts reclaimed by the cleanup worker.",
		}),
		BookDepthBid: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cranker_book_depth_bid",
			Help: "Current number of unfilled bid orders in the book, across all epochs.",
		}),
		BookDepthAsk: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "cranker_book_depth_ask",
			Help: "Current number of unfilled ask orders in the book, across all epochs.",
		}),
		MatchLoopSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "cranker_match_loop_seconds",
			Help:    "Wall-clock duration of a single match-loop pass.",
			Buckets: prometheus.DefBuckets,
		}),
		SettlementSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "cranker_settlement_seconds",
			Help:    "Wall-clock duration of a single settlement.Verify call.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	return m
}

// Handler returns the http.Handler that serves /metrics in the Prometheus
// text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
