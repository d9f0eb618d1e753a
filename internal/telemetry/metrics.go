// Package telemetry collects the engine's prometheus metrics and zerolog
// logger setup in one place, the same role internal/metrics and
// internal/common/logger.go play in the teacher repo.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_pool_count",
		Help: "Total number of pools currently in the market graph",
	})

	ReadyPoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_ready_pool_count",
		Help: "Number of pools with nonzero reserves on both sides",
	})

	GraphSnapshotRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_graph_snapshot_rebuilds_total",
		Help: "Total number of full graph snapshot rebuilds",
	})

	GraphIncrementalUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_graph_incremental_updates_total",
		Help: "Total number of incremental graph snapshot updates",
	})

	StaleUpdatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_stale_updates_dropped_total",
		Help: "Total number of pool updates dropped for an out-of-order last_update_seq",
	})

	EventBusDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_event_bus_depth",
		Help: "Current depth of the pool-update event channel",
	})

	EventBusCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_event_bus_coalesced_total",
		Help: "Total number of pool updates coalesced under backpressure",
	})

	EventBusDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_event_bus_dropped_total",
		Help: "Total number of pool updates dropped after the coalescing buffer filled",
	})

	HydrationInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cyclearb_hydration_in_flight",
		Help: "Number of pool hydration requests currently holding a semaphore permit",
	})

	HydrationThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_hydration_throttled_total",
		Help: "Total number of hydration requests dropped after failing to acquire a permit in time",
	})

	DiscoveryPoolsSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_discovery_pools_seen_total",
			Help: "Total number of distinct pool creation events observed per venue",
		},
		[]string{"venue"},
	)

	CyclesFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_cycles_found_total",
		Help: "Total number of profitable cycles found by the cycle finder",
	})

	CycleFinderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_cycle_finder_duration_seconds",
		Help:    "Duration of a single cycle-finder pass from one triggering pool update",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	SafetyVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_safety_verdicts_total",
			Help: "Total number of safety-gate verdicts by outcome and reason",
		},
		[]string{"allowed", "reason"},
	)

	SafetyCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_safety_cache_hits_total",
		Help: "Total number of safety verdicts served from cache",
	})

	RiskRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_risk_rejections_total",
			Help: "Total number of candidates rejected by the risk gate, by reason",
		},
		[]string{"reason"},
	)

	CircuitBreakerTrips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_circuit_breaker_trips_total",
		Help: "Total number of times the risk gate's circuit breaker tripped",
	})

	BundlesAssembled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cyclearb_bundles_assembled_total",
		Help: "Total number of bundles successfully assembled",
	})

	BundleOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_bundle_outcomes_total",
			Help: "Total number of resolved bundle outcomes by kind",
		},
		[]string{"kind"},
	)

	BundleTipLamports = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_bundle_tip_lamports",
		Help:    "Dynamic tip attached to assembled bundles, in lamports",
		Buckets: []float64{1000, 5000, 10000, 50000, 100000, 500000, 1000000},
	})

	NetProfitLamports = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cyclearb_net_profit_lamports",
		Help:    "Net profit of landed bundles, in lamports",
		Buckets: []float64{-1000000, 0, 1000, 10000, 100000, 1000000, 10000000},
	})

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclearb_http_requests_total",
			Help: "Total number of debug/ops HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)
