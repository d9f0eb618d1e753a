package telemetry

import "github.com/hxuan190/cyclearb/internal/domain"

// Sink is the prometheus-backed ports.TelemetrySink implementation. It holds
// no state of its own; every method increments or observes a package-level
// promauto collector.
type Sink struct{}

func NewSink() *Sink { return &Sink{} }

func (Sink) IncOpportunitiesFound() {
	CyclesFound.Inc()
}

func (Sink) IncSafetyDenied(reason domain.SafetyReason) {
	SafetyVerdicts.WithLabelValues("false", string(reason)).Inc()
}

func (Sink) IncRiskDenied(reason domain.RiskReason) {
	RiskRejections.WithLabelValues(string(reason)).Inc()
}

func (Sink) IncBundlesDispatched() {
	BundlesAssembled.Inc()
}

func (Sink) IncBundlesLanded() {
	BundleOutcomes.WithLabelValues("landed").Inc()
}

func (Sink) ObservePnlLamports(pnl int64) {
	NetProfitLamports.Observe(float64(pnl))
}

func (Sink) IncHydrationThrottled() {
	HydrationThrottled.Inc()
}

func (Sink) SetGraphEdges(count int) {
	PoolCount.Set(float64(count))
}
