// Package ports declares the narrow capability interfaces the engine's core
// depends on but does not implement: chain access, bundle relay, the
// confidence oracle, intelligence storage, and telemetry. Concrete adapters
// live under internal/adapters and internal/telemetry; the core only ever
// imports these interfaces.
package ports

import (
	"context"
	"time"

	"github.com/hxuan190/cyclearb/internal/domain"
)

// LogStream identifies which of the three subscribed log streams produced
// an event (spec.md §4.4, expanded to three in SPEC_FULL.md §7: CPMM
// new-pool init, CLMM new-pool init, bonding-curve migration).
type LogStream uint8

const (
	StreamCPMM LogStream = iota
	StreamCLMM
	StreamCurveMigration
)

// LogEvent is one parsed program-log notification from a subscribed stream.
type LogEvent struct {
	Stream    LogStream
	Signature string
	PoolId    domain.PoolId // zero value if the pool id isn't known from the log alone
}

// TipFloor summarizes the relay's recent tip distribution in lamports.
type TipFloor struct {
	P25, P50, P75, P99 uint64
}

// ChainClient is the opaque capability for talking to the chain: log
// subscription, batched account reads, transaction lookup, and blockhash
// caching (spec.md §6).
type ChainClient interface {
	SubscribeLogs(ctx context.Context, programIDs []string) (<-chan LogEvent, error)
	GetMultipleAccounts(ctx context.Context, ids []string) ([][]byte, error)
	GetTransaction(ctx context.Context, signature string) (*TransactionInfo, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
}

// TransactionInfo is the subset of a fetched transaction the discovery
// subsystem needs: the pool account, the message's full account-key list
// (a bonding-curve Create places the new mint at a fixed index with no
// other way to recover it — spec.md §4.4), and any zero-RPC liquidity hint.
type TransactionInfo struct {
	PoolAccount      string
	AccountKeys      []string
	PostTokenBalance *PostTokenBalance // nil if not present
}

// PostTokenBalance is the zero-RPC liquidity hint from a transaction's
// post-balances, used to skip a second account fetch (spec.md §4.4 step 3).
type PostTokenBalance struct {
	ReserveA uint64
	ReserveB uint64
}

// BundleRelay is the opaque priority-inclusion relay capability.
type BundleRelay interface {
	TipFloor(ctx context.Context) (TipFloor, error)
	Submit(ctx context.Context, bundle *domain.Bundle) (string, error)
}

// ConfidenceOracle scores a candidate's feature vector in [0,1]. Callers
// treat an unavailable oracle as "no opinion" per spec.md §6, not as a deny.
type ConfidenceOracle interface {
	Score(ctx context.Context, featureVector [5]float32) (float32, error)
}

// SuccessStory is an archived record of a landed, profitable candidate,
// written to the intelligence store for later analysis (out of scope here).
type SuccessStory struct {
	PoolId    domain.PoolId
	NetProfit int64
	Timestamp time.Time
}

// IntelligenceStore is blacklist lookup plus success-story archival, backed
// by a persistent store with a local-file fallback (spec.md §6).
type IntelligenceStore interface {
	IsBlacklisted(ctx context.Context, token domain.TokenId) (bool, error)
	Save(ctx context.Context, story SuccessStory) error
}

// TelemetrySink is the counters/gauges/histograms surface named in spec.md
// §6. internal/telemetry's prometheus-backed implementation satisfies this;
// components only ever depend on the interface.
type TelemetrySink interface {
	IncOpportunitiesFound()
	IncSafetyDenied(reason domain.SafetyReason)
	IncRiskDenied(reason domain.RiskReason)
	IncBundlesDispatched()
	IncBundlesLanded()
	ObservePnlLamports(pnl int64)
	IncHydrationThrottled()
	SetGraphEdges(count int)
}
