// Package domain holds the shared entities of the arbitrage engine: tokens,
// pools, swap steps, candidates, and the terminal outcome of a dispatched
// bundle. Nothing in this package performs I/O or math — it is the common
// vocabulary every other component imports.
package domain

import (
	"github.com/gagliardetto/solana-go"
)

// TokenId is an opaque 32-byte account identifier for an SPL mint.
type TokenId = solana.PublicKey

// PoolId is an opaque 32-byte account identifier for a pool, unique across
// venues.
type PoolId = solana.PublicKey

// VenueKind tags which AMM family a pool belongs to.
type VenueKind uint8

const (
	VenueCPMM VenueKind = iota
	VenueCLMM
)

func (v VenueKind) String() string {
	switch v {
	case VenueCPMM:
		return "cpmm"
	case VenueCLMM:
		return "clmm"
	default:
		return "unknown"
	}
}

// CPMMState is the venue-specific state for a constant-product pool.
type CPMMState struct {
	FeeNumerator   uint64
	FeeDenominator uint64
}

// CLMMState is the venue-specific state for a concentrated-liquidity pool.
type CLMMState struct {
	SqrtPriceQ64 [2]uint64 // little-endian 128-bit sqrt price, Q64.64
	Liquidity    [2]uint64 // little-endian 128-bit liquidity
	CurrentTick  int32
	FeeTierBps   uint16
}

// PoolSnapshot is the immutable view of one pool's state at a point in time.
// For CLMM pools ReserveA/ReserveB are *virtual reserves* derived from
// SqrtPriceQ64 and Liquidity (see internal/swapmath).
type PoolSnapshot struct {
	PoolId        PoolId
	Venue         VenueKind
	TokenA        TokenId
	TokenB        TokenId
	ReserveA      uint64
	ReserveB      uint64
	FeeBps        uint16
	LastUpdateSeq uint64
	LiquidityScore uint64

	CPMM *CPMMState
	CLMM *CLMMState

	// LPMint, BaseVault and QuoteVault support the safety gate's batched
	// state read (spec.md §4.7). They are zero-value when the venue has no
	// burnable LP token (e.g. a CLMM pool) or the codec hasn't resolved them
	// yet for a freshly-discovered pool.
	LPMint     TokenId
	BaseVault  TokenId
	QuoteVault TokenId
}

// Ready reports whether the snapshot may be surfaced to the cycle finder
// (invariant 1 in spec.md §3).
func (p *PoolSnapshot) Ready() bool {
	return p != nil && p.ReserveA != 0 && p.ReserveB != 0
}

// OtherToken returns the token on the far side of an edge that starts at
// `from`. Callers must ensure `from` is one of TokenA/TokenB.
func (p *PoolSnapshot) OtherToken(from TokenId) TokenId {
	if p.TokenA == from {
		return p.TokenB
	}
	return p.TokenA
}

// Reserves returns (reserveIn, reserveOut) for a swap starting at `from`.
func (p *PoolSnapshot) Reserves(from TokenId) (uint64, uint64) {
	if p.TokenA == from {
		return p.ReserveA, p.ReserveB
	}
	return p.ReserveB, p.ReserveA
}

// Edge is a directed connection between two tokens via one pool. Every
// PoolSnapshot produces exactly two edges (a->b, b->a).
type Edge struct {
	From TokenId
	To   TokenId
	Pool PoolId
}

// SwapStep is one hop of a candidate route, ready to be turned into a
// venue-specific instruction by the bundle assembler.
type SwapStep struct {
	PoolId       PoolId
	Venue        VenueKind
	InMint       TokenId
	OutMint      TokenId
	AmountIn     uint64
	MinAmountOut uint64
}

// ArbCandidate is a single, fully-evaluated cyclic route. It is ephemeral:
// produced by the cycle finder for one evaluation and discarded afterward.
type ArbCandidate struct {
	Steps             []SwapStep // 2..5 entries
	ExpectedOut       uint64
	InputAmount       uint64
	ExpectedProfit    int64
	MaxImpactBps      uint16
	MinEdgeLiquidity  uint64
	TotalFeeBps       uint64
	FeatureVector     [5]float32
	AnchorToken       TokenId
	TriggeringPool    PoolId
}

// Closes reports whether the candidate's cycle starts and ends on the same
// token (invariant 3 in spec.md §3).
func (c *ArbCandidate) Closes() bool {
	if len(c.Steps) == 0 {
		return false
	}
	return c.Steps[0].InMint == c.Steps[len(c.Steps)-1].OutMint
}

// SafetyReason enumerates why a SafetyVerdict denied a candidate's token.
type SafetyReason string

const (
	SafetyReasonAuthority          SafetyReason = "authority"
	SafetyReasonLiquidity          SafetyReason = "liquidity"
	SafetyReasonLpUnlocked         SafetyReason = "lp_unlocked"
	SafetyReasonHolderConcentration SafetyReason = "holder_concentration"
	SafetyReasonBlacklisted        SafetyReason = "blacklisted"
)

// SafetyVerdict is the outcome of a safety-gate lookup for a (token, pool)
// pair, cached per spec.md §3/§4.7.
type SafetyVerdict struct {
	Allowed bool
	Reason  SafetyReason // meaningful only when !Allowed
}

// RiskReason enumerates why the risk gate denied a candidate.
type RiskReason string

const (
	RiskReasonSize           RiskReason = "size"
	RiskReasonProfit         RiskReason = "profit"
	RiskReasonImpact         RiskReason = "impact"
	RiskReasonCircuitBreaker RiskReason = "circuit_breaker"

	// Daily volume/trade/loss envelopes supplement spec.md §4.8's four hard
	// limits (SPEC_FULL.md §7), grounded on original_source/engine/src/risk.rs.
	RiskReasonDailyVolume RiskReason = "daily_volume"
	RiskReasonDailyTrades RiskReason = "daily_trades"
	RiskReasonDailyLoss   RiskReason = "daily_loss"
)

// BundleOutcomeKind tags the tagged-variant result of a dispatched bundle.
type BundleOutcomeKind uint8

const (
	OutcomeLanded BundleOutcomeKind = iota
	OutcomeRejected
	OutcomeFailed
)

// Bundle is the fully-assembled, ready-to-submit group of instructions for
// one candidate: the per-hop swap instructions, a compute-budget
// instruction, and a tip transfer. Assembly is all-or-nothing (spec.md
// §4.9) — a Bundle only ever exists complete.
type Bundle struct {
	Instructions     []solana.Instruction
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	TipLamports      uint64
	Candidate        *ArbCandidate
}

// BundleOutcome is the terminal, archived record of one dispatched bundle.
// It is always one of three tagged variants — never a bare string sentinel
// (spec.md §9 flags exactly this anti-pattern from the source).
type BundleOutcome struct {
	Kind       BundleOutcomeKind
	TxId       string // signature of the submitted transaction; empty when nothing was broadcast; never synthetic
	NetProfit  int64
	Reason     string // populated for Rejected/Failed
	CandidatePool PoolId
}
