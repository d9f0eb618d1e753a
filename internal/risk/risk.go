// Package risk implements the post-safety risk gate (C8): four hard,
// non-negotiable limits, a circuit breaker with a cooldown window, and the
// supplemented daily volume/trade/loss envelopes from
// original_source/engine/src/risk.rs.
package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/telemetry"
)

// Config holds the spec.md §6/§4.8 tunables.
type Config struct {
	MaxTradeSizeLamports        uint64
	MinProfitThresholdLamports  uint64
	MaxImpactBps                uint16
	CircuitBreakerLosses        uint32
	CircuitBreakerCooldown      time.Duration

	MaxDailyTrades         uint32
	MaxDailyVolumeLamports uint64
	MaxDailyLossLamports   uint64
}

// DefaultConfig returns the spec.md/SPEC_FULL.md defaults.
func DefaultConfig() Config {
	return Config{
		MaxTradeSizeLamports:       1_000_000_000,
		MinProfitThresholdLamports: 50_000,
		MaxImpactBps:               100,
		CircuitBreakerLosses:       5,
		CircuitBreakerCooldown:     24 * time.Hour,
		MaxDailyTrades:             100,
		MaxDailyVolumeLamports:     2_000_000_000,
		MaxDailyLossLamports:       50_000_000,
	}
}

// Verdict is the risk gate's decision for one candidate.
type Verdict struct {
	Allowed bool
	Reason  domain.RiskReason
}

// Gate is the mutable, single-process risk state: daily envelopes and the
// circuit breaker. All fields are guarded by mu since they change together
// under RecordOutcome.
type Gate struct {
	cfg Config

	mu                sync.Mutex
	dailyTrades       uint32
	dailyVolume       uint64
	dailyLoss         uint64
	dailyResetAt      time.Time
	consecutiveLosses uint32
	breakerTrippedAt  time.Time // zero value means the breaker isn't tripped
}

func New(cfg Config) *Gate {
	return &Gate{cfg: cfg, dailyResetAt: time.Now()}
}

// Evaluate applies the four hard limits (spec.md §4.8) plus the daily
// envelopes, in circuit-breaker-first order so a tripped breaker short
// circuits before any other check runs.
func (g *Gate) Evaluate(c *domain.ArbCandidate, estimatedTipLamports uint64) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverDailyLocked()

	if !g.breakerTrippedAt.IsZero() {
		if time.Since(g.breakerTrippedAt) < g.cfg.CircuitBreakerCooldown {
			return g.deny(domain.RiskReasonCircuitBreaker)
		}
		// Cooldown elapsed: the breaker closes and the loss streak starts over.
		g.breakerTrippedAt = time.Time{}
		g.consecutiveLosses = 0
	}

	if c.InputAmount > g.cfg.MaxTradeSizeLamports {
		return g.deny(domain.RiskReasonSize)
	}

	netProfit := c.ExpectedProfit - int64(estimatedTipLamports)
	if netProfit < int64(g.cfg.MinProfitThresholdLamports) {
		return g.deny(domain.RiskReasonProfit)
	}

	if c.MaxImpactBps > g.cfg.MaxImpactBps {
		return g.deny(domain.RiskReasonImpact)
	}

	if g.dailyTrades >= g.cfg.MaxDailyTrades {
		return g.deny(domain.RiskReasonDailyTrades)
	}
	if g.dailyVolume+c.InputAmount > g.cfg.MaxDailyVolumeLamports {
		return g.deny(domain.RiskReasonDailyVolume)
	}
	if g.dailyLoss >= g.cfg.MaxDailyLossLamports {
		return g.deny(domain.RiskReasonDailyLoss)
	}

	return Verdict{Allowed: true}
}

func (g *Gate) deny(reason domain.RiskReason) Verdict {
	telemetry.RiskRejections.WithLabelValues(string(reason)).Inc()
	return Verdict{Reason: reason}
}

// RecordOutcome folds a dispatched bundle's terminal outcome into the daily
// envelopes and the circuit breaker's loss streak.
func (g *Gate) RecordOutcome(outcome domain.BundleOutcome, inputAmount uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverDailyLocked()

	g.dailyTrades++
	g.dailyVolume += inputAmount

	// The breaker trips on confirmed on-chain losses only — a Rejected or
	// Failed outcome is a transport/simulation failure, not a loss, even if
	// it someday carries a nonzero NetProfit.
	if outcome.Kind != domain.OutcomeLanded {
		return
	}

	if outcome.NetProfit < 0 {
		g.dailyLoss += uint64(-outcome.NetProfit)
		g.consecutiveLosses++
		if g.consecutiveLosses >= g.cfg.CircuitBreakerLosses && g.breakerTrippedAt.IsZero() {
			g.breakerTrippedAt = time.Now()
			telemetry.CircuitBreakerTrips.Inc()
			log.Error().Uint32("consecutive_losses", g.consecutiveLosses).Msg("risk: circuit breaker tripped")
		}
	} else {
		g.consecutiveLosses = 0
	}
}

// ResetBreaker manually clears a tripped circuit breaker (spec.md §4.8:
// "until manual reset or process restart").
func (g *Gate) ResetBreaker() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.breakerTrippedAt = time.Time{}
	g.consecutiveLosses = 0
}

// rolloverDailyLocked resets the daily envelopes once 24h have elapsed
// since the last reset. Callers must hold mu.
func (g *Gate) rolloverDailyLocked() {
	if time.Since(g.dailyResetAt) < 24*time.Hour {
		return
	}
	g.dailyTrades = 0
	g.dailyVolume = 0
	g.dailyLoss = 0
	g.dailyResetAt = time.Now()
}
