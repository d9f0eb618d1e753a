package risk

import (
	"testing"
	"time"

	"github.com/hxuan190/cyclearb/internal/domain"
)

func candidate(inputAmount uint64, profit int64, impactBps uint16) *domain.ArbCandidate {
	return &domain.ArbCandidate{
		InputAmount:    inputAmount,
		ExpectedProfit: profit,
		MaxImpactBps:   impactBps,
	}
}

func TestEvaluate_WithinLimitsAllowed(t *testing.T) {
	g := New(DefaultConfig())
	v := g.Evaluate(candidate(100_000_000, 200_000, 50), 10_000)
	if !v.Allowed {
		t.Fatalf("expected allow, got deny reason %q", v.Reason)
	}
}

func TestEvaluate_OversizedTradeDenied(t *testing.T) {
	cfg := DefaultConfig()
	g := New(cfg)
	v := g.Evaluate(candidate(cfg.MaxTradeSizeLamports+1, 1_000_000, 10), 0)
	if v.Allowed || v.Reason != domain.RiskReasonSize {
		t.Fatalf("expected size deny, got %+v", v)
	}
}

func TestEvaluate_ProfitBelowThresholdAfterTipDenied(t *testing.T) {
	cfg := DefaultConfig()
	g := New(cfg)
	v := g.Evaluate(candidate(1_000_000, int64(cfg.MinProfitThresholdLamports)+100, 10), 200)
	if v.Allowed || v.Reason != domain.RiskReasonProfit {
		t.Fatalf("expected profit deny once the tip is netted out, got %+v", v)
	}
}

func TestEvaluate_ImpactAboveCapDenied(t *testing.T) {
	cfg := DefaultConfig()
	g := New(cfg)
	v := g.Evaluate(candidate(1_000_000, 1_000_000, cfg.MaxImpactBps+1), 0)
	if v.Allowed || v.Reason != domain.RiskReasonImpact {
		t.Fatalf("expected impact deny, got %+v", v)
	}
}

func TestRecordOutcome_TripsCircuitBreakerAfterNConsecutiveLosses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircuitBreakerLosses = 3
	g := New(cfg)

	for i := 0; i < 3; i++ {
		g.RecordOutcome(domain.BundleOutcome{Kind: domain.OutcomeLanded, NetProfit: -10_000}, 1_000_000)
	}

	v := g.Evaluate(candidate(1_000_000, 1_000_000, 10), 0)
	if v.Allowed || v.Reason != domain.RiskReasonCircuitBreaker {
		t.Fatalf("expected circuit breaker deny after 3 consecutive losses, got %+v", v)
	}
}

func TestRecordOutcome_ProfitableTradeResetsLossStreak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircuitBreakerLosses = 3
	g := New(cfg)

	g.RecordOutcome(domain.BundleOutcome{NetProfit: -10_000}, 1_000_000)
	g.RecordOutcome(domain.BundleOutcome{NetProfit: -10_000}, 1_000_000)
	g.RecordOutcome(domain.BundleOutcome{NetProfit: 50_000}, 1_000_000)
	g.RecordOutcome(domain.BundleOutcome{NetProfit: -10_000}, 1_000_000)
	g.RecordOutcome(domain.BundleOutcome{NetProfit: -10_000}, 1_000_000)

	v := g.Evaluate(candidate(1_000_000, 1_000_000, 10), 0)
	if !v.Allowed {
		t.Fatalf("expected breaker to stay untripped since the streak was reset, got deny %q", v.Reason)
	}
}

func TestResetBreaker_ClearsTrippedState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircuitBreakerLosses = 1
	g := New(cfg)

	g.RecordOutcome(domain.BundleOutcome{NetProfit: -10_000}, 1_000_000)
	if v := g.Evaluate(candidate(1_000_000, 1_000_000, 10), 0); v.Allowed {
		t.Fatal("expected breaker tripped before reset")
	}

	g.ResetBreaker()
	if v := g.Evaluate(candidate(1_000_000, 1_000_000, 10), 0); !v.Allowed {
		t.Fatalf("expected allow after manual reset, got deny %q", v.Reason)
	}
}

func TestEvaluate_DailyVolumeEnvelopeDenied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDailyVolumeLamports = 1_000_000
	g := New(cfg)

	g.RecordOutcome(domain.BundleOutcome{NetProfit: 10_000}, 900_000)

	v := g.Evaluate(candidate(200_000, 1_000_000, 10), 0)
	if v.Allowed || v.Reason != domain.RiskReasonDailyVolume {
		t.Fatalf("expected daily volume deny, got %+v", v)
	}
}

func TestEvaluate_DailyEnvelopesResetAfter24Hours(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDailyTrades = 1
	g := New(cfg)
	g.RecordOutcome(domain.BundleOutcome{NetProfit: 10_000}, 1_000)

	if v := g.Evaluate(candidate(1_000, 1_000_000, 10), 0); v.Allowed {
		t.Fatal("expected daily trade limit to deny before rollover")
	}

	g.mu.Lock()
	g.dailyResetAt = time.Now().Add(-25 * time.Hour)
	g.mu.Unlock()

	if v := g.Evaluate(candidate(1_000, 1_000_000, 10), 0); !v.Allowed {
		t.Fatalf("expected daily envelopes to roll over after 24h, got deny %q", v.Reason)
	}
}
