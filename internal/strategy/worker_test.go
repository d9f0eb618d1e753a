package strategy

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/cyclearb/internal/bundle"
	"github.com/hxuan190/cyclearb/internal/cyclefinder"
	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/eventbus"
	"github.com/hxuan190/cyclearb/internal/executor"
	"github.com/hxuan190/cyclearb/internal/graph"
	"github.com/hxuan190/cyclearb/internal/ledger"
	"github.com/hxuan190/cyclearb/internal/ports"
	"github.com/hxuan190/cyclearb/internal/risk"
	"github.com/hxuan190/cyclearb/internal/safety"
)

type stubChain struct{ ports.ChainClient }

type stubIntel struct{}

func (stubIntel) IsBlacklisted(ctx context.Context, token domain.TokenId) (bool, error) {
	return false, nil
}
func (stubIntel) Save(ctx context.Context, story ports.SuccessStory) error { return nil }

type stubTelemetry struct {
	opportunities int
	safetyDenied  int
	riskDenied    int
	dispatched    int
	landed        int
}

func (s *stubTelemetry) IncOpportunitiesFound()                       { s.opportunities++ }
func (s *stubTelemetry) IncSafetyDenied(reason domain.SafetyReason)   { s.safetyDenied++ }
func (s *stubTelemetry) IncRiskDenied(reason domain.RiskReason)       { s.riskDenied++ }
func (s *stubTelemetry) IncBundlesDispatched()                       { s.dispatched++ }
func (s *stubTelemetry) IncBundlesLanded()                            { s.landed++ }
func (s *stubTelemetry) ObservePnlLamports(pnl int64)                 {}
func (s *stubTelemetry) IncHydrationThrottled()                       {}
func (s *stubTelemetry) SetGraphEdges(count int)                      {}

func newTestPool(poolId domain.PoolId, tokenA, tokenB domain.TokenId, reserveA, reserveB uint64) *domain.PoolSnapshot {
	return &domain.PoolSnapshot{
		PoolId:     poolId,
		Venue:      domain.VenueCPMM,
		TokenA:     tokenA,
		TokenB:     tokenB,
		ReserveA:   reserveA,
		ReserveB:   reserveB,
		FeeBps:     25,
		BaseVault:  solana.NewWallet().PublicKey(),
		QuoteVault: solana.NewWallet().PublicKey(),
	}
}

// buildTestWorker wires a full pipeline for a single anchor token, with
// every other token whitelisted so the safety gate never needs a chain call.
func buildTestWorker(t *testing.T, anchor, mid domain.TokenId, telemetry *stubTelemetry) (*Worker, *graph.Graph, *eventbus.Bus) {
	t.Helper()

	g := graph.New()
	bus := eventbus.New(16)
	finder := cyclefinder.New(cyclefinder.DefaultConfig([]domain.TokenId{anchor}))

	safetyGate := safety.New(stubChain{}, stubIntel{}, []domain.TokenId{anchor, mid}, 0)
	riskGate := risk.New(risk.DefaultConfig())

	cpmmProgram := solana.NewWallet().PublicKey()
	clmmProgram := solana.NewWallet().PublicKey()
	assembler := bundle.New(bundle.DefaultConfig(cpmmProgram, clmmProgram), bundle.NewTipTracker(), solana.NewWallet().PublicKey())

	exec := executor.New(executor.DefaultConfig(executor.ModeDryRun), nil, nil, nil)

	led, err := ledger.Open(t.TempDir() + "/ledger.db")
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { led.Close() })

	cfg := Config{UserWallet: solana.NewWallet().PublicKey()}
	w := New(cfg, bus, g, finder, safetyGate, riskGate, nil, assembler, exec, led, stubIntel{}, telemetry)
	return w, g, bus
}

func TestWorker_ProcessesTriangleAndDispatchesDryRun(t *testing.T) {
	anchor := solana.NewWallet().PublicKey()
	mid := solana.NewWallet().PublicKey()
	telemetry := &stubTelemetry{}
	w, g, bus := buildTestWorker(t, anchor, mid, telemetry)

	poolA := solana.NewWallet().PublicKey()
	poolB := solana.NewWallet().PublicKey()

	snapA := newTestPool(poolA, anchor, mid, 1_000_000_000_000, 1_000_000_000_000)
	snapB := newTestPool(poolB, mid, anchor, 1_000_000_000_000, 1_100_000_000_000)
	g.ApplyUpdate(snapA)
	g.ApplyUpdate(snapB)

	candidates := w.finder.Find(g, poolB, defaultTrialInputAmount)
	if len(candidates) == 0 {
		t.Fatalf("expected at least one profitable candidate, got none")
	}

	ctx := context.Background()
	w.processCandidate(ctx, candidates[0])

	if telemetry.dispatched != 1 {
		t.Fatalf("got %d dispatches, want 1", telemetry.dispatched)
	}
	if telemetry.landed != 1 {
		t.Fatalf("got %d landed, want 1 (dry run always lands)", telemetry.landed)
	}
	if w.scaler.CurrentTier() != Tier1 {
		t.Fatalf("scaler should still be tier1 after a single trade")
	}

	bus.Close()
}

// TestWorker_RunAppliesSnapshotToGraphBeforeSearching exercises the
// single-writer contract directly: Run must apply a bus snapshot to the
// graph itself, since nothing upstream (discovery) does it anymore.
func TestWorker_RunAppliesSnapshotToGraphBeforeSearching(t *testing.T) {
	anchor := solana.NewWallet().PublicKey()
	mid := solana.NewWallet().PublicKey()
	telemetry := &stubTelemetry{}
	w, g, bus := buildTestWorker(t, anchor, mid, telemetry)

	poolA := solana.NewWallet().PublicKey()
	poolB := solana.NewWallet().PublicKey()
	snapA := newTestPool(poolA, anchor, mid, 1_000_000_000_000, 1_000_000_000_000)
	snapA.LastUpdateSeq = 1
	snapB := newTestPool(poolB, mid, anchor, 1_000_000_000_000, 1_100_000_000_000)
	snapB.LastUpdateSeq = 2

	if _, exists := g.Pool(poolA); exists {
		t.Fatalf("pool should not exist in the graph before Run applies it")
	}

	bus.Publish(snapA)
	bus.Publish(snapB)
	bus.Close()

	ctx := context.Background()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}

	if _, exists := g.Pool(poolA); !exists {
		t.Fatalf("expected Run to apply the bus snapshot to the graph itself")
	}
	if _, exists := g.Pool(poolB); !exists {
		t.Fatalf("expected Run to apply the bus snapshot to the graph itself")
	}
	if telemetry.dispatched != 1 {
		t.Fatalf("got %d dispatches, want 1 (the triangle should close once both pools are applied)", telemetry.dispatched)
	}
}

func TestWorker_RiskGateDeniesOversizedTrade(t *testing.T) {
	anchor := solana.NewWallet().PublicKey()
	mid := solana.NewWallet().PublicKey()
	telemetry := &stubTelemetry{}
	w, _, _ := buildTestWorker(t, anchor, mid, telemetry)

	candidate := &domain.ArbCandidate{
		Steps: []domain.SwapStep{
			{PoolId: solana.NewWallet().PublicKey(), Venue: domain.VenueCPMM, InMint: anchor, OutMint: mid, AmountIn: 10_000_000_000, MinAmountOut: 9_000_000_000},
		},
		InputAmount:    10_000_000_000, // exceeds risk.DefaultConfig's MaxTradeSizeLamports
		ExpectedProfit: 1_000_000,
		AnchorToken:    anchor,
	}

	ctx := context.Background()
	w.processCandidate(ctx, candidate)

	if telemetry.riskDenied != 1 {
		t.Fatalf("got %d risk denials, want 1", telemetry.riskDenied)
	}
	if telemetry.dispatched != 0 {
		t.Fatalf("expected no dispatch once the risk gate denies")
	}
}

func TestWorker_OracleUnavailableFallsBackToHeuristicOnly(t *testing.T) {
	anchor := solana.NewWallet().PublicKey()
	mid := solana.NewWallet().PublicKey()
	telemetry := &stubTelemetry{}
	w, _, _ := buildTestWorker(t, anchor, mid, telemetry)
	w.oracle = erroringOracle{}

	candidate := &domain.ArbCandidate{
		Steps: []domain.SwapStep{
			{PoolId: solana.NewWallet().PublicKey(), Venue: domain.VenueCPMM, InMint: anchor, OutMint: mid, AmountIn: 1_000_000, MinAmountOut: 900_000},
		},
		InputAmount:    1_000_000,
		ExpectedProfit: 1_000_000,
		AnchorToken:    anchor,
	}

	if !w.passesOracle(context.Background(), candidate) {
		t.Fatalf("an unavailable oracle must never deny a candidate")
	}
}

type erroringOracle struct{}

func (erroringOracle) Score(ctx context.Context, featureVector [5]float32) (float32, error) {
	return 0, errOracleDown
}

var errOracleDown = &oracleDownError{}

type oracleDownError struct{}

func (*oracleDownError) Error() string { return "oracle unavailable" }
