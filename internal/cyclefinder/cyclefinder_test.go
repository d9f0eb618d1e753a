package cyclefinder

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/graph"
)

func mint(t *testing.T) domain.TokenId {
	t.Helper()
	return solana.NewWallet().PublicKey()
}

func cpmmPool(poolId domain.PoolId, a, b domain.TokenId, reserveA, reserveB uint64, seq uint64) *domain.PoolSnapshot {
	return &domain.PoolSnapshot{
		PoolId:        poolId,
		Venue:         domain.VenueCPMM,
		TokenA:        a,
		TokenB:        b,
		ReserveA:      reserveA,
		ReserveB:      reserveB,
		FeeBps:        30,
		LastUpdateSeq: seq,
		CPMM:          &domain.CPMMState{FeeNumerator: 30, FeeDenominator: 10000},
	}
}

// TestFind_TriangleProfit adapts spec.md §8 scenario 1: three CPMM pools
// (SOL,USDC), (USDC,RAY), (RAY,SOL) with reserves chosen so a SOL->USDC->RAY->SOL
// round trip nets a profit, and the cycle finder must surface it as a 3-hop
// candidate whose max single-hop impact stays inside the default cap. The
// RAY/SOL leg is deeper than the scenario's 100 RAY / 3 SOL, where a 1 SOL
// input into 3 SOL of reserve would be pruned at 2500 bps impact.
func TestFind_TriangleProfit(t *testing.T) {
	sol := mint(t)
	usdc := mint(t)
	ray := mint(t)

	solUsdc := solana.NewWallet().PublicKey()
	usdcRay := solana.NewWallet().PublicKey()
	raySol := solana.NewWallet().PublicKey()

	g := graph.New()
	g.ApplyUpdate(cpmmPool(solUsdc, sol, usdc, 1_000_000_000_000, 50_000_000_000, 1))  // 1,000 SOL / 50,000 USDC
	g.ApplyUpdate(cpmmPool(usdcRay, usdc, ray, 50_000_000_000, 25_000_000_000, 2))     // 50,000 USDC / 25,000 RAY
	g.ApplyUpdate(cpmmPool(raySol, ray, sol, 10_000_000_000, 500_000_000_000, 3))      // 10,000 RAY / 500 SOL, mispriced vs the other two legs

	cfg := DefaultConfig([]domain.TokenId{sol})
	f := New(cfg)

	candidates := f.Find(g, raySol, 1_000_000_000) // 1 SOL input, triggered by the RAY/SOL pool update
	if len(candidates) != 1 {
		t.Fatalf("expected exactly one candidate (one anchor), got %d", len(candidates))
	}

	c := candidates[0]
	if len(c.Steps) != 3 {
		t.Fatalf("expected a 3-hop cycle, got %d hops", len(c.Steps))
	}
	if !c.Closes() {
		t.Fatal("candidate must start and end on the same token")
	}
	if c.Steps[0].InMint != sol {
		t.Fatal("expected cycle to start at the anchor token")
	}
	if c.ExpectedProfit <= 0 {
		t.Fatalf("expected positive profit, got %d", c.ExpectedProfit)
	}
	if c.MaxImpactBps > cfg.MaxImpactBps {
		t.Fatalf("max impact %d exceeds cap %d", c.MaxImpactBps, cfg.MaxImpactBps)
	}
	if c.TriggeringPool != raySol {
		t.Fatalf("expected triggering pool recorded, got %v", c.TriggeringPool)
	}
}

func TestFind_NoCandidateWhenNoCycleTouchesTriggeringPool(t *testing.T) {
	sol := mint(t)
	usdc := mint(t)

	solUsdc := solana.NewWallet().PublicKey()
	unrelated := solana.NewWallet().PublicKey()

	g := graph.New()
	g.ApplyUpdate(cpmmPool(solUsdc, sol, usdc, 1_000_000_000_000, 50_000_000_000, 1))

	cfg := DefaultConfig([]domain.TokenId{sol})
	f := New(cfg)

	// Only one pool exists at all, so no cycle can close back to the anchor,
	// and certainly none touches a pool id that was never applied.
	candidates := f.Find(g, unrelated, 1_000_000_000)
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}

func TestFind_PrunesHopsAboveImpactCap(t *testing.T) {
	sol := mint(t)
	usdc := mint(t)
	ray := mint(t)

	solUsdc := solana.NewWallet().PublicKey()
	usdcRay := solana.NewWallet().PublicKey()
	raySol := solana.NewWallet().PublicKey()

	g := graph.New()
	// Thin USDC/RAY reserves relative to a 1 SOL-denominated input amount
	// drive the USDC->RAY hop's price impact over the default 100bps cap.
	g.ApplyUpdate(cpmmPool(solUsdc, sol, usdc, 1_000_000_000_000, 50_000_000_000, 1))
	g.ApplyUpdate(cpmmPool(usdcRay, usdc, ray, 100, 100, 2))
	g.ApplyUpdate(cpmmPool(raySol, ray, sol, 100_000_000_000, 3_000_000_000, 3))

	cfg := DefaultConfig([]domain.TokenId{sol})
	cfg.MaxImpactBps = 1 // force the thin leg to be pruned
	f := New(cfg)

	candidates := f.Find(g, raySol, 1_000_000_000)
	if len(candidates) != 0 {
		t.Fatalf("expected impact-cap pruning to eliminate all candidates, got %d", len(candidates))
	}
}
