package graph

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/cyclearb/internal/domain"
)

func mintPair(t *testing.T) (domain.TokenId, domain.TokenId) {
	t.Helper()
	return solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
}

func poolID(t *testing.T) domain.PoolId {
	t.Helper()
	return solana.NewWallet().PublicKey()
}

func snapshotFor(poolId domain.PoolId, a, b domain.TokenId, reserveA, reserveB uint64, seq uint64) *domain.PoolSnapshot {
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

func TestApplyUpdate_RejectsStaleSeq(t *testing.T) {
	g := New()
	a, b := mintPair(t)
	id := poolID(t)

	if !g.ApplyUpdate(snapshotFor(id, a, b, 1000, 2000, 5)) {
		t.Fatal("expected first update to apply")
	}
	if g.ApplyUpdate(snapshotFor(id, a, b, 9999, 9999, 3)) {
		t.Fatal("expected stale update (seq 3 < 5) to be rejected")
	}
	p, ok := g.Pool(id)
	if !ok {
		t.Fatal("pool should still be present")
	}
	if p.ReserveA != 1000 {
		t.Fatalf("stale update must not overwrite reserves, got %d", p.ReserveA)
	}
}

func TestApplyUpdate_NewerSeqOverwrites(t *testing.T) {
	g := New()
	a, b := mintPair(t)
	id := poolID(t)

	g.ApplyUpdate(snapshotFor(id, a, b, 1000, 2000, 5))
	if !g.ApplyUpdate(snapshotFor(id, a, b, 1500, 2500, 6)) {
		t.Fatal("expected newer update to apply")
	}
	p, _ := g.Pool(id)
	if p.ReserveA != 1500 {
		t.Fatalf("expected reserves updated, got %d", p.ReserveA)
	}
}

func TestZeroReservePoolNeverSurfacedInNeighbors(t *testing.T) {
	g := New()
	a, b := mintPair(t)
	id := poolID(t)

	g.ApplyUpdate(snapshotFor(id, a, b, 0, 2000, 1))
	pools := g.PairPools(a, b)
	if len(pools) != 0 {
		t.Fatalf("zero-reserve pool must not be surfaced, got %d pools", len(pools))
	}
}

func TestPairPools_SortedByOutputLiquidityDescending(t *testing.T) {
	g := New()
	a, b := mintPair(t)

	g.ApplyUpdate(snapshotFor(poolID(t), a, b, 1000, 500, 1))
	g.ApplyUpdate(snapshotFor(poolID(t), a, b, 1000, 5000, 2))
	g.ApplyUpdate(snapshotFor(poolID(t), a, b, 1000, 2000, 3))

	pools := g.PairPools(a, b)
	if len(pools) != 3 {
		t.Fatalf("expected 3 pools, got %d", len(pools))
	}
	for i := 1; i < len(pools); i++ {
		_, prevOut := pools[i-1].Reserves(a)
		_, curOut := pools[i].Reserves(a)
		if prevOut < curOut {
			t.Fatalf("pools not sorted by output liquidity descending: %d then %d", prevOut, curOut)
		}
	}
}

func TestPairPools_CappedAtMaxPoolsPerPair(t *testing.T) {
	g := New()
	a, b := mintPair(t)

	for i := 0; i < maxPoolsPerPair+3; i++ {
		g.ApplyUpdate(snapshotFor(poolID(t), a, b, 1000, uint64(1000+i), uint64(i+1)))
	}
	pools := g.PairPools(a, b)
	if len(pools) != maxPoolsPerPair {
		t.Fatalf("expected at most %d pools, got %d", maxPoolsPerPair, len(pools))
	}
}

// TestPairPools_PreviousSliceUnaffectedByLaterIncrementalUpdate guards the
// copy-on-write contract applyIncremental depends on: a caller holding a
// slice from before an update (the cycle finder mid-DFS, say) must never
// see it reordered or overwritten by a later update landing concurrently.
func TestPairPools_PreviousSliceUnaffectedByLaterIncrementalUpdate(t *testing.T) {
	g := New()
	a, b := mintPair(t)
	id1, id2 := poolID(t), poolID(t)

	g.ApplyUpdate(snapshotFor(id1, a, b, 1000, 2000, 1))
	before := g.PairPools(a, b)
	if len(before) != 1 || before[0].PoolId != id1 {
		t.Fatalf("unexpected initial pair pools: %+v", before)
	}
	beforeReserveA := before[0].ReserveA

	g.ApplyUpdate(snapshotFor(id2, a, b, 5000, 9000, 1))
	g.ApplyUpdate(snapshotFor(id1, a, b, 3000, 4000, 2))

	if before[0].PoolId != id1 || before[0].ReserveA != beforeReserveA {
		t.Fatalf("previously read slice was mutated in place: %+v", before[0])
	}
	if len(before) != 1 {
		t.Fatalf("previously read slice grew in place, got len %d", len(before))
	}

	after := g.PairPools(a, b)
	if len(after) != 2 {
		t.Fatalf("expected 2 pools for the pair after both updates, got %d", len(after))
	}
}

func TestRemovePool_DropsFromGraph(t *testing.T) {
	g := New()
	a, b := mintPair(t)
	id := poolID(t)

	g.ApplyUpdate(snapshotFor(id, a, b, 1000, 2000, 1))
	g.RemovePool(id)

	if _, ok := g.Pool(id); ok {
		t.Fatal("expected pool to be removed")
	}
	if len(g.PairPools(a, b)) != 0 {
		t.Fatal("expected no pools left for pair after removal")
	}
}

func TestStats_TracksCounts(t *testing.T) {
	g := New()
	a, b := mintPair(t)
	g.ApplyUpdate(snapshotFor(poolID(t), a, b, 1000, 2000, 1))
	g.ApplyUpdate(snapshotFor(poolID(t), a, b, 0, 2000, 2))

	stats := g.Stats()
	if stats.PoolCount != 2 {
		t.Fatalf("expected pool count 2, got %d", stats.PoolCount)
	}
	if stats.ReadyPoolCount != 1 {
		t.Fatalf("expected ready pool count 1, got %d", stats.ReadyPoolCount)
	}
}

func TestIncrementalUpdate_BelowThreshold(t *testing.T) {
	g := New()
	a, b := mintPair(t)
	for i := 0; i < incrementalThreshold-1; i++ {
		g.ApplyUpdate(snapshotFor(poolID(t), a, b, 1000, uint64(1000+i), uint64(i+1)))
	}
	if g.Stats().PoolCount != incrementalThreshold-1 {
		t.Fatalf("expected %d pools, got %d", incrementalThreshold-1, g.Stats().PoolCount)
	}
}
