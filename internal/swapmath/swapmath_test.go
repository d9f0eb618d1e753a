package swapmath

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/hxuan190/cyclearb/internal/domain"
)

// referenceCPMMOut is an independent big.Int oracle implementation used to
// check CPMMOut against, per spec.md §8's "Math" invariant.
func referenceCPMMOut(amountIn, reserveIn, reserveOut uint64, feeBps uint16) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 || feeBps >= 10000 {
		return 0
	}
	ai := new(big.Int).SetUint64(amountIn)
	ri := new(big.Int).SetUint64(reserveIn)
	ro := new(big.Int).SetUint64(reserveOut)
	feeMul := big.NewInt(int64(10000 - feeBps))

	aiFee := new(big.Int).Mul(ai, feeMul)
	num := new(big.Int).Mul(aiFee, ro)
	den := new(big.Int).Add(new(big.Int).Mul(ri, big.NewInt(10000)), aiFee)
	out := new(big.Int).Quo(num, den)
	if out.Cmp(ro) >= 0 {
		out = new(big.Int).Sub(ro, big.NewInt(1))
	}
	return out.Uint64()
}

func TestCPMMOut_MatchesReferenceOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		amountIn := rng.Uint64() % (1 << 40)
		reserveIn := rng.Uint64()%(1<<45) + 1
		reserveOut := rng.Uint64()%(1<<45) + 1
		feeBps := uint16(rng.Intn(500))

		got, err := CPMMOut(amountIn, reserveIn, reserveOut, feeBps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := referenceCPMMOut(amountIn, reserveIn, reserveOut, feeBps)
		if got != want {
			t.Fatalf("mismatch: in=%d rin=%d rout=%d fee=%d got=%d want=%d",
				amountIn, reserveIn, reserveOut, feeBps, got, want)
		}
		if reserveOut > 0 && got >= reserveOut {
			t.Fatalf("invariant violated: out (%d) >= reserveOut (%d)", got, reserveOut)
		}
	}
}

func TestCPMMOut_ZeroInputsYieldZero(t *testing.T) {
	cases := []struct{ amountIn, rin, rout uint64 }{
		{0, 100, 200}, {100, 0, 200}, {100, 200, 0},
	}
	for _, c := range cases {
		out, err := CPMMOut(c.amountIn, c.rin, c.rout, 30)
		if err != nil || out != 0 {
			t.Fatalf("expected zero output for %+v, got %d err=%v", c, out, err)
		}
	}
}

func TestImpactBps_MonotonicIncreasing(t *testing.T) {
	reserveIn := uint64(1_000_000)
	prev := uint16(0)
	for _, amt := range []uint64{1000, 10_000, 100_000, 500_000} {
		impact := ImpactBps(amt, reserveIn)
		if impact < prev {
			t.Fatalf("impact should be monotonic in amount: %d < %d", impact, prev)
		}
		prev = impact
	}
}

func TestImpactBps_ZeroReserve(t *testing.T) {
	if ImpactBps(100, 0) != 10000 {
		t.Fatal("zero reserve should saturate to 10000 bps")
	}
}

func TestVirtualReserves_ZeroWhenUnset(t *testing.T) {
	x, y := VirtualReserves(&domain.CLMMState{})
	if x != 0 || y != 0 {
		t.Fatalf("expected zero virtual reserves for empty CLMM state, got (%d,%d)", x, y)
	}
}

func TestVirtualReserves_OneToOnePrice(t *testing.T) {
	// sqrt_price_q64 = 2^64 means price == 1.0; x and y should be close to L.
	clmm := &domain.CLMMState{
		SqrtPriceQ64: [2]uint64{0, 1}, // low=0, high=1 -> value == 2^64
		Liquidity:    [2]uint64{1_000_000, 0},
	}
	x, y := VirtualReserves(clmm)
	if x == 0 || y == 0 {
		t.Fatal("expected nonzero virtual reserves")
	}
	diff := int64(x) - int64(y)
	if diff < -2 || diff > 2 {
		t.Fatalf("expected x ~= y at unit price, got x=%d y=%d", x, y)
	}
}

func TestLess_OrdersByProfitThenImpactThenHopsThenPool(t *testing.T) {
	mkPool := func(b byte) domain.PoolId {
		var p domain.PoolId
		p[0] = b
		return p
	}
	a := &domain.ArbCandidate{ExpectedProfit: 100, MaxImpactBps: 10, Steps: []domain.SwapStep{{PoolId: mkPool(1)}, {}}}
	b := &domain.ArbCandidate{ExpectedProfit: 200, MaxImpactBps: 10, Steps: []domain.SwapStep{{PoolId: mkPool(1)}, {}}}
	if !Less(b, a) {
		t.Fatal("higher profit should sort first")
	}

	c := &domain.ArbCandidate{ExpectedProfit: 100, MaxImpactBps: 5, Steps: []domain.SwapStep{{PoolId: mkPool(1)}, {}}}
	if !Less(c, a) {
		t.Fatal("lower impact should sort first when profit ties")
	}

	d := &domain.ArbCandidate{ExpectedProfit: 100, MaxImpactBps: 10, Steps: []domain.SwapStep{{PoolId: mkPool(1)}, {}, {}}}
	if !Less(a, d) {
		t.Fatal("fewer hops should sort first when profit/impact tie")
	}
}

func BenchmarkCPMMOut(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = CPMMOut(1_000_000, 1_000_000_000, 2_000_000_000, 30)
	}
}
