package eventbus

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/cyclearb/internal/domain"
)

func snap(id domain.PoolId, seq uint64) *domain.PoolSnapshot {
	return &domain.PoolSnapshot{PoolId: id, LastUpdateSeq: seq, ReserveA: 1, ReserveB: 1}
}

func TestCoalescing_NewestSeqWins(t *testing.T) {
	bus := New(10)
	id := solana.NewWallet().PublicKey()

	for seq := uint64(1); seq <= 1000; seq++ {
		bus.Publish(snap(id, seq))
	}
	if bus.Depth() != 1 {
		t.Fatalf("expected exactly one pending update for the pool, got %d", bus.Depth())
	}

	got, ok := bus.Next()
	if !ok {
		t.Fatal("expected an update")
	}
	if got.LastUpdateSeq != 1000 {
		t.Fatalf("expected newest seq 1000 to survive coalescing, got %d", got.LastUpdateSeq)
	}
}

func TestPublish_DistinctPoolsDoNotCoalesce(t *testing.T) {
	bus := New(10)
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()

	bus.Publish(snap(a, 1))
	bus.Publish(snap(b, 1))
	if bus.Depth() != 2 {
		t.Fatalf("expected 2 distinct pending updates, got %d", bus.Depth())
	}
}

func TestNext_BlocksUntilPublish(t *testing.T) {
	bus := New(10)
	id := solana.NewWallet().PublicKey()

	done := make(chan *domain.PoolSnapshot, 1)
	go func() {
		p, ok := bus.Next()
		if ok {
			done <- p
		}
	}()

	time.Sleep(10 * time.Millisecond)
	bus.Publish(snap(id, 5))

	select {
	case p := <-done:
		if p.PoolId != id {
			t.Fatal("received wrong pool")
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock after Publish")
	}
}

func TestPublish_DropsNewPoolWhenSaturated(t *testing.T) {
	bus := New(2)
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	c := solana.NewWallet().PublicKey()

	bus.Publish(snap(a, 1))
	bus.Publish(snap(b, 1))
	bus.Publish(snap(c, 1)) // bus full of distinct pools, should be dropped

	if bus.Depth() != 2 {
		t.Fatalf("expected bus to stay at capacity 2, got %d", bus.Depth())
	}
}

func TestClose_DrainsPendingThenStops(t *testing.T) {
	bus := New(10)
	id := solana.NewWallet().PublicKey()
	bus.Publish(snap(id, 1))
	bus.Close()

	p, ok := bus.Next()
	if !ok || p.PoolId != id {
		t.Fatal("expected pending update to drain before close takes effect")
	}
	_, ok = bus.Next()
	if ok {
		t.Fatal("expected Next to report closed once drained")
	}
}
