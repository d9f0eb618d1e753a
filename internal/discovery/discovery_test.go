package discovery

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/cyclearb/internal/eventbus"
	"github.com/hxuan190/cyclearb/internal/ports"
)

// fakeChain is a minimal in-memory ports.ChainClient for exercising the
// discovery pipeline without real RPC/WS transports.
type fakeChain struct {
	mu          sync.Mutex
	events      chan ports.LogEvent
	poolAccount string
	accountKeys []string
	accountData []byte
	concurrent  atomic.Int32
	maxSeen     atomic.Int32
	txCalls     atomic.Int32
	getTxDelay  time.Duration
}

func (f *fakeChain) SubscribeLogs(ctx context.Context, programIDs []string) (<-chan ports.LogEvent, error) {
	return f.events, nil
}

func (f *fakeChain) GetMultipleAccounts(ctx context.Context, ids []string) ([][]byte, error) {
	return [][]byte{f.accountData}, nil
}

func (f *fakeChain) GetTransaction(ctx context.Context, signature string) (*ports.TransactionInfo, error) {
	f.txCalls.Add(1)
	cur := f.concurrent.Add(1)
	for {
		prev := f.maxSeen.Load()
		if cur <= prev || f.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	if f.getTxDelay > 0 {
		time.Sleep(f.getTxDelay)
	}
	f.concurrent.Add(-1)
	return &ports.TransactionInfo{PoolAccount: f.poolAccount, AccountKeys: f.accountKeys}, nil
}

func (f *fakeChain) GetLatestBlockhash(ctx context.Context) (string, error) {
	return "", nil
}

func encodeCPMMAccount(t *testing.T, mintA, mintB solana.PublicKey) []byte {
	t.Helper()
	buf := make([]byte, 8+8+8+2+2+32+32+32)
	binary.LittleEndian.PutUint64(buf[8:], 1_000_000) // reserveA
	binary.LittleEndian.PutUint64(buf[16:], 2_000_000) // reserveB
	binary.LittleEndian.PutUint16(buf[24:], 30)        // fee numerator
	binary.LittleEndian.PutUint16(buf[26:], 10000)     // fee denominator
	copy(buf[28:60], mintA[:])
	copy(buf[60:92], mintB[:])
	return buf
}

func TestHandle_DedupsRepeatedSignature(t *testing.T) {
	pool := solana.NewWallet().PublicKey()
	mintA, mintB := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	chain := &fakeChain{
		events:      make(chan ports.LogEvent, 10),
		poolAccount: pool.String(),
		accountData: encodeCPMMAccount(t, mintA, mintB),
	}
	bus := eventbus.New(10)
	eng := New(chain, bus, 3)

	evt := ports.LogEvent{Stream: ports.StreamCPMM, Signature: "sig-1"}
	eng.handle(context.Background(), evt)
	eng.handle(context.Background(), evt)

	time.Sleep(50 * time.Millisecond)
	seen := 0
	for {
		_, ok := bus.Next()
		if !ok {
			break
		}
		seen++
		break
	}
	if seen != 1 {
		t.Fatalf("expected exactly one pool published despite duplicate signature, got %d", seen)
	}
	if calls := chain.txCalls.Load(); calls != 1 {
		t.Fatalf("expected the duplicate signature to be hydrated once, got %d transaction fetches", calls)
	}
}

func TestHandle_ThrottlesBeyondSemaphoreCapacity(t *testing.T) {
	pool := solana.NewWallet().PublicKey()
	mintA, mintB := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	chain := &fakeChain{
		events:      make(chan ports.LogEvent, 10),
		poolAccount: pool.String(),
		accountData: encodeCPMMAccount(t, mintA, mintB),
		getTxDelay:  150 * time.Millisecond,
	}
	bus := eventbus.New(10)
	eng := New(chain, bus, 3)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			eng.handle(context.Background(), ports.LogEvent{
				Stream:    ports.StreamCPMM,
				Signature: solana.NewWallet().PublicKey().String(),
			})
		}(i)
	}
	wg.Wait()
	time.Sleep(300 * time.Millisecond)

	if chain.maxSeen.Load() > 3 {
		t.Fatalf("expected at most 3 concurrent GetTransaction calls, observed %d", chain.maxSeen.Load())
	}
}

func TestDecode_CurveStreamUsesPostBalanceHint(t *testing.T) {
	eng := New(&fakeChain{}, eventbus.New(10), 3)
	mint := solana.NewWallet().PublicKey()
	data := make([]byte, 8+8+8+1)
	snap, err := eng.decode(solana.NewWallet().PublicKey(), ports.StreamCurveMigration, data,
		&ports.PostTokenBalance{ReserveA: 500, ReserveB: 700}, []string{mint.String()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ReserveA+snap.ReserveB != 1200 {
		t.Fatalf("expected hint reserves applied, got a=%d b=%d", snap.ReserveA, snap.ReserveB)
	}
}

func TestDecode_CurveStreamPairsMintWithWrappedSOL(t *testing.T) {
	eng := New(&fakeChain{}, eventbus.New(10), 3)
	mint := solana.NewWallet().PublicKey()
	data := make([]byte, 8+8+8+1)
	snap, err := eng.decode(solana.NewWallet().PublicKey(), ports.StreamCurveMigration, data,
		nil, []string{mint.String(), solana.NewWallet().PublicKey().String()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.TokenA != mint && snap.TokenB != mint {
		t.Fatalf("expected the curve's new mint to appear as one side of the edge, got %v/%v", snap.TokenA, snap.TokenB)
	}
	if snap.TokenA == snap.TokenB {
		t.Fatalf("expected mint and wrapped SOL to form a real edge, not a self-loop")
	}
}

func TestDecode_CurveStreamMissingAccountKeysErrors(t *testing.T) {
	eng := New(&fakeChain{}, eventbus.New(10), 3)
	data := make([]byte, 8+8+8+1)
	if _, err := eng.decode(solana.NewWallet().PublicKey(), ports.StreamCurveMigration, data, nil, nil); err == nil {
		t.Fatal("expected an error when no account keys are available to recover the curve's mint")
	}
}
