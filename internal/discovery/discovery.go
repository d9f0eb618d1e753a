// Package discovery subscribes to per-venue program logs, deduplicates
// candidate signatures, and hydrates full pool state under a bounded
// concurrency cap before publishing snapshots onto the event bus
// (component C4). It never applies a snapshot to the market graph itself —
// that happens on the bus's single consumer, the strategy worker.
package discovery

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/cyclearb/internal/codec"
	"github.com/hxuan190/cyclearb/internal/common"
	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/eventbus"
	"github.com/hxuan190/cyclearb/internal/ports"
	"github.com/hxuan190/cyclearb/internal/swapmath"
	"github.com/hxuan190/cyclearb/internal/telemetry"
)

// dedupSize and dedupTTL are the default signature-dedup cache bounds from
// spec.md §4.4 step 1.
const (
	dedupSize = 100_000
	dedupTTL  = 5 * time.Minute

	defaultHydrationPermits = 3
	hydrationAcquireWait    = 200 * time.Millisecond
	hydrationRetries        = 3
)

// errNoAccountKeys is returned when a bonding-curve transaction carries no
// account list to recover the new mint from.
var errNoAccountKeys = errors.New("discovery: transaction has no account keys")

// Engine runs the discovery/hydration pipeline against a ChainClient,
// publishing newly hydrated pools onto the Bus. It never touches the market
// graph itself — the graph is single-writer, owned by the strategy worker,
// which applies each snapshot as the first action of its loop (spec.md §5).
type Engine struct {
	chain ports.ChainClient
	bus   *eventbus.Bus

	dedup     *expirable.LRU[string, struct{}]
	hydration chan struct{} // buffered semaphore

	seq atomic.Uint64 // monotonic last_update_seq source for freshly discovered pools
}

// New constructs a discovery Engine. permits <= 0 uses the spec default (3).
func New(chain ports.ChainClient, bus *eventbus.Bus, permits int) *Engine {
	if permits <= 0 {
		permits = defaultHydrationPermits
	}
	return &Engine{
		chain:     chain,
		bus:       bus,
		dedup:     expirable.NewLRU[string, struct{}](dedupSize, nil, dedupTTL),
		hydration: make(chan struct{}, permits),
	}
}

// programIDs for the three subscribed log streams: CPMM new-pool init,
// CLMM new-pool init, and bonding-curve migration (spec.md §4.4, expanded
// to three streams per SPEC_FULL.md §7).
type ProgramSet struct {
	CPMMProgramID  string
	CLMMProgramID  string
	CurveProgramID string
}

// Run subscribes to all three log streams and processes events until ctx is
// canceled. Each event is handled in its own goroutine once a hydration
// permit is acquired, so a slow RPC fetch never blocks the subscription
// read loop.
func (e *Engine) Run(ctx context.Context, programs ProgramSet) error {
	ids := []string{programs.CPMMProgramID, programs.CLMMProgramID, programs.CurveProgramID}
	events, err := e.chain.SubscribeLogs(ctx, ids)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			e.handle(ctx, evt)
		}
	}
}

func (e *Engine) handle(ctx context.Context, evt ports.LogEvent) {
	if _, seen := e.dedup.Get(evt.Signature); seen {
		return
	}
	e.dedup.Add(evt.Signature, struct{}{})
	telemetry.DiscoveryPoolsSeen.WithLabelValues(streamLabel(evt.Stream)).Inc()

	select {
	case e.hydration <- struct{}{}:
	case <-time.After(hydrationAcquireWait):
		telemetry.HydrationThrottled.Inc()
		log.Warn().Str("signature", evt.Signature).Msg("hydration throttled: no permit available")
		return
	case <-ctx.Done():
		return
	}

	telemetry.HydrationInFlight.Inc()
	go func() {
		defer func() {
			<-e.hydration
			telemetry.HydrationInFlight.Dec()
		}()
		e.hydrate(ctx, evt)
	}()
}

// hydrate fetches the transaction and pool account(s) for one discovery
// event and, on success, publishes the resulting snapshot onto the bus for
// the strategy worker to apply to the graph. Retries only the transaction
// fetch, up to 3 attempts with exponential backoff — never the hot path
// itself (spec.md §7: "retry with exponential backoff up to 3 attempts for
// discovery").
func (e *Engine) hydrate(ctx context.Context, evt ports.LogEvent) {
	var tx *ports.TransactionInfo
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), hydrationRetries-1)
	err := backoff.Retry(func() error {
		var fetchErr error
		tx, fetchErr = e.chain.GetTransaction(ctx, evt.Signature)
		return fetchErr
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		log.Warn().Err(err).Str("signature", evt.Signature).Msg("discovery: failed to fetch transaction")
		return
	}

	poolID, err := solana.PublicKeyFromBase58(tx.PoolAccount)
	if err != nil {
		log.Warn().Err(err).Str("account", tx.PoolAccount).Msg("discovery: invalid pool account")
		return
	}

	accounts, err := e.chain.GetMultipleAccounts(ctx, []string{tx.PoolAccount})
	if err != nil || len(accounts) == 0 {
		log.Warn().Err(err).Str("signature", evt.Signature).Msg("discovery: account fetch failed")
		return
	}

	snapshot, err := e.decode(poolID, evt.Stream, accounts[0], tx.PostTokenBalance, tx.AccountKeys)
	if err != nil {
		log.Warn().Err(err).Str("pool", tx.PoolAccount).Msg("discovery: decode failed, not caching")
		return
	}

	snapshot.LastUpdateSeq = e.seq.Add(1)
	e.bus.Publish(snapshot)
}

func (e *Engine) decode(poolID domain.PoolId, stream ports.LogStream, data []byte, hint *ports.PostTokenBalance, accountKeys []string) (*domain.PoolSnapshot, error) {
	switch stream {
	case ports.StreamCPMM:
		return codec.DecodeCPMM(poolID, data)
	case ports.StreamCLMM:
		snap, err := codec.DecodeCLMM(poolID, data)
		if err != nil {
			return nil, err
		}
		snap.ReserveA, snap.ReserveB = swapmath.VirtualReserves(snap.CLMM)
		return snap, nil
	default:
		curve, err := codec.DecodeCurve(data)
		if err != nil {
			return nil, err
		}
		if hint != nil {
			// post_token_balances gives initial reserves without a second
			// account fetch (spec.md §4.4 step 3); the curve account itself
			// may still read zero immediately after creation.
			curve.BaseReserve = hint.ReserveA
			curve.QuoteReserve = hint.ReserveB
		}
		baseMint, err := curveTokenMint(accountKeys)
		if err != nil {
			return nil, err
		}
		// A bonding-curve Create always pairs the new mint against the
		// chain's native asset (original_source/engine/src/discovery.rs's
		// pump.fun Create handling: accounts[0] is the mint, paired with
		// SOL_MINT).
		return curve.ToPoolSnapshot(poolID, baseMint, common.WrappedSOLMint, 0), nil
	}
}

// curveTokenMint recovers the new token's mint from a bonding-curve Create
// transaction's account list. Account 0 is always the mint in this
// instruction layout; there is no other field the chain client exposes that
// carries it.
func curveTokenMint(accountKeys []string) (domain.TokenId, error) {
	if len(accountKeys) == 0 {
		return domain.TokenId{}, errNoAccountKeys
	}
	return solana.PublicKeyFromBase58(accountKeys[0])
}

func streamLabel(s ports.LogStream) string {
	switch s {
	case ports.StreamCPMM:
		return "cpmm"
	case ports.StreamCLMM:
		return "clmm"
	default:
		return "curve_migration"
	}
}
