// Package executor implements the dispatch stage (C10): submitting an
// assembled bundle through the relay, falling back to a secondary send path
// on transport failure, and resolving the terminal on-chain outcome. A
// landed outcome of a live submission carries the real transaction
// signature, and a dry run's carries none — never a synthetic placeholder (spec.md §9 names this exact anti-pattern from
// original_source/executor/src/lib.rs, whose Jito client returns the literal
// string "dry_run_id" under DRY_RUN).
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/ports"
	"github.com/hxuan190/cyclearb/internal/telemetry"
)

// Mode selects the engine's execution posture (spec.md §6's execution_mode).
type Mode uint8

const (
	ModeSimulation Mode = iota
	ModeDryRun
	ModeLiveMicro
	ModeLiveProd
)

func (m Mode) String() string {
	switch m {
	case ModeSimulation:
		return "simulation"
	case ModeDryRun:
		return "dry_run"
	case ModeLiveMicro:
		return "live_micro"
	case ModeLiveProd:
		return "live_prod"
	default:
		return "unknown"
	}
}

// live reports whether this mode may submit a real transaction.
func (m Mode) live() bool {
	return m == ModeLiveMicro || m == ModeLiveProd
}

// Config holds the executor's tunables.
type Config struct {
	Mode Mode

	// ConfirmationTimeout bounds how long Dispatch polls the chain for
	// inclusion before giving up and reporting Rejected.
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
}

func DefaultConfig(mode Mode) Config {
	return Config{
		Mode:                mode,
		ConfirmationTimeout: 30 * time.Second,
		PollInterval:        2 * time.Second,
	}
}

// SenderRelay is a secondary submission path consulted when the primary
// relay fails transport (spec.md §4.10's "sender" endpoint fallback). A nil
// SenderRelay means no fallback is configured.
type SenderRelay = ports.BundleRelay

// Executor dispatches bundles and resolves their outcome.
type Executor struct {
	cfg    Config
	relay  ports.BundleRelay
	sender SenderRelay // optional fallback, may be nil
	chain  ports.ChainClient
}

func New(cfg Config, relay ports.BundleRelay, sender SenderRelay, chain ports.ChainClient) *Executor {
	return &Executor{cfg: cfg, relay: relay, sender: sender, chain: chain}
}

// Dispatch submits the bundle per the configured mode and resolves its
// terminal outcome. It never returns a synthetic transaction id: a dry run
// reports Landed with TxId left empty, since no transaction was ever
// broadcast.
func (e *Executor) Dispatch(ctx context.Context, bundle *domain.Bundle) domain.BundleOutcome {
	candidatePool := triggeringPool(bundle)

	if !e.cfg.Mode.live() {
		log.Info().
			Str("mode", e.cfg.Mode.String()).
			Int("instructions", len(bundle.Instructions)).
			Uint64("tip_lamports", bundle.TipLamports).
			Msg("executor: dry run, bundle not submitted")
		telemetry.BundleOutcomes.WithLabelValues("landed").Inc()
		return domain.BundleOutcome{
			Kind:          domain.OutcomeLanded,
			NetProfit:     bundle.Candidate.ExpectedProfit,
			CandidatePool: candidatePool,
		}
	}

	txId, err := e.submit(ctx, bundle)
	if err != nil {
		log.Error().Err(err).Msg("executor: submission failed on every configured path")
		telemetry.BundleOutcomes.WithLabelValues("failed").Inc()
		return domain.BundleOutcome{
			Kind:          domain.OutcomeFailed,
			Reason:        err.Error(),
			CandidatePool: candidatePool,
		}
	}

	return e.resolveOutcome(ctx, txId, bundle, candidatePool)
}

func triggeringPool(bundle *domain.Bundle) domain.PoolId {
	if bundle.Candidate == nil {
		return domain.PoolId{}
	}
	return bundle.Candidate.TriggeringPool
}

// submit tries the primary relay first, then the optional sender fallback on
// transport error. Both paths must return the real bundle/transaction id —
// no sentinel strings.
func (e *Executor) submit(ctx context.Context, bundle *domain.Bundle) (string, error) {
	txId, err := e.relay.Submit(ctx, bundle)
	if err == nil {
		return txId, nil
	}
	log.Warn().Err(err).Msg("executor: primary relay submission failed")

	if e.sender == nil {
		return "", err
	}
	txId, fallbackErr := e.sender.Submit(ctx, bundle)
	if fallbackErr != nil {
		return "", errors.Join(err, fallbackErr)
	}
	return txId, nil
}

// resolveOutcome polls the chain for the submitted transaction's inclusion,
// up to ConfirmationTimeout. The returned outcome's TxId is always the
// signature the relay or chain actually assigned.
func (e *Executor) resolveOutcome(ctx context.Context, txId string, bundle *domain.Bundle, candidatePool domain.PoolId) domain.BundleOutcome {
	deadline := time.Now().Add(e.cfg.ConfirmationTimeout)
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		info, err := e.chain.GetTransaction(ctx, txId)
		if err == nil && info != nil {
			telemetry.BundleOutcomes.WithLabelValues("landed").Inc()
			telemetry.NetProfitLamports.Observe(float64(bundle.Candidate.ExpectedProfit))
			return domain.BundleOutcome{
				Kind:          domain.OutcomeLanded,
				TxId:          txId,
				NetProfit:     bundle.Candidate.ExpectedProfit,
				CandidatePool: candidatePool,
			}
		}

		if time.Now().After(deadline) {
			telemetry.BundleOutcomes.WithLabelValues("rejected").Inc()
			return domain.BundleOutcome{
				Kind:          domain.OutcomeRejected,
				TxId:          txId,
				Reason:        "confirmation timeout",
				CandidatePool: candidatePool,
			}
		}

		select {
		case <-ctx.Done():
			return domain.BundleOutcome{
				Kind:          domain.OutcomeRejected,
				TxId:          txId,
				Reason:        ctx.Err().Error(),
				CandidatePool: candidatePool,
			}
		case <-ticker.C:
		}
	}
}
