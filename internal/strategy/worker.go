package strategy

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

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

// oracleConfidenceThreshold is spec.md §4.6's default cutoff: candidates
// scoring below this are denied unless the oracle is unavailable, in which
// case the engine falls back to heuristic-only and denies nothing on this
// axis.
const oracleConfidenceThreshold = 0.7

// defaultTrialInputAmount is the probe size cyclefinder searches with on
// every pool update. spec.md is silent on this; original_source's
// ArbitrageStrategy::process_update uses a fixed 1 SOL, so this carries the
// same default.
const defaultTrialInputAmount = 1_000_000_000

// Config holds the worker's wiring and policy knobs.
type Config struct {
	UserWallet       solana.PublicKey
	TrialInputAmount uint64 // defaults to defaultTrialInputAmount if zero

	OracleThreshold float32 // defaults to oracleConfidenceThreshold if zero
}

// Worker is the strategy loop: it drains pool-update events from the bus,
// applies each one to the market graph itself (it is the graph's single
// writer — see Run), and drives every downstream stage for the candidates
// the update produces.
type Worker struct {
	cfg Config

	bus    *eventbus.Bus
	g      *graph.Graph
	finder *cyclefinder.Finder

	safetyGate *safety.Gate
	riskGate   *risk.Gate
	oracle     ports.ConfidenceOracle // nilable: absent means heuristic-only

	assembler *bundle.Assembler
	exec      *executor.Executor

	ledger    *ledger.Ledger
	intel     ports.IntelligenceStore
	telemetry ports.TelemetrySink
	scaler    *CapitalScaler
}

func New(
	cfg Config,
	bus *eventbus.Bus,
	g *graph.Graph,
	finder *cyclefinder.Finder,
	safetyGate *safety.Gate,
	riskGate *risk.Gate,
	oracle ports.ConfidenceOracle,
	assembler *bundle.Assembler,
	exec *executor.Executor,
	led *ledger.Ledger,
	intel ports.IntelligenceStore,
	sink ports.TelemetrySink,
) *Worker {
	if cfg.TrialInputAmount == 0 {
		cfg.TrialInputAmount = defaultTrialInputAmount
	}
	if cfg.OracleThreshold == 0 {
		cfg.OracleThreshold = oracleConfidenceThreshold
	}
	return &Worker{
		cfg:        cfg,
		bus:        bus,
		g:          g,
		finder:     finder,
		safetyGate: safetyGate,
		riskGate:   riskGate,
		oracle:     oracle,
		assembler:  assembler,
		exec:       exec,
		ledger:     led,
		intel:      intel,
		telemetry:  sink,
		scaler:     NewCapitalScaler(),
	}
}

// Scaler exposes the worker's capital scaler for inspection/metrics.
func (w *Worker) Scaler() *CapitalScaler { return w.scaler }

// Run drains the bus until it closes or ctx is cancelled. Cancellation is
// only honored between candidates, never mid-candidate: a bundle already
// dispatched is always carried through to a terminal outcome.
//
// The worker is the graph's single writer: applying the snapshot is always
// the first action taken on it, before any read through the cycle finder,
// so there is never a cross-task lock on the hot path.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		snapshot, ok := w.bus.Next()
		if !ok {
			return nil
		}

		if !w.g.ApplyUpdate(snapshot) {
			continue
		}

		candidates := w.finder.Find(w.g, snapshot.PoolId, w.cfg.TrialInputAmount)
		for _, candidate := range candidates {
			w.telemetry.IncOpportunitiesFound()
			w.processCandidate(ctx, candidate)

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}
}

// processCandidate walks one candidate through safety, risk, the oracle,
// assembly and dispatch, then feeds the terminal outcome back to the risk
// gate, the ledger, the capital scaler and, on a profitable landing, the
// intelligence store.
func (w *Worker) processCandidate(ctx context.Context, candidate *domain.ArbCandidate) {
	if !w.passesSafety(ctx, candidate) {
		return
	}

	estimatedTip := w.assembler.EstimatedTip(candidate.ExpectedProfit)
	if verdict := w.riskGate.Evaluate(candidate, estimatedTip); !verdict.Allowed {
		w.telemetry.IncRiskDenied(verdict.Reason)
		return
	}

	if !w.passesOracle(ctx, candidate) {
		return
	}

	pools := w.poolsForCandidate(candidate)
	if pools == nil {
		return
	}

	b, err := w.assembler.Assemble(candidate, w.cfg.UserWallet, pools)
	if err != nil {
		log.Warn().Err(err).Msg("strategy: bundle assembly failed, candidate dropped")
		return
	}

	w.telemetry.IncBundlesDispatched()
	outcome := w.exec.Dispatch(ctx, b)
	w.recordOutcome(ctx, outcome, candidate)
}

// passesSafety evaluates every distinct non-anchor token the candidate's
// path touches. The anchor token itself is exempt via the safety gate's own
// whitelist (spec.md §4.7).
func (w *Worker) passesSafety(ctx context.Context, candidate *domain.ArbCandidate) bool {
	seen := make(map[domain.TokenId]bool)
	for _, step := range candidate.Steps {
		for _, token := range [2]domain.TokenId{step.InMint, step.OutMint} {
			if token == candidate.AnchorToken || seen[token] {
				continue
			}
			seen[token] = true

			pool, ok := w.g.Pool(step.PoolId)
			if !ok {
				log.Warn().Str("pool", step.PoolId.String()).Msg("strategy: candidate references pool no longer in graph")
				return false
			}
			verdict, err := w.safetyGate.Evaluate(ctx, token, pool)
			if err != nil {
				log.Warn().Err(err).Str("token", token.String()).Msg("strategy: safety evaluation failed, candidate denied")
				return false
			}
			if !verdict.Allowed {
				w.telemetry.IncSafetyDenied(verdict.Reason)
				return false
			}
		}
	}
	return true
}

// passesOracle consults the confidence oracle when one is configured. An
// oracle error or an absent oracle is "no opinion" and never denies a
// candidate (spec.md §6).
func (w *Worker) passesOracle(ctx context.Context, candidate *domain.ArbCandidate) bool {
	if w.oracle == nil {
		return true
	}
	score, err := w.oracle.Score(ctx, candidate.FeatureVector)
	if err != nil {
		log.Warn().Err(err).Msg("strategy: confidence oracle unavailable, falling back to heuristic-only")
		return true
	}
	return score >= w.cfg.OracleThreshold
}

func (w *Worker) poolsForCandidate(candidate *domain.ArbCandidate) map[domain.PoolId]*domain.PoolSnapshot {
	pools := make(map[domain.PoolId]*domain.PoolSnapshot, len(candidate.Steps))
	for _, step := range candidate.Steps {
		pool, ok := w.g.Pool(step.PoolId)
		if !ok {
			log.Warn().Str("pool", step.PoolId.String()).Msg("strategy: pool vanished from graph before assembly")
			return nil
		}
		pools[step.PoolId] = pool
	}
	return pools
}

func (w *Worker) recordOutcome(ctx context.Context, outcome domain.BundleOutcome, candidate *domain.ArbCandidate) {
	w.riskGate.RecordOutcome(outcome, candidate.InputAmount)
	w.scaler.Record(outcome.Kind == domain.OutcomeLanded && outcome.NetProfit > 0)

	if err := w.ledger.Record(outcome); err != nil {
		log.Error().Err(err).Msg("strategy: failed to archive bundle outcome")
	}

	if outcome.Kind == domain.OutcomeLanded {
		w.telemetry.IncBundlesLanded()
		w.telemetry.ObservePnlLamports(outcome.NetProfit)

		if outcome.NetProfit > 0 && w.intel != nil {
			story := ports.SuccessStory{
				PoolId:    outcome.CandidatePool,
				NetProfit: outcome.NetProfit,
				Timestamp: time.Now(),
			}
			if err := w.intel.Save(ctx, story); err != nil {
				log.Warn().Err(err).Msg("strategy: failed to archive success story")
			}
		}
	}
}
