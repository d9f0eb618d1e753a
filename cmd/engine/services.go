package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/cyclearb/internal/adapters/chainclient"
	"github.com/hxuan190/cyclearb/internal/adapters/relay"
	"github.com/hxuan190/cyclearb/internal/bundle"
	"github.com/hxuan190/cyclearb/internal/config"
	"github.com/hxuan190/cyclearb/internal/cyclefinder"
	"github.com/hxuan190/cyclearb/internal/discovery"
	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/eventbus"
	"github.com/hxuan190/cyclearb/internal/executor"
	"github.com/hxuan190/cyclearb/internal/graph"
	"github.com/hxuan190/cyclearb/internal/intelstore"
	"github.com/hxuan190/cyclearb/internal/ledger"
	"github.com/hxuan190/cyclearb/internal/risk"
	"github.com/hxuan190/cyclearb/internal/safety"
	"github.com/hxuan190/cyclearb/internal/strategy"
	"github.com/hxuan190/cyclearb/internal/telemetry"

	"github.com/rs/zerolog/log"
)

const (
	liveSubscriptionServiceID = "live-subscription"
	simulationSourceServiceID = "simulation-source"
	executorWorkerServiceID   = "executor-worker"
	strategyWorkerServiceID   = "strategy-worker"
)

// liveSubscriptionService owns the chain client, the market graph and the
// update bus, and drives discovery.Engine's subscription loop — the engine's
// only link to the live chain.
type liveSubscriptionService struct {
	container.BaseDIInstance

	chain  *chainclient.Client
	g      *graph.Graph
	bus    *eventbus.Bus
	engine *discovery.Engine
	cfg    *config.EngineConfig

	cancel context.CancelFunc
}

func (s *liveSubscriptionService) ID() string { return liveSubscriptionServiceID }

func (s *liveSubscriptionService) Configure(c container.IContainer) error {
	rpcCfg := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	s.cfg = c.GetConfig(config.ENGINE_CONFIG_KEY).(*config.EngineConfig)

	s.chain = chainclient.New(chainclient.Config{
		RPCURL: rpcCfg.RPCUrl,
		WSURL:  rpcCfg.WSUrl,
	})
	s.g = graph.New()
	s.bus = eventbus.New(256)
	s.engine = discovery.New(s.chain, s.bus, s.cfg.HydrationConcurrency)
	return nil
}

func (s *liveSubscriptionService) Start() error {
	if s.cfg.ExecutionMode == config.ExecutionSimulation {
		log.Info().Msg("live-subscription: simulation mode, live chain subscription not started")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	programs := discovery.ProgramSet{
		CPMMProgramID:  s.cfg.CPMMProgramID.String(),
		CLMMProgramID:  s.cfg.CLMMProgramID.String(),
		CurveProgramID: s.cfg.CurveProgramID.String(),
	}

	go func() {
		if err := s.engine.Run(ctx, programs); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("live-subscription: discovery engine stopped with error")
		}
	}()
	return nil
}

func (s *liveSubscriptionService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// simulationSourceService feeds synthetic pool-update snapshots onto the
// shared bus in place of a live subscription, for --analyze style
// offline runs (spec.md §6 execution_mode=simulation). It stays registered
// as a long-lived task even outside simulation mode, idle until Start sees
// the configured mode.
type simulationSourceService struct {
	container.BaseDIInstance

	live *liveSubscriptionService
	cfg  *config.EngineConfig

	cancel context.CancelFunc
}

func (s *simulationSourceService) ID() string { return simulationSourceServiceID }

func (s *simulationSourceService) Configure(c container.IContainer) error {
	s.live = c.Instance(liveSubscriptionServiceID).(*liveSubscriptionService)
	s.cfg = c.GetConfig(config.ENGINE_CONFIG_KEY).(*config.EngineConfig)
	return nil
}

func (s *simulationSourceService) Start() error {
	if s.cfg.ExecutionMode != config.ExecutionSimulation {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.replay(ctx)
	return nil
}

// replay feeds a handful of synthetic snapshots through the live
// subscription's bus so the rest of the pipeline can be exercised
// without a chain connection. It is not a backfill or training tool (both
// are out of scope) — purely a manual smoke-test source.
func (s *simulationSourceService) replay(ctx context.Context) {
	anchors := s.cfg.AnchorTokens
	if len(anchors) == 0 {
		return
	}
	anchor := anchors[0]
	mid := solana.NewWallet().PublicKey()

	poolA := solana.NewWallet().PublicKey()
	poolB := solana.NewWallet().PublicKey()

	snapshots := []*domain.PoolSnapshot{
		{PoolId: poolA, Venue: domain.VenueCPMM, TokenA: anchor, TokenB: mid, ReserveA: 1_000_000_000_000, ReserveB: 1_000_000_000_000,
			BaseVault: solana.NewWallet().PublicKey(), QuoteVault: solana.NewWallet().PublicKey(), LastUpdateSeq: 1},
		{PoolId: poolB, Venue: domain.VenueCPMM, TokenA: mid, TokenB: anchor, ReserveA: 1_000_000_000_000, ReserveB: 1_050_000_000_000,
			BaseVault: solana.NewWallet().PublicKey(), QuoteVault: solana.NewWallet().PublicKey(), LastUpdateSeq: 2},
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if i >= len(snapshots) {
				return
			}
			// Published onto the bus, not applied to the graph directly: the
			// strategy worker is the graph's single writer.
			s.live.bus.Publish(snapshots[i])
			i++
		}
	}
}

func (s *simulationSourceService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// executorWorkerService owns bundle assembly, dispatch, and the relay's
// dynamic tip tracking loop — the only place a transaction actually leaves
// the process.
type executorWorkerService struct {
	container.BaseDIInstance

	relay      *relay.Relay
	tipTracker *bundle.TipTracker
	assembler  *bundle.Assembler
	exec       *executor.Executor
	ledger     *ledger.Ledger
	intel      *intelstore.Store

	cancel context.CancelFunc
}

func (s *executorWorkerService) ID() string { return executorWorkerServiceID }

func (s *executorWorkerService) Configure(c container.IContainer) error {
	rpcCfg := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	relayCfg := c.GetConfig(config.RELAY_CONFIG_KEY).(*config.RelayConfig)
	engineCfg := c.GetConfig(config.ENGINE_CONFIG_KEY).(*config.EngineConfig)
	storageCfg := c.GetConfig(config.DATABASE_CONFIG_KEY).(*config.StorageConfig)
	live := c.Instance(liveSubscriptionServiceID).(*liveSubscriptionService)

	signer, err := solana.PrivateKeyFromBase58(rpcCfg.SessionSponsorKey)
	if err != nil {
		return fmt.Errorf("executor-worker: parse session sponsor key: %w", err)
	}

	s.relay = relay.New(relay.Config{
		BundleEndpoint:   relayCfg.BundleEndpoint,
		TipFloorEndpoint: relayCfg.TipFloorEndpoint,
		Signer:           signer,
		Chain:            live.chain,
	})
	s.tipTracker = bundle.NewTipTracker()
	s.assembler = bundle.New(bundle.DefaultConfig(engineCfg.CPMMProgramID, engineCfg.CLMMProgramID), s.tipTracker, relayCfg.TipAccount)

	execMode := executionModeFor(engineCfg.ExecutionMode)
	s.exec = executor.New(executor.DefaultConfig(execMode), s.relay, nil, live.chain)

	led, err := ledger.Open(storageCfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("executor-worker: open ledger: %w", err)
	}
	s.ledger = led

	intel, err := intelstore.Open(context.Background(), storageCfg.PostgresDSN, storageCfg.IntelstorePath)
	if err != nil {
		return fmt.Errorf("executor-worker: open intelligence store: %w", err)
	}
	s.intel = intel

	return nil
}

func executionModeFor(mode config.ExecutionMode) executor.Mode {
	switch mode {
	case config.ExecutionSimulation:
		return executor.ModeSimulation
	case config.ExecutionDryRun:
		return executor.ModeDryRun
	case config.ExecutionLiveMicro:
		return executor.ModeLiveMicro
	case config.ExecutionLiveProd:
		return executor.ModeLiveProd
	default:
		return executor.ModeDryRun
	}
}

func (s *executorWorkerService) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.tipTracker.Run(ctx, s.relay)
	return nil
}

func (s *executorWorkerService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.intel.Close()
	return s.ledger.Close()
}

// strategyWorkerService is the C6-C10 decision loop: it drains the shared
// bus and drives every candidate through safety, risk, the bundle
// assembler and the executor owned by executorWorkerService.
type strategyWorkerService struct {
	container.BaseDIInstance

	worker *strategy.Worker
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *strategyWorkerService) ID() string { return strategyWorkerServiceID }

func (s *strategyWorkerService) Configure(c container.IContainer) error {
	rpcCfg := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	engineCfg := c.GetConfig(config.ENGINE_CONFIG_KEY).(*config.EngineConfig)
	live := c.Instance(liveSubscriptionServiceID).(*liveSubscriptionService)
	exec := c.Instance(executorWorkerServiceID).(*executorWorkerService)

	signer, err := solana.PrivateKeyFromBase58(rpcCfg.SessionSponsorKey)
	if err != nil {
		return fmt.Errorf("strategy-worker: parse session sponsor key: %w", err)
	}

	safetyGate := safety.New(live.chain, exec.intel, engineCfg.AnchorTokens, engineCfg.MinLiquidityLamports)
	riskCfg := risk.DefaultConfig()
	riskCfg.MaxTradeSizeLamports = engineCfg.MaxTradeSizeLamports
	riskCfg.MinProfitThresholdLamports = engineCfg.MinProfitThresholdLamports
	riskCfg.MaxImpactBps = engineCfg.MaxImpactBps
	riskCfg.CircuitBreakerLosses = engineCfg.CircuitBreakerLosses
	riskCfg.CircuitBreakerCooldown = time.Duration(engineCfg.CircuitBreakerCooldownSecs) * time.Second
	riskGate := risk.New(riskCfg)

	finder := cyclefinder.New(cyclefinder.Config{
		AnchorTokens: engineCfg.AnchorTokens,
		MaxHops:      engineCfg.MaxHops,
		MaxImpactBps: engineCfg.MaxImpactBps,
	})

	s.worker = strategy.New(
		strategy.Config{UserWallet: signer.PublicKey(), TrialInputAmount: engineCfg.TrialInputAmountLamports},
		live.bus,
		live.g,
		finder,
		safetyGate,
		riskGate,
		nil, // ports.ConfidenceOracle: out of scope (ONNX oracle), heuristic-only fallback
		exec.assembler,
		exec.exec,
		exec.ledger,
		exec.intel,
		telemetry.NewSink(),
	)
	return nil
}

func (s *strategyWorkerService) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		if err := s.worker.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("strategy-worker: worker loop stopped with error")
		}
	}()
	return nil
}

func (s *strategyWorkerService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	return nil
}
