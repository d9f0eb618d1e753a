package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/gagliardetto/solana-go"
)

const ENGINE_CONFIG_KEY = "engine-config"

// ExecutionMode selects the event source and gates real submission
// (spec.md §6).
type ExecutionMode string

const (
	ExecutionSimulation ExecutionMode = "simulation"
	ExecutionDryRun     ExecutionMode = "dry_run"
	ExecutionLiveMicro  ExecutionMode = "live_micro"
	ExecutionLiveProd   ExecutionMode = "live_prod"
)

// EngineConfig holds the cycle-finder, safety, and risk-gate tunables
// enumerated in spec.md §6, loaded from environment variables the same way
// every other *Config in this package does.
type EngineConfig struct {
	ExecutionMode ExecutionMode

	MaxHops                    int
	MaxImpactBps               uint16
	MinProfitThresholdLamports uint64
	MaxTradeSizeLamports       uint64

	AnchorTokens []solana.PublicKey

	CPMMProgramID  solana.PublicKey
	CLMMProgramID  solana.PublicKey
	CurveProgramID solana.PublicKey

	TrialInputAmountLamports uint64

	HydrationConcurrency int
	BlockhashTTLSecs     int
	SafetyCacheTTLSecs   int

	CircuitBreakerLosses       uint32
	CircuitBreakerCooldownSecs int

	MinLiquidityLamports uint64
}

func (c *EngineConfig) Key() string {
	return ENGINE_CONFIG_KEY
}

func (c *EngineConfig) Load() error {
	c.ExecutionMode = ExecutionMode(common.GetEnvOrDefault("EXECUTION_MODE", string(ExecutionDryRun)))

	c.MaxHops = common.GetEnvOrDefaultInt("MAX_HOPS", 5)
	c.MaxImpactBps = uint16(common.GetEnvOrDefaultInt("MAX_IMPACT_BPS", 100))
	c.MinProfitThresholdLamports = uint64(common.GetEnvOrDefaultInt("MIN_PROFIT_THRESHOLD_LAMPORTS", 50_000))
	c.MaxTradeSizeLamports = uint64(common.GetEnvOrDefaultInt("MAX_TRADE_SIZE_LAMPORTS", 1_000_000_000))

	c.HydrationConcurrency = common.GetEnvOrDefaultInt("HYDRATION_CONCURRENCY", 3)
	c.BlockhashTTLSecs = common.GetEnvOrDefaultInt("BLOCKHASH_TTL_SECS", 30)
	c.SafetyCacheTTLSecs = common.GetEnvOrDefaultInt("SAFETY_CACHE_TTL_SECS", 3600)

	c.CircuitBreakerLosses = uint32(common.GetEnvOrDefaultInt("CIRCUIT_BREAKER_LOSSES", 5))
	c.CircuitBreakerCooldownSecs = common.GetEnvOrDefaultInt("CIRCUIT_BREAKER_COOLDOWN_SECS", 86400)

	c.MinLiquidityLamports = uint64(common.GetEnvOrDefaultInt("MIN_LIQUIDITY_LAMPORTS", 10_000_000_000))

	anchors, err := parseAnchorTokens(common.GetEnvOrDefault("ANCHOR_TOKENS", ""))
	if err != nil {
		return fmt.Errorf("parse ANCHOR_TOKENS: %w", err)
	}
	c.AnchorTokens = anchors

	c.TrialInputAmountLamports = uint64(common.GetEnvOrDefaultInt("TRIAL_INPUT_AMOUNT_LAMPORTS", 1_000_000_000))

	cpmm, err := solana.PublicKeyFromBase58(common.GetEnvOrDefault("CPMM_PROGRAM_ID", "CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C"))
	if err != nil {
		return fmt.Errorf("parse CPMM_PROGRAM_ID: %w", err)
	}
	c.CPMMProgramID = cpmm

	clmm, err := solana.PublicKeyFromBase58(common.GetEnvOrDefault("CLMM_PROGRAM_ID", "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"))
	if err != nil {
		return fmt.Errorf("parse CLMM_PROGRAM_ID: %w", err)
	}
	c.CLMMProgramID = clmm

	curve, err := solana.PublicKeyFromBase58(common.GetEnvOrDefault("CURVE_MIGRATION_PROGRAM_ID", "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"))
	if err != nil {
		return fmt.Errorf("parse CURVE_MIGRATION_PROGRAM_ID: %w", err)
	}
	c.CurveProgramID = curve

	return c.Validate()
}

func parseAnchorTokens(raw string) ([]solana.PublicKey, error) {
	var tokens []solana.PublicKey
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(p)
		if err != nil {
			return nil, fmt.Errorf("invalid anchor token %q: %w", p, err)
		}
		tokens = append(tokens, key)
	}
	return tokens, nil
}

func (c *EngineConfig) Validate() error {
	switch c.ExecutionMode {
	case ExecutionSimulation, ExecutionDryRun, ExecutionLiveMicro, ExecutionLiveProd:
	default:
		return fmt.Errorf("invalid execution mode %q", c.ExecutionMode)
	}
	if c.MaxHops <= 0 {
		return errors.New("max hops must be positive")
	}
	if len(c.AnchorTokens) == 0 {
		return errors.New("at least one anchor token is required")
	}
	if c.HydrationConcurrency <= 0 {
		return errors.New("hydration concurrency must be positive")
	}
	return nil
}
