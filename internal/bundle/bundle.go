// Package bundle assembles a fully-signed-ready group of instructions for
// one arbitrage candidate (C9): one venue-specific swap instruction per hop,
// a compute-budget pair, and a tip transfer, built atomically — either every
// instruction is produced or Assemble returns an error and no partial
// *domain.Bundle* escapes the package.
package bundle

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/cyclearb/internal/common"
	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/telemetry"
)

// authoritySeed matches real Raydium's design: one global, pool-agnostic
// authority PDA per program rather than one per pool.
const authoritySeed = "amm authority"

// Config names the on-chain programs and policy knobs the assembler needs.
// Defaults mirror spec.md §4.9.
type Config struct {
	CPMMProgramID solana.PublicKey
	CLMMProgramID solana.PublicKey

	PolicyTipLamports  uint64
	TipCapRatio        float64 // fraction of expected profit the tip may consume
	ComputeUnitsPerHop map[domain.VenueKind]uint32
}

func DefaultConfig(cpmmProgramID, clmmProgramID solana.PublicKey) Config {
	return Config{
		CPMMProgramID:     cpmmProgramID,
		CLMMProgramID:     clmmProgramID,
		PolicyTipLamports: 5000,
		TipCapRatio:       0.5,
		ComputeUnitsPerHop: map[domain.VenueKind]uint32{
			domain.VenueCPMM: 40_000,
			domain.VenueCLMM: 60_000,
		},
	}
}

// Assembler turns candidates into dispatch-ready bundles.
type Assembler struct {
	cfg        Config
	tipTracker *TipTracker
	tipAccount solana.PublicKey
}

func New(cfg Config, tipTracker *TipTracker, tipAccount solana.PublicKey) *Assembler {
	return &Assembler{cfg: cfg, tipTracker: tipTracker, tipAccount: tipAccount}
}

// Assemble builds the full instruction set for one candidate. pools must
// contain every PoolId referenced by candidate.Steps.
func (a *Assembler) Assemble(candidate *domain.ArbCandidate, userWallet solana.PublicKey, pools map[domain.PoolId]*domain.PoolSnapshot) (*domain.Bundle, error) {
	if len(candidate.Steps) == 0 {
		return nil, fmt.Errorf("bundle: candidate has no steps")
	}

	instructions := make([]solana.Instruction, 0, len(candidate.Steps)+3)

	var totalComputeUnits uint32
	for _, step := range candidate.Steps {
		pool, ok := pools[step.PoolId]
		if !ok {
			return nil, fmt.Errorf("bundle: missing pool snapshot for %s", step.PoolId)
		}
		ix, units, err := a.buildSwapInstruction(step, pool, userWallet)
		if err != nil {
			return nil, fmt.Errorf("bundle: hop %s: %w", step.PoolId, err)
		}
		instructions = append(instructions, ix)
		totalComputeUnits += units
	}

	tip := ComputeTip(a.cfg.PolicyTipLamports, a.tipTracker.EMA50(), candidate.ExpectedProfit, a.cfg.TipCapRatio)

	budgetLimitIx := &setComputeUnitLimitInstruction{Units: totalComputeUnits}
	budgetPriceIx := &setComputeUnitPriceInstruction{MicroLamports: computeUnitPrice(tip, totalComputeUnits)}
	tipIx := &tipTransferInstruction{From: userWallet, To: a.tipAccount, Lamports: tip}

	full := make([]solana.Instruction, 0, len(instructions)+3)
	full = append(full, budgetLimitIx, budgetPriceIx)
	full = append(full, instructions...)
	full = append(full, tipIx)

	telemetry.BundlesAssembled.Inc()
	telemetry.BundleTipLamports.Observe(float64(tip))

	return &domain.Bundle{
		Instructions:     full,
		ComputeUnitLimit: totalComputeUnits,
		ComputeUnitPrice: budgetPriceIx.MicroLamports,
		TipLamports:      tip,
		Candidate:        candidate,
	}, nil
}

// EstimatedTip previews the dynamic tip Assemble would attach to a bundle
// for the given expected profit, using the assembler's live tip tracker.
// The risk gate evaluates a candidate's profitability net of this estimate
// before a bundle is ever built (spec.md §4.8 rule 2).
func (a *Assembler) EstimatedTip(expectedProfit int64) uint64 {
	return ComputeTip(a.cfg.PolicyTipLamports, a.tipTracker.EMA50(), expectedProfit, a.cfg.TipCapRatio)
}

// computeUnitPrice converts a lamport tip into a compute-unit price by
// spreading it evenly over the bundle's compute budget, in micro-lamports
// per compute unit.
func computeUnitPrice(tipLamports uint64, computeUnits uint32) uint64 {
	if computeUnits == 0 {
		return 0
	}
	return (tipLamports * 1_000_000) / uint64(computeUnits)
}

func (a *Assembler) buildSwapInstruction(step domain.SwapStep, pool *domain.PoolSnapshot, userWallet solana.PublicKey) (solana.Instruction, uint32, error) {
	sourceATA, err := common.DeriveATA(userWallet, step.InMint)
	if err != nil {
		return nil, 0, fmt.Errorf("derive source ATA: %w", err)
	}
	destATA, err := common.DeriveATA(userWallet, step.OutMint)
	if err != nil {
		return nil, 0, fmt.Errorf("derive dest ATA: %w", err)
	}

	switch step.Venue {
	case domain.VenueCPMM:
		authority, _, err := solana.FindProgramAddress([][]byte{[]byte(authoritySeed)}, a.cfg.CPMMProgramID)
		if err != nil {
			return nil, 0, fmt.Errorf("derive cpmm authority: %w", err)
		}
		openOrders, _, err := solana.FindProgramAddress([][]byte{[]byte("open_orders"), pool.PoolId[:]}, a.cfg.CPMMProgramID)
		if err != nil {
			return nil, 0, fmt.Errorf("derive open orders: %w", err)
		}
		ix := &cpmmSwapInstruction{
			accounts: cpmmAccounts{
				ProgramID:     a.cfg.CPMMProgramID,
				PoolState:     pool.PoolId,
				Authority:     authority,
				OpenOrders:    openOrders,
				BaseVault:     pool.BaseVault,
				QuoteVault:    pool.QuoteVault,
				UserSourceATA: sourceATA,
				UserDestATA:   destATA,
				UserOwner:     userWallet,
				TokenProgram:  common.TokenProgramID,
			},
			amountIn:     step.AmountIn,
			minAmountOut: step.MinAmountOut,
		}
		return ix, a.cfg.ComputeUnitsPerHop[domain.VenueCPMM], nil

	case domain.VenueCLMM:
		if pool.CLMM == nil {
			return nil, 0, fmt.Errorf("pool %s has no CLMM state", pool.PoolId)
		}
		authority, _, err := solana.FindProgramAddress([][]byte{[]byte(authoritySeed)}, a.cfg.CLMMProgramID)
		if err != nil {
			return nil, 0, fmt.Errorf("derive clmm authority: %w", err)
		}
		tickArray, err := deriveTickArrayPDA(a.cfg.CLMMProgramID, pool.PoolId, pool.CLMM.CurrentTick)
		if err != nil {
			return nil, 0, fmt.Errorf("derive tick array: %w", err)
		}
		ix := &clmmSwapInstruction{
			accounts: clmmAccounts{
				ProgramID:     a.cfg.CLMMProgramID,
				PoolState:     pool.PoolId,
				Authority:     authority,
				BaseVault:     pool.BaseVault,
				QuoteVault:    pool.QuoteVault,
				TickArray:     tickArray,
				UserSourceATA: sourceATA,
				UserDestATA:   destATA,
				UserOwner:     userWallet,
				TokenProgram:  common.TokenProgramID,
			},
			amountIn:     step.AmountIn,
			minAmountOut: step.MinAmountOut,
		}
		return ix, a.cfg.ComputeUnitsPerHop[domain.VenueCLMM], nil

	default:
		return nil, 0, fmt.Errorf("unknown venue %s", step.Venue)
	}
}
