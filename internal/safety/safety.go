// Package safety implements the per-candidate token/pool safety gate (C7):
// a whitelist short-circuit, a TTL-bounded verdict cache, a blacklist
// lookup against the intelligence store, and four data-only checks run
// against one batched account read.
package safety

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/cyclearb/internal/common"
	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/ports"
	"github.com/hxuan190/cyclearb/internal/telemetry"
)

// cacheSize and cacheTTL are the spec.md §4.7 defaults: ~64k entries, 1h TTL.
const (
	cacheSize = 64_000
	cacheTTL  = time.Hour
)

// Gate evaluates candidates' non-anchor tokens for safety before the risk
// gate ever sees them.
type Gate struct {
	cache *expirable.LRU[string, domain.SafetyVerdict]
	intel ports.IntelligenceStore
	chain ports.ChainClient

	whitelist            map[domain.TokenId]struct{}
	burnAddress          domain.TokenId
	minLiquidityLamports uint64
}

// New constructs a Gate. whitelist names tokens exempt from all checks
// (stablecoins, wrapped SOL, the router's own anchor tokens).
func New(chain ports.ChainClient, intel ports.IntelligenceStore, whitelist []domain.TokenId, minLiquidityLamports uint64) *Gate {
	wl := make(map[domain.TokenId]struct{}, len(whitelist))
	for _, t := range whitelist {
		wl[t] = struct{}{}
	}
	return &Gate{
		cache:                expirable.NewLRU[string, domain.SafetyVerdict](cacheSize, nil, cacheTTL),
		intel:                intel,
		chain:                chain,
		whitelist:            wl,
		burnAddress:          common.SystemProgramID,
		minLiquidityLamports: minLiquidityLamports,
	}
}

func cacheKey(token, pool domain.TokenId) string {
	return token.String() + ":" + pool.String()
}

// Evaluate returns the safety verdict for one (token, pool) pair touched by
// a candidate. pool carries the venue-specific account layout the batched
// read needs (LPMint/BaseVault/QuoteVault); it may be nil only when token is
// whitelisted.
func (g *Gate) Evaluate(ctx context.Context, token domain.TokenId, pool *domain.PoolSnapshot) (domain.SafetyVerdict, error) {
	if _, ok := g.whitelist[token]; ok {
		return domain.SafetyVerdict{Allowed: true}, nil
	}

	key := cacheKey(token, pool.PoolId)
	if v, ok := g.cache.Get(key); ok {
		telemetry.SafetyCacheHits.Inc()
		return v, nil
	}

	if g.intel != nil {
		blacklisted, err := g.intel.IsBlacklisted(ctx, token)
		if err != nil {
			log.Warn().Err(err).Str("token", token.String()).Msg("safety: blacklist lookup failed, continuing to deep validation")
		} else if blacklisted {
			verdict := domain.SafetyVerdict{Allowed: false, Reason: domain.SafetyReasonBlacklisted}
			g.store(key, verdict)
			g.record(verdict)
			return verdict, nil
		}
	}

	verdict, err := g.runChecks(ctx, token, pool)
	if err != nil {
		return domain.SafetyVerdict{}, err
	}
	g.store(key, verdict)
	g.record(verdict)
	return verdict, nil
}

// store enforces spec.md §4.7's monotonic-expiry rule: a later Allow must
// never overwrite an unexpired Deny already in the cache.
func (g *Gate) store(key string, verdict domain.SafetyVerdict) {
	if existing, ok := g.cache.Get(key); ok && !existing.Allowed && verdict.Allowed {
		return
	}
	g.cache.Add(key, verdict)
}

func (g *Gate) record(v domain.SafetyVerdict) {
	label := "true"
	reason := ""
	if !v.Allowed {
		label = "false"
		reason = string(v.Reason)
	}
	telemetry.SafetyVerdicts.WithLabelValues(label, reason).Inc()
}

// runChecks issues the single batched account read spec.md §4.7 calls for
// and runs the four data-only checks in the original's short-circuit order:
// authority, holder distribution, liquidity depth, LP lock status.
func (g *Gate) runChecks(ctx context.Context, token domain.TokenId, pool *domain.PoolSnapshot) (domain.SafetyVerdict, error) {
	var zero domain.TokenId

	ids := []string{token.String()}
	baseVaultIdx, quoteVaultIdx, lpMintIdx, burnATAIdx := -1, -1, -1, -1

	if pool.BaseVault != zero {
		ids = append(ids, pool.BaseVault.String())
		baseVaultIdx = len(ids) - 1
	}
	if pool.QuoteVault != zero {
		ids = append(ids, pool.QuoteVault.String())
		quoteVaultIdx = len(ids) - 1
	}
	if pool.LPMint != zero {
		ids = append(ids, pool.LPMint.String())
		lpMintIdx = len(ids) - 1

		burnATA, err := deriveATA(g.burnAddress, pool.LPMint)
		if err == nil {
			ids = append(ids, burnATA.String())
			burnATAIdx = len(ids) - 1
		}
	}

	accounts, err := g.chain.GetMultipleAccounts(ctx, ids)
	if err != nil {
		return domain.SafetyVerdict{}, err
	}
	if len(accounts) == 0 || accounts[0] == nil {
		return domain.SafetyVerdict{Allowed: false, Reason: domain.SafetyReasonAuthority}, nil
	}

	mintData := accounts[0]
	if !checkAuthorities(mintData) {
		return domain.SafetyVerdict{Allowed: false, Reason: domain.SafetyReasonAuthority}, nil
	}

	// The ChainClient port has no largest-holder-accounts RPC (spec.md §6),
	// so the top holder's balance is unknowable here; treating it as 0
	// degrades to the original's own "no largest account returned" fallthrough.
	if !checkHolderDistribution(0, mintSupply(mintData)) {
		return domain.SafetyVerdict{Allowed: false, Reason: domain.SafetyReasonHolderConcentration}, nil
	}

	if baseVaultIdx >= 0 || quoteVaultIdx >= 0 {
		var baseBal, quoteBal uint64
		if baseVaultIdx >= 0 && baseVaultIdx < len(accounts) {
			baseBal = tokenAccountAmount(accounts[baseVaultIdx])
		}
		if quoteVaultIdx >= 0 && quoteVaultIdx < len(accounts) {
			quoteBal = tokenAccountAmount(accounts[quoteVaultIdx])
		}
		if !checkLiquidityDepth(baseBal, quoteBal, g.minLiquidityLamports) {
			return domain.SafetyVerdict{Allowed: false, Reason: domain.SafetyReasonLiquidity}, nil
		}
	}

	if lpMintIdx >= 0 && lpMintIdx < len(accounts) {
		lpSupply := mintSupply(accounts[lpMintIdx])
		var burned uint64
		if burnATAIdx >= 0 && burnATAIdx < len(accounts) {
			burned = tokenAccountAmount(accounts[burnATAIdx])
		}
		if !checkLPStatus(lpSupply, burned) {
			return domain.SafetyVerdict{Allowed: false, Reason: domain.SafetyReasonLpUnlocked}, nil
		}
	}

	return domain.SafetyVerdict{Allowed: true}, nil
}
