package safety

import "encoding/binary"

// Byte offsets into an SPL Token mint account (82 bytes total):
// mint_authority COption<Pubkey> (4-byte tag + 32-byte key), supply u64,
// decimals u8, is_initialized bool, freeze_authority COption<Pubkey>.
const (
	mintAuthorityTagOffset   = 0
	freezeAuthorityTagOffset = 46
	mintAccountMinLen        = 46 + 36

	// tokenAccountAmountOffset is the u64 amount field in an SPL Token
	// account (32-byte mint + 32-byte owner precede it).
	tokenAccountAmountOffset = 64
	tokenAccountMinLen       = tokenAccountAmountOffset + 8
)

// checkAuthorities reports whether an SPL mint's authority and freeze
// authority are both renounced (COption tag == 0, i.e. None). Grounded on
// original_source's checks::authorities::check_authorities_from_data.
func checkAuthorities(mintData []byte) bool {
	if len(mintData) < mintAccountMinLen {
		return false
	}
	if binary.LittleEndian.Uint32(mintData[mintAuthorityTagOffset:]) != 0 {
		return false
	}
	if binary.LittleEndian.Uint32(mintData[freezeAuthorityTagOffset:]) != 0 {
		return false
	}
	return true
}

// checkLiquidityDepth reports whether either vault holds at least
// minLiquidity. Grounded on checks::liquidity_depth::check_liquidity_from_data.
func checkLiquidityDepth(baseVaultBalance, quoteVaultBalance, minLiquidity uint64) bool {
	return baseVaultBalance >= minLiquidity || quoteVaultBalance >= minLiquidity
}

// lpBurnThresholdPct is the minimum fraction of LP supply that must sit at a
// canonical burn address for the pool to be considered locked.
const lpBurnThresholdPct = 0.90

// checkLPStatus reports whether at least lpBurnThresholdPct of the LP supply
// is burned. A zero lpSupply means the venue has no burnable LP token (e.g.
// a CLMM pool) and is treated as safe, matching the original's Whirlpool
// carve-out. Grounded on checks::lp_status::check_lp_status_from_data.
func checkLPStatus(lpSupply, burnedBalance uint64) bool {
	if lpSupply == 0 {
		return true
	}
	return float64(burnedBalance)/float64(lpSupply) > lpBurnThresholdPct
}

// holderConcentrationCap is the maximum share of supply the single largest
// holder may control.
const holderConcentrationCap = 0.85

// checkHolderDistribution reports whether the top holder's share of supply
// stays under holderConcentrationCap. Grounded on
// checks::check_holder_distribution.
func checkHolderDistribution(topHolderBalance, supply uint64) bool {
	if supply == 0 {
		return true
	}
	return float64(topHolderBalance)/float64(supply) <= holderConcentrationCap
}

// tokenAccountAmount decodes the amount field of an SPL Token account.
func tokenAccountAmount(data []byte) uint64 {
	if len(data) < tokenAccountMinLen {
		return 0
	}
	return binary.LittleEndian.Uint64(data[tokenAccountAmountOffset:])
}

// mintSupply decodes the supply field of an SPL Token mint account.
func mintSupply(data []byte) uint64 {
	const supplyOffset = 36
	if len(data) < supplyOffset+8 {
		return 0
	}
	return binary.LittleEndian.Uint64(data[supplyOffset:])
}
