package swapmath

import (
	"github.com/holiman/uint256"
	"github.com/hxuan190/cyclearb/internal/domain"
)

// q64One is 2^64 as a uint256, the fixed-point scale for sqrt_price_q64.
var q64One = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

// VirtualReserves derives (x, y) from liquidity L and sqrt price P per
// spec.md §4.2:
//
//	x = L * 2^64 / P
//	y = L * P / 2^64
//
// This is documented there as an approximation valid only for small-to-
// medium trade sizes, bounded to at most one tick-array crossing per hop —
// the cycle finder enforces that bound via the depth cap and impact cap,
// not this function. Returns (0, 0) if liquidity or price is zero.
func VirtualReserves(clmm *domain.CLMMState) (x, y uint64) {
	if clmm == nil {
		return 0, 0
	}
	liquidity := u256FromParts(clmm.Liquidity)
	sqrtPrice := u256FromParts(clmm.SqrtPriceQ64)
	if liquidity.IsZero() || sqrtPrice.IsZero() {
		return 0, 0
	}

	xBig := new(uint256.Int).Mul(liquidity, q64One)
	xBig.Div(xBig, sqrtPrice)

	yBig := new(uint256.Int).Mul(liquidity, sqrtPrice)
	yBig.Div(yBig, q64One)

	return clampU64(xBig), clampU64(yBig)
}

// CLMMOut approximates a CLMM swap's output by deriving virtual reserves
// from the pool's current liquidity/price and running them through the
// same CPMM formula as an ordinary constant-product pool (spec.md §4.2).
// `aToB` selects which virtual reserve is "in" vs "out".
func CLMMOut(amountIn uint64, clmm *domain.CLMMState, aToB bool, feeBps uint16) (uint64, error) {
	x, y := VirtualReserves(clmm)
	if x == 0 || y == 0 {
		return 0, nil
	}
	reserveIn, reserveOut := x, y
	if !aToB {
		reserveIn, reserveOut = y, x
	}
	return CPMMOut(amountIn, reserveIn, reserveOut, feeBps)
}

// u256FromParts builds a uint256 from a little-endian [low, high] uint64
// pair, the same layout domain.CLMMState stores sqrt_price/liquidity in.
func u256FromParts(parts [2]uint64) *uint256.Int {
	hi := new(uint256.Int).SetUint64(parts[1])
	hi.Lsh(hi, 64)
	lo := new(uint256.Int).SetUint64(parts[0])
	return hi.Or(hi, lo)
}

func clampU64(v *uint256.Int) uint64 {
	if v.IsUint64() {
		return v.Uint64()
	}
	return ^uint64(0)
}
