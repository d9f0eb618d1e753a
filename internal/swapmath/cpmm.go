// Package swapmath implements the exact CPMM output formula, the CLMM
// virtual-reserve approximation, price-impact calculation, and the
// candidate comparator from spec.md §4.2. All math is pure: no I/O, no
// logging, no pool state beyond the scalars passed in.
package swapmath

import (
	"math/big"

	"github.com/hxuan190/cyclearb/internal/codec"
)

// bps denominator for fee math.
const bpsDenom = 10000

// CPMMOut computes the exact integer output of a constant-product swap:
//
//	out = (amountIn * (10000 - feeBps) * reserveOut) /
//	      (reserveIn * 10000 + amountIn * (10000 - feeBps))
//
// All intermediates use unsigned 128-bit arithmetic via math/big so that
// amountIn/reserveIn/reserveOut up to 2^64-1 never overflow. Returns
// codec.ErrUnrepresentable only if the computed output cannot be
// represented in a uint64 — which, given reserveOut is itself a uint64,
// can only happen from a programmer error upstream.
func CPMMOut(amountIn, reserveIn, reserveOut uint64, feeBps uint16) (uint64, error) {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0, nil
	}
	if feeBps >= bpsDenom {
		return 0, nil
	}

	feeMultiplier := big.NewInt(int64(bpsDenom - feeBps))
	amountInBig := new(big.Int).SetUint64(amountIn)
	reserveInBig := new(big.Int).SetUint64(reserveIn)
	reserveOutBig := new(big.Int).SetUint64(reserveOut)

	amountInWithFee := new(big.Int).Mul(amountInBig, feeMultiplier)

	numerator := new(big.Int).Mul(amountInWithFee, reserveOutBig)

	denominator := new(big.Int).Mul(reserveInBig, big.NewInt(bpsDenom))
	denominator.Add(denominator, amountInWithFee)

	if denominator.Sign() == 0 {
		return 0, nil
	}

	out := new(big.Int).Quo(numerator, denominator)
	if !out.IsUint64() {
		return 0, codec.ErrUnrepresentable
	}
	result := out.Uint64()
	if result >= reserveOut {
		// Invariant: cpmm_out <= reserve_out - 1 (spec.md §8). Clamp rather
		// than surface an impossible quote; this only trips on pathological
		// fee configurations (fee_bps == 0 and reserve_in == 0 already
		// short-circuits above, so in practice this is unreachable).
		result = reserveOut - 1
	}
	return result, nil
}
