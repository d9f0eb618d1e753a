package codec

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/cyclearb/internal/domain"
)

// cpmmLayoutSize is the exact on-chain account size for a CPMM pool state
// account: 8-byte discriminator, two u64 reserves, u16 fee numerator, u16
// fee denominator, two 32-byte mints, padding to a fixed width.
const cpmmLayoutSize = 8 + 8 + 8 + 2 + 2 + 32 + 32 + 32

const (
	cpmmOffDiscriminator = 0
	cpmmOffReserveA      = 8
	cpmmOffReserveB      = 16
	cpmmOffFeeNumerator  = 24
	cpmmOffFeeDenominator = 26
	cpmmOffMintA         = 28
	cpmmOffMintB         = 60
)

// DecodeCPMM decodes a fixed-layout CPMM pool account. The buffer must be
// exactly cpmmLayoutSize bytes; any other size is rejected outright so a
// caller never silently reads garbage off the end of a truncated account.
func DecodeCPMM(poolId domain.PoolId, data []byte) (*domain.PoolSnapshot, error) {
	if len(data) != cpmmLayoutSize {
		return nil, newLengthMismatch("cpmm: expected exact layout size")
	}

	reserveA := binary.LittleEndian.Uint64(data[cpmmOffReserveA:])
	reserveB := binary.LittleEndian.Uint64(data[cpmmOffReserveB:])
	feeNum := binary.LittleEndian.Uint16(data[cpmmOffFeeNumerator:])
	feeDen := binary.LittleEndian.Uint16(data[cpmmOffFeeDenominator:])
	if feeDen == 0 || feeNum >= feeDen {
		return nil, newFieldRange("cpmm: fee numerator/denominator out of range")
	}

	var mintA, mintB solana.PublicKey
	copy(mintA[:], data[cpmmOffMintA:cpmmOffMintA+32])
	copy(mintB[:], data[cpmmOffMintB:cpmmOffMintB+32])

	tokenA, tokenB, swapped := canonicalOrder(mintA, mintB)
	ra, rb := reserveA, reserveB
	if swapped {
		ra, rb = reserveB, reserveA
	}

	feeBps := uint16((uint32(feeNum) * 10000) / uint32(feeDen))

	return &domain.PoolSnapshot{
		PoolId:   poolId,
		Venue:    domain.VenueCPMM,
		TokenA:   tokenA,
		TokenB:   tokenB,
		ReserveA: ra,
		ReserveB: rb,
		FeeBps:   feeBps,
		CPMM: &domain.CPMMState{
			FeeNumerator:   uint64(feeNum),
			FeeDenominator: uint64(feeDen),
		},
	}, nil
}

// canonicalOrder returns (a, b) in byte-lexicographic order so that edge
// identity (a->b vs b->a) is stable across independent decodes of the same
// pool, per spec.md §4.1's contract.
func canonicalOrder(x, y solana.PublicKey) (a, b solana.PublicKey, swapped bool) {
	if bytesLess(y[:], x[:]) {
		return y, x, true
	}
	return x, y, false
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
