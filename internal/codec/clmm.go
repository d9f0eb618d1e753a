package codec

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/cyclearb/internal/domain"
)

// clmmLayoutSize: discriminator, sqrt_price_q64 (u128), liquidity (u128),
// current_tick (i32), fee_tier (u16), two mints.
const clmmLayoutSize = 8 + 16 + 16 + 4 + 2 + 32 + 32

const (
	clmmOffSqrtPrice = 8
	clmmOffLiquidity = 24
	clmmOffTick      = 40
	clmmOffFeeTier   = 44
	clmmOffMintA     = 46
	clmmOffMintB     = 78
)

// DecodeCLMM decodes a fixed-layout concentrated-liquidity pool account.
func DecodeCLMM(poolId domain.PoolId, data []byte) (*domain.PoolSnapshot, error) {
	if len(data) != clmmLayoutSize {
		return nil, newLengthMismatch("clmm: expected exact layout size")
	}

	var sqrtPrice, liquidity [2]uint64
	sqrtPrice[0] = binary.LittleEndian.Uint64(data[clmmOffSqrtPrice:])
	sqrtPrice[1] = binary.LittleEndian.Uint64(data[clmmOffSqrtPrice+8:])
	liquidity[0] = binary.LittleEndian.Uint64(data[clmmOffLiquidity:])
	liquidity[1] = binary.LittleEndian.Uint64(data[clmmOffLiquidity+8:])

	tick := int32(binary.LittleEndian.Uint32(data[clmmOffTick:]))
	feeTier := binary.LittleEndian.Uint16(data[clmmOffFeeTier:])

	if sqrtPrice[0] == 0 && sqrtPrice[1] == 0 {
		return nil, newFieldRange("clmm: zero sqrt price")
	}

	var mintA, mintB solana.PublicKey
	copy(mintA[:], data[clmmOffMintA:clmmOffMintA+32])
	copy(mintB[:], data[clmmOffMintB:clmmOffMintB+32])
	tokenA, tokenB, swapped := canonicalOrder(mintA, mintB)

	clmm := &domain.CLMMState{
		SqrtPriceQ64: sqrtPrice,
		Liquidity:    liquidity,
		CurrentTick:  tick,
		FeeTierBps:   feeTier,
	}

	snap := &domain.PoolSnapshot{
		PoolId: poolId,
		Venue:  domain.VenueCLMM,
		TokenA: tokenA,
		TokenB: tokenB,
		FeeBps: feeTier,
		CLMM:   clmm,
	}
	_ = swapped // canonical order already applied to TokenA/TokenB; virtual
	// reserves are derived later (internal/swapmath) since they depend on
	// which side is "A" after the swap above, not on mint order alone.
	return snap, nil
}
