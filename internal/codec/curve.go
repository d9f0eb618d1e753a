package codec

import (
	"encoding/binary"

	"github.com/hxuan190/cyclearb/internal/domain"
)

// Bonding-curve accounts ship in two historical layouts. Both share a
// common prefix (base reserves, quote reserves, complete flag); the long
// layout appends extra fields the engine does not need. We decode only the
// required prefix in either case.
const (
	curveShortLayoutSize = 8 + 8 + 8 + 1 // discriminator, base, quote, complete
	curveLongLayoutSize  = curveShortLayoutSize + 41 // 41 trailing bytes, not decoded

	curveOffBaseReserve  = 8
	curveOffQuoteReserve = 16
	curveOffComplete     = 24
)

// CurveSnapshot is the decoded prefix of a bonding-curve account. It is not
// a domain.PoolSnapshot because a curve has exactly one quote-side token
// (typically the chain's native asset) and exposes no fee field — the
// caller pairs it with known base/quote mints before building an edge.
type CurveSnapshot struct {
	BaseReserve  uint64
	QuoteReserve uint64
	Complete     bool
}

// DecodeCurve decodes either the short or the long bonding-curve layout.
func DecodeCurve(data []byte) (*CurveSnapshot, error) {
	switch len(data) {
	case curveShortLayoutSize, curveLongLayoutSize:
		// fall through to shared prefix decode
	default:
		return nil, newLengthMismatch("curve: buffer matches neither known layout")
	}

	base := binary.LittleEndian.Uint64(data[curveOffBaseReserve:])
	quote := binary.LittleEndian.Uint64(data[curveOffQuoteReserve:])
	complete := data[curveOffComplete] != 0

	return &CurveSnapshot{
		BaseReserve:  base,
		QuoteReserve: quote,
		Complete:     complete,
	}, nil
}

// ToPoolSnapshot turns a decoded curve into a PoolSnapshot once the caller
// supplies the pool id and the two token mints (base and quote), matching
// the CPMM shape so the curve can be treated as an ordinary edge by the
// market graph once migration completes.
func (c *CurveSnapshot) ToPoolSnapshot(poolId domain.PoolId, baseMint, quoteMint domain.TokenId, feeBps uint16) *domain.PoolSnapshot {
	tokenA, tokenB, swapped := canonicalOrder(baseMint, quoteMint)
	ra, rb := c.BaseReserve, c.QuoteReserve
	if swapped {
		ra, rb = c.QuoteReserve, c.BaseReserve
	}
	return &domain.PoolSnapshot{
		PoolId:   poolId,
		Venue:    domain.VenueCPMM,
		TokenA:   tokenA,
		TokenB:   tokenB,
		ReserveA: ra,
		ReserveB: rb,
		FeeBps:   feeBps,
		CPMM:     &domain.CPMMState{FeeNumerator: uint64(feeBps), FeeDenominator: 10000},
	}
}
