package swapmath

// ImpactBps computes the per-hop price impact in basis points:
//
//	floor(10000 * amountIn / (reserveIn + amountIn))
//
// used both as a gate (spec.md §4.6 step 4) and as a feature (§4.6
// feature vector). reserveIn + amountIn cannot overflow a uint64 in
// practice (both are already bounded by on-chain supply caps well under
// 2^63), but we promote to uint64 math carefully to avoid wraparound on
// pathological input.
func ImpactBps(amountIn, reserveIn uint64) uint16 {
	if reserveIn == 0 {
		return 10000
	}
	denom := reserveIn + amountIn
	if denom < reserveIn {
		// overflow: amountIn is absurdly large relative to reserveIn
		return 10000
	}
	impact := (uint64(bpsDenom) * amountIn) / denom
	if impact > 65535 {
		return 65535
	}
	return uint16(impact)
}
