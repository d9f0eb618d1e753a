package swapmath

import "github.com/hxuan190/cyclearb/internal/domain"

// Less implements the candidate comparator from spec.md §4.2: profit desc,
// then impact asc, then hop count asc, then pool-id byte-lexicographic as a
// deterministic tie-breaker. Returns true if `a` should sort before `b`
// (i.e. `a` is the better candidate).
func Less(a, b *domain.ArbCandidate) bool {
	if a.ExpectedProfit != b.ExpectedProfit {
		return a.ExpectedProfit > b.ExpectedProfit
	}
	if a.MaxImpactBps != b.MaxImpactBps {
		return a.MaxImpactBps < b.MaxImpactBps
	}
	if len(a.Steps) != len(b.Steps) {
		return len(a.Steps) < len(b.Steps)
	}
	return firstPoolLess(a, b)
}

func firstPoolLess(a, b *domain.ArbCandidate) bool {
	if len(a.Steps) == 0 || len(b.Steps) == 0 {
		return false
	}
	pa, pb := a.Steps[0].PoolId, b.Steps[0].PoolId
	for i := range pa {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return false
}

// Best returns the better of two candidates per Less, treating nil as
// strictly worse than any non-nil candidate.
func Best(a, b *domain.ArbCandidate) *domain.ArbCandidate {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if Less(a, b) {
		return a
	}
	return b
}
