// Package cyclefinder implements the depth-bounded DFS cycle search over the
// market graph (component C6): starting from each configured anchor token,
// it searches for closing cycles that touch the pool that triggered this
// evaluation, pruning on per-hop impact and on close-time profit ratio.
package cyclefinder

import (
	"math"

	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/graph"
	"github.com/hxuan190/cyclearb/internal/swapmath"
)

// Config holds the tunables from spec.md §6/§4.6.
type Config struct {
	AnchorTokens   []domain.TokenId
	MaxHops        int     // default 5
	MaxImpactBps   uint16  // default 100 (1%)
	MinProfitRatio float64 // default 0: amount_out must exceed amount_in * (1 + ratio)
}

// DefaultConfig returns the spec.md §6 defaults with the given anchors.
func DefaultConfig(anchors []domain.TokenId) Config {
	return Config{
		AnchorTokens: anchors,
		MaxHops:      5,
		MaxImpactBps: 100,
	}
}

// Finder runs the DFS search described in spec.md §4.6.
type Finder struct {
	cfg Config
}

func New(cfg Config) *Finder {
	return &Finder{cfg: cfg}
}

// Find searches from every configured anchor for the best candidate that
// both closes back to its anchor and touches updatedPool, given an input
// amount denominated in the anchor token. It returns at most one candidate
// per anchor (spec.md §4.6 step 6).
func (f *Finder) Find(g *graph.Graph, updatedPool domain.PoolId, inputAmount uint64) []*domain.ArbCandidate {
	var out []*domain.ArbCandidate
	for _, anchor := range f.cfg.AnchorTokens {
		s := &search{
			cfg:         f.cfg,
			graph:       g,
			anchor:      anchor,
			updatedPool: updatedPool,
			inputAmount: inputAmount,
		}
		if best := s.run(); best != nil {
			out = append(out, best)
		}
	}
	return out
}

type search struct {
	cfg         Config
	graph       *graph.Graph
	anchor      domain.TokenId
	updatedPool domain.PoolId
	inputAmount uint64

	best *domain.ArbCandidate
}

func (s *search) run() *domain.ArbCandidate {
	s.dfs(s.anchor, s.inputAmount, nil, false, 0, ^uint64(0), 0)
	return s.best
}

// dfs extends the path from `current` holding `amountIn` units of `current`.
// steps, touchedUpdated, maxImpactBps, minEdgeLiquidity and totalFeeBps
// describe the path taken so far.
func (s *search) dfs(current domain.TokenId, amountIn uint64, steps []domain.SwapStep, touchedUpdated bool, maxImpactBps uint16, minEdgeLiquidity uint64, totalFeeBps uint64) {
	if len(steps) >= s.cfg.MaxHops {
		return
	}

	for other, pools := range s.graph.Neighbors(current) {
		for _, pool := range pools {
			if usesPool(steps, pool.PoolId) {
				continue
			}

			reserveIn, _ := pool.Reserves(current)
			impact := swapmath.ImpactBps(amountIn, reserveIn)
			if impact > s.cfg.MaxImpactBps {
				continue // prune: single-hop impact cap (spec.md §4.6 step 4)
			}

			amountOut, err := swapOut(pool, current, amountIn)
			if err != nil || amountOut == 0 {
				continue
			}

			step := domain.SwapStep{
				PoolId:       pool.PoolId,
				Venue:        pool.Venue,
				InMint:       current,
				OutMint:      other,
				AmountIn:     amountIn,
				MinAmountOut: amountOut,
			}
			newSteps := append(append([]domain.SwapStep(nil), steps...), step)
			newTouched := touchedUpdated || pool.PoolId == s.updatedPool
			newMaxImpact := maxImpactBps
			if impact > newMaxImpact {
				newMaxImpact = impact
			}
			newMinLiquidity := minEdge(minEdgeLiquidity, reserveIn)
			newTotalFee := totalFeeBps + uint64(pool.FeeBps)

			if other == s.anchor && len(newSteps) >= 2 && newTouched {
				s.considerClose(newSteps, amountOut, newMaxImpact, newMinLiquidity, newTotalFee)
			} else {
				s.dfs(other, amountOut, newSteps, newTouched, newMaxImpact, newMinLiquidity, newTotalFee)
			}
		}
	}
}

// considerClose evaluates a completed cycle against the profit-ratio prune
// (spec.md §4.6 step 5) and, if it survives, folds it into the running best
// candidate for this anchor via the §4.2 comparator.
func (s *search) considerClose(steps []domain.SwapStep, amountOut uint64, maxImpactBps uint16, minEdgeLiquidity uint64, totalFeeBps uint64) {
	threshold := float64(s.inputAmount) * (1 + s.cfg.MinProfitRatio)
	if float64(amountOut) <= threshold {
		return
	}

	candidate := &domain.ArbCandidate{
		Steps:            steps,
		ExpectedOut:      amountOut,
		InputAmount:      s.inputAmount,
		ExpectedProfit:   int64(amountOut) - int64(s.inputAmount),
		MaxImpactBps:     maxImpactBps,
		MinEdgeLiquidity: minEdgeLiquidity,
		TotalFeeBps:      totalFeeBps,
		AnchorToken:      s.anchor,
		TriggeringPool:   s.updatedPool,
	}
	candidate.FeatureVector = featureVector(candidate)
	s.best = swapmath.Best(s.best, candidate)
}

func featureVector(c *domain.ArbCandidate) [5]float32 {
	ratio := float32(0)
	if c.InputAmount > 0 {
		ratio = float32(c.ExpectedProfit) / float32(c.InputAmount)
	}
	return [5]float32{
		float32(len(c.Steps)),
		float32(c.TotalFeeBps),
		float32(c.MaxImpactBps),
		float32(math.Log1p(float64(c.MinEdgeLiquidity))),
		ratio,
	}
}

func usesPool(steps []domain.SwapStep, id domain.PoolId) bool {
	for _, s := range steps {
		if s.PoolId == id {
			return true
		}
	}
	return false
}

func minEdge(a, b uint64) uint64 {
	if b < a {
		return b
	}
	return a
}

func swapOut(pool *domain.PoolSnapshot, from domain.TokenId, amountIn uint64) (uint64, error) {
	reserveIn, reserveOut := pool.Reserves(from)
	switch pool.Venue {
	case domain.VenueCLMM:
		aToB := pool.TokenA == from
		return swapmath.CLMMOut(amountIn, pool.CLMM, aToB, pool.FeeBps)
	default:
		return swapmath.CPMMOut(amountIn, reserveIn, reserveOut, pool.FeeBps)
	}
}
