// Package strategy is the orchestration loop (the "process_update" /
// "process_event" path in original_source/strategy/src/lib.rs) that ties the
// pipeline's stages together: it drains eventbus.Bus, applies each snapshot
// to the market graph itself (the worker is the graph's single writer, the
// first action of its loop), runs cyclefinder against the now-updated graph,
// walks each candidate through the safety gate, the risk gate, an optional
// confidence oracle, the bundle assembler and the executor, and feeds the
// terminal outcome back into the risk gate's circuit breaker, the ledger,
// the capital scaler, and the intelligence store.
package strategy

import "sync"

// CapitalTier is a position-size band, supplemented from
// original_source/engine/src/capital_scaler.rs — the distilled spec is
// silent on position sizing beyond the risk gate's hard MaxTradeSizeLamports
// cap, but the original scales capital up and down with observed win rate.
type CapitalTier uint8

const (
	Tier1 CapitalTier = iota
	Tier2
	Tier3
	Tier4
)

func (t CapitalTier) String() string {
	switch t {
	case Tier1:
		return "tier1"
	case Tier2:
		return "tier2"
	case Tier3:
		return "tier3"
	case Tier4:
		return "tier4"
	default:
		return "unknown"
	}
}

// MaxPositionLamports is the tier's position size ceiling, in lamports.
func (t CapitalTier) MaxPositionLamports() uint64 {
	switch t {
	case Tier1:
		return 10_000_000 // 0.01 SOL
	case Tier2:
		return 50_000_000 // 0.05 SOL
	case Tier3:
		return 100_000_000 // 0.1 SOL
	case Tier4:
		return 500_000_000 // 0.5 SOL
	default:
		return 0
	}
}

// DailyProfitTargetLamports is the tier's daily profit target, in lamports.
func (t CapitalTier) DailyProfitTargetLamports() uint64 {
	switch t {
	case Tier1:
		return 5_000_000
	case Tier2:
		return 25_000_000
	case Tier3:
		return 50_000_000
	case Tier4:
		return 250_000_000
	default:
		return 0
	}
}

// promotionThreshold is the (minimum trades, minimum win rate) a tier needs
// to have seen before scaling up to the next one.
type promotionThreshold struct {
	minTrades  uint32
	minWinRate float64
}

var promotionThresholds = map[CapitalTier]promotionThreshold{
	Tier1: {minTrades: 100, minWinRate: 0.70},
	Tier2: {minTrades: 200, minWinRate: 0.70},
	Tier3: {minTrades: 500, minWinRate: 0.75},
}

const demotionWinRate = 0.50

// CapitalScaler tracks a rolling win/loss count and promotes or demotes the
// active CapitalTier as the observed win rate crosses the thresholds above.
// It has no opinion on profit/loss magnitude, only on win/loss counts.
type CapitalScaler struct {
	mu            sync.Mutex
	tier          CapitalTier
	totalTrades   uint32
	winningTrades uint32
}

func NewCapitalScaler() *CapitalScaler {
	return &CapitalScaler{tier: Tier1}
}

// Record registers one landed trade's outcome and re-evaluates the tier.
func (s *CapitalScaler) Record(won bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalTrades++
	if won {
		s.winningTrades++
	}

	winRate := float64(s.winningTrades) / float64(s.totalTrades)

	if next, ok := promotionThresholds[s.tier]; ok &&
		s.totalTrades >= next.minTrades && winRate >= next.minWinRate {
		s.tier++
		return
	}

	if s.tier > Tier1 && winRate < demotionWinRate {
		s.tier--
	}
}

// CurrentTier returns the scaler's active tier.
func (s *CapitalScaler) CurrentTier() CapitalTier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

// CurrentMaxPosition returns the active tier's position size ceiling.
func (s *CapitalScaler) CurrentMaxPosition() uint64 {
	return s.CurrentTier().MaxPositionLamports()
}

// WinRate returns the scaler's lifetime win rate, or 0 if no trades have
// been recorded yet.
func (s *CapitalScaler) WinRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalTrades == 0 {
		return 0
	}
	return float64(s.winningTrades) / float64(s.totalTrades)
}
