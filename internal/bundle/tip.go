package bundle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hxuan190/cyclearb/internal/ports"
)

// tipRefreshInterval and tipEMASamples are the spec.md §4.9 defaults: the
// relay's tip floor is sampled every 10s and folded into an exponential
// moving average over the recent window.
const (
	tipRefreshInterval = 10 * time.Second
	tipEMASamples      = 10
)

// TipTracker maintains an exponential moving average of the relay's
// recently observed 50th-percentile tip floor.
type TipTracker struct {
	alpha float64

	mu          sync.Mutex
	ema50       float64
	initialized bool
}

func NewTipTracker() *TipTracker {
	return &TipTracker{alpha: 2.0 / (float64(tipEMASamples) + 1)}
}

// Observe folds one relay sample into the moving average.
func (t *TipTracker) Observe(sample ports.TipFloor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		t.ema50 = float64(sample.P50)
		t.initialized = true
		return
	}
	t.ema50 = t.alpha*float64(sample.P50) + (1-t.alpha)*t.ema50
}

// EMA50 returns the current moving-average 50th-percentile tip in lamports.
func (t *TipTracker) EMA50() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint64(t.ema50)
}

// Run polls the relay's tip floor every tipRefreshInterval until ctx is
// canceled. Intended to run as one of the engine's long-lived tasks.
func (t *TipTracker) Run(ctx context.Context, relay ports.BundleRelay) {
	ticker := time.NewTicker(tipRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := relay.TipFloor(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("bundle: tip floor query failed, keeping previous estimate")
				continue
			}
			t.Observe(sample)
		}
	}
}

// ComputeTip applies spec.md §4.9's dynamic tip formula:
// max(policyTip, ema50*1.05), capped at capRatio of expectedProfit.
func ComputeTip(policyTip, ema50 uint64, expectedProfit int64, capRatio float64) uint64 {
	dynamic := uint64(float64(ema50) * 1.05)
	tip := policyTip
	if dynamic > tip {
		tip = dynamic
	}
	if expectedProfit <= 0 {
		return 0
	}
	cap := uint64(float64(expectedProfit) * capRatio)
	if tip > cap {
		tip = cap
	}
	return tip
}
