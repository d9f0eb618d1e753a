// Package eventbus merges live and simulated pool-update sources into a
// single bounded stream for the strategy worker (component C5). It never
// blocks a producer: updates coalesce by pool id, keeping only the newest
// last_update_seq for a pool, and once the configured capacity of distinct
// pending pools is reached an update for a pool not already pending is
// dropped (spec.md §4.5).
package eventbus

import (
	"sync"

	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/telemetry"
)

// DefaultCapacity is the bounded channel size from spec.md §4.5.
const DefaultCapacity = 8192

// Bus merges PoolSnapshot updates from any number of producers into one
// bounded, coalescing stream for a single consumer (the strategy worker).
type Bus struct {
	capacity int

	mu      sync.Mutex
	pending map[domain.PoolId]*domain.PoolSnapshot // coalesce buffer, keyed by pool
	order   []domain.PoolId                        // FIFO order of distinct pending pools
	notify  chan struct{}
	closed  bool
}

// New returns a Bus with the given capacity. Pass 0 for DefaultCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity: capacity,
		pending:  make(map[domain.PoolId]*domain.PoolSnapshot, capacity),
		notify:   make(chan struct{}, 1),
	}
}

// Publish enqueues an update. If the pool already has a pending update, the
// newer one (by last_update_seq) wins and no new slot is consumed — this is
// the coalescing behavior that keeps the bus bounded under sustained
// same-pool churn (spec.md §4.5, and the "Coalescing" scenario in §8).
func (b *Bus) Publish(p *domain.PoolSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	if existing, ok := b.pending[p.PoolId]; ok {
		if p.LastUpdateSeq > existing.LastUpdateSeq {
			b.pending[p.PoolId] = p
			telemetry.EventBusCoalesced.Inc()
		}
		b.signal()
		return
	}

	if len(b.pending) >= b.capacity {
		// Bus is saturated and this is a brand new pool: drop it rather than
		// block the producer. The "newest per pool" guarantee only applies
		// to pools already resident in the buffer.
		telemetry.EventBusDropped.Inc()
		return
	}

	b.pending[p.PoolId] = p
	b.order = append(b.order, p.PoolId)
	telemetry.EventBusDepth.Set(float64(len(b.pending)))
	b.signal()
}

func (b *Bus) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Next blocks until at least one update is pending, then
// drains the oldest-enqueued distinct pool. Returns ok=false only when the
// bus is closed and drained.
func (b *Bus) Next() (*domain.PoolSnapshot, bool) {
	for {
		b.mu.Lock()
		if len(b.order) > 0 {
			id := b.order[0]
			b.order = b.order[1:]
			p, ok := b.pending[id]
			if ok {
				delete(b.pending, id)
			}
			telemetry.EventBusDepth.Set(float64(len(b.pending)))
			b.mu.Unlock()
			if ok {
				return p, true
			}
			continue
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return nil, false
		}
		<-b.notify
	}
}

// Close marks the bus closed; pending updates already buffered still drain
// via Next, but Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

// Depth returns the current number of distinct pending pool updates.
func (b *Bus) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
