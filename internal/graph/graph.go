// Package graph implements the single-writer, multi-reader market graph
// (component C3): pools keyed by pool id, adjacency keyed by token mint,
// with lock-free reads served from an atomically-swapped snapshot.
package graph

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/telemetry"
)

// maxPoolsPerPair bounds how many pools are kept per token pair in a
// snapshot, sorted by output-side liquidity descending. Cycle finding only
// ever needs the deepest few pools for a pair; keeping all of them just
// grows DFS fan-out for no benefit.
const maxPoolsPerPair = 5

// incrementalThreshold: batches smaller than this patch the existing
// snapshot's maps; larger batches rebuild from scratch. Mirrors the
// teacher's graph.go rebuild-cost tradeoff.
const incrementalThreshold = 50

type adjMap = map[domain.TokenId]map[domain.TokenId][]*domain.PoolSnapshot
type poolsMap = map[domain.PoolId]*domain.PoolSnapshot

type snapshot struct {
	adj   adjMap
	pools poolsMap
}

type pendingDiff struct {
	added   []*domain.PoolSnapshot
	removed []domain.PoolId
	updated []*domain.PoolSnapshot
}

func (d pendingDiff) empty() bool {
	return len(d.added) == 0 && len(d.removed) == 0 && len(d.updated) == 0
}

// Graph is the market graph. All mutation goes through ApplyUpdate/RemovePool
// under a single writer lock; all reads (Neighbors, Pool, Stats) hit an
// atomically-swapped immutable snapshot and take no lock.
type Graph struct {
	mu sync.Mutex

	snap atomic.Value // *snapshot

	adj     adjMap
	pools   poolsMap
	pending pendingDiff

	poolCount      atomic.Int64
	readyPoolCount atomic.Int64
}

// New returns an empty graph, ready to accept updates.
func New() *Graph {
	g := &Graph{adj: make(adjMap), pools: make(poolsMap)}
	g.rebuildLocked()
	return g
}

// ApplyUpdate inserts or replaces a pool's snapshot. Returns false without
// applying the update if it is stale (last_update_seq not newer than what's
// already stored) — the monotonicity invariant from spec.md §4.3.
func (g *Graph) ApplyUpdate(p *domain.PoolSnapshot) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, exists := g.pools[p.PoolId]
	if exists && p.LastUpdateSeq <= existing.LastUpdateSeq {
		telemetry.StaleUpdatesDropped.Inc()
		return false
	}

	g.pools[p.PoolId] = p
	if exists {
		g.updateEdges(existing, p)
		g.pending.updated = append(g.pending.updated, p)
	} else {
		g.addEdges(p)
		g.pending.added = append(g.pending.added, p)
	}
	g.maybeRebuild()
	return true
}

// RemovePool drops a pool entirely, e.g. once a venue confirms account
// closure. Pools that merely drain to zero reserves stay in the graph —
// PoolSnapshot.Ready() already excludes them from Neighbors — so a future
// refill doesn't need to re-register the edge from scratch.
func (g *Graph) RemovePool(id domain.PoolId) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pools[id]
	if !ok {
		return
	}
	delete(g.pools, id)
	g.removeEdge(p.TokenA, p.TokenB, id)
	g.removeEdge(p.TokenB, p.TokenA, id)
	g.pending.removed = append(g.pending.removed, id)
	g.maybeRebuild()
}

func (g *Graph) addEdges(p *domain.PoolSnapshot) {
	if g.adj[p.TokenA] == nil {
		g.adj[p.TokenA] = make(map[domain.TokenId][]*domain.PoolSnapshot)
	}
	g.adj[p.TokenA][p.TokenB] = append(g.adj[p.TokenA][p.TokenB], p)

	if g.adj[p.TokenB] == nil {
		g.adj[p.TokenB] = make(map[domain.TokenId][]*domain.PoolSnapshot)
	}
	g.adj[p.TokenB][p.TokenA] = append(g.adj[p.TokenB][p.TokenA], p)
}

func (g *Graph) updateEdges(old, updated *domain.PoolSnapshot) {
	replace := func(from, to domain.TokenId) {
		neighbors, ok := g.adj[from]
		if !ok {
			return
		}
		pools, ok := neighbors[to]
		if !ok {
			return
		}
		for i, pl := range pools {
			if pl.PoolId == updated.PoolId {
				pools[i] = updated
				return
			}
		}
	}
	replace(old.TokenA, old.TokenB)
	replace(old.TokenB, old.TokenA)
}

func (g *Graph) removeEdge(from, to domain.TokenId, poolID domain.PoolId) {
	neighbors, ok := g.adj[from]
	if !ok {
		return
	}
	pools, ok := neighbors[to]
	if !ok {
		return
	}
	kept := make([]*domain.PoolSnapshot, 0, len(pools))
	for _, pl := range pools {
		if pl.PoolId != poolID {
			kept = append(kept, pl)
		}
	}
	if len(kept) == 0 {
		delete(neighbors, to)
	} else {
		neighbors[to] = kept
	}
	if len(neighbors) == 0 {
		delete(g.adj, from)
	}
}

// maybeRebuild applies the accumulated diff synchronously under the write
// lock: incrementally for small batches, as a full rebuild otherwise. Unlike
// the teacher's ticked background refresher (built for bulk RPC-fed
// ingestion), this graph's update volume is one pool per chain log event, so
// a synchronous rebuild never becomes the bottleneck and readers never
// observe extra staleness from a refresh interval.
func (g *Graph) maybeRebuild() {
	if g.pending.empty() {
		return
	}
	total := len(g.pending.added) + len(g.pending.removed) + len(g.pending.updated)
	if total < incrementalThreshold {
		g.applyIncremental()
	} else {
		g.rebuildLocked()
	}
	g.pending = pendingDiff{}
}

// applyIncremental patches a fresh copy of the current snapshot's maps
// rather than rebuilding the whole thing, for cheap one-pool-at-a-time
// updates under steady event-bus flow.
func (g *Graph) applyIncremental() {
	telemetry.GraphIncrementalUpdates.Inc()

	old := g.getSnapshot()
	if old == nil {
		g.rebuildLocked()
		return
	}

	newPools := make(poolsMap, len(old.pools)+len(g.pending.added))
	for id, p := range old.pools {
		newPools[id] = p
	}
	newAdj := make(adjMap, len(old.adj))
	for mint, neighbors := range old.adj {
		cp := make(map[domain.TokenId][]*domain.PoolSnapshot, len(neighbors))
		for other, pools := range neighbors {
			// Deep-copy the backing array: addEdgeSorted/replaceInAdj mutate a
			// pair's slice in place, and a reader holding the previous
			// snapshot via Neighbors()/PairPools() must never see that
			// mutation land underneath it.
			cp[other] = append([]*domain.PoolSnapshot(nil), pools...)
		}
		newAdj[mint] = cp
	}

	readyCount := g.readyPoolCount.Load()

	for _, id := range g.pending.removed {
		if p, ok := newPools[id]; ok {
			if p.Ready() {
				readyCount--
			}
			delete(newPools, id)
			removeFromAdj(newAdj, p)
		}
	}
	for _, p := range g.pending.updated {
		oldP, ok := newPools[p.PoolId]
		wasReady := ok && oldP.Ready()
		isReady := p.Ready()
		switch {
		case wasReady && !isReady:
			readyCount--
			removeFromAdj(newAdj, oldP)
		case !wasReady && isReady:
			readyCount++
			addToAdjSorted(newAdj, p)
		case isReady:
			replaceInAdj(newAdj, p)
		}
		newPools[p.PoolId] = p
	}
	for _, p := range g.pending.added {
		newPools[p.PoolId] = p
		if p.Ready() {
			readyCount++
			addToAdjSorted(newAdj, p)
		}
	}

	g.snap.Store(&snapshot{adj: newAdj, pools: newPools})
	g.poolCount.Store(int64(len(newPools)))
	g.readyPoolCount.Store(readyCount)
	telemetry.PoolCount.Set(float64(len(newPools)))
	telemetry.ReadyPoolCount.Set(float64(readyCount))
}

func removeFromAdj(adj adjMap, p *domain.PoolSnapshot) {
	dropEdge(adj, p.TokenA, p.TokenB, p.PoolId)
	dropEdge(adj, p.TokenB, p.TokenA, p.PoolId)
}

func dropEdge(adj adjMap, from, to domain.TokenId, poolID domain.PoolId) {
	neighbors, ok := adj[from]
	if !ok {
		return
	}
	pools, ok := neighbors[to]
	if !ok {
		return
	}
	kept := make([]*domain.PoolSnapshot, 0, len(pools))
	for _, pl := range pools {
		if pl.PoolId != poolID {
			kept = append(kept, pl)
		}
	}
	if len(kept) == 0 {
		delete(neighbors, to)
	} else {
		neighbors[to] = kept
	}
}

func addToAdjSorted(adj adjMap, p *domain.PoolSnapshot) {
	addEdgeSorted(adj, p.TokenA, p.TokenB, p)
	addEdgeSorted(adj, p.TokenB, p.TokenA, p)
}

func addEdgeSorted(adj adjMap, from, to domain.TokenId, p *domain.PoolSnapshot) {
	if adj[from] == nil {
		adj[from] = make(map[domain.TokenId][]*domain.PoolSnapshot)
	}
	pools := append(adj[from][to], p)
	sortByOutputLiquidity(pools, from)
	if len(pools) > maxPoolsPerPair {
		pools = pools[:maxPoolsPerPair]
	}
	adj[from][to] = pools
}

func replaceInAdj(adj adjMap, p *domain.PoolSnapshot) {
	replace := func(from, to domain.TokenId) {
		neighbors, ok := adj[from]
		if !ok {
			return
		}
		pools, ok := neighbors[to]
		if !ok {
			return
		}
		for i, pl := range pools {
			if pl.PoolId == p.PoolId {
				pools[i] = p
				sortByOutputLiquidity(pools, from)
				return
			}
		}
	}
	replace(p.TokenA, p.TokenB)
	replace(p.TokenB, p.TokenA)
}

func sortByOutputLiquidity(pools []*domain.PoolSnapshot, inputMint domain.TokenId) {
	if len(pools) <= 1 {
		return
	}
	sort.Slice(pools, func(i, j int) bool {
		_, outI := pools[i].Reserves(inputMint)
		_, outJ := pools[j].Reserves(inputMint)
		return outI > outJ
	})
}

// rebuildLocked rebuilds adjacency from scratch, filtering to ready pools
// and capping fan-out per pair. Must be called with mu held.
func (g *Graph) rebuildLocked() {
	telemetry.GraphSnapshotRebuilds.Inc()

	newPools := make(poolsMap, len(g.pools))
	readyCount := int64(0)
	for id, p := range g.pools {
		newPools[id] = p
		if p.Ready() {
			readyCount++
		}
	}

	newAdj := make(adjMap, len(g.adj))
	for mintA, neighbors := range g.adj {
		newNeighbors := make(map[domain.TokenId][]*domain.PoolSnapshot, len(neighbors))
		for mintB, pools := range neighbors {
			ready := make([]*domain.PoolSnapshot, 0, len(pools))
			for _, p := range pools {
				if p.Ready() {
					ready = append(ready, p)
				}
			}
			if len(ready) == 0 {
				continue
			}
			sortByOutputLiquidity(ready, mintA)
			if len(ready) > maxPoolsPerPair {
				ready = ready[:maxPoolsPerPair]
			}
			newNeighbors[mintB] = ready
		}
		if len(newNeighbors) > 0 {
			newAdj[mintA] = newNeighbors
		}
	}

	g.snap.Store(&snapshot{adj: newAdj, pools: newPools})
	g.poolCount.Store(int64(len(newPools)))
	g.readyPoolCount.Store(readyCount)
	telemetry.PoolCount.Set(float64(len(newPools)))
	telemetry.ReadyPoolCount.Set(float64(readyCount))
}

func (g *Graph) getSnapshot() *snapshot {
	v := g.snap.Load()
	if v == nil {
		return nil
	}
	return v.(*snapshot)
}

// Pool returns a pool by id from the current read snapshot (lock-free).
func (g *Graph) Pool(id domain.PoolId) (*domain.PoolSnapshot, bool) {
	snap := g.getSnapshot()
	p, ok := snap.pools[id]
	return p, ok
}

// Neighbors returns the ready pools directly connecting `mint` to `other`,
// already sorted by output liquidity descending (lock-free).
func (g *Graph) Neighbors(mint domain.TokenId) map[domain.TokenId][]*domain.PoolSnapshot {
	snap := g.getSnapshot()
	return snap.adj[mint]
}

// PairPools returns the ready pools connecting mintA and mintB directly.
func (g *Graph) PairPools(mintA, mintB domain.TokenId) []*domain.PoolSnapshot {
	snap := g.getSnapshot()
	if neighbors, ok := snap.adj[mintA]; ok {
		return neighbors[mintB]
	}
	return nil
}

// Stats is a point-in-time summary of graph size, used by the debug HTTP
// surface's /graph/stats endpoint.
type Stats struct {
	PoolCount      int
	ReadyPoolCount int
}

func (g *Graph) Stats() Stats {
	return Stats{
		PoolCount:      int(g.poolCount.Load()),
		ReadyPoolCount: int(g.readyPoolCount.Load()),
	}
}
