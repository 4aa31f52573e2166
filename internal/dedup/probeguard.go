package dedup

import (
	"container/list"
	"sync"
)

const (
	// defaultProbeLimit is the number of candidates a fresh (index, key)
	// probe processes before the budget guard trips it.
	defaultProbeLimit = 1000
	// trippedProbeLimit is the reduced limit applied the next time a
	// probe that already tripped once is encountered.
	trippedProbeLimit = 100
	// probeGuardCapacity bounds the too-many-candidates registry; the
	// oldest tripped probe is evicted once it's exceeded.
	probeGuardCapacity = 2000
)

type probeKey struct {
	index string
	key   string
}

// ProbeGuard is the bounded LRU-like registry of (index, key) probes that
// have previously tripped the too-many-candidates budget. It is owned by
// the engine rather than held in a package-level variable, and its
// mutation is serialized by mu — the generator calls it concurrently from
// every worker.
type ProbeGuard struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[probeKey]*list.Element
}

// NewProbeGuard creates a ProbeGuard with the given capacity.
func NewProbeGuard(capacity int) *ProbeGuard {
	return &ProbeGuard{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[probeKey]*list.Element),
	}
}

// Limit returns the candidate budget for this probe: the default limit if
// it has never tripped, or the reduced limit if it has.
func (g *ProbeGuard) Limit(index, key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, tripped := g.entries[probeKey{index, key}]; tripped {
		return trippedProbeLimit
	}
	return defaultProbeLimit
}

// Trip records that this probe exceeded its budget. A probe that trips
// again moves to the newest position; if the registry is over capacity,
// the least recently tripped probe is evicted.
func (g *ProbeGuard) Trip(index, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pk := probeKey{index, key}
	if el, ok := g.entries[pk]; ok {
		g.order.MoveToBack(el)
		return
	}

	el := g.order.PushBack(pk)
	g.entries[pk] = el

	if g.order.Len() > g.capacity {
		oldest := g.order.Front()
		if oldest != nil {
			g.order.Remove(oldest)
			delete(g.entries, oldest.Value.(probeKey))
		}
	}
}
