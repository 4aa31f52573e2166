package dedup

import "sort"

// groupMutex serializes read-modify-write access to dedup groups, keyed by
// group id. DedupGroups are the contested resource in the engine's
// concurrency model: a worker pool may call Dedup for unrelated subject
// records concurrently, but any two of them that touch the same group id
// must not interleave their read-modify-write.
type groupMutex struct {
	locks *SyncMap[string, *mutex]
}

// mutex is a thin wrapper so SyncMap's value type stays comparable-free;
// sync.Mutex itself is fine as a map value, but a pointer lets every
// caller share the same lock instance.
type mutex struct {
	ch chan struct{}
}

func newMutex() *mutex {
	m := &mutex{ch: make(chan struct{}, 1)}
	m.ch <- struct{}{}
	return m
}

func (m *mutex) Lock()   { <-m.ch }
func (m *mutex) Unlock() { m.ch <- struct{}{} }

func newGroupMutex() *groupMutex {
	return &groupMutex{locks: NewSyncMap[string, *mutex]()}
}

func (g *groupMutex) mutexFor(id string) *mutex {
	m, _ := g.locks.LoadOrStore(id, newMutex())
	return m
}

// withLocks acquires the locks for every non-empty, deduplicated id in ids,
// always in sorted order, to avoid deadlocking against a concurrent call
// locking the same pair in the opposite order, then runs fn and releases
// them in reverse.
func (g *groupMutex) withLocks(ids []string, fn func() error) error {
	ordered := uniqueSorted(ids)

	locks := make([]*mutex, 0, len(ordered))
	for _, id := range ordered {
		m := g.mutexFor(id)
		m.Lock()
		locks = append(locks, m)
	}
	defer func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}()

	return fn()
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
