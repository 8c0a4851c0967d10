package bundle

import "sync"

// buildLocks serializes archive builds per bundle so two concurrent
// requests observing a stale archive cannot both rebuild it. The second
// request acquires the lock after the first finishes, sees a fresh archive,
// and takes the fast path.
//
// Entries are never removed; the map is bounded by the number of bundles
// built during the process lifetime.
type buildLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newBuildLocks() *buildLocks {
	return &buildLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the given bundle ID and returns its unlock
// function.
func (b *buildLocks) acquire(bundleID string) func() {
	b.mu.Lock()
	l, ok := b.locks[bundleID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[bundleID] = l
	}
	b.mu.Unlock()

	l.Lock()
	return l.Unlock
}
