package exec

import "sync"

// rootLocks serializes installs per install root within this process. A
// second install into a held root is rejected rather than queued so the
// caller can surface the conflict immediately.
type rootLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newRootLocks() *rootLocks {
	return &rootLocks{held: make(map[string]struct{})}
}

// tryAcquire reports whether the root was free and is now held.
func (l *rootLocks) tryAcquire(root string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[root]; busy {
		return false
	}
	l.held[root] = struct{}{}
	return true
}

func (l *rootLocks) release(root string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, root)
}
