package ledger

import "sync"

// Tracker is the in-process map of keys with an active (non-terminal)
// attempt. It serializes submissions per key and is a cache of durable
// status, not the source of truth: Recover rebuilds it from the store.
type Tracker struct {
	mu     sync.Mutex
	active map[Key]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{active: make(map[Key]struct{})}
}

// Acquire claims the key for a new attempt. Returns false when another
// attempt for the same key is still in flight.
func (t *Tracker) Acquire(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.active[key]; busy {
		return false
	}
	t.active[key] = struct{}{}
	return true
}

// Release frees the key once its attempt reaches a terminal status.
func (t *Tracker) Release(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, key)
}

// Active reports whether the key currently has an in-flight attempt.
func (t *Tracker) Active(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, busy := t.active[key]
	return busy
}

// Len returns the number of in-flight keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
