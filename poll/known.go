package poll

import "sync"

// KnownSet is the set of advertisement IDs the notifier has already seen.
// It only grows.
type KnownSet struct {
	ids map[string]struct{}
	mu  sync.RWMutex
}

// NewKnownSet creates an empty set.
func NewKnownSet() *KnownSet {
	return &KnownSet{ids: make(map[string]struct{})}
}

// Add records id and reports whether it was new.
func (k *KnownSet) Add(id string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.ids[id]; ok {
		return false
	}
	k.ids[id] = struct{}{}
	return true
}

// Has reports whether id was seen.
func (k *KnownSet) Has(id string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.ids[id]
	return ok
}

// Len returns the number of known IDs.
func (k *KnownSet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.ids)
}
