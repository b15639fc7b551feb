package index

import (
	"sync"
	"time"
)

// EndpointIndex holds the endpoints loaded from the endpoints file.
// Readers always get a copy, so a reload never changes a list that a
// request is already dispatching to.
type EndpointIndex struct {
	mu         sync.RWMutex
	endpoints  []string
	source     string    // path the snapshot came from
	lastReload time.Time // timestamp of last successful reload
}

// NewEndpointIndex creates an empty index
func NewEndpointIndex() *EndpointIndex {
	return &EndpointIndex{}
}

// Update replaces the snapshot
func (idx *EndpointIndex) Update(source string, endpoints []string) {
	snapshot := make([]string, len(endpoints))
	copy(snapshot, endpoints)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.endpoints = snapshot
	idx.source = source
	idx.lastReload = time.Now()
}

// Extras returns a copy of the current snapshot. Safe on a nil index.
func (idx *EndpointIndex) Extras() []string {
	if idx == nil {
		return nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.endpoints) == 0 {
		return nil
	}
	out := make([]string, len(idx.endpoints))
	copy(out, idx.endpoints)
	return out
}

// Count returns the number of endpoints in the snapshot
func (idx *EndpointIndex) Count() int {
	if idx == nil {
		return 0
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.endpoints)
}

// Source returns the file the snapshot was loaded from
func (idx *EndpointIndex) Source() string {
	if idx == nil {
		return ""
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.source
}

// LastReload returns the timestamp of the last successful reload
func (idx *EndpointIndex) LastReload() time.Time {
	if idx == nil {
		return time.Time{}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}
