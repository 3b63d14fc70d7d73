// Package ids mints negative identifiers for entities created locally
// before the server assigns a positive one.
package ids

import (
	"sync"

	"github.com/splitledger/splitledger/pkg/entity"
)

// Allocator hands out strictly decreasing negative int64 ids, one counter
// per entity kind. Counters start at -1 and are never reset: once a sync
// retires a local id it stays retired, so references can never collide with
// a later allocation.
type Allocator struct {
	mu   sync.Mutex
	next map[entity.Kind]int64
}

func NewAllocator() *Allocator {
	return &Allocator{next: make(map[entity.Kind]int64)}
}

// Allocate returns the next local id for kind. It never blocks and never
// fails.
func (a *Allocator) Allocate(kind entity.Kind) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.next[kind]
	if !ok {
		id = -1
	}
	a.next[kind] = id - 1
	return id
}

// Counters returns a copy of the current counter state, for persistence.
func (a *Allocator) Counters() map[entity.Kind]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[entity.Kind]int64, len(a.next))
	for k, v := range a.next {
		out[k] = v
	}
	return out
}

// Restore installs persisted counter state. Existing counters are only moved
// further down, never up, preserving uniqueness across restarts.
func (a *Allocator) Restore(counters map[entity.Kind]int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range counters {
		if cur, ok := a.next[k]; !ok || v < cur {
			a.next[k] = v
		}
	}
}
