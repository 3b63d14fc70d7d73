package store

import (
	"sort"
	"time"

	"github.com/splitledger/splitledger/pkg/entity"
)

// layer precedence for merged reads: work-in-progress wins over pending,
// pending wins over confirmed.
type layered[T entity.Snapshot[T]] struct {
	wip       map[int64]T
	pending   map[int64]T
	confirmed map[int64]T
}

func newLayered[T entity.Snapshot[T]]() *layered[T] {
	return &layered[T]{
		wip:       make(map[int64]T),
		pending:   make(map[int64]T),
		confirmed: make(map[int64]T),
	}
}

func (l *layered[T]) get(id int64) (T, bool) {
	if e, ok := l.wip[id]; ok {
		return e, true
	}
	if e, ok := l.pending[id]; ok {
		return e, true
	}
	if e, ok := l.confirmed[id]; ok {
		return e, true
	}
	var zero T
	return zero, false
}

func (l *layered[T]) present(id int64) bool {
	_, ok := l.get(id)
	return ok
}

// mergedIDs returns the deduplicated union of all layer keys, sorted for
// deterministic listings.
func (l *layered[T]) mergedIDs() []int64 {
	seen := make(map[int64]struct{}, len(l.confirmed)+len(l.pending)+len(l.wip))
	for id := range l.wip {
		seen[id] = struct{}{}
	}
	for id := range l.pending {
		seen[id] = struct{}{}
	}
	for id := range l.confirmed {
		seen[id] = struct{}{}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// list returns the merged, non-deleted view.
func (l *layered[T]) list() []T {
	var out []T
	for _, id := range l.mergedIDs() {
		e, _ := l.get(id)
		if !e.IsDeleted() {
			out = append(out, e)
		}
	}
	return out
}

// beginEdit clones the merged view into the WIP layer. Reports whether a WIP
// copy exists afterwards; absent entities are a silent no-op per contract.
func (l *layered[T]) beginEdit(id int64) bool {
	if _, ok := l.wip[id]; ok {
		return true
	}
	base, ok := l.get(id)
	if !ok {
		return false
	}
	c := base.Clone()
	c.SetWorkInProgress(true)
	l.wip[id] = c
	return true
}

// discard removes the WIP copy. existed reports whether there was one; gone
// reports whether the entity now has zero presence across all layers.
func (l *layered[T]) discard(id int64) (existed, gone bool) {
	_, existed = l.wip[id]
	delete(l.wip, id)
	_, inPending := l.pending[id]
	_, inConfirmed := l.confirmed[id]
	return existed, !inPending && !inConfirmed
}

// commit removes the WIP copy under oldID and installs server state. When
// synced, server lands in confirmed and any stale pending copy under the old
// id is purged; otherwise it lands in pending (offline acceptance).
func (l *layered[T]) commit(oldID int64, server T, synced bool) {
	delete(l.wip, oldID)
	if synced {
		delete(l.pending, oldID)
		l.confirmed[server.EntityID()] = server
	} else {
		l.pending[server.EntityID()] = server
	}
}

// dropEverywhere removes the id from all three layers.
func (l *layered[T]) dropEverywhere(id int64) {
	delete(l.wip, id)
	delete(l.pending, id)
	delete(l.confirmed, id)
}

// replaceConfirmed swaps the whole confirmed layer, leaving WIP and pending
// untouched.
func (l *layered[T]) replaceConfirmed(entities []T) {
	next := make(map[int64]T, len(entities))
	for _, e := range entities {
		next[e.EntityID()] = e
	}
	l.confirmed = next
}

func (l *layered[T]) foldConfirmed(e T) {
	l.confirmed[e.EntityID()] = e
}

// touchWIP refreshes the change timestamp of an existing WIP copy. The
// installed copy is fresh; handed-out snapshots never change underneath a
// reader.
func (l *layered[T]) touchWIP(id int64, now time.Time) {
	if e, ok := l.wip[id]; ok {
		c := e.Clone()
		c.Touch(now)
		l.wip[id] = c
	}
}

func (l *layered[T]) wipSnapshot() []T {
	out := make([]T, 0, len(l.wip))
	for _, e := range l.wip {
		out = append(out, e)
	}
	return out
}

func (l *layered[T]) pendingSnapshot() []T {
	out := make([]T, 0, len(l.pending))
	for _, e := range l.pending {
		out = append(out, e)
	}
	return out
}
