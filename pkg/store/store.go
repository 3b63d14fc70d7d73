// Package store implements the per-group layered entity store. Every entity
// exists in up to three layers: confirmed (last known server state), pending
// (accepted locally while offline) and work-in-progress (actively edited).
// Reads resolve work-in-progress → pending → confirmed. No layer entry is
// ever mutated in place: every write installs a fresh snapshot, so a copy
// handed to a reader stays stable no matter what happens afterwards.
package store

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/splitledger/splitledger/pkg/apperr"
	"github.com/splitledger/splitledger/pkg/entity"
	"github.com/splitledger/splitledger/pkg/ids"
	"github.com/splitledger/splitledger/pkg/logger"
)

const (
	viewTTL     = 5 * time.Minute
	viewCleanup = 10 * time.Minute
)

// Store holds one group's entities. All operations are atomic from the
// caller's perspective; a revision counter advances on every mutation and
// keys the memoized derived views.
type Store struct {
	mu      sync.RWMutex
	groupID int64
	now     func() time.Time
	alloc   *ids.Allocator
	log     logger.Logger

	accounts     *layered[*entity.Account]
	transactions *layered[*entity.Transaction]
	positions    *layered[*entity.Position]
	attachments  *layered[*entity.Attachment]

	revision uint64
	views    *gocache.Cache
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

func WithAllocator(alloc *ids.Allocator) Option {
	return func(s *Store) { s.alloc = alloc }
}

func New(groupID int64, opts ...Option) *Store {
	s := &Store{
		groupID:      groupID,
		now:          time.Now,
		alloc:        ids.NewAllocator(),
		log:          logger.Nop{},
		accounts:     newLayered[*entity.Account](),
		transactions: newLayered[*entity.Transaction](),
		positions:    newLayered[*entity.Position](),
		attachments:  newLayered[*entity.Attachment](),
		views:        gocache.New(viewTTL, viewCleanup),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GroupID() int64 { return s.groupID }

// Revision returns the mutation counter. It advances on every write and is
// the cache key component for derived views.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Store) bump() {
	s.revision++
}

// Memoize returns the cached value for name at the current revision, or
// computes and caches it. Any mutation invalidates implicitly by advancing
// the revision; the TTL is only a memory bound.
func (s *Store) Memoize(name string, compute func() (any, error)) (any, error) {
	key := fmt.Sprintf("%s@%d", name, s.Revision())
	if v, ok := s.views.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	s.views.Set(key, v, gocache.DefaultExpiration)
	return v, nil
}

// --- accounts ---

// CreateAccount mints a local id and places a fresh work-in-progress
// account. It exists in no other layer until committed.
func (s *Store) CreateAccount(kind entity.AccountKind) *entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &entity.Account{
		ID:          s.alloc.Allocate(entity.KindAccount),
		GroupID:     s.groupID,
		Kind:        kind,
		LastChanged: s.now(),
		WIP:         true,
	}
	if kind == entity.AccountClearing {
		a.Clearing = &entity.ClearingDetails{Shares: entity.ShareMap{}}
	}
	s.accounts.wip[a.ID] = a
	s.bump()
	return a.Clone()
}

// GetAccount returns the merged view. Callers must treat the snapshot as
// immutable; edits go through PatchAccount.
func (s *Store) GetAccount(id int64) (*entity.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts.get(id)
}

func (s *Store) ListAccounts() []*entity.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts.list()
}

func (s *Store) BeginAccountEdit(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts.beginEdit(id) {
		s.bump()
	}
}

func (s *Store) PatchAccount(id int64, patch entity.AccountPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accounts.beginEdit(id) {
		return fmt.Errorf("patch account %d: %w", id, apperr.ErrNotFound)
	}
	c := s.accounts.wip[id].Clone()
	patch.Apply(c)
	c.Touch(s.now())
	s.accounts.wip[id] = c
	s.bump()
	return nil
}

// DiscardAccountEdit drops the WIP copy. gone reports whether the account
// now has zero presence across all layers. Idempotent.
func (s *Store) DiscardAccountEdit(id int64) (gone bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existed, gone := s.accounts.discard(id)
	if existed {
		s.bump()
	}
	return gone
}

// WIPAccount returns the work-in-progress copy if one exists. The returned
// snapshot is detached from the store.
func (s *Store) WIPAccount(id int64) (*entity.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts.wip[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// ConfirmedAccount returns the confirmed-layer copy, the last state the
// server acknowledged, ignoring open edits and pending writes.
func (s *Store) ConfirmedAccount(id int64) (*entity.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts.confirmed[id]
	return a, ok
}

// PurgeAccount removes the account from every layer. Used for local-only
// deletions; server-known deletions go through CommitAccount with the
// server's soft-deleted state.
func (s *Store) PurgeAccount(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts.dropEverywhere(id)
	s.bump()
}

func (s *Store) PendingAccounts() []*entity.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.accounts.pendingSnapshot()
	entity.SortAccounts(out)
	return out
}
