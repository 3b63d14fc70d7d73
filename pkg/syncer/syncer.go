// Package syncer reconciles the local layered store with the server of
// record: full pulls, targeted single-entity pulls, pushes with id
// remapping, deletions and server-side edit discards. One syncer serves one
// group.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/splitledger/splitledger/pkg/apperr"
	"github.com/splitledger/splitledger/pkg/connection"
	"github.com/splitledger/splitledger/pkg/entity"
	"github.com/splitledger/splitledger/pkg/logger"
	"github.com/splitledger/splitledger/pkg/store"
)

type inflightKey struct {
	kind entity.Kind
	id   int64
}

type pullState struct {
	done chan struct{}
	err  error
}

// Syncer orchestrates server round trips for one group. At most one push
// per entity id is in flight at a time; pushes of different entities may run
// concurrently. A pull is exclusive with itself but not with pushes.
type Syncer struct {
	store   *store.Store
	api     connection.API
	log     logger.Logger
	offline bool
	userID  int64
	limiter *rate.Limiter

	mu       sync.Mutex
	inflight map[inflightKey]struct{}
	pull     *pullState
	group    *entity.Group
	members  []*entity.GroupMember
}

type Option func(*Syncer)

// WithOfflineQueue makes connectivity failures degrade to pending-layer
// writes instead of erroring, for offline-capable deployments.
func WithOfflineQueue() Option {
	return func(s *Syncer) { s.offline = true }
}

func WithLogger(log logger.Logger) Option {
	return func(s *Syncer) { s.log = log }
}

// WithCurrentUser enables the membership write gate: once the member list is
// pulled, pushes are rejected unless this user may write to the group.
func WithCurrentUser(userID int64) Option {
	return func(s *Syncer) { s.userID = userID }
}

// WithRefreshLimit throttles notification-driven single-entity re-pulls.
func WithRefreshLimit(limit rate.Limit, burst int) Option {
	return func(s *Syncer) { s.limiter = rate.NewLimiter(limit, burst) }
}

func New(st *store.Store, api connection.API, opts ...Option) *Syncer {
	s := &Syncer{
		store:    st,
		api:      api,
		log:      logger.Nop{},
		limiter:  rate.NewLimiter(rate.Inf, 1),
		inflight: make(map[inflightKey]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Syncer) acquire(kind entity.Kind, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inflightKey{kind: kind, id: id}
	if _, busy := s.inflight[key]; busy {
		return fmt.Errorf("%s %d: %w", kind, id, apperr.ErrPushInFlight)
	}
	s.inflight[key] = struct{}{}
	return nil
}

func (s *Syncer) release(kind entity.Kind, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, inflightKey{kind: kind, id: id})
}

func (s *Syncer) busy(kind entity.Kind, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inflight[inflightKey{kind: kind, id: id}]
	return busy
}

// Pull fetches the group's full snapshot and atomically replaces the
// confirmed layer. A pull already in flight is joined, not duplicated.
func (s *Syncer) Pull(ctx context.Context) error {
	s.mu.Lock()
	if st := s.pull; st != nil {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-st.done:
			return st.err
		}
	}
	st := &pullState{done: make(chan struct{})}
	s.pull = st
	s.mu.Unlock()

	st.err = s.doPull(ctx)

	s.mu.Lock()
	s.pull = nil
	s.mu.Unlock()
	close(st.done)
	return st.err
}

func (s *Syncer) doPull(ctx context.Context) error {
	groupID := s.store.GroupID()
	group, err := s.api.GetGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("pull group %d: %w", groupID, err)
	}
	members, err := s.api.ListMembers(ctx, groupID)
	if err != nil {
		return fmt.Errorf("pull group %d: %w", groupID, err)
	}
	accounts, err := s.api.ListAccounts(ctx, groupID)
	if err != nil {
		return fmt.Errorf("pull group %d: %w", groupID, err)
	}
	records, err := s.api.ListTransactions(ctx, groupID)
	if err != nil {
		return fmt.Errorf("pull group %d: %w", groupID, err)
	}

	s.mu.Lock()
	s.group = group
	s.members = members
	s.mu.Unlock()

	s.store.ReplaceConfirmed(accounts, records)
	s.log.Info("group pulled", "group_id", groupID, "accounts", len(accounts), "transactions", len(records))
	return nil
}

// Group returns the group metadata from the last pull, if any.
func (s *Syncer) Group() (*entity.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group, s.group != nil
}

// Members returns the member list from the last pull.
func (s *Syncer) Members() []*entity.GroupMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.GroupMember(nil), s.members...)
}

// checkWrite enforces the membership gate. Before the first pull, or without
// a configured user, writes are allowed; the server remains the authority
// either way.
func (s *Syncer) checkWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == 0 || s.members == nil {
		return nil
	}
	for _, m := range s.members {
		if m.UserID == s.userID {
			if m.CanWrite {
				return nil
			}
			break
		}
	}
	return fmt.Errorf("user %d in group %d: %w", s.userID, s.store.GroupID(), apperr.ErrReadOnly)
}

// PullAccount fetches one account and folds it into confirmed. WIP and
// pending layers are untouched, except when the server reports that the
// entity's open edit was discarded by its session, in which case the stale
// local WIP/pending copy is dropped. The discard check compares the WIP flag
// of the previously confirmed copy, never the merged view: a locally opened
// edit always reads as WIP and must not trip it.
func (s *Syncer) PullAccount(ctx context.Context, id int64) error {
	groupID := s.store.GroupID()
	server, err := s.api.GetAccount(ctx, groupID, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.store.PurgeAccount(id)
			return nil
		}
		return err
	}
	if prev, ok := s.store.ConfirmedAccount(id); ok && prev.WIP && !server.WIP {
		s.store.DropWIPAndPendingAccount(id)
	}
	s.store.FoldConfirmedAccount(server)
	return nil
}

// PullTransaction is the transaction counterpart of PullAccount.
func (s *Syncer) PullTransaction(ctx context.Context, id int64) error {
	groupID := s.store.GroupID()
	rec, err := s.api.GetTransaction(ctx, groupID, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.store.PurgeTransaction(id)
			return nil
		}
		return err
	}
	if prev, ok := s.store.ConfirmedTransaction(id); ok && prev.WIP && !rec.Transaction.WIP {
		s.store.DropWIPAndPendingTransaction(id)
	}
	s.store.FoldConfirmedTransactionRecord(rec)
	return nil
}

// RefreshAccount is the rate-limited entry point for the notification
// router.
func (s *Syncer) RefreshAccount(ctx context.Context, id int64) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.PullAccount(ctx, id)
}

// RefreshTransaction is the rate-limited entry point for the notification
// router.
func (s *Syncer) RefreshTransaction(ctx context.Context, id int64) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.PullTransaction(ctx, id)
}
