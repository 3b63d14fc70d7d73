package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/splitledger/splitledger/pkg/apperr"
	"github.com/splitledger/splitledger/pkg/entity"
)

// PushAccount sends the work-in-progress copy of an account to the server.
// On success the response is committed under the account's current id, which
// rewrites any references when the server assigned a real id. Without
// connectivity an offline-capable syncer accepts the edit into the pending
// layer instead.
func (s *Syncer) PushAccount(ctx context.Context, id int64) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	if err := s.acquire(entity.KindAccount, id); err != nil {
		return err
	}
	defer s.release(entity.KindAccount, id)

	wip, ok := s.store.WIPAccount(id)
	if !ok {
		return fmt.Errorf("account %d has no open edit: %w", id, apperr.ErrNotFound)
	}
	if err := wip.Validate(); err != nil {
		return err
	}
	if err := localRefs(wip.ClearingShares(), "clearing_shares"); err != nil {
		if s.offline {
			return s.acceptAccountOffline(id, wip)
		}
		return err
	}

	var server *entity.Account
	var err error
	if entity.IsLocal(id) {
		server, err = s.api.CreateAccount(ctx, wip)
	} else {
		server, err = s.api.UpdateAccount(ctx, wip)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNoConnection) && s.offline {
			return s.acceptAccountOffline(id, wip)
		}
		return fmt.Errorf("push account %d: %w", id, err)
	}
	if err := s.store.CommitAccount(id, server, true); err != nil {
		return err
	}
	s.log.Info("account pushed", "local_id", id, "id", server.ID)
	return nil
}

func (s *Syncer) acceptAccountOffline(id int64, wip *entity.Account) error {
	queued := wip.Clone()
	queued.WIP = false
	if err := s.store.CommitAccount(id, queued, false); err != nil {
		return err
	}
	s.log.Info("account queued offline", "id", id)
	return nil
}

// PushTransaction sends the work-in-progress transaction together with its
// positions and attachments. The server recomputes the record, so the
// response replaces all local children of the transaction.
func (s *Syncer) PushTransaction(ctx context.Context, id int64) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	if err := s.acquire(entity.KindTransaction, id); err != nil {
		return err
	}
	defer s.release(entity.KindTransaction, id)

	rec, ok := s.store.WIPTransactionRecord(id)
	if !ok {
		return fmt.Errorf("transaction %d has no open edit: %w", id, apperr.ErrNotFound)
	}
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := recordLocalRefs(rec); err != nil {
		// References to accounts that only exist locally cannot be
		// expressed on the wire. Offline-capable engines queue the record
		// and resolve the ids during Flush, after the accounts synced.
		if s.offline {
			return s.acceptTransactionOffline(id, rec)
		}
		return err
	}

	var server entity.TransactionRecord
	var err error
	if entity.IsLocal(id) {
		server, err = s.api.CreateTransaction(ctx, rec)
	} else {
		server, err = s.api.UpdateTransaction(ctx, rec)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNoConnection) && s.offline {
			return s.acceptTransactionOffline(id, rec)
		}
		return fmt.Errorf("push transaction %d: %w", id, err)
	}
	if err := s.store.CommitTransactionRecord(id, server, true); err != nil {
		return err
	}
	s.log.Info("transaction pushed", "local_id", id, "id", server.Transaction.ID)
	return nil
}

func (s *Syncer) acceptTransactionOffline(id int64, rec entity.TransactionRecord) error {
	queued := rec.Clone()
	queued.Transaction.WIP = false
	for _, p := range queued.Positions {
		p.WIP = false
	}
	for _, a := range queued.Attachments {
		a.WIP = false
	}
	if err := s.store.CommitTransactionRecord(id, queued, false); err != nil {
		return err
	}
	s.log.Info("transaction queued offline", "id", id)
	return nil
}

func validateRecord(rec entity.TransactionRecord) error {
	if err := rec.Transaction.Validate(); err != nil {
		return err
	}
	for _, p := range rec.Positions {
		if p.Deleted {
			continue
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// localRefs rejects share maps keyed by accounts that only exist locally.
// Such ids are meaningless to the server; the referenced account has to be
// pushed first so its references get remapped to the real id.
func localRefs(shares entity.ShareMap, field string) error {
	ve := &apperr.ValidationError{}
	for accountID := range shares {
		if entity.IsLocal(accountID) {
			ve.Add(field, fmt.Sprintf("references unsynced account %d", accountID))
		}
	}
	if ve.Empty() {
		return nil
	}
	return ve
}

func recordLocalRefs(rec entity.TransactionRecord) error {
	if err := localRefs(rec.Transaction.CreditorShares, "creditor_shares"); err != nil {
		return err
	}
	if err := localRefs(rec.Transaction.DebitorShares, "debitor_shares"); err != nil {
		return err
	}
	for _, p := range rec.Positions {
		if err := localRefs(p.Usages, "usages"); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAccount soft-deletes. Ids never seen by the server are purged
// locally; real ids are deleted server-side and the response folded into
// confirmed, retiring any open local edit.
func (s *Syncer) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	if err := s.acquire(entity.KindAccount, id); err != nil {
		return err
	}
	defer s.release(entity.KindAccount, id)

	if entity.IsLocal(id) {
		s.store.PurgeAccount(id)
		return nil
	}
	server, err := s.api.DeleteAccount(ctx, s.store.GroupID(), id)
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}
	s.store.DropWIPAndPendingAccount(id)
	s.store.FoldConfirmedAccount(server)
	return nil
}

// DeleteTransaction is the transaction counterpart of DeleteAccount.
func (s *Syncer) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	if err := s.acquire(entity.KindTransaction, id); err != nil {
		return err
	}
	defer s.release(entity.KindTransaction, id)

	if entity.IsLocal(id) {
		s.store.PurgeTransaction(id)
		return nil
	}
	rec, err := s.api.DeleteTransaction(ctx, s.store.GroupID(), id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	s.store.DropWIPAndPendingTransaction(id)
	s.store.FoldConfirmedTransactionRecord(rec)
	return nil
}

// DiscardAccount abandons the open edit of an account. Local edits are
// dropped in the store; when the confirmed copy carries a server-side edit
// flag the discard is also sent to the server and the response folded in.
// The returned gone flag reports that the account vanished entirely because
// it never existed outside the edit.
func (s *Syncer) DiscardAccount(ctx context.Context, id int64) (gone bool, err error) {
	if s.busy(entity.KindAccount, id) {
		return false, fmt.Errorf("account %d: %w", id, apperr.ErrPushInFlight)
	}
	gone = s.store.DiscardAccountEdit(id)
	if gone || entity.IsLocal(id) {
		return gone, nil
	}
	confirmed, ok := s.store.ConfirmedAccount(id)
	if !ok || !confirmed.WIP {
		return false, nil
	}
	server, err := s.api.DiscardAccountEdit(ctx, s.store.GroupID(), id)
	if err != nil {
		return false, fmt.Errorf("discard account %d: %w", id, err)
	}
	s.store.FoldConfirmedAccount(server)
	return false, nil
}

// DiscardTransaction is the transaction counterpart of DiscardAccount.
func (s *Syncer) DiscardTransaction(ctx context.Context, id int64) (gone bool, err error) {
	if s.busy(entity.KindTransaction, id) {
		return false, fmt.Errorf("transaction %d: %w", id, apperr.ErrPushInFlight)
	}
	gone = s.store.DiscardTransactionEdit(id)
	if gone || entity.IsLocal(id) {
		return gone, nil
	}
	confirmed, ok := s.store.ConfirmedTransaction(id)
	if !ok || !confirmed.WIP {
		return false, nil
	}
	rec, err := s.api.DiscardTransactionEdit(ctx, s.store.GroupID(), id)
	if err != nil {
		return false, fmt.Errorf("discard transaction %d: %w", id, err)
	}
	s.store.FoldConfirmedTransactionRecord(rec)
	return false, nil
}
