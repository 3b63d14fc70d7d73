package syncer

import (
	"context"
	"fmt"

	"github.com/splitledger/splitledger/pkg/entity"
)

// Flush replays the pending layer against the server after connectivity
// returns. Accounts go first so that transactions referencing freshly minted
// local accounts are remapped to real ids before they are sent. Pending
// accounts may reference each other through clearing shares, so account
// passes repeat until no progress is made.
func (s *Syncer) Flush(ctx context.Context) error {
	if err := s.checkWrite(); err != nil {
		return err
	}
	for {
		pending := s.store.PendingAccounts()
		if len(pending) == 0 {
			break
		}
		progressed := false
		for _, a := range pending {
			if localRefs(a.ClearingShares(), "clearing_shares") != nil {
				continue
			}
			if err := s.flushAccount(ctx, a); err != nil {
				return err
			}
			progressed = true
		}
		if !progressed {
			return fmt.Errorf("flush: %d pending accounts form an unresolvable reference chain", len(pending))
		}
	}

	for _, t := range s.store.PendingTransactions() {
		rec, ok := s.store.PendingTransactionRecord(t.ID)
		if !ok {
			continue
		}
		if err := recordLocalRefs(rec); err != nil {
			return fmt.Errorf("flush transaction %d: %w", t.ID, err)
		}
		if err := s.flushTransaction(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) flushAccount(ctx context.Context, a *entity.Account) error {
	var server *entity.Account
	var err error
	if entity.IsLocal(a.ID) {
		server, err = s.api.CreateAccount(ctx, a)
	} else {
		server, err = s.api.UpdateAccount(ctx, a)
	}
	if err != nil {
		return fmt.Errorf("flush account %d: %w", a.ID, err)
	}
	if err := s.store.CommitAccount(a.ID, server, true); err != nil {
		return err
	}
	s.log.Info("pending account flushed", "local_id", a.ID, "id", server.ID)
	return nil
}

func (s *Syncer) flushTransaction(ctx context.Context, rec entity.TransactionRecord) error {
	id := rec.Transaction.ID
	var server entity.TransactionRecord
	var err error
	if entity.IsLocal(id) {
		server, err = s.api.CreateTransaction(ctx, rec)
	} else {
		server, err = s.api.UpdateTransaction(ctx, rec)
	}
	if err != nil {
		return fmt.Errorf("flush transaction %d: %w", id, err)
	}
	if err := s.store.CommitTransactionRecord(id, server, true); err != nil {
		return err
	}
	s.log.Info("pending transaction flushed", "local_id", id, "id", server.Transaction.ID)
	return nil
}
