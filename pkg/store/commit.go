package store

import (
	"github.com/splitledger/splitledger/pkg/apperr"
	"github.com/splitledger/splitledger/pkg/entity"
)

// CommitAccount resolves a round trip for an account: the WIP copy under
// oldID is removed and the server's canonical state is installed in
// confirmed (synced) or pending (offline acceptance). When the server turned
// a local id into a real one, every reference to the old id in any layer of
// this group is rewritten within the same lock, so readers never observe the
// retired id.
func (s *Store) CommitAccount(oldID int64, server *entity.Account, synced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accounts.present(oldID) {
		return apperr.Defect("commit account: id %d present in no layer", oldID)
	}
	s.accounts.commit(oldID, server.Clone(), synced)
	if newID := server.ID; newID != oldID {
		s.remapAccountRefs(oldID, newID)
	}
	s.bump()
	s.log.Debug("account committed", "old_id", oldID, "id", server.ID, "synced", synced)
	return nil
}

// remapAccountRefs rewrites share-map keys pointing at oldID. Touched
// snapshots are replaced by rewritten clones; untouched ones are shared.
func (s *Store) remapAccountRefs(oldID, newID int64) {
	for _, layer := range []map[int64]*entity.Account{s.accounts.wip, s.accounts.pending, s.accounts.confirmed} {
		for id, a := range layer {
			if shares := a.ClearingShares(); shares != nil {
				if _, ok := shares[oldID]; ok {
					c := a.Clone()
					c.Clearing.Shares.Remap(oldID, newID)
					layer[id] = c
				}
			}
		}
	}
	for _, layer := range []map[int64]*entity.Transaction{s.transactions.wip, s.transactions.pending, s.transactions.confirmed} {
		for id, t := range layer {
			_, inCred := t.CreditorShares[oldID]
			_, inDeb := t.DebitorShares[oldID]
			if inCred || inDeb {
				c := t.Clone()
				c.CreditorShares.Remap(oldID, newID)
				c.DebitorShares.Remap(oldID, newID)
				layer[id] = c
			}
		}
	}
	for _, layer := range []map[int64]*entity.Position{s.positions.wip, s.positions.pending, s.positions.confirmed} {
		for id, p := range layer {
			if _, ok := p.Usages[oldID]; ok {
				c := p.Clone()
				c.Usages.Remap(oldID, newID)
				layer[id] = c
			}
		}
	}
}

// CommitTransactionRecord resolves a round trip for a transaction and its
// children. The server recomputes nested children, so all local WIP and
// pending children of the transaction are retired and replaced by the
// record's.
func (s *Store) CommitTransactionRecord(oldID int64, rec entity.TransactionRecord, synced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.transactions.present(oldID) {
		return apperr.Defect("commit transaction: id %d present in no layer", oldID)
	}
	newID := rec.Transaction.ID

	for _, layer := range []map[int64]*entity.Position{s.positions.wip, s.positions.pending} {
		for pid, p := range layer {
			if p.TransactionID == oldID || p.TransactionID == newID {
				delete(layer, pid)
			}
		}
	}
	for _, layer := range []map[int64]*entity.Attachment{s.attachments.wip, s.attachments.pending} {
		for aid, a := range layer {
			if a.TransactionID == oldID || a.TransactionID == newID {
				delete(layer, aid)
			}
		}
	}

	s.transactions.commit(oldID, rec.Transaction.Clone(), synced)
	for _, p := range rec.Positions {
		c := p.Clone()
		if synced {
			s.positions.confirmed[c.ID] = c
		} else {
			s.positions.pending[c.ID] = c
		}
	}
	for _, a := range rec.Attachments {
		c := a.Clone()
		if synced {
			s.attachments.confirmed[c.ID] = c
		} else {
			s.attachments.pending[c.ID] = c
		}
	}

	if newID != oldID {
		s.remapTransactionRefs(oldID, newID)
	}
	s.bump()
	s.log.Debug("transaction committed", "old_id", oldID, "id", newID, "synced", synced)
	return nil
}

// remapTransactionRefs rewrites children still referencing the retired
// transaction id.
func (s *Store) remapTransactionRefs(oldID, newID int64) {
	for _, layer := range []map[int64]*entity.Position{s.positions.wip, s.positions.pending, s.positions.confirmed} {
		for id, p := range layer {
			if p.TransactionID == oldID {
				c := p.Clone()
				c.TransactionID = newID
				layer[id] = c
			}
		}
	}
	for _, layer := range []map[int64]*entity.Attachment{s.attachments.wip, s.attachments.pending, s.attachments.confirmed} {
		for id, a := range layer {
			if a.TransactionID == oldID {
				c := a.Clone()
				c.TransactionID = newID
				layer[id] = c
			}
		}
	}
}

// ReplaceConfirmed swaps the whole confirmed layer of the group in one
// atomic step, leaving WIP and pending untouched. Readers never observe a
// half-replaced layer.
func (s *Store) ReplaceConfirmed(accounts []*entity.Account, records []entity.TransactionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accs := make([]*entity.Account, 0, len(accounts))
	for _, a := range accounts {
		accs = append(accs, a.Clone())
	}
	s.accounts.replaceConfirmed(accs)

	txs := make([]*entity.Transaction, 0, len(records))
	var positions []*entity.Position
	var attachments []*entity.Attachment
	for _, rec := range records {
		txs = append(txs, rec.Transaction.Clone())
		for _, p := range rec.Positions {
			positions = append(positions, p.Clone())
		}
		for _, a := range rec.Attachments {
			attachments = append(attachments, a.Clone())
		}
	}
	s.transactions.replaceConfirmed(txs)
	s.positions.replaceConfirmed(positions)
	s.attachments.replaceConfirmed(attachments)
	s.bump()
	s.log.Debug("confirmed layer replaced", "accounts", len(accs), "transactions", len(txs))
}

// FoldConfirmedAccount folds a single fetched account into confirmed.
func (s *Store) FoldConfirmedAccount(a *entity.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts.foldConfirmed(a.Clone())
	s.bump()
}

// FoldConfirmedTransactionRecord folds a single fetched transaction record
// into confirmed, replacing the transaction's previously confirmed children.
func (s *Store) FoldConfirmedTransactionRecord(rec entity.TransactionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := rec.Transaction.ID
	for pid, p := range s.positions.confirmed {
		if p.TransactionID == id {
			delete(s.positions.confirmed, pid)
		}
	}
	for aid, a := range s.attachments.confirmed {
		if a.TransactionID == id {
			delete(s.attachments.confirmed, aid)
		}
	}
	s.transactions.foldConfirmed(rec.Transaction.Clone())
	for _, p := range rec.Positions {
		s.positions.foldConfirmed(p.Clone())
	}
	for _, a := range rec.Attachments {
		s.attachments.foldConfirmed(a.Clone())
	}
	s.bump()
}

// DropWIPAndPendingTransaction removes a transaction's WIP and pending
// presence without touching confirmed. Used when the server reports the
// entity's edit was discarded by another session.
func (s *Store) DropWIPAndPendingTransaction(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions.wip, id)
	delete(s.transactions.pending, id)
	s.dropWIPChildren(id)
	s.bump()
}

// DropWIPAndPendingAccount is the account counterpart of
// DropWIPAndPendingTransaction.
func (s *Store) DropWIPAndPendingAccount(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts.wip, id)
	delete(s.accounts.pending, id)
	s.bump()
}

// PendingTransactionRecord assembles a pending transaction with its pending
// children for offline replay.
func (s *Store) PendingTransactionRecord(id int64) (entity.TransactionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions.pending[id]
	if !ok {
		return entity.TransactionRecord{}, false
	}
	rec := entity.TransactionRecord{Transaction: t}
	for _, p := range s.positions.pending {
		if p.TransactionID == id {
			rec.Positions = append(rec.Positions, p)
		}
	}
	for _, a := range s.attachments.pending {
		if a.TransactionID == id {
			rec.Attachments = append(rec.Attachments, a)
		}
	}
	return rec, true
}
