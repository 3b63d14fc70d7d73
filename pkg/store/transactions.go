package store

import (
	"fmt"

	"github.com/splitledger/splitledger/pkg/apperr"
	"github.com/splitledger/splitledger/pkg/entity"
)

// CreateTransaction mints a local id and places a fresh work-in-progress
// transaction.
func (s *Store) CreateTransaction(kind entity.TransactionKind) *entity.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &entity.Transaction{
		ID:             s.alloc.Allocate(entity.KindTransaction),
		GroupID:        s.groupID,
		Kind:           kind,
		CreditorShares: entity.ShareMap{},
		DebitorShares:  entity.ShareMap{},
		LastChanged:    s.now(),
		WIP:            true,
	}
	s.transactions.wip[t.ID] = t
	s.bump()
	return t.Clone()
}

func (s *Store) GetTransaction(id int64) (*entity.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions.get(id)
}

// ConfirmedTransaction returns the confirmed-layer copy, the last state the
// server acknowledged, ignoring open edits and pending writes.
func (s *Store) ConfirmedTransaction(id int64) (*entity.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions.confirmed[id]
	return t, ok
}

func (s *Store) ListTransactions() []*entity.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transactions.list()
}

func (s *Store) BeginTransactionEdit(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transactions.beginEdit(id) {
		s.bump()
	}
}

func (s *Store) PatchTransaction(id int64, patch entity.TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.transactions.beginEdit(id) {
		return fmt.Errorf("patch transaction %d: %w", id, apperr.ErrNotFound)
	}
	c := s.transactions.wip[id].Clone()
	patch.Apply(c)
	c.Touch(s.now())
	s.transactions.wip[id] = c
	s.bump()
	return nil
}

// DiscardTransactionEdit drops the WIP copy. When the transaction was
// local-only and is now fully gone, its WIP children are removed with it.
func (s *Store) DiscardTransactionEdit(id int64) (gone bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existed, gone := s.transactions.discard(id)
	if gone {
		s.dropWIPChildren(id)
	}
	if existed {
		s.bump()
	}
	return gone
}

// PurgeTransaction removes the transaction from every layer and cascades to
// owned positions and attachments in the WIP layer only; confirmed and
// pending children are left for the orchestrator to reconcile.
func (s *Store) PurgeTransaction(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions.dropEverywhere(id)
	s.dropWIPChildren(id)
	s.bump()
}

func (s *Store) dropWIPChildren(txID int64) {
	for pid, p := range s.positions.wip {
		if p.TransactionID == txID {
			delete(s.positions.wip, pid)
		}
	}
	for aid, a := range s.attachments.wip {
		if a.TransactionID == txID {
			delete(s.attachments.wip, aid)
		}
	}
}

func (s *Store) PendingTransactions() []*entity.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.transactions.pendingSnapshot()
	entity.SortTransactionsForHistory(out)
	return out
}

// WIPTransactionRecord assembles the work-in-progress transaction with the
// merged view of its children, ready to be pushed. The record is detached
// from the store: edits made while it is in flight do not reach into it.
func (s *Store) WIPTransactionRecord(id int64) (entity.TransactionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions.wip[id]
	if !ok {
		return entity.TransactionRecord{}, false
	}
	rec := entity.TransactionRecord{Transaction: t.Clone()}
	for _, pid := range t.PositionIDs {
		if p, ok := s.positions.get(pid); ok {
			rec.Positions = append(rec.Positions, p.Clone())
		}
	}
	for _, aid := range t.AttachmentIDs {
		if a, ok := s.attachments.get(aid); ok {
			rec.Attachments = append(rec.Attachments, a.Clone())
		}
	}
	return rec, true
}

// --- positions ---

// CreatePosition mints a local id, places a WIP position and registers it in
// the owning transaction's WIP child list. The transaction must exist.
func (s *Store) CreatePosition(txID int64) (*entity.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.transactions.beginEdit(txID) {
		return nil, fmt.Errorf("create position: transaction %d: %w", txID, apperr.ErrNotFound)
	}
	p := &entity.Position{
		ID:            s.alloc.Allocate(entity.KindPosition),
		TransactionID: txID,
		Usages:        entity.ShareMap{},
		LastChanged:   s.now(),
		WIP:           true,
	}
	s.positions.wip[p.ID] = p
	owner := s.transactions.wip[txID].Clone()
	owner.AddPosition(p.ID)
	owner.Touch(s.now())
	s.transactions.wip[txID] = owner
	s.bump()
	return p.Clone(), nil
}

func (s *Store) GetPosition(id int64) (*entity.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions.get(id)
}

// PositionsOf returns the merged positions of a transaction, resolved
// through its merged child id list. A child id that resolves to nothing is a
// broken invariant and reported as a defect.
func (s *Store) PositionsOf(txID int64) ([]*entity.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions.get(txID)
	if !ok {
		return nil, fmt.Errorf("positions of %d: %w", txID, apperr.ErrNotFound)
	}
	var out []*entity.Position
	for _, pid := range t.PositionIDs {
		p, ok := s.positions.get(pid)
		if !ok {
			return nil, apperr.Defect("transaction %d references missing position %d", txID, pid)
		}
		if !p.IsDeleted() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) PatchPosition(id int64, patch entity.PositionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.positions.beginEdit(id) {
		return fmt.Errorf("patch position %d: %w", id, apperr.ErrNotFound)
	}
	c := s.positions.wip[id].Clone()
	patch.Apply(c)
	c.Touch(s.now())
	s.positions.wip[id] = c
	// Editing a child implies the owning transaction is being edited.
	s.transactions.beginEdit(c.TransactionID)
	s.transactions.touchWIP(c.TransactionID, s.now())
	s.bump()
	return nil
}

// DiscardPositionEdit drops the WIP copy of a position; a local-only
// position is also removed from the owning WIP transaction's child list.
func (s *Store) DiscardPositionEdit(id int64) (gone bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, hadWIP := s.positions.wip[id]
	existed, gone := s.positions.discard(id)
	if existed {
		if gone && hadWIP {
			if t, ok := s.transactions.wip[p.TransactionID]; ok {
				c := t.Clone()
				c.RemovePosition(id)
				s.transactions.wip[p.TransactionID] = c
			}
		}
		s.bump()
	}
	return gone
}

// --- attachments ---

// CreateAttachment registers inline content awaiting upload on a WIP
// transaction.
func (s *Store) CreateAttachment(txID int64, filename, mimeType string, content []byte) (*entity.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.transactions.beginEdit(txID) {
		return nil, fmt.Errorf("create attachment: transaction %d: %w", txID, apperr.ErrNotFound)
	}
	a := &entity.Attachment{
		ID:            s.alloc.Allocate(entity.KindAttachment),
		TransactionID: txID,
		Filename:      filename,
		MimeType:      mimeType,
		NewContent:    append([]byte(nil), content...),
		LastChanged:   s.now(),
		WIP:           true,
	}
	s.attachments.wip[a.ID] = a
	owner := s.transactions.wip[txID].Clone()
	owner.AttachmentIDs = append(owner.AttachmentIDs, a.ID)
	owner.Touch(s.now())
	s.transactions.wip[txID] = owner
	s.bump()
	return a.Clone(), nil
}

func (s *Store) GetAttachment(id int64) (*entity.Attachment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attachments.get(id)
}

// AttachmentsOf returns the merged attachments of a transaction.
func (s *Store) AttachmentsOf(txID int64) ([]*entity.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions.get(txID)
	if !ok {
		return nil, fmt.Errorf("attachments of %d: %w", txID, apperr.ErrNotFound)
	}
	var out []*entity.Attachment
	for _, aid := range t.AttachmentIDs {
		a, ok := s.attachments.get(aid)
		if !ok {
			return nil, apperr.Defect("transaction %d references missing attachment %d", txID, aid)
		}
		if !a.IsDeleted() {
			out = append(out, a)
		}
	}
	return out, nil
}
