package store

import (
	"time"

	"github.com/splitledger/splitledger/pkg/entity"
)

// LocalSnapshot captures the layers that would be lost on process exit: the
// work-in-progress and pending maps plus the id allocator counters. The
// confirmed layer is deliberately absent; it is re-pulled from the server.
type LocalSnapshot struct {
	GroupID  int64                 `json:"group_id"`
	SavedAt  time.Time             `json:"saved_at"`
	Counters map[entity.Kind]int64 `json:"counters"`

	WIPAccounts     []*entity.Account `json:"wip_accounts,omitempty"`
	PendingAccounts []*entity.Account `json:"pending_accounts,omitempty"`

	WIPTransactions     []*entity.Transaction `json:"wip_transactions,omitempty"`
	PendingTransactions []*entity.Transaction `json:"pending_transactions,omitempty"`

	WIPPositions     []*entity.Position `json:"wip_positions,omitempty"`
	PendingPositions []*entity.Position `json:"pending_positions,omitempty"`

	WIPAttachments     []*entity.Attachment `json:"wip_attachments,omitempty"`
	PendingAttachments []*entity.Attachment `json:"pending_attachments,omitempty"`
}

// ExportLocal snapshots the WIP and pending layers for durable storage.
func (s *Store) ExportLocal() LocalSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return LocalSnapshot{
		GroupID:             s.groupID,
		SavedAt:             s.now(),
		Counters:            s.alloc.Counters(),
		WIPAccounts:         s.accounts.wipSnapshot(),
		PendingAccounts:     s.accounts.pendingSnapshot(),
		WIPTransactions:     s.transactions.wipSnapshot(),
		PendingTransactions: s.transactions.pendingSnapshot(),
		WIPPositions:        s.positions.wipSnapshot(),
		PendingPositions:    s.positions.pendingSnapshot(),
		WIPAttachments:      s.attachments.wipSnapshot(),
		PendingAttachments:  s.attachments.pendingSnapshot(),
	}
}

// ImportLocal restores a snapshot taken by ExportLocal. Existing WIP and
// pending entries under the same ids are overwritten (latest wins); the
// allocator counters only ever move down.
func (s *Store) ImportLocal(snap LocalSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range snap.WIPAccounts {
		s.accounts.wip[a.ID] = a.Clone()
	}
	for _, a := range snap.PendingAccounts {
		s.accounts.pending[a.ID] = a.Clone()
	}
	for _, t := range snap.WIPTransactions {
		s.transactions.wip[t.ID] = t.Clone()
	}
	for _, t := range snap.PendingTransactions {
		s.transactions.pending[t.ID] = t.Clone()
	}
	for _, p := range snap.WIPPositions {
		s.positions.wip[p.ID] = p.Clone()
	}
	for _, p := range snap.PendingPositions {
		s.positions.pending[p.ID] = p.Clone()
	}
	for _, a := range snap.WIPAttachments {
		s.attachments.wip[a.ID] = a.Clone()
	}
	for _, a := range snap.PendingAttachments {
		s.attachments.pending[a.ID] = a.Clone()
	}
	if snap.Counters != nil {
		s.alloc.Restore(snap.Counters)
	}
	s.bump()
}
