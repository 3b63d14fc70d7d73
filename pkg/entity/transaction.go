package entity

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/pkg/apperr"
)

// TransactionKind tags the transaction variant. Only purchases own
// positions.
type TransactionKind string

const (
	TransactionPurchase TransactionKind = "purchase"
	TransactionTransfer TransactionKind = "transfer"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionPurchase, TransactionTransfer:
		return true
	}
	return false
}

type Transaction struct {
	ID                     int64           `json:"id"`
	GroupID                int64           `json:"group_id"`
	Kind                   TransactionKind `json:"kind"`
	Name                   string          `json:"name"`
	Description            string          `json:"description"`
	Value                  decimal.Decimal `json:"value"`
	CurrencyIdentifier     string          `json:"currency_identifier"`
	CurrencyConversionRate decimal.Decimal `json:"currency_conversion_rate"`
	BilledAt               time.Time       `json:"billed_at"`
	Tags                   []string        `json:"tags"`
	CreditorShares         ShareMap        `json:"creditor_shares"`
	DebitorShares          ShareMap        `json:"debitor_shares"`

	// Child id lists, maintained per layer by the store. Positions and
	// attachments are only reachable through these, never by scanning.
	PositionIDs   []int64 `json:"position_ids"`
	AttachmentIDs []int64 `json:"attachment_ids"`

	Deleted     bool      `json:"deleted"`
	LastChanged time.Time `json:"last_changed"`
	WIP         bool      `json:"is_wip"`
}

func (t *Transaction) EntityID() int64            { return t.ID }
func (t *Transaction) IsDeleted() bool            { return t.Deleted }
func (t *Transaction) SetWorkInProgress(wip bool) { t.WIP = wip }
func (t *Transaction) Touch(now time.Time)        { t.LastChanged = now }

func (t *Transaction) Clone() *Transaction {
	out := *t
	out.CreditorShares = t.CreditorShares.Clone()
	out.DebitorShares = t.DebitorShares.Clone()
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.PositionIDs != nil {
		out.PositionIDs = append([]int64(nil), t.PositionIDs...)
	}
	if t.AttachmentIDs != nil {
		out.AttachmentIDs = append([]int64(nil), t.AttachmentIDs...)
	}
	return &out
}

// HasPosition reports whether id is in the transaction's child list.
func (t *Transaction) HasPosition(id int64) bool {
	for _, pid := range t.PositionIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// AddPosition appends id to the child list if absent.
func (t *Transaction) AddPosition(id int64) {
	if !t.HasPosition(id) {
		t.PositionIDs = append(t.PositionIDs, id)
	}
}

// RemovePosition drops id from the child list.
func (t *Transaction) RemovePosition(id int64) {
	for i, pid := range t.PositionIDs {
		if pid == id {
			t.PositionIDs = append(t.PositionIDs[:i], t.PositionIDs[i+1:]...)
			return
		}
	}
}

// Validate checks the business rules enforced at save time. Incomplete share
// maps are legal on a draft but not on save.
func (t *Transaction) Validate() error {
	ve := &apperr.ValidationError{}
	if t.Name == "" {
		ve.Add("name", "must not be empty")
	}
	if !t.Kind.Valid() {
		ve.Add("kind", "unknown transaction kind")
	}
	if t.Value.IsNegative() {
		ve.Add("value", "must not be negative")
	}
	if t.CreditorShares.Empty() {
		ve.Add("creditor_shares", "at least one creditor required")
	} else if bad := t.CreditorShares.Validate(); len(bad) > 0 {
		ve.Add("creditor_shares", "negative share weight")
	}
	if t.DebitorShares.Empty() {
		ve.Add("debitor_shares", "at least one debitor required")
	} else if bad := t.DebitorShares.Validate(); len(bad) > 0 {
		ve.Add("debitor_shares", "negative share weight")
	}
	if t.Kind == TransactionTransfer && len(t.PositionIDs) > 0 {
		ve.Add("positions", "transfers must not carry positions")
	}
	if ve.Empty() {
		return nil
	}
	return ve
}

// TransactionPatch is a shallow partial update for a work-in-progress copy.
type TransactionPatch struct {
	Name               *string
	Description        *string
	Value              *decimal.Decimal
	CurrencyIdentifier *string
	ConversionRate     *decimal.Decimal
	BilledAt           *time.Time
	Tags               *[]string
	CreditorShares     ShareMap
	DebitorShares      ShareMap
	Deleted            *bool
}

func (p TransactionPatch) Apply(t *Transaction) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Value != nil {
		t.Value = *p.Value
	}
	if p.CurrencyIdentifier != nil {
		t.CurrencyIdentifier = *p.CurrencyIdentifier
	}
	if p.ConversionRate != nil {
		t.CurrencyConversionRate = *p.ConversionRate
	}
	if p.BilledAt != nil {
		t.BilledAt = *p.BilledAt
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.CreditorShares != nil {
		t.CreditorShares = p.CreditorShares.Clone()
	}
	if p.DebitorShares != nil {
		t.DebitorShares = p.DebitorShares.Clone()
	}
	if p.Deleted != nil {
		t.Deleted = *p.Deleted
	}
}

// SortTransactionsForHistory orders by billed date, then last change, then
// id, so balance folds are deterministic.
func SortTransactionsForHistory(txs []*Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.BilledAt.Equal(b.BilledAt) {
			return a.BilledAt.Before(b.BilledAt)
		}
		if !a.LastChanged.Equal(b.LastChanged) {
			return a.LastChanged.Before(b.LastChanged)
		}
		return a.ID < b.ID
	})
}
