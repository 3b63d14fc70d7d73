package entity

import (
	"sort"
	"time"

	"github.com/splitledger/splitledger/pkg/apperr"
)

// AccountKind tags the account variant. Consumers switch exhaustively; a
// clearing account carries Clearing, a personal account never does.
type AccountKind string

const (
	AccountPersonal AccountKind = "personal"
	AccountClearing AccountKind = "clearing"
)

func (k AccountKind) Valid() bool {
	switch k {
	case AccountPersonal, AccountClearing:
		return true
	}
	return false
}

// ClearingDetails holds the fields only a clearing account carries. Shares
// name the accounts that receive a weighted part of whatever flows through
// the clearing account; they may themselves be clearing accounts.
type ClearingDetails struct {
	Shares ShareMap `json:"clearing_shares"`
	Tags   []string `json:"tags"`
	Date   string   `json:"date_info,omitempty"`
}

func (c *ClearingDetails) clone() *ClearingDetails {
	if c == nil {
		return nil
	}
	out := &ClearingDetails{
		Shares: c.Shares.Clone(),
		Date:   c.Date,
	}
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	return out
}

type Account struct {
	ID           int64            `json:"id"`
	GroupID      int64            `json:"group_id"`
	Kind         AccountKind      `json:"kind"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	OwningUserID *int64           `json:"owning_user_id,omitempty"`
	Clearing     *ClearingDetails `json:"clearing,omitempty"`
	Deleted      bool             `json:"deleted"`
	LastChanged  time.Time        `json:"last_changed"`
	WIP          bool             `json:"is_wip"`
}

func (a *Account) EntityID() int64            { return a.ID }
func (a *Account) IsDeleted() bool            { return a.Deleted }
func (a *Account) SetWorkInProgress(wip bool) { a.WIP = wip }
func (a *Account) Touch(now time.Time)        { a.LastChanged = now }

func (a *Account) Clone() *Account {
	out := *a
	if a.OwningUserID != nil {
		uid := *a.OwningUserID
		out.OwningUserID = &uid
	}
	out.Clearing = a.Clearing.clone()
	return &out
}

// ClearingShares returns the share map for clearing accounts and nil for
// personal ones.
func (a *Account) ClearingShares() ShareMap {
	if a.Kind == AccountClearing && a.Clearing != nil {
		return a.Clearing.Shares
	}
	return nil
}

// Validate checks the business rules enforced at save time.
func (a *Account) Validate() error {
	ve := &apperr.ValidationError{}
	if a.Name == "" {
		ve.Add("name", "must not be empty")
	}
	switch a.Kind {
	case AccountPersonal:
		if a.Clearing != nil {
			ve.Add("kind", "personal account must not carry clearing shares")
		}
	case AccountClearing:
		if a.Clearing == nil {
			ve.Add("clearing_shares", "clearing account requires clearing details")
		} else if bad := a.Clearing.Shares.Validate(); len(bad) > 0 {
			ve.Add("clearing_shares", "negative share weight")
		}
	default:
		ve.Add("kind", "unknown account kind")
	}
	if ve.Empty() {
		return nil
	}
	return ve
}

// AccountPatch is a shallow partial update applied to a work-in-progress
// copy. Nil fields are left untouched; a non-nil share map replaces the
// whole map.
type AccountPatch struct {
	Name           *string
	Description    *string
	OwningUserID   *int64
	ClearingShares ShareMap
	Tags           *[]string
	Date           *string
	Deleted        *bool
}

func (p AccountPatch) Apply(a *Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.OwningUserID != nil {
		uid := *p.OwningUserID
		a.OwningUserID = &uid
	}
	if a.Kind == AccountClearing {
		if a.Clearing == nil {
			a.Clearing = &ClearingDetails{Shares: ShareMap{}}
		}
		if p.ClearingShares != nil {
			a.Clearing.Shares = p.ClearingShares.Clone()
		}
		if p.Tags != nil {
			a.Clearing.Tags = append([]string(nil), (*p.Tags)...)
		}
		if p.Date != nil {
			a.Clearing.Date = *p.Date
		}
	}
	if p.Deleted != nil {
		a.Deleted = *p.Deleted
	}
}

// SortAccounts orders accounts by id ascending, for deterministic listings.
func SortAccounts(accounts []*Account) {
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
}
