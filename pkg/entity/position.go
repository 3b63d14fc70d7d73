package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/pkg/apperr"
)

// Position is a purchase line item. Usages attribute parts of the price to
// specific accounts; CommunistShares weights the part that joins the
// purchase's common remainder split by debitor shares.
type Position struct {
	ID              int64           `json:"id"`
	TransactionID   int64           `json:"transaction_id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	CommunistShares decimal.Decimal `json:"communist_shares"`
	Usages          ShareMap        `json:"usages"`
	Deleted         bool            `json:"deleted"`
	LastChanged     time.Time       `json:"last_changed"`
	WIP             bool            `json:"is_wip"`
}

func (p *Position) EntityID() int64            { return p.ID }
func (p *Position) IsDeleted() bool            { return p.Deleted }
func (p *Position) SetWorkInProgress(wip bool) { p.WIP = wip }
func (p *Position) Touch(now time.Time)        { p.LastChanged = now }

func (p *Position) Clone() *Position {
	out := *p
	out.Usages = p.Usages.Clone()
	return &out
}

func (p *Position) Validate() error {
	ve := &apperr.ValidationError{}
	if p.Name == "" {
		ve.Add("name", "must not be empty")
	}
	if p.Price.IsNegative() {
		ve.Add("price", "must not be negative")
	}
	if p.CommunistShares.IsNegative() {
		ve.Add("communist_shares", "must not be negative")
	}
	if bad := p.Usages.Validate(); len(bad) > 0 {
		ve.Add("usages", "negative usage weight")
	}
	if ve.Empty() {
		return nil
	}
	return ve
}

// PositionPatch is a shallow partial update for a work-in-progress copy.
type PositionPatch struct {
	Name            *string
	Price           *decimal.Decimal
	CommunistShares *decimal.Decimal
	Usages          ShareMap
	Deleted         *bool
}

func (p PositionPatch) Apply(pos *Position) {
	if p.Name != nil {
		pos.Name = *p.Name
	}
	if p.Price != nil {
		pos.Price = *p.Price
	}
	if p.CommunistShares != nil {
		pos.CommunistShares = *p.CommunistShares
	}
	if p.Usages != nil {
		pos.Usages = p.Usages.Clone()
	}
	if p.Deleted != nil {
		pos.Deleted = *p.Deleted
	}
}
