// Package balance derives per-account balances, per-transaction balance
// effects and balance histories from the merged view of a group's accounts,
// transactions and positions. Everything here is pure: no I/O, no clocks,
// deterministic output for a given input.
package balance

import (
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/pkg/entity"
)

// PositionSource resolves a transaction's merged, non-deleted positions.
type PositionSource func(txID int64) ([]*entity.Position, error)

// AccountBalance is the derived financial state of one account. Positive
// Balance means the account is a net creditor (is owed money).
type AccountBalance struct {
	Balance                decimal.Decimal
	TotalPaidPurchases     decimal.Decimal
	TotalPaidTransfers     decimal.Decimal
	TotalConsumedPurchases decimal.Decimal
	TotalReceivedTransfers decimal.Decimal

	// ClearingResolution, for clearing accounts, is the amount attributed to
	// each participant of the clearing shares during resolution.
	ClearingResolution map[int64]decimal.Decimal
}

// BalanceMap maps account id to its derived balance.
type BalanceMap map[int64]AccountBalance

// Compute derives the balance of every non-deleted account. Deleted
// transactions and accounts contribute nothing; share-map entries pointing at
// a deleted account are ignored, so its weight falls to the remaining
// members. Transactions with an empty creditor or debitor share map
// contribute nothing (they are WIP drafts, not errors). Clearing account
// balances are redistributed along their share chains; a cyclic chain is
// reported as ErrCyclicClearing.
func Compute(accounts []*entity.Account, txs []*entity.Transaction, positions PositionSource) (BalanceMap, error) {
	out := make(BalanceMap, len(accounts))
	byID := make(map[int64]*entity.Account, len(accounts))
	for _, a := range accounts {
		if a.Deleted {
			continue
		}
		out[a.ID] = AccountBalance{}
		byID[a.ID] = a
	}

	src := positions
	if positions != nil {
		src = func(txID int64) ([]*entity.Position, error) {
			poss, err := positions(txID)
			if err != nil {
				return nil, err
			}
			scrubbed := make([]*entity.Position, len(poss))
			for i, p := range poss {
				if usages, changed := scrubShares(p.Usages, byID); changed {
					c := p.Clone()
					c.Usages = usages
					p = c
				}
				scrubbed[i] = p
			}
			return scrubbed, nil
		}
	}

	for _, t := range txs {
		if t.Deleted {
			continue
		}
		eff, err := Effect(scrubTransaction(t, byID), src)
		if err != nil {
			return nil, err
		}
		apply(out, t, eff)
	}

	if err := resolveClearing(out, byID); err != nil {
		return nil, err
	}
	return out, nil
}

// scrubShares drops entries keyed by an account not in the live set. The map
// is returned unchanged, and unchanged is false, when every key is live.
func scrubShares(s entity.ShareMap, live map[int64]*entity.Account) (entity.ShareMap, bool) {
	clean := true
	for id := range s {
		if _, ok := live[id]; !ok {
			clean = false
			break
		}
	}
	if clean {
		return s, false
	}
	out := make(entity.ShareMap, len(s))
	for id, w := range s {
		if _, ok := live[id]; ok {
			out[id] = w
		}
	}
	return out, true
}

func scrubTransaction(t *entity.Transaction, live map[int64]*entity.Account) *entity.Transaction {
	creditors, c1 := scrubShares(t.CreditorShares, live)
	debitors, c2 := scrubShares(t.DebitorShares, live)
	if !c1 && !c2 {
		return t
	}
	c := t.Clone()
	c.CreditorShares = creditors
	c.DebitorShares = debitors
	return c
}

func apply(out BalanceMap, t *entity.Transaction, eff BalanceEffect) {
	for id, paid := range eff.CommonCreditors {
		b := out[id]
		switch t.Kind {
		case entity.TransactionPurchase:
			b.TotalPaidPurchases = b.TotalPaidPurchases.Add(paid)
		case entity.TransactionTransfer:
			b.TotalPaidTransfers = b.TotalPaidTransfers.Add(paid)
		}
		b.Balance = b.Balance.Add(paid)
		out[id] = b
	}
	for id := range union(eff.Positions, eff.CommonDebitors) {
		got := eff.Positions[id].Add(eff.CommonDebitors[id])
		b := out[id]
		switch t.Kind {
		case entity.TransactionPurchase:
			b.TotalConsumedPurchases = b.TotalConsumedPurchases.Add(got)
		case entity.TransactionTransfer:
			b.TotalReceivedTransfers = b.TotalReceivedTransfers.Add(got)
		}
		b.Balance = b.Balance.Sub(got)
		out[id] = b
	}
}

func union(a, b map[int64]decimal.Decimal) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(a)+len(b))
	for id := range a {
		ids[id] = struct{}{}
	}
	for id := range b {
		ids[id] = struct{}{}
	}
	return ids
}
