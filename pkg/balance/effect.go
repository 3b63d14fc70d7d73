package balance

import (
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/pkg/entity"
)

// BalanceEffect decomposes one transaction's monetary impact per account.
// Positions holds the price parts attributed through position usages;
// CommonDebitors the remainder split by debitor shares; CommonCreditors the
// creditor side. Per account, Positions + CommonDebitors equal the account's
// total debit for the transaction; the decomposition exists for display and
// never changes totals.
type BalanceEffect struct {
	Positions       map[int64]decimal.Decimal
	CommonDebitors  map[int64]decimal.Decimal
	CommonCreditors map[int64]decimal.Decimal
}

// Total returns the signed net effect for one account: positive when the
// account paid more than it consumed through this transaction.
func (e BalanceEffect) Total(accountID int64) decimal.Decimal {
	return e.CommonCreditors[accountID].
		Sub(e.Positions[accountID]).
		Sub(e.CommonDebitors[accountID])
}

// Effect computes the balance effect of a single transaction. A transaction
// with an empty creditor or debitor share map has a zero effect. Share maps
// whose weights are all zero contribute nothing and never divide by zero; a
// position carrying neither usages nor communist shares is treated as fully
// communist so the transaction's value stays fully attributed.
func Effect(t *entity.Transaction, positions PositionSource) (BalanceEffect, error) {
	eff := BalanceEffect{
		Positions:       map[int64]decimal.Decimal{},
		CommonDebitors:  map[int64]decimal.Decimal{},
		CommonCreditors: map[int64]decimal.Decimal{},
	}
	if t.Deleted || t.CreditorShares.Empty() || t.DebitorShares.Empty() {
		return eff, nil
	}

	for id, w := range t.CreditorShares {
		if !w.IsPositive() {
			continue
		}
		eff.CommonCreditors[id] = t.CreditorShares.Share(t.Value, id)
	}

	commonPot := t.Value
	if t.Kind == entity.TransactionPurchase && positions != nil {
		poss, err := positions(t.ID)
		if err != nil {
			return BalanceEffect{}, err
		}
		for _, p := range poss {
			if p.Deleted {
				continue
			}
			commonPot = commonPot.Sub(p.Price)
			denom := p.Usages.TotalWeight().Add(p.CommunistShares)
			if !denom.IsPositive() {
				// No attribution possible: the whole price is common.
				commonPot = commonPot.Add(p.Price)
				continue
			}
			for id, w := range p.Usages {
				if !w.IsPositive() {
					continue
				}
				part := p.Price.Mul(w).Div(denom)
				eff.Positions[id] = eff.Positions[id].Add(part)
			}
			commonPot = commonPot.Add(p.Price.Mul(p.CommunistShares).Div(denom))
		}
	}

	for id, w := range t.DebitorShares {
		if !w.IsPositive() {
			continue
		}
		eff.CommonDebitors[id] = t.DebitorShares.Share(commonPot, id)
	}
	return eff, nil
}
