// Package settle turns a balance map into a transfer plan that zeroes every
// account.
package settle

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/pkg/balance"
)

// Epsilon is the settlement quantum: balances within this distance of zero
// are considered settled.
var Epsilon = decimal.New(1, -2) // 0.01

// Transfer is one planned payment: From pays To.
type Transfer struct {
	From   int64
	To     int64
	Amount decimal.Decimal
}

// Plan produces an ordered transfer sequence that zeroes all balances:
// repeatedly the largest debtor pays the largest creditor the smaller of the
// two magnitudes. The plan is deterministic (ties broken by account id
// ascending) and needs at most n-1 transfers for n unsettled accounts. It is
// greedy, not guaranteed minimal in count.
func Plan(balances balance.BalanceMap) []Transfer {
	type acct struct {
		id  int64
		bal decimal.Decimal
	}
	var open []acct
	for id, b := range balances {
		if b.Balance.Abs().GreaterThanOrEqual(Epsilon) {
			open = append(open, acct{id: id, bal: b.Balance})
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].id < open[j].id })

	var plan []Transfer
	for {
		debtor, creditor := -1, -1
		for i, a := range open {
			if a.bal.LessThanOrEqual(Epsilon.Neg()) && (debtor == -1 || a.bal.LessThan(open[debtor].bal)) {
				debtor = i
			}
			if a.bal.GreaterThanOrEqual(Epsilon) && (creditor == -1 || a.bal.GreaterThan(open[creditor].bal)) {
				creditor = i
			}
		}
		if debtor == -1 || creditor == -1 {
			return plan
		}
		amount := decimal.Min(open[debtor].bal.Neg(), open[creditor].bal)
		plan = append(plan, Transfer{
			From:   open[debtor].id,
			To:     open[creditor].id,
			Amount: amount,
		})
		open[debtor].bal = open[debtor].bal.Add(amount)
		open[creditor].bal = open[creditor].bal.Sub(amount)
	}
}

// Apply folds the plan's transfers back into a copy of the balances, as
// synthetic deltas. Used to verify a plan settles the group.
func Apply(balances balance.BalanceMap, plan []Transfer) balance.BalanceMap {
	out := make(balance.BalanceMap, len(balances))
	for id, b := range balances {
		out[id] = b
	}
	for _, tr := range plan {
		from := out[tr.From]
		from.Balance = from.Balance.Add(tr.Amount)
		out[tr.From] = from
		to := out[tr.To]
		to.Balance = to.Balance.Sub(tr.Amount)
		out[tr.To] = to
	}
	return out
}

// Settled reports whether every balance is within Epsilon of zero.
func Settled(balances balance.BalanceMap) bool {
	for _, b := range balances {
		if b.Balance.Abs().GreaterThanOrEqual(Epsilon) {
			return false
		}
	}
	return true
}
