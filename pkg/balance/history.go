package balance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/pkg/entity"
)

// HistoryEntry is one step of an account's running balance: the balance
// after folding the transaction that became effective at At.
type HistoryEntry struct {
	At            time.Time
	TransactionID int64
	Change        decimal.Decimal
	Balance       decimal.Decimal
}

// History folds the non-deleted transactions affecting one account in
// ascending billed-at order (ties broken by last-changed, then id) and
// returns the finite running-balance sequence. Clearing redistribution is a
// balance-level view and is not folded into histories.
func History(accountID int64, txs []*entity.Transaction, positions PositionSource) ([]HistoryEntry, error) {
	ordered := make([]*entity.Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.Deleted {
			ordered = append(ordered, t.Clone())
		}
	}
	entity.SortTransactionsForHistory(ordered)

	var out []HistoryEntry
	running := decimal.Zero
	for _, t := range ordered {
		eff, err := Effect(t, positions)
		if err != nil {
			return nil, err
		}
		change := eff.Total(accountID)
		if change.IsZero() {
			continue
		}
		running = running.Add(change)
		out = append(out, HistoryEntry{
			At:            t.BilledAt,
			TransactionID: t.ID,
			Change:        change,
			Balance:       running,
		})
	}
	return out, nil
}
