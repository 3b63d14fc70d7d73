package balance_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitledger/splitledger/pkg/apperr"
	"github.com/splitledger/splitledger/pkg/balance"
	"github.com/splitledger/splitledger/pkg/entity"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func personal(id int64) *entity.Account {
	return &entity.Account{ID: id, Kind: entity.AccountPersonal, Name: "p"}
}

func clearing(id int64, shares entity.ShareMap) *entity.Account {
	return &entity.Account{
		ID:       id,
		Kind:     entity.AccountClearing,
		Name:     "c",
		Clearing: &entity.ClearingDetails{Shares: shares},
	}
}

func purchase(id int64, value int64, creditors, debitors entity.ShareMap) *entity.Transaction {
	return &entity.Transaction{
		ID:             id,
		Kind:           entity.TransactionPurchase,
		Name:           "purchase",
		Value:          d(value),
		CreditorShares: creditors,
		DebitorShares:  debitors,
	}
}

func noPositions(int64) ([]*entity.Position, error) { return nil, nil }

func requireEq(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(d(want)), "want %d, got %s", want, got)
}

// Scenario A from the engine contract: value 30, creditor P1, debitors P1
// and P2 equally.
func TestPurchaseEvenSplit(t *testing.T) {
	accounts := []*entity.Account{personal(1), personal(2)}
	txs := []*entity.Transaction{
		purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{1: d(1), 2: d(1)}),
	}

	got, err := balance.Compute(accounts, txs, noPositions)
	require.NoError(t, err)

	requireEq(t, 15, got[1].Balance)
	requireEq(t, -15, got[2].Balance)
	requireEq(t, 30, got[1].TotalPaidPurchases)
	requireEq(t, 15, got[1].TotalConsumedPurchases)
	requireEq(t, 15, got[2].TotalConsumedPurchases)
}

// Scenario B: one position of 10 used only by P2, remainder 20 split evenly.
func TestPurchaseWithPositionDecomposition(t *testing.T) {
	tx := purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{1: d(1), 2: d(1)})
	positions := func(txID int64) ([]*entity.Position, error) {
		require.Equal(t, int64(10), txID)
		return []*entity.Position{{
			ID:            100,
			TransactionID: 10,
			Name:          "beer",
			Price:         d(10),
			Usages:        entity.ShareMap{2: d(1)},
		}}, nil
	}

	eff, err := balance.Effect(tx, positions)
	require.NoError(t, err)
	requireEq(t, 10, eff.CommonDebitors[1])
	requireEq(t, 10, eff.Positions[2])
	requireEq(t, 10, eff.CommonDebitors[2])
	requireEq(t, 30, eff.CommonCreditors[1])

	// Decomposition must not change totals: P1 +20, P2 -20 nets against the
	// credit of 30.
	requireEq(t, 20, eff.Total(1))
	requireEq(t, -20, eff.Total(2))

	got, err := balance.Compute(
		[]*entity.Account{personal(1), personal(2)},
		[]*entity.Transaction{tx},
		positions,
	)
	require.NoError(t, err)
	requireEq(t, 20, got[1].Balance)
	requireEq(t, -20, got[2].Balance)
}

func TestTransfer(t *testing.T) {
	tx := &entity.Transaction{
		ID:             11,
		Kind:           entity.TransactionTransfer,
		Name:           "payback",
		Value:          d(10),
		CreditorShares: entity.ShareMap{2: d(1)},
		DebitorShares:  entity.ShareMap{1: d(1)},
	}
	got, err := balance.Compute([]*entity.Account{personal(1), personal(2)}, []*entity.Transaction{tx}, noPositions)
	require.NoError(t, err)
	requireEq(t, -10, got[1].Balance)
	requireEq(t, 10, got[2].Balance)
	requireEq(t, 10, got[2].TotalPaidTransfers)
	requireEq(t, 10, got[1].TotalReceivedTransfers)
}

func TestZeroSumProperty(t *testing.T) {
	accounts := []*entity.Account{personal(1), personal(2), personal(3)}
	txs := []*entity.Transaction{
		purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{1: d(1), 2: d(1), 3: d(1)}),
		purchase(11, 7, entity.ShareMap{2: d(2), 3: d(1)}, entity.ShareMap{1: d(5)}),
		{
			ID: 12, Kind: entity.TransactionTransfer, Name: "t", Value: d(13),
			CreditorShares: entity.ShareMap{3: d(1)}, DebitorShares: entity.ShareMap{2: d(1)},
		},
	}
	got, err := balance.Compute(accounts, txs, noPositions)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, b := range got {
		sum = sum.Add(b.Balance)
	}
	eps := decimal.New(1, -2)
	assert.True(t, sum.Abs().LessThan(eps), "sum %s not within epsilon", sum)
}

func TestIncompleteTransactionContributesNothing(t *testing.T) {
	accounts := []*entity.Account{personal(1), personal(2)}
	txs := []*entity.Transaction{
		purchase(10, 30, entity.ShareMap{}, entity.ShareMap{1: d(1)}),
		purchase(11, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{}),
		// All-zero weights are equivalent to absence.
		purchase(12, 30, entity.ShareMap{1: d(0)}, entity.ShareMap{2: d(1)}),
	}
	got, err := balance.Compute(accounts, txs, noPositions)
	require.NoError(t, err)
	requireEq(t, 0, got[1].Balance)
	requireEq(t, 0, got[2].Balance)
}

// A three-way split of 30 must yield exactly 10 per head; a truncated
// per-head fraction would leave a residue on every balance.
func TestUnevenSplitStaysExact(t *testing.T) {
	accounts := []*entity.Account{personal(1), personal(2), personal(3)}
	txs := []*entity.Transaction{
		purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{1: d(1), 2: d(1), 3: d(1)}),
	}

	got, err := balance.Compute(accounts, txs, noPositions)
	require.NoError(t, err)
	requireEq(t, 20, got[1].Balance)
	requireEq(t, -10, got[2].Balance)
	requireEq(t, -10, got[3].Balance)
}

func TestDeletedAccountReceivesNoShare(t *testing.T) {
	gone := personal(2)
	gone.Deleted = true
	accounts := []*entity.Account{personal(1), gone, personal(3)}
	txs := []*entity.Transaction{
		purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{1: d(1), 2: d(1), 3: d(1)}),
	}

	got, err := balance.Compute(accounts, txs, noPositions)
	require.NoError(t, err)

	_, ok := got[2]
	assert.False(t, ok, "a deleted account must not re-enter through a share map")
	// The deleted debitor's weight falls to the survivors: 30 split 1:1.
	requireEq(t, 15, got[1].Balance)
	requireEq(t, -15, got[3].Balance)
}

func TestDeletedAccountUsageRedistributed(t *testing.T) {
	gone := personal(3)
	gone.Deleted = true
	accounts := []*entity.Account{personal(1), personal(2), gone}
	tx := purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{1: d(1), 2: d(1)})
	positions := func(int64) ([]*entity.Position, error) {
		return []*entity.Position{{
			ID:            100,
			TransactionID: 10,
			Name:          "beer",
			Price:         d(30),
			Usages:        entity.ShareMap{2: d(1), 3: d(1)},
		}}, nil
	}

	got, err := balance.Compute(accounts, []*entity.Transaction{tx}, positions)
	require.NoError(t, err)

	_, ok := got[3]
	assert.False(t, ok)
	requireEq(t, 30, got[1].Balance)
	requireEq(t, -30, got[2].Balance)
}

func TestClearingResolutionSkipsDeletedParticipant(t *testing.T) {
	gone := personal(2)
	gone.Deleted = true
	accounts := []*entity.Account{
		personal(1), gone,
		clearing(3, entity.ShareMap{1: d(1), 2: d(1)}),
	}
	txs := []*entity.Transaction{
		purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{3: d(1)}),
	}

	got, err := balance.Compute(accounts, txs, noPositions)
	require.NoError(t, err)

	_, ok := got[2]
	assert.False(t, ok)
	requireEq(t, 0, got[3].Balance)
	// P1 paid 30 and absorbs the whole redistribution.
	requireEq(t, 0, got[1].Balance)
}

func TestDeletedExcluded(t *testing.T) {
	deletedTx := purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{2: d(1)})
	deletedTx.Deleted = true
	deletedAcct := personal(3)
	deletedAcct.Deleted = true

	got, err := balance.Compute(
		[]*entity.Account{personal(1), personal(2), deletedAcct},
		[]*entity.Transaction{deletedTx},
		noPositions,
	)
	require.NoError(t, err)
	requireEq(t, 0, got[1].Balance)
	_, ok := got[3]
	assert.False(t, ok, "deleted account must not appear in balances")
}

func TestClearingResolution(t *testing.T) {
	// Purchase of 30 paid by P1, consumed by clearing account C (id 3),
	// which redistributes 1:2 to P1 and P2.
	accounts := []*entity.Account{
		personal(1), personal(2),
		clearing(3, entity.ShareMap{1: d(1), 2: d(2)}),
	}
	txs := []*entity.Transaction{
		purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{3: d(1)}),
	}

	got, err := balance.Compute(accounts, txs, noPositions)
	require.NoError(t, err)

	requireEq(t, 0, got[3].Balance)
	requireEq(t, 20, got[1].Balance)  // paid 30, owes 10 of the split
	requireEq(t, -20, got[2].Balance) // owes 20
	requireEq(t, -10, got[3].ClearingResolution[1])
	requireEq(t, -20, got[3].ClearingResolution[2])
}

func TestClearingChain(t *testing.T) {
	// C4 consumes, redistributes fully to C3, which splits between P1, P2.
	accounts := []*entity.Account{
		personal(1), personal(2),
		clearing(3, entity.ShareMap{1: d(1), 2: d(1)}),
		clearing(4, entity.ShareMap{3: d(1)}),
	}
	txs := []*entity.Transaction{
		purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{4: d(1)}),
	}

	got, err := balance.Compute(accounts, txs, noPositions)
	require.NoError(t, err)
	requireEq(t, 0, got[4].Balance)
	requireEq(t, 0, got[3].Balance)
	requireEq(t, 15, got[1].Balance)
	requireEq(t, -15, got[2].Balance)
}

func TestClearingCycleFailsClosed(t *testing.T) {
	accounts := []*entity.Account{
		personal(1),
		clearing(3, entity.ShareMap{4: d(1)}),
		clearing(4, entity.ShareMap{3: d(1)}),
	}
	txs := []*entity.Transaction{
		purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{3: d(1)}),
	}
	_, err := balance.Compute(accounts, txs, noPositions)
	require.ErrorIs(t, err, apperr.ErrCyclicClearing)
}

func TestHistoryOrderingAndFold(t *testing.T) {
	day := func(n int) time.Time { return time.Date(2024, 3, n, 0, 0, 0, 0, time.UTC) }

	t1 := purchase(10, 30, entity.ShareMap{1: d(1)}, entity.ShareMap{1: d(1), 2: d(1)})
	t1.BilledAt = day(2)
	t2 := purchase(11, 10, entity.ShareMap{2: d(1)}, entity.ShareMap{1: d(1)})
	t2.BilledAt = day(1)
	// Same billed date as t1, higher id: must come after t1.
	t3 := purchase(12, 4, entity.ShareMap{2: d(1)}, entity.ShareMap{1: d(1)})
	t3.BilledAt = day(2)

	entries, err := balance.History(1, []*entity.Transaction{t1, t2, t3}, noPositions)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(11), entries[0].TransactionID)
	assert.Equal(t, int64(10), entries[1].TransactionID)
	assert.Equal(t, int64(12), entries[2].TransactionID)

	requireEq(t, -10, entries[0].Balance)
	requireEq(t, 5, entries[1].Balance)
	requireEq(t, 1, entries[2].Balance)

	// Restartable: computing again yields the same sequence.
	again, err := balance.History(1, []*entity.Transaction{t1, t2, t3}, noPositions)
	require.NoError(t, err)
	assert.Equal(t, entries, again)
}
