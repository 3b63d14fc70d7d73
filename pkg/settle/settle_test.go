package settle_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitledger/splitledger/pkg/balance"
	"github.com/splitledger/splitledger/pkg/settle"
)

func balances(m map[int64]int64) balance.BalanceMap {
	out := balance.BalanceMap{}
	for id, v := range m {
		out[id] = balance.AccountBalance{Balance: decimal.NewFromInt(v)}
	}
	return out
}

// A:+30, B:-10, C:-20 settles in exactly two transfers.
func TestPlanThreeAccounts(t *testing.T) {
	bals := balances(map[int64]int64{1: 30, 2: -10, 3: -20})

	plan := settle.Plan(bals)
	require.Len(t, plan, 2)

	// Largest debtor first: C owes 20.
	assert.Equal(t, int64(3), plan[0].From)
	assert.Equal(t, int64(1), plan[0].To)
	assert.True(t, plan[0].Amount.Equal(decimal.NewFromInt(20)))

	assert.Equal(t, int64(2), plan[1].From)
	assert.Equal(t, int64(1), plan[1].To)
	assert.True(t, plan[1].Amount.Equal(decimal.NewFromInt(10)))

	assert.True(t, settle.Settled(settle.Apply(bals, plan)))
}

func TestPlanEmptyAndSettledInput(t *testing.T) {
	assert.Empty(t, settle.Plan(balance.BalanceMap{}))
	assert.Empty(t, settle.Plan(balances(map[int64]int64{1: 0, 2: 0})))
}

func TestPlanDeterministicOnTies(t *testing.T) {
	bals := balances(map[int64]int64{4: -5, 2: -5, 1: 10})
	first := settle.Plan(bals)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, settle.Plan(bals))
	}
	// Lowest id wins the tie between equal debtors.
	assert.Equal(t, int64(2), first[0].From)
}

func TestPlanTerminatesWithinNMinusOne(t *testing.T) {
	bals := balances(map[int64]int64{1: 7, 2: 13, 3: -4, 4: -6, 5: -10})
	plan := settle.Plan(bals)
	assert.LessOrEqual(t, len(plan), 4)
	assert.True(t, settle.Settled(settle.Apply(bals, plan)))
}

func TestPlanFractionalResidue(t *testing.T) {
	third := decimal.NewFromInt(10).Div(decimal.NewFromInt(3))
	bals := balance.BalanceMap{
		1: {Balance: third.Mul(decimal.NewFromInt(2))},
		2: {Balance: third.Neg()},
		3: {Balance: third.Neg()},
	}
	plan := settle.Plan(bals)
	assert.True(t, settle.Settled(settle.Apply(bals, plan)))
}
