package entity_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/splitledger/splitledger/pkg/entity"
)

func w(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestShareMapZeroWeightEqualsAbsence(t *testing.T) {
	withZero := entity.ShareMap{1: w("2"), 2: w("0")}
	without := entity.ShareMap{1: w("2")}

	assert.True(t, withZero.TotalWeight().Equal(without.TotalWeight()))
	assert.True(t, withZero.Fraction(1).Equal(without.Fraction(1)))
	assert.True(t, withZero.Fraction(2).IsZero())

	assert.True(t, entity.ShareMap{3: w("0")}.Empty())
	assert.True(t, entity.ShareMap{}.Empty())
	assert.False(t, withZero.Empty())
}

func TestShareMapFractionNeverDividesByZero(t *testing.T) {
	assert.True(t, entity.ShareMap{}.Fraction(1).IsZero())
	assert.True(t, entity.ShareMap{1: w("0")}.Fraction(1).IsZero())
}

func TestShareMapShareSplitsExactly(t *testing.T) {
	s := entity.ShareMap{1: w("1"), 2: w("2")}
	amount := w("30")

	assert.True(t, s.Share(amount, 1).Equal(w("10")))
	assert.True(t, s.Share(amount, 2).Equal(w("20")))
	assert.True(t, s.Share(amount, 9).IsZero())
	assert.True(t, entity.ShareMap{}.Share(amount, 1).IsZero())
	assert.True(t, entity.ShareMap{1: w("0")}.Share(amount, 1).IsZero())
}

func TestShareMapRemap(t *testing.T) {
	s := entity.ShareMap{-1: w("3"), 2: w("1")}
	s.Remap(-1, 100)
	assert.True(t, s[100].Equal(w("3")))
	assert.NotContains(t, s, int64(-1))

	// Absent old id is a no-op.
	s.Remap(-5, 200)
	assert.NotContains(t, s, int64(200))
}

func TestShareMapCloneIsIndependent(t *testing.T) {
	orig := entity.ShareMap{1: w("1")}
	c := orig.Clone()
	c[1] = w("9")
	c[2] = w("4")
	assert.True(t, orig[1].Equal(w("1")))
	assert.NotContains(t, orig, int64(2))
}

func TestValidateReportsNegativeWeights(t *testing.T) {
	assert.Empty(t, entity.ShareMap{1: w("0"), 2: w("5")}.Validate())
	assert.Equal(t, []int64{3}, entity.ShareMap{3: w("-1")}.Validate())
}
