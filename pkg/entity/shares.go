package entity

import "github.com/shopspring/decimal"

// ShareMap assigns a non-negative weight to account ids. A weight of exactly
// zero is equivalent to the key being absent; every consumer must treat the
// two identically.
type ShareMap map[int64]decimal.Decimal

// TotalWeight sums all weights. Zero-weight keys contribute nothing.
func (s ShareMap) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, w := range s {
		total = total.Add(w)
	}
	return total
}

// Empty reports whether the map carries no effective weight, counting
// zero-weight keys as absent.
func (s ShareMap) Empty() bool {
	for _, w := range s {
		if w.IsPositive() {
			return false
		}
	}
	return true
}

// Fraction returns weight(id) / total, or zero when the map carries no
// weight. Never divides by zero.
func (s ShareMap) Fraction(id int64) decimal.Decimal {
	total := s.TotalWeight()
	if !total.IsPositive() {
		return decimal.Zero
	}
	return s[id].Div(total)
}

// Share returns amount * weight(id) / total, or zero when the map carries no
// weight. Multiplying before dividing keeps exact ratios exact: 30 split 1:2
// yields 10 and 20, with no rounding residue from a truncated fraction.
func (s ShareMap) Share(amount decimal.Decimal, id int64) decimal.Decimal {
	total := s.TotalWeight()
	if !total.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(s[id]).Div(total)
}

// Clone returns an independent copy.
func (s ShareMap) Clone() ShareMap {
	if s == nil {
		return nil
	}
	out := make(ShareMap, len(s))
	for id, w := range s {
		out[id] = w
	}
	return out
}

// Remap moves the weight keyed under oldID to newID. No-op when oldID is
// absent.
func (s ShareMap) Remap(oldID, newID int64) {
	if w, ok := s[oldID]; ok {
		delete(s, oldID)
		s[newID] = w
	}
}

// Validate reports the ids carrying negative weights.
func (s ShareMap) Validate() []int64 {
	var bad []int64
	for id, w := range s {
		if w.IsNegative() {
			bad = append(bad, id)
		}
	}
	return bad
}
