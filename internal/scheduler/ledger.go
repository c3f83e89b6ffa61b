package scheduler

// Ledger holds the remaining dispatch turns of each priority level before
// the next global replenishment. Index is the priority level.
type Ledger []int

// Budget returns the full slot budget of level when there are levels levels.
// Higher priority (lower level) gets the larger budget.
func Budget(levels, level int) int {
	return levels - level
}

// NewLedger returns a ledger with every level at its full budget.
func NewLedger(levels int) Ledger {
	l := make(Ledger, levels)
	l.Replenish()
	return l
}

// Replenish resets every level to its full budget. It never resets a subset.
func (l Ledger) Replenish() {
	for i := range l {
		l[i] = Budget(len(l), i)
	}
}

// Clone returns an independent copy.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	copy(out, l)
	return out
}

// Exhausted reports whether every level with waiting work has no turns left.
// lens gives the number of waiting processes per level.
func (l Ledger) Exhausted(lens []int) bool {
	for i, n := range lens {
		if n > 0 && l[i] > 0 {
			return false
		}
	}
	return true
}
