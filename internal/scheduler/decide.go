package scheduler

// Decision is the outcome of one MLQ selection.
type Decision struct {
	Level     int  // level to pop from; -1 when Idle
	Replenish bool // the ledger was reset before choosing Level
	Idle      bool // no process waits on any level
	Checks    int  // level checks performed, at most 2*levels
}

// Decide runs the MLQ selection over a ledger and the per-level queue lengths
// and returns the decision together with the ledger to use afterwards.
// The input ledger is not modified.
//
// Levels are scanned from 0. The first level with both a positive budget and a
// waiting process wins and its budget drops by one. If no level qualifies and
// every queue is empty the result is Idle. Otherwise every level is
// replenished and the scan restarts, which must then succeed because each
// level's full budget is at least one.
func Decide(ledger Ledger, lens []int) (Decision, Ledger) {
	next := ledger.Clone()
	d := Decision{Level: -1}

	for pass := 0; pass < 2; pass++ {
		for i, n := range lens {
			d.Checks++
			if next[i] > 0 && n > 0 {
				next[i]--
				d.Level = i
				return d, next
			}
		}
		if allEmpty(lens) {
			d.Idle = true
			return d, next
		}
		next.Replenish()
		d.Replenish = true
	}

	panic("scheduler: no level selectable after replenishment")
}

func allEmpty(lens []int) bool {
	for _, n := range lens {
		if n > 0 {
			return false
		}
	}
	return true
}
