package model

// ProcState represents the lifecycle state of a process.
type ProcState string

const (
	ProcStateNew     ProcState = "NEW"
	ProcStateReady   ProcState = "READY"
	ProcStateRunning ProcState = "RUNNING"
	ProcStateDone    ProcState = "DONE"
)

// String returns the string representation of the process state.
func (s ProcState) String() string {
	return string(s)
}

// IsTerminal returns true if the process has finished.
func (s ProcState) IsTerminal() bool {
	return s == ProcStateDone
}

// ValidProcTransitions defines the allowed state transitions for processes.
// A running process is either preempted back to READY or finishes.
var ValidProcTransitions = map[ProcState][]ProcState{
	ProcStateNew:     {ProcStateReady},
	ProcStateReady:   {ProcStateRunning},
	ProcStateRunning: {ProcStateReady, ProcStateDone},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s ProcState) CanTransitionTo(next ProcState) bool {
	for _, allowed := range ValidProcTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Policy selects the scheduling strategy used for a run.
type Policy string

const (
	PolicyMLQ  Policy = "mlq"
	PolicyFIFO Policy = "fifo"
)

// String returns the string representation of the policy.
func (p Policy) String() string {
	return string(p)
}

// IsValid reports whether p names a known policy.
func (p Policy) IsValid() bool {
	switch p {
	case PolicyMLQ, PolicyFIFO:
		return true
	}
	return false
}
