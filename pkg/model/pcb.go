package model

import "fmt"

// PCB is a process control block as seen by the scheduler.
//
// The scheduler reads only PID and Priority. The remaining fields belong to the
// execution loop that owns the PCB; the scheduler holds a non-owning pointer while
// the PCB sits in a ready queue.
type PCB struct {
	PID      uint32 `json:"pid" yaml:"pid"`
	Priority int    `json:"priority" yaml:"priority"`

	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Arrival   int64     `json:"arrival" yaml:"arrival"`
	Burst     int64     `json:"burst" yaml:"burst"`
	Remaining int64     `json:"remaining" yaml:"-"`
	State     ProcState `json:"state" yaml:"-"`
}

// NewPCB creates a PCB in the NEW state.
func NewPCB(pid uint32, priority int) *PCB {
	return &PCB{PID: pid, Priority: priority, State: ProcStateNew}
}

// String returns a short human-readable form.
func (p *PCB) String() string {
	if p == nil {
		return "<nil>"
	}
	if p.Name != "" {
		return fmt.Sprintf("%d(%s,prio=%d)", p.PID, p.Name, p.Priority)
	}
	return fmt.Sprintf("%d(prio=%d)", p.PID, p.Priority)
}

// Transition moves the PCB to next, rejecting transitions the lifecycle does not allow.
func (p *PCB) Transition(next ProcState) error {
	if !p.State.CanTransitionTo(next) {
		return &InvalidTransitionError{
			Entity: "Process",
			ID:     fmt.Sprintf("%d", p.PID),
			From:   p.State.String(),
			To:     next.String(),
		}
	}
	p.State = next
	return nil
}
