package model

import "time"

// Run is one simulated execution of a workload.
type Run struct {
	ID             string     `json:"id"`
	Policy         Policy     `json:"policy"`
	MaxPriority    int        `json:"max_priority"`
	CPUs           int        `json:"cpus"`
	TimeSlice      int64      `json:"time_slice"`
	Processes      int        `json:"processes"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Clock          int64      `json:"clock"`
	Dispatches     int        `json:"dispatches"`
	Replenishments uint64     `json:"replenishments"`
	MeanWait       float64    `json:"mean_wait"`
	StdDevWait     float64    `json:"stddev_wait"`
}

// Dispatch records one time slice handed to a process.
type Dispatch struct {
	Seq      int64  `json:"seq"`
	CPU      int    `json:"cpu"`
	PID      uint32 `json:"pid"`
	Priority int    `json:"priority"`
	Start    int64  `json:"start"` // logical clock when the slice began
	Ran      int64  `json:"ran"`   // ticks used
	Finished bool   `json:"finished"`
}
