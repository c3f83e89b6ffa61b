// Package scheduler implements the CPU scheduling core: a multi-level queue
// policy with per-level slot budgets, plus a plain FIFO policy.
package scheduler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/me/ossched/internal/metrics"
	"github.com/me/ossched/pkg/model"
)

// Scheduler decides which ready process gets the CPU next.
// All methods are safe for concurrent use.
type Scheduler interface {
	// Init empties every ready queue and resets all slot budgets.
	// Calling it mid-run discards all scheduling history.
	Init()

	// Empty reports whether no process is waiting on any ready queue.
	Empty() bool

	// AddProc admits a newly runnable process.
	AddProc(p *model.PCB) error

	// PutProc returns a preempted process to its ready queue.
	PutProc(p *model.PCB) error

	// GetProc pops the next process to run. It returns false when no
	// process is available; that is a normal outcome, not an error.
	GetProc() (*model.PCB, bool)

	// Stats returns a consistent snapshot of the scheduler state.
	Stats() Stats
}

// Config holds the fixed sizing of a scheduler.
type Config struct {
	MaxPriority   int // number of priority levels; level 0 is highest
	QueueCapacity int // capacity of each ready queue
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxPriority: 140, QueueCapacity: 10}
}

// Validate checks that the sizes are usable.
func (c Config) Validate() error {
	if c.MaxPriority <= 0 {
		return fmt.Errorf("max priority must be positive, got %d", c.MaxPriority)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	return nil
}

// Stats is a point-in-time view of a scheduler.
type Stats struct {
	Policy         model.Policy `json:"policy"`
	MaxPriority    int          `json:"max_priority"`
	QueueCapacity  int          `json:"queue_capacity"`
	QueueLengths   []int        `json:"queue_lengths"`
	Ledger         []int        `json:"ledger,omitempty"`
	Dispatched     []uint64     `json:"dispatched"`
	Replenishments uint64       `json:"replenishments"`
	Idle           bool         `json:"idle"`
}

// Waiting returns the total number of queued processes.
func (s Stats) Waiting() int {
	n := 0
	for _, l := range s.QueueLengths {
		n += l
	}
	return n
}

// Option configures optional scheduler dependencies.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the logger used for dispatch and admission records.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the Prometheus collectors updated on every operation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a scheduler running the given policy.
func New(policy model.Policy, cfg Config, opts ...Option) (Scheduler, error) {
	switch policy {
	case model.PolicyMLQ:
		return NewMLQ(cfg, opts...)
	case model.PolicyFIFO:
		return NewFIFO(cfg, opts...)
	default:
		return nil, fmt.Errorf("unknown scheduling policy %q", policy)
	}
}

// checkAdmit validates a process before it is queued.
func checkAdmit(p *model.PCB, maxPriority int) error {
	if p == nil {
		return model.ErrNilPCB
	}
	if p.Priority < 0 || p.Priority >= maxPriority {
		return &model.PriorityError{PID: p.PID, Priority: p.Priority, Max: maxPriority}
	}
	return nil
}

// rejectReason maps an admission error to a metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrCapacity):
		return "capacity"
	case errors.Is(err, model.ErrInvalidPriority):
		return "priority"
	case errors.Is(err, model.ErrAlreadyQueued):
		return "duplicate"
	default:
		return "invalid"
	}
}
