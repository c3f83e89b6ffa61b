package scheduler

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/ossched/internal/metrics"
	"github.com/me/ossched/internal/queue"
	"github.com/me/ossched/pkg/model"
)

// FIFO serves processes strictly in admission order from one ready queue.
// Priorities are range-checked but do not affect ordering.
type FIFO struct {
	mu sync.Mutex

	cfg        Config
	ready      *queue.Bounded[*model.PCB]
	queued     map[uint32]struct{}
	dispatched uint64

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewFIFO creates an initialized FIFO scheduler.
func NewFIFO(cfg Config, opts ...Option) (*FIFO, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	f := &FIFO{
		cfg:     cfg,
		ready:   queue.New[*model.PCB](cfg.QueueCapacity),
		logger:  o.logger.With("component", "scheduler", "policy", model.PolicyFIFO),
		metrics: o.metrics,
	}
	f.Init()
	return f, nil
}

// Init empties the ready queue.
func (f *FIFO) Init() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ready.Reset()
	f.queued = make(map[uint32]struct{})
	f.dispatched = 0
	f.metrics.Reset()
}

// Empty reports whether the ready queue is empty.
func (f *FIFO) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready.IsEmpty()
}

// AddProc appends a newly runnable process.
func (f *FIFO) AddProc(p *model.PCB) error {
	return f.admit(p, "add")
}

// PutProc appends a preempted process.
func (f *FIFO) PutProc(p *model.PCB) error {
	return f.admit(p, "put")
}

func (f *FIFO) admit(p *model.PCB, op string) error {
	f.mu.Lock()
	err := checkAdmit(p, f.cfg.MaxPriority)
	if err == nil {
		if _, dup := f.queued[p.PID]; dup {
			err = fmt.Errorf("process %d: %w", p.PID, model.ErrAlreadyQueued)
		}
	}
	if err == nil {
		err = f.ready.Enqueue(p)
	}
	if err == nil {
		f.queued[p.PID] = struct{}{}
		f.metrics.Admitted(0, f.ready.Size())
	} else {
		f.metrics.Rejected(rejectReason(err))
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Warn("admit rejected", "op", op, "pcb", p.String(), "error", err)
		return err
	}
	f.logger.Debug("admitted", "op", op, "pid", p.PID)
	return nil
}

// GetProc pops the oldest waiting process.
func (f *FIFO) GetProc() (*model.PCB, bool) {
	f.mu.Lock()
	if f.ready.IsEmpty() {
		f.metrics.Idle()
		f.mu.Unlock()
		return nil, false
	}
	p, err := f.ready.Dequeue()
	if err != nil {
		f.mu.Unlock()
		panic(fmt.Sprintf("scheduler: dequeue from non-empty ready queue: %v", err))
	}
	delete(f.queued, p.PID)
	f.dispatched++
	f.metrics.Dispatched(0, f.ready.Size())
	f.mu.Unlock()

	f.logger.Debug("get process", "pid", p.PID, "queue", 0)
	return p, true
}

// Stats returns a snapshot taken under the lock.
func (f *FIFO) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Stats{
		Policy:        model.PolicyFIFO,
		MaxPriority:   f.cfg.MaxPriority,
		QueueCapacity: f.cfg.QueueCapacity,
		QueueLengths:  []int{f.ready.Size()},
		Dispatched:    []uint64{f.dispatched},
		Idle:          f.ready.IsEmpty(),
	}
}
