package scheduler

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/me/ossched/internal/metrics"
	"github.com/me/ossched/internal/queue"
	"github.com/me/ossched/pkg/model"
)

// MLQ is the multi-level queue scheduler. One mutex guards the ready queues
// and the slot ledger together; neither is reachable without it.
type MLQ struct {
	mu sync.Mutex

	cfg            Config
	queues         []*queue.Bounded[*model.PCB]
	ledger         Ledger
	queued         map[uint32]int // pid -> level, for processes on a ready queue
	dispatched     []uint64
	replenishments uint64

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewMLQ creates an initialized MLQ scheduler.
func NewMLQ(cfg Config, opts ...Option) (*MLQ, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	m := &MLQ{
		cfg:     cfg,
		queues:  make([]*queue.Bounded[*model.PCB], cfg.MaxPriority),
		logger:  o.logger.With("component", "scheduler", "policy", model.PolicyMLQ),
		metrics: o.metrics,
	}
	for i := range m.queues {
		m.queues[i] = queue.NewLevel[*model.PCB](cfg.QueueCapacity, i)
	}
	m.Init()
	return m, nil
}

// Init empties every queue and sets each level's budget to MaxPriority - level.
func (m *MLQ) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, q := range m.queues {
		q.Reset()
	}
	m.ledger = NewLedger(m.cfg.MaxPriority)
	m.queued = make(map[uint32]int)
	m.dispatched = make([]uint64, m.cfg.MaxPriority)
	m.replenishments = 0
	m.metrics.Reset()
}

// Empty reports whether every ready queue is empty.
func (m *MLQ) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emptyLocked()
}

func (m *MLQ) emptyLocked() bool {
	for _, q := range m.queues {
		if !q.IsEmpty() {
			return false
		}
	}
	return true
}

// AddProc admits a newly runnable process onto the queue of its priority.
func (m *MLQ) AddProc(p *model.PCB) error {
	return m.admit(p, "add")
}

// PutProc returns a preempted process onto the queue of its priority.
// New and returning processes are treated the same.
func (m *MLQ) PutProc(p *model.PCB) error {
	return m.admit(p, "put")
}

func (m *MLQ) admit(p *model.PCB, op string) error {
	m.mu.Lock()
	err := m.admitLocked(p)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("admit rejected", "op", op, "pcb", p.String(), "error", err)
		return err
	}
	m.logger.Debug("admitted", "op", op, "pid", p.PID, "queue", p.Priority)
	return nil
}

func (m *MLQ) admitLocked(p *model.PCB) error {
	err := checkAdmit(p, m.cfg.MaxPriority)
	if err == nil {
		if _, dup := m.queued[p.PID]; dup {
			err = fmt.Errorf("process %d: %w", p.PID, model.ErrAlreadyQueued)
		}
	}
	if err == nil {
		err = m.queues[p.Priority].Enqueue(p)
	}
	if err != nil {
		m.metrics.Rejected(rejectReason(err))
		return err
	}
	m.queued[p.PID] = p.Priority
	m.metrics.Admitted(p.Priority, m.queues[p.Priority].Size())
	return nil
}

// GetProc pops the next process according to the MLQ slot policy.
func (m *MLQ) GetProc() (*model.PCB, bool) {
	m.mu.Lock()
	p, d := m.selectLocked()
	m.mu.Unlock()

	if d.Replenish {
		m.logger.Debug("slot budgets replenished")
	}
	if p == nil {
		return nil, false
	}
	m.logger.Debug("get process", "pid", p.PID, "queue", d.Level)
	return p, true
}

func (m *MLQ) selectLocked() (*model.PCB, Decision) {
	lens := make([]int, len(m.queues))
	for i, q := range m.queues {
		lens[i] = q.Size()
	}

	d, next := Decide(m.ledger, lens)
	m.ledger = next
	if d.Replenish {
		m.replenishments++
		m.metrics.Replenished()
	}
	if d.Idle {
		m.metrics.Idle()
		return nil, d
	}

	p, err := m.queues[d.Level].Dequeue()
	if err != nil {
		// Decide only picks levels with waiting processes.
		panic(fmt.Sprintf("scheduler: dequeue from selected level %d: %v", d.Level, err))
	}
	delete(m.queued, p.PID)
	m.dispatched[d.Level]++
	m.metrics.Dispatched(d.Level, m.queues[d.Level].Size())
	return p, d
}

// Stats returns a snapshot taken under the lock.
func (m *MLQ) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Policy:         model.PolicyMLQ,
		MaxPriority:    m.cfg.MaxPriority,
		QueueCapacity:  m.cfg.QueueCapacity,
		QueueLengths:   make([]int, len(m.queues)),
		Ledger:         m.ledger.Clone(),
		Dispatched:     make([]uint64, len(m.dispatched)),
		Replenishments: m.replenishments,
		Idle:           m.emptyLocked(),
	}
	for i, q := range m.queues {
		s.QueueLengths[i] = q.Size()
	}
	copy(s.Dispatched, m.dispatched)
	return s
}

// Queued returns the PIDs waiting on level in FIFO order.
func (m *MLQ) Queued(level int) []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if level < 0 || level >= len(m.queues) {
		return nil
	}
	items := m.queues[level].Items()
	pids := make([]uint32, len(items))
	for i, p := range items {
		pids[i] = p.PID
	}
	return pids
}
