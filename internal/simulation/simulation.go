// Package simulation drives a scheduler the way a kernel's execution loop
// would: a loader admits processes as they arrive and a set of CPUs repeatedly
// take a process, run it for one time slice and hand it back.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/me/ossched/internal/scheduler"
	"github.com/me/ossched/pkg/model"
)

// Config holds the execution loop settings.
type Config struct {
	CPUs         int
	TimeSlice    int64         // ticks per dispatch
	Tick         time.Duration // wall time per tick, 0 runs as fast as possible
	PollInterval time.Duration // back-off when no process is ready
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{CPUs: 2, TimeSlice: 2, PollInterval: time.Millisecond}
}

// Validate rejects unusable settings.
func (c Config) Validate() error {
	if c.CPUs <= 0 {
		return fmt.Errorf("cpus must be positive, got %d", c.CPUs)
	}
	if c.TimeSlice <= 0 {
		return fmt.Errorf("time slice must be positive, got %d", c.TimeSlice)
	}
	if c.Tick < 0 {
		return fmt.Errorf("tick must not be negative, got %v", c.Tick)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.PollInterval)
	}
	return nil
}

// Recorder receives the trace of a run. Errors are logged and do not stop the run.
type Recorder interface {
	BeginRun(ctx context.Context, run *model.Run) error
	RecordDispatch(ctx context.Context, runID string, d model.Dispatch) error
	FinishRun(ctx context.Context, run *model.Run) error
}

// ProcResult summarizes one finished process.
type ProcResult struct {
	PID        uint32 `json:"pid"`
	Name       string `json:"name,omitempty"`
	Priority   int    `json:"priority"`
	Arrival    int64  `json:"arrival"`
	Burst      int64  `json:"burst"`
	Finish     int64  `json:"finish"`
	Turnaround int64  `json:"turnaround"`
	Wait       int64  `json:"wait"`
	Dispatches int    `json:"dispatches"`
}

// Result is the outcome of a run.
type Result struct {
	Run        model.Run        `json:"run"`
	Dispatches []model.Dispatch `json:"dispatches"`
	Procs      []ProcResult     `json:"procs"`
	Elapsed    time.Duration    `json:"elapsed"`
}

// Option configures optional simulator dependencies.
type Option func(*Simulator)

// WithRecorder sets where the dispatch trace is written.
func WithRecorder(r Recorder) Option {
	return func(s *Simulator) {
		s.recorder = r
	}
}

// Simulator runs workloads against one scheduler. A Simulator runs one
// workload at a time.
type Simulator struct {
	sched    scheduler.Scheduler
	config   Config
	logger   *slog.Logger
	recorder Recorder

	// clock counts executed ticks across all CPUs; the loader may move it
	// forward to the next arrival when nothing is runnable.
	clock      atomic.Int64
	seq        atomic.Int64
	running    atomic.Int64 // CPUs between GetProc and the end of their slice
	unfinished atomic.Int64

	mu         sync.Mutex
	dispatches []model.Dispatch
	finish     map[uint32]int64
}

// New creates a simulator around sched.
func New(sched scheduler.Scheduler, cfg Config, logger *slog.Logger, opts ...Option) *Simulator {
	s := &Simulator{
		sched:  sched,
		config: cfg,
		logger: logger.With("component", "simulation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes procs to completion, or until ctx is cancelled or a scheduler
// call fails in a way the loop cannot recover from.
func (s *Simulator) Run(ctx context.Context, procs []*model.PCB) (*Result, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	s.reset(len(procs))

	stats := s.sched.Stats()
	run := &model.Run{
		ID:          "run_" + uuid.New().String(),
		Policy:      stats.Policy,
		MaxPriority: stats.MaxPriority,
		CPUs:        s.config.CPUs,
		TimeSlice:   s.config.TimeSlice,
		Processes:   len(procs),
		StartedAt:   time.Now().UTC(),
	}
	logger := s.logger.With("run_id", run.ID)
	if s.recorder != nil {
		if err := s.recorder.BeginRun(ctx, run); err != nil {
			logger.Error("record run start", "error", err)
		}
	}
	logger.Info("simulation started", "processes", len(procs), "cpus", s.config.CPUs, "policy", run.Policy)
	started := time.Now()

	// Processes present at time zero are loaded before any CPU starts.
	pending := sortByArrival(procs)
	for len(pending) > 0 && pending[0].Arrival <= 0 {
		ok, err := s.tryLoad(pending[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			break // queue full; the loader retries once CPUs run
		}
		pending = pending[1:]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loader(gctx, pending)
	})
	for cpu := 0; cpu < s.config.CPUs; cpu++ {
		cpu := cpu
		g.Go(func() error {
			return s.cpu(gctx, logger, cpu, run.ID)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation %s: %w", run.ID, err)
	}

	res := s.result(run, procs)
	res.Elapsed = time.Since(started)
	res.Run.Replenishments = s.sched.Stats().Replenishments
	completed := time.Now().UTC()
	res.Run.CompletedAt = &completed

	if s.recorder != nil {
		if err := s.recorder.FinishRun(ctx, &res.Run); err != nil {
			logger.Error("record run finish", "error", err)
		}
	}
	logger.Info("simulation finished",
		"clock", res.Run.Clock,
		"dispatches", res.Run.Dispatches,
		"replenishments", res.Run.Replenishments,
		"mean_wait", res.Run.MeanWait,
	)
	return res, nil
}

func (s *Simulator) reset(n int) {
	s.clock.Store(0)
	s.seq.Store(0)
	s.running.Store(0)
	s.unfinished.Store(int64(n))
	s.mu.Lock()
	s.dispatches = nil
	s.finish = make(map[uint32]int64, n)
	s.mu.Unlock()
}

func sortByArrival(procs []*model.PCB) []*model.PCB {
	out := make([]*model.PCB, len(procs))
	copy(out, procs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Arrival < out[j].Arrival })
	return out
}

// tryLoad admits p. It reports false when p's ready queue is full.
func (s *Simulator) tryLoad(p *model.PCB) (bool, error) {
	if p.State == model.ProcStateNew {
		if p.Remaining == 0 {
			p.Remaining = p.Burst
		}
		if err := p.Transition(model.ProcStateReady); err != nil {
			return false, err
		}
	}
	err := s.sched.AddProc(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, model.ErrCapacity):
		return false, nil
	default:
		return false, fmt.Errorf("load process %d: %w", p.PID, err)
	}
}

// load admits p, waiting for room while its ready queue is full.
func (s *Simulator) load(ctx context.Context, p *model.PCB) error {
	for {
		ok, err := s.tryLoad(p)
		if err != nil || ok {
			return err
		}
		// CPUs drain the queue; retry once they have made room.
		if err := sleep(ctx, s.config.PollInterval); err != nil {
			return err
		}
	}
}

// loader admits each process once the clock reaches its arrival time.
func (s *Simulator) loader(ctx context.Context, pending []*model.PCB) error {
	for _, p := range pending {
		for s.clock.Load() < p.Arrival {
			if s.sched.Empty() && s.running.Load() == 0 {
				s.advanceTo(p.Arrival)
				break
			}
			if err := sleep(ctx, s.config.PollInterval); err != nil {
				return err
			}
		}
		if err := s.load(ctx, p); err != nil {
			return err
		}
		s.logger.Debug("loaded process", "pid", p.PID, "priority", p.Priority, "arrival", p.Arrival)
	}
	return nil
}

func (s *Simulator) advanceTo(t int64) {
	for {
		now := s.clock.Load()
		if now >= t || s.clock.CompareAndSwap(now, t) {
			return
		}
	}
}

// cpu is one CPU's fetch-run-return loop.
func (s *Simulator) cpu(ctx context.Context, logger *slog.Logger, id int, runID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.running.Add(1)
		p, ok := s.sched.GetProc()
		if !ok {
			s.running.Add(-1)
			if s.unfinished.Load() == 0 {
				return nil
			}
			if err := sleep(ctx, s.config.PollInterval); err != nil {
				return err
			}
			continue
		}
		err := s.execute(ctx, logger, id, runID, p)
		s.running.Add(-1)
		if err != nil {
			return err
		}
	}
}

// execute runs p in slices until it is done or back on a ready queue.
func (s *Simulator) execute(ctx context.Context, logger *slog.Logger, cpu int, runID string, p *model.PCB) error {
	if err := p.Transition(model.ProcStateRunning); err != nil {
		return err
	}
	for {
		ran := min(s.config.TimeSlice, p.Remaining)
		if err := sleep(ctx, time.Duration(ran)*s.config.Tick); err != nil {
			return err
		}
		end := s.clock.Add(ran)
		p.Remaining -= ran

		d := model.Dispatch{
			Seq:      s.seq.Add(1),
			CPU:      cpu,
			PID:      p.PID,
			Priority: p.Priority,
			Start:    end - ran,
			Ran:      ran,
			Finished: p.Remaining == 0,
		}
		s.record(ctx, logger, runID, d)

		if d.Finished {
			s.mu.Lock()
			s.finish[p.PID] = end
			s.mu.Unlock()
			s.unfinished.Add(-1)
			return p.Transition(model.ProcStateDone)
		}

		if err := p.Transition(model.ProcStateReady); err != nil {
			return err
		}
		err := s.sched.PutProc(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, model.ErrCapacity) {
			return fmt.Errorf("return process %d: %w", p.PID, err)
		}
		// No room to preempt into; keep the process on this CPU for another slice.
		logger.Debug("ready queue full, continuing process", "pid", p.PID, "cpu", cpu)
		if err := p.Transition(model.ProcStateRunning); err != nil {
			return err
		}
	}
}

func (s *Simulator) record(ctx context.Context, logger *slog.Logger, runID string, d model.Dispatch) {
	s.mu.Lock()
	s.dispatches = append(s.dispatches, d)
	s.mu.Unlock()

	logger.Debug("dispatch", "cpu", d.CPU, "pid", d.PID, "queue", d.Priority, "start", d.Start, "ran", d.Ran)
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordDispatch(ctx, runID, d); err != nil {
		logger.Error("record dispatch", "seq", d.Seq, "error", err)
	}
}

func (s *Simulator) result(run *model.Run, procs []*model.PCB) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	dispatches := make([]model.Dispatch, len(s.dispatches))
	copy(dispatches, s.dispatches)
	sort.Slice(dispatches, func(i, j int) bool { return dispatches[i].Seq < dispatches[j].Seq })

	count := make(map[uint32]int, len(procs))
	for _, d := range dispatches {
		count[d.PID]++
	}

	res := &Result{Run: *run, Dispatches: dispatches}
	waits := make([]float64, 0, len(procs))
	for _, p := range procs {
		finish := s.finish[p.PID]
		pr := ProcResult{
			PID:        p.PID,
			Name:       p.Name,
			Priority:   p.Priority,
			Arrival:    p.Arrival,
			Burst:      p.Burst,
			Finish:     finish,
			Turnaround: finish - p.Arrival,
			Wait:       finish - p.Arrival - p.Burst,
			Dispatches: count[p.PID],
		}
		res.Procs = append(res.Procs, pr)
		waits = append(waits, float64(pr.Wait))
	}
	sort.Slice(res.Procs, func(i, j int) bool { return res.Procs[i].PID < res.Procs[j].PID })

	res.Run.Clock = s.clock.Load()
	res.Run.Dispatches = len(dispatches)
	switch len(waits) {
	case 0:
	case 1:
		res.Run.MeanWait = waits[0]
	default:
		res.Run.MeanWait, res.Run.StdDevWait = stat.MeanStdDev(waits, nil)
	}
	return res
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
