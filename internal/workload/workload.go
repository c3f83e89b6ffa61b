// Package workload reads, writes and generates process workloads for the simulator.
package workload

import (
	"fmt"
	"math"
	"os"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/me/ossched/pkg/model"
)

// Workload is the on-disk description of the processes of a run.
type Workload struct {
	Processes []Process `yaml:"processes"`
}

// Process describes one process to load.
type Process struct {
	PID      uint32 `yaml:"pid"`
	Name     string `yaml:"name,omitempty"`
	Priority int    `yaml:"priority"`
	Arrival  int64  `yaml:"arrival"` // logical tick at which the process becomes runnable
	Burst    int64  `yaml:"burst"`   // ticks of CPU work
}

// Load reads a YAML workload file.
func Load(path string) (*Workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("workload %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes a YAML workload.
func Parse(data []byte) (*Workload, error) {
	var w Workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workload: %w", err)
	}
	return &w, nil
}

// Marshal encodes the workload as YAML.
func (w *Workload) Marshal() ([]byte, error) {
	return yaml.Marshal(w)
}

// Validate checks the workload against the number of priority levels.
func (w *Workload) Validate(maxPriority int) error {
	seen := make(map[uint32]bool, len(w.Processes))
	for i, p := range w.Processes {
		if seen[p.PID] {
			return fmt.Errorf("processes[%d]: duplicate pid %d", i, p.PID)
		}
		seen[p.PID] = true
		if p.Priority < 0 || p.Priority >= maxPriority {
			return fmt.Errorf("processes[%d]: %w", i, &model.PriorityError{PID: p.PID, Priority: p.Priority, Max: maxPriority})
		}
		if p.Burst <= 0 {
			return fmt.Errorf("processes[%d]: pid %d: burst must be positive", i, p.PID)
		}
		if p.Arrival < 0 {
			return fmt.Errorf("processes[%d]: pid %d: arrival must not be negative", i, p.PID)
		}
	}
	return nil
}

// PCBs builds fresh PCBs ordered by arrival, ties kept in file order.
func (w *Workload) PCBs() []*model.PCB {
	pcbs := make([]*model.PCB, 0, len(w.Processes))
	for _, p := range w.Processes {
		pcb := model.NewPCB(p.PID, p.Priority)
		pcb.Name = p.Name
		pcb.Arrival = p.Arrival
		pcb.Burst = p.Burst
		pcb.Remaining = p.Burst
		pcbs = append(pcbs, pcb)
	}
	sort.SliceStable(pcbs, func(i, j int) bool { return pcbs[i].Arrival < pcbs[j].Arrival })
	return pcbs
}

// GenerateOptions configures a synthetic workload.
type GenerateOptions struct {
	Count       int     // number of processes
	Rate        float64 // mean arrivals per tick
	MeanBurst   float64 // mean CPU ticks per process
	MaxPriority int
	Seed        uint64
}

// DefaultGenerateOptions returns sensible defaults.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Count: 20, Rate: 0.5, MeanBurst: 4, MaxPriority: 4, Seed: 1}
}

// Generate builds a workload with exponential inter-arrival times and
// Poisson-distributed bursts. The same options always give the same workload.
func Generate(opts GenerateOptions) (*Workload, error) {
	if opts.Count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", opts.Count)
	}
	if opts.Rate <= 0 || opts.MeanBurst < 1 || opts.MaxPriority <= 0 {
		return nil, fmt.Errorf("invalid generator options %+v", opts)
	}

	src := rand.NewSource(opts.Seed)
	rng := rand.New(src)
	gap := distuv.Exponential{Rate: opts.Rate, Src: src}
	burst := distuv.Poisson{Lambda: opts.MeanBurst - 1, Src: src}

	w := &Workload{Processes: make([]Process, 0, opts.Count)}
	var at float64
	for i := 0; i < opts.Count; i++ {
		if i > 0 {
			at += gap.Rand()
		}
		b := int64(1)
		if burst.Lambda > 0 {
			b += int64(burst.Rand())
		}
		w.Processes = append(w.Processes, Process{
			PID:      uint32(i + 1),
			Name:     fmt.Sprintf("p%d", i+1),
			Priority: rng.Intn(opts.MaxPriority),
			Arrival:  int64(math.Floor(at)),
			Burst:    b,
		})
	}
	return w, nil
}
