// Package config holds the runtime configuration for ossched.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me/ossched/internal/scheduler"
	"github.com/me/ossched/internal/simulation"
	"github.com/me/ossched/pkg/model"
)

// Config holds configuration for the scheduler, its simulation and its server.
type Config struct {
	MaxPriority   int          `yaml:"max_priority"`   // number of priority levels, fixed for a run
	QueueCapacity int          `yaml:"queue_capacity"` // capacity of each ready queue
	Policy        model.Policy `yaml:"policy"`         // mlq or fifo

	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
	LogFile   string `yaml:"log_file"`   // optional; also log to this file

	DBPath string `yaml:"db_path"` // SQLite trace database; empty disables tracing
	Addr   string `yaml:"addr"`    // HTTP listen address for serve

	Simulation SimulationConfig `yaml:"simulation"`
}

// SimulationConfig configures the simulated execution loop.
type SimulationConfig struct {
	CPUs         int           `yaml:"cpus"`
	TimeSlice    int64         `yaml:"time_slice"`    // ticks a process runs before preemption
	Tick         time.Duration `yaml:"tick"`          // wall time per simulated tick, 0 for none
	PollInterval time.Duration `yaml:"poll_interval"` // CPU back-off when no process is ready
}

// Default returns sensible defaults.
func Default() Config {
	sc := scheduler.DefaultConfig()
	sim := simulation.DefaultConfig()
	return Config{
		MaxPriority:   sc.MaxPriority,
		QueueCapacity: sc.QueueCapacity,
		Policy:        model.PolicyMLQ,
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":8080",
		Simulation: SimulationConfig{
			CPUs:         sim.CPUs,
			TimeSlice:    sim.TimeSlice,
			Tick:         sim.Tick,
			PollInterval: sim.PollInterval,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects unusable values.
func (c Config) Validate() error {
	if err := c.Scheduler().Validate(); err != nil {
		return err
	}
	if !c.Policy.IsValid() {
		return fmt.Errorf("unknown policy %q (want mlq or fifo)", c.Policy)
	}
	return c.SimulationConfig().Validate()
}

// Scheduler returns the scheduler sizing.
func (c Config) Scheduler() scheduler.Config {
	return scheduler.Config{MaxPriority: c.MaxPriority, QueueCapacity: c.QueueCapacity}
}

// SimulationConfig returns the execution loop settings.
func (c Config) SimulationConfig() simulation.Config {
	return simulation.Config{
		CPUs:         c.Simulation.CPUs,
		TimeSlice:    c.Simulation.TimeSlice,
		Tick:         c.Simulation.Tick,
		PollInterval: c.Simulation.PollInterval,
	}
}
