package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/me/ossched/internal/scheduler"
	"github.com/me/ossched/internal/simulation"
	"github.com/me/ossched/internal/store"
	"github.com/me/ossched/internal/workload"
	"github.com/me/ossched/pkg/model"
)

func newSimulateCmd() *cobra.Command {
	var (
		flagWorkload      string
		flagPolicy        string
		flagMaxPriority   int
		flagQueueCapacity int
		flagCPUs          int
		flagTimeSlice     int64
		flagDB            string
		flagJSON          bool
		flagTrace         bool
		flagCount         int
		flagSeed          uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a workload through the scheduler on simulated CPUs",
		Long: "Loads processes from a workload file (or generates one when --workload is\n" +
			"omitted), runs them to completion and prints a per-process report.",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("policy") {
				cfg.Policy = model.Policy(flagPolicy)
			}
			if flags.Changed("max-priority") {
				cfg.MaxPriority = flagMaxPriority
			}
			if flags.Changed("queue-capacity") {
				cfg.QueueCapacity = flagQueueCapacity
			}
			if flags.Changed("cpus") {
				cfg.Simulation.CPUs = flagCPUs
			}
			if flags.Changed("time-slice") {
				cfg.Simulation.TimeSlice = flagTimeSlice
			}
			if flags.Changed("db") {
				cfg.DBPath = flagDB
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var w *workload.Workload
			var err error
			if flagWorkload != "" {
				w, err = workload.Load(flagWorkload)
			} else {
				opts := workload.DefaultGenerateOptions()
				opts.Count = flagCount
				opts.Seed = flagSeed
				opts.MaxPriority = cfg.MaxPriority
				w, err = workload.Generate(opts)
			}
			if err != nil {
				return err
			}
			if err := w.Validate(cfg.MaxPriority); err != nil {
				return err
			}

			sched, err := scheduler.New(cfg.Policy, cfg.Scheduler(), scheduler.WithLogger(logger))
			if err != nil {
				return err
			}

			var simOpts []simulation.Option
			if cfg.DBPath != "" {
				st, err := store.NewSQLiteStore(cfg.DBPath, logger)
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate %s: %w", cfg.DBPath, err)
				}
				simOpts = append(simOpts, simulation.WithRecorder(st))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sim := simulation.New(sched, cfg.SimulationConfig(), logger, simOpts...)
			res, err := sim.Run(ctx, w.PCBs())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(out, res)
			if flagTrace {
				fmt.Fprintln(out)
				printTrace(out, res.Dispatches)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flagWorkload, "workload", "w", "", "Workload YAML file (generated when empty)")
	cmd.Flags().StringVar(&flagPolicy, "policy", string(model.PolicyMLQ), "Scheduling policy (mlq, fifo)")
	cmd.Flags().IntVar(&flagMaxPriority, "max-priority", 0, "Number of priority levels")
	cmd.Flags().IntVar(&flagQueueCapacity, "queue-capacity", 0, "Capacity of each ready queue")
	cmd.Flags().IntVar(&flagCPUs, "cpus", 0, "Number of simulated CPUs")
	cmd.Flags().Int64Var(&flagTimeSlice, "time-slice", 0, "Ticks per dispatch")
	cmd.Flags().StringVar(&flagDB, "db", "", "Record the dispatch trace in this SQLite database")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&flagTrace, "trace", false, "Also print every dispatch")
	cmd.Flags().IntVar(&flagCount, "count", 20, "Processes to generate when --workload is empty")
	cmd.Flags().Uint64Var(&flagSeed, "seed", 1, "Generator seed when --workload is empty")

	return cmd
}

