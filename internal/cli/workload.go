package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/ossched/internal/workload"
)

func newWorkloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workload",
		Short: "Create and check workload files",
	}
	cmd.AddCommand(newWorkloadGenerateCmd(), newWorkloadValidateCmd())
	return cmd
}

func newWorkloadGenerateCmd() *cobra.Command {
	opts := workload.DefaultGenerateOptions()
	var flagOut string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random workload",
		Long: "Generates processes with exponentially distributed inter-arrival times and\n" +
			"Poisson-distributed CPU bursts. The same seed always gives the same workload.",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workload.Generate(opts)
			if err != nil {
				return err
			}
			data, err := w.Marshal()
			if err != nil {
				return err
			}
			if flagOut == "" || flagOut == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(flagOut, data, 0o644); err != nil {
				return fmt.Errorf("write workload: %w", err)
			}
			logger.Info("workload written", "path", flagOut, "processes", len(w.Processes))
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", opts.Count, "Number of processes")
	cmd.Flags().Float64Var(&opts.Rate, "rate", opts.Rate, "Mean arrivals per tick")
	cmd.Flags().Float64Var(&opts.MeanBurst, "mean-burst", opts.MeanBurst, "Mean CPU ticks per process")
	cmd.Flags().IntVar(&opts.MaxPriority, "max-priority", opts.MaxPriority, "Number of priority levels")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "Random seed")
	cmd.Flags().StringVarP(&flagOut, "out", "o", "", "Output file (stdout when empty)")

	return cmd
}

func newWorkloadValidateCmd() *cobra.Command {
	var flagMaxPriority int

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a workload file against the configured priority levels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			levels := cfg.MaxPriority
			if cmd.Flags().Changed("max-priority") {
				levels = flagMaxPriority
			}
			w, err := workload.Load(args[0])
			if err != nil {
				return err
			}
			if err := w.Validate(levels); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d processes, valid for %d priority levels\n",
				args[0], len(w.Processes), levels)
			return nil
		},
	}
	cmd.Flags().IntVar(&flagMaxPriority, "max-priority", 0, "Number of priority levels")
	return cmd
}
