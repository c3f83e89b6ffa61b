package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/ossched/internal/store"
	"github.com/me/ossched/pkg/model"
)

func newTraceCmd() *cobra.Command {
	var flagDB string

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded simulation runs",
	}
	cmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite trace database (default: db_path from config)")

	openStore := func(cmd *cobra.Command) (*store.SQLiteStore, error) {
		path, err := requireDB(flagDB)
		if err != nil {
			return nil, err
		}
		st, err := store.NewSQLiteStore(path, logger)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(cmd.Context()); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate %s: %w", path, err)
		}
		return st, nil
	}

	var flagLimit int
	var flagPolicy string
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, total, err := st.ListRuns(cmd.Context(), model.ListOptions{Limit: flagLimit, Policy: flagPolicy})
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-6s  %5s  %10s  %10s  %s\n", "ID", "POLICY", "PROCS", "DISPATCHES", "MEAN WAIT", "STARTED")
			fmt.Fprintf(out, "%-40s  %-6s  %5s  %10s  %10s  %s\n", "--", "------", "-----", "----------", "---------", "-------")
			for _, run := range runs {
				fmt.Fprintf(out, "%-40s  %-6s  %5d  %10s  %10s  %s\n",
					run.ID, run.Policy, run.Processes, humanize.Comma(int64(run.Dispatches)),
					humanize.FormatFloat("#,###.##", run.MeanWait), humanize.Time(run.StartedAt))
			}
			if len(runs) < total {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), total)
			}
			return nil
		},
	}
	list.Flags().IntVar(&flagLimit, "limit", 20, "Maximum runs to show")
	list.Flags().StringVar(&flagPolicy, "policy", "", "Only show runs of this policy")

	show := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show a run and its dispatch trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			dispatches, err := st.ListDispatches(cmd.Context(), run.ID)
			if err != nil {
				return fmt.Errorf("list dispatches: %w", err)
			}

			out := cmd.OutOrStdout()
			printRun(out, run)
			if len(dispatches) > 0 {
				fmt.Fprintln(out)
				printTrace(out, dispatches)
			}
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "delete <run_id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, rm)
	return cmd
}
