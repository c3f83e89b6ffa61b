package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/ossched/internal/scheduler"
	"github.com/me/ossched/pkg/model"
)

// Commands in this file talk to a running `ossched serve`.

func newAdmitCmd() *cobra.Command {
	var flagName string
	var flagReturn bool

	cmd := &cobra.Command{
		Use:   "admit <pid> <priority>",
		Short: "Admit a process on a running server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}
			prio, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid priority %q: %w", args[1], err)
			}

			path := "/api/v1/procs"
			if flagReturn {
				path += "/return"
			}
			if _, err := client.Post(path, model.AdmitRequest{PID: uint32(pid), Priority: prio, Name: flagName}); err != nil {
				return fmt.Errorf("admit process %d: %w", pid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admitted process %d at priority %d\n", pid, prio)
			return nil
		},
	}
	cmd.Flags().StringVar(&flagName, "name", "", "Process name")
	cmd.Flags().BoolVar(&flagReturn, "return", false, "Return a preempted process instead of admitting a new one")
	return cmd
}

func newNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Dispatch the next process on a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/procs/next", nil)
			if err != nil {
				return fmt.Errorf("dispatch: %w", err)
			}
			var data model.DispatchResponse
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if !data.Dispatched {
				fmt.Fprintln(out, "No process ready.")
				return nil
			}
			fmt.Fprintf(out, "Get process with PID: %d from queue: %d\n", data.PCB.PID, data.PCB.Priority)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the ready queues of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/scheduler")
			if err != nil {
				return fmt.Errorf("get scheduler: %w", err)
			}
			var stats scheduler.Stats
			if err := json.Unmarshal(resp.Data, &stats); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Policy:         %s (%d levels, capacity %d)\n", stats.Policy, stats.MaxPriority, stats.QueueCapacity)
			fmt.Fprintf(out, "Waiting:        %d\n", stats.Waiting())
			fmt.Fprintf(out, "Idle:           %t\n", stats.Idle)
			fmt.Fprintf(out, "Replenishments: %d\n", stats.Replenishments)

			if stats.Waiting() == 0 {
				return nil
			}
			if stats.Ledger != nil && scheduler.Ledger(stats.Ledger).Exhausted(stats.QueueLengths) {
				fmt.Fprintln(out, "Budgets:        exhausted, next dispatch replenishes")
			}
			fmt.Fprintf(out, "\n%5s  %6s  %6s  %10s\n", "LEVEL", "QUEUED", "BUDGET", "DISPATCHED")
			for i, n := range stats.QueueLengths {
				if n == 0 {
					continue
				}
				budget := "-"
				if i < len(stats.Ledger) {
					budget = strconv.Itoa(stats.Ledger[i])
				}
				var dispatched uint64
				if i < len(stats.Dispatched) {
					dispatched = stats.Dispatched[i]
				}
				fmt.Fprintf(out, "%5d  %6d  %6s  %10d\n", i, n, budget, dispatched)
			}
			return nil
		},
	}
}
