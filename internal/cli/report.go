package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/me/ossched/internal/simulation"
	"github.com/me/ossched/pkg/model"
)

func printResult(w io.Writer, res *simulation.Result) {
	run := res.Run
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "  Policy:         %s (%d levels)\n", run.Policy, run.MaxPriority)
	fmt.Fprintf(w, "  CPUs:           %d, time slice %d\n", run.CPUs, run.TimeSlice)
	fmt.Fprintf(w, "  Processes:      %s\n", humanize.Comma(int64(run.Processes)))
	fmt.Fprintf(w, "  Dispatches:     %s\n", humanize.Comma(int64(run.Dispatches)))
	fmt.Fprintf(w, "  Replenishments: %s\n", humanize.Comma(int64(run.Replenishments)))
	fmt.Fprintf(w, "  Clock:          %s ticks\n", humanize.Comma(run.Clock))
	fmt.Fprintf(w, "  Mean wait:      %s ticks (stddev %s)\n",
		humanize.FormatFloat("#,###.##", run.MeanWait), humanize.FormatFloat("#,###.##", run.StdDevWait))
	fmt.Fprintf(w, "  Elapsed:        %s\n", res.Elapsed.Round(time.Microsecond))

	if len(res.Procs) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-8s  %-12s  %4s  %8s  %6s  %8s  %6s  %s\n",
		"PID", "NAME", "PRIO", "ARRIVAL", "BURST", "FINISH", "WAIT", "DISPATCHES")
	for _, p := range res.Procs {
		fmt.Fprintf(w, "%-8d  %-12s  %4d  %8d  %6d  %8d  %6d  %d\n",
			p.PID, p.Name, p.Priority, p.Arrival, p.Burst, p.Finish, p.Wait, p.Dispatches)
	}
}

// printTrace writes one line per dispatch, in dispatch order.
func printTrace(w io.Writer, dispatches []model.Dispatch) {
	for _, d := range dispatches {
		done := ""
		if d.Finished {
			done = " done"
		}
		fmt.Fprintf(w, "%6d  t=%-6d cpu%d  Get process with PID: %d from queue: %d (ran %d)%s\n",
			d.Seq, d.Start, d.CPU, d.PID, d.Priority, d.Ran, done)
	}
}

func printRun(w io.Writer, run *model.Run) {
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "  Policy:         %s (%d levels)\n", run.Policy, run.MaxPriority)
	fmt.Fprintf(w, "  CPUs:           %d, time slice %d\n", run.CPUs, run.TimeSlice)
	fmt.Fprintf(w, "  Processes:      %s\n", humanize.Comma(int64(run.Processes)))
	fmt.Fprintf(w, "  Started:        %s (%s)\n", run.StartedAt.Format(time.RFC3339), humanize.Time(run.StartedAt))
	if run.CompletedAt == nil {
		fmt.Fprintln(w, "  Completed:      no")
		return
	}
	fmt.Fprintf(w, "  Completed:      %s\n", run.CompletedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  Dispatches:     %s\n", humanize.Comma(int64(run.Dispatches)))
	fmt.Fprintf(w, "  Clock:          %s ticks\n", humanize.Comma(run.Clock))
	fmt.Fprintf(w, "  Mean wait:      %s ticks\n", humanize.FormatFloat("#,###.##", run.MeanWait))
}
