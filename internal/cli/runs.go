package cli

import (
	"fmt"
	"time"

	"eve-industry/internal/engine"

	"github.com/spf13/cobra"
)

func (r *root) runsCommand() *cobra.Command {
	var (
		limit  int
		remove bool
		prune  int
	)
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show past advise and refine runs",
		Long: `Show past advise and refine runs.

Without an id, lists your latest runs. With an id, prints the stored
advisory rows of that run (or deletes it with --delete). --prune drops
runs and cached market history older than the given number of days.`,
		Args: argRange(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			if a.db == nil {
				return usageError{"run history is off with the memory backend"}
			}
			w := cmd.OutOrStdout()

			if prune > 0 {
				n, err := a.db.ClearRuns(prune)
				if err != nil {
					return err
				}
				success(w, "pruned %d runs and %d history rows", n, a.db.CleanupOldHistory())
				return nil
			}

			if len(args) == 0 {
				runs := a.db.GetRuns(r.user, limit)
				if len(runs) == 0 {
					warn(w, "no runs")
					return nil
				}
				tw := table(w)
				fmt.Fprintln(tw, "id\twhen\tkind\tplan\titems\ttop\ttotal\tms\t")
				for _, run := range runs {
					when := run.Timestamp
					if ts, err := time.Parse(time.RFC3339, run.Timestamp); err == nil {
						when = ts.Local().Format("01-02 15:04")
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t%d\t\n",
						run.ID, when, run.Kind, run.Plan, run.Count, isk(run.TopValue), isk(run.TotalValue), run.DurationMs)
				}
				return tw.Flush()
			}

			run := a.db.GetRun(args[0])
			if run == nil || run.Owner != r.user {
				return usageError{fmt.Sprintf("no run %s", args[0])}
			}
			if remove {
				if err := a.db.DeleteRun(run.ID); err != nil {
					return err
				}
				success(w, "deleted run %s", run.ID)
				return nil
			}
			header(w, "%s run %s at %s: %s", run.Kind, run.ID, run.Timestamp, run.Params)
			if run.Kind != "advise" {
				return nil
			}
			rows := make(map[int32]engine.AdvisoryRow)
			for _, row := range a.db.GetAdvisoryRows(run.ID) {
				rows[row.TypeID] = row
			}
			created, _ := time.Parse(time.RFC3339, run.Timestamp)
			printReport(w, &engine.AdvisoryReport{ID: run.ID, Owner: run.Owner, Plan: run.Plan, Created: created, Rows: rows})
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "runs to list")
	cmd.Flags().BoolVar(&remove, "delete", false, "delete the run")
	cmd.Flags().IntVar(&prune, "prune", 0, "drop runs older than this many days")
	return cmd
}
