package cli

import (
	"fmt"
	"io"
	"strings"

	"eve-industry/internal/engine"

	"github.com/spf13/cobra"
)

func (r *root) adviseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "advise <plan> <product>...",
		Short: "Rank products by monthly profit potential at the secondary market",
		Long: `Rank products by monthly profit potential at the secondary market.

Products are item names; separate several with spaces (quote names that
contain spaces) or commas.`,
		Args: argRange(2, -1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			report, err := a.svc.Advise(cmd.Context(), r.user, args[0], splitNames(args[1:]))
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func splitNames(args []string) []string {
	var out []string
	for _, a := range args {
		for _, n := range strings.Split(a, ",") {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, n)
			}
		}
	}
	return out
}

func printReport(w io.Writer, report *engine.AdvisoryReport) {
	header(w, "plan %s · %d products · %s", report.Plan, len(report.Rows), report.Created.Format("2006-01-02 15:04"))
	tw := table(w)
	fmt.Fprintln(tw, "product\ttier\tcost\tsell\tprofit\trate\tvolume/mo\tpotential/mo\t")
	for _, row := range report.Sorted() {
		if row.Err != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t-\t-\t%d\t-\t\n",
				row.Name, row.TechTier, isk(row.Cost()), isk(row.SecondarySell), row.MonthlyVolume)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.1f%%\t%d\t%s\t\n",
			row.Name, row.TechTier, isk(row.Cost()), isk(row.SecondarySell),
			isk(row.Profit), row.ProfitRate*100, row.MonthlyVolume, isk(row.MonthlyPotential))
	}
	tw.Flush()
	for _, row := range report.Sorted() {
		if row.Err != nil {
			warn(w, "%s: %v", row.Name, row.Err)
		}
	}
	if len(report.Unknown) > 0 {
		warn(w, "unknown products: %s", strings.Join(report.Unknown, ", "))
	}
}
