package cli

import (
	"fmt"
	"sort"
	"time"

	"eve-industry/internal/esi"

	"github.com/spf13/cobra"
)

var activityNames = map[int32]string{
	1:  "manufacturing",
	3:  "te research",
	4:  "me research",
	5:  "copying",
	8:  "invention",
	9:  "reaction",
	11: "reaction",
}

func (r *root) jobsCommand() *cobra.Command {
	var (
		corporation int64
		completed   bool
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List corporation industry jobs",
		Args:  argRange(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			jobs, err := a.esi.FetchCorporationJobs(cmd.Context(), corporation, completed)
			if err != nil {
				return err
			}
			sort.Slice(jobs, func(i, j int) bool { return jobs[i].EndDate.Before(jobs[j].EndDate) })

			w := cmd.OutOrStdout()
			tw := table(w)
			fmt.Fprintln(tw, "job\tactivity\tproduct\truns\tstatus\tends in\t")
			now := time.Now()
			for _, j := range jobs {
				product := fmt.Sprintf("type %d", j.ProductTypeID)
				if it, ok := a.catalog.ItemByID(j.ProductTypeID); ok {
					product = it.Name
				}
				activity, ok := activityNames[j.ActivityID]
				if !ok {
					activity = fmt.Sprintf("activity %d", j.ActivityID)
				}
				left := j.EndDate.Sub(now).Truncate(time.Minute)
				if left < 0 {
					left = 0
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t\n", j.JobID, activity, product, j.Runs, j.Status, left)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			header(w, "%d jobs, %d blueprints in use", len(jobs), len(esi.BlueprintsInUse(jobs)))
			return nil
		},
	}
	cmd.Flags().Int64Var(&corporation, "corporation", 0, "corporation id")
	cmd.Flags().BoolVar(&completed, "completed", false, "include completed jobs")
	cmd.MarkFlagRequired("corporation")
	return cmd
}

func (r *root) pagesCommand() *cobra.Command {
	var (
		region    int32
		structure int64
	)
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Sweep every order page of a region or structure market",
		Long: `Sweep every order page of a region or structure market.

The page count is discovered by probing, then all pages are fetched in
parallel. Defaults to the configured secondary market.`,
		Args: argRange(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			if region == 0 && structure == 0 {
				region, structure = a.cfg.Secondary.RegionID, a.cfg.Secondary.StructureID
			}
			start := time.Now()
			var (
				orders []esi.MarketOrder
				where  string
			)
			if structure != 0 {
				where = fmt.Sprintf("structure %d", structure)
				orders, err = a.esi.FetchStructureOrders(cmd.Context(), structure, a.cfg.StructureOrderBegin, a.cfg.StructureOrderStep)
			} else {
				where = fmt.Sprintf("region %d", region)
				orders, err = a.esi.FetchRegionOrders(cmd.Context(), region, 350, 50)
			}
			if err != nil {
				return err
			}
			types := make(map[int32]bool)
			buys := 0
			for _, o := range orders {
				types[o.TypeID] = true
				if o.IsBuyOrder {
					buys++
				}
			}
			success(cmd.OutOrStdout(), "%s: %d orders (%d buy) across %d types in %s",
				where, len(orders), buys, len(types), time.Since(start).Truncate(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().Int32Var(&region, "region", 0, "region id")
	cmd.Flags().Int64Var(&structure, "structure", 0, "structure id (needs an ESI token)")
	return cmd
}
