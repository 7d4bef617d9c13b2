package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"eve-industry/internal/engine"

	"github.com/spf13/cobra"
)

func (r *root) refineCommand() *cobra.Command {
	var source, target string
	cmd := &cobra.Command{
		Use:   "refine <mineral>=<quantity>...",
		Short: "Cheapest compressed ore purchase covering a mineral shortfall",
		Example: `  eve-industry refine Tritanium=1200000 Pyerite=300000
  eve-industry refine 36=50000 --source sell`,
		Args: argRange(1, -1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			req := engine.CompressionRequest{}
			if req.SourceSide, err = engine.ParsePriceSide(source); err != nil {
				return usageError{err.Error()}
			}
			if req.TargetSide, err = engine.ParsePriceSide(target); err != nil {
				return usageError{err.Error()}
			}
			if req.Required, err = parseAmounts(a.catalog, args); err != nil {
				return err
			}
			plan, err := a.svc.Refine(cmd.Context(), r.user, req)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "buy", "price side ore is bought at (buy|sell)")
	cmd.Flags().StringVar(&target, "target", "buy", "price side minerals are valued at (buy|sell)")
	return cmd
}

// parseAmounts reads "name=qty" or "typeID=qty" pairs. Thousands
// separators in the quantity are allowed.
func parseAmounts(catalog engine.Catalog, args []string) ([]engine.ResourceAmount, error) {
	out := make([]engine.ResourceAmount, 0, len(args))
	for _, arg := range args {
		name, qty, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, usageError{fmt.Sprintf("%q: want <mineral>=<quantity>", arg)}
		}
		n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(qty), ",", ""), 10, 64)
		if err != nil {
			return nil, usageError{fmt.Sprintf("%q: bad quantity", arg)}
		}
		id, err := resolveType(catalog, name)
		if err != nil {
			return nil, err
		}
		out = append(out, engine.ResourceAmount{TypeID: id, Quantity: n})
	}
	return out, nil
}

func resolveType(catalog engine.Catalog, name string) (int32, error) {
	name = strings.TrimSpace(name)
	if id, err := strconv.ParseInt(name, 10, 32); err == nil {
		return int32(id), nil
	}
	for _, id := range engine.BaseResources {
		if n, _ := engine.BaseName(id); strings.EqualFold(n, name) {
			return id, nil
		}
	}
	if catalog != nil {
		if it, ok := catalog.ItemByName(name); ok {
			return it.TypeID, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, engine.ErrUnknownProduct)
}

func printPlan(w io.Writer, plan *engine.CompressionPlan) {
	sources := plan.Sources()
	if len(sources) == 0 {
		success(w, "nothing to buy")
		return
	}
	header(w, "buy")
	tw := table(w)
	fmt.Fprintln(tw, "item\tbatches\tunits\tisk\t")
	for _, s := range sources {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t\n", s.Name, s.Batches, s.Units, isk(s.Price))
	}
	tw.Flush()

	header(w, "yield")
	tw = table(w)
	fmt.Fprintln(tw, "mineral\tneed\tactual\tsurplus\tsurplus isk\t")
	for _, p := range plan.Products() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t\n", p.Name, p.Need, p.Actual, p.Surplus, isk(p.SurplusValue))
	}
	tw.Flush()

	fmt.Fprintf(w, "cost %s · output %s · surplus %s\n",
		isk(plan.TotalSourceCost), isk(plan.TotalOutputValue), isk(plan.TotalSurplusValue))
}
