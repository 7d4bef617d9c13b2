package cli

import (
	"fmt"
	"strconv"

	"eve-industry/internal/esi"
	"eve-industry/internal/matcher"

	"github.com/spf13/cobra"
)

func (r *root) matcherCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "matcher",
		Aliases: []string{"m"},
		Short:   "Manage blueprint, structure and production block matchers",
	}
	cmd.AddCommand(
		r.matcherCreate(),
		r.matcherDelete(),
		r.matcherList(),
		r.matcherInfo(),
		r.matcherSet(),
		r.matcherUnset(),
		r.matcherImport(),
	)
	return cmd
}

func (r *root) matcherCreate() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <bp|structure|prod_block>",
		Short: "Create an empty matcher",
		Args:  argRange(2, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			kind, err := matcher.ParseKind(args[1])
			if err != nil {
				return err
			}
			if _, err := a.matchers.Create(cmd.Context(), args[0], r.user, kind); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "created %s matcher %s", kind, args[0])
			return nil
		},
	}
}

func (r *root) matcherDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a matcher",
		Args:  argRange(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			m, err := a.matchers.Delete(cmd.Context(), args[0], r.user)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "deleted %s matcher %s (%d overrides)", m.Kind, m.Name, m.Len())
			return nil
		},
	}
}

func (r *root) matcherList() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your matchers",
		Args:    argRange(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			ms, err := a.matchers.List(cmd.Context(), r.user)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(ms) == 0 {
				warn(w, "no matchers")
				return nil
			}
			tw := table(w)
			fmt.Fprintln(tw, "name\tkind\toverrides\t")
			for _, m := range ms {
				fmt.Fprintf(tw, "%s\t%s\t%d\t\n", m.Name, m.Kind, m.Len())
			}
			return tw.Flush()
		},
	}
}

func (r *root) matcherInfo() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show every override of a matcher",
		Args:  argRange(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			m, err := a.matchers.Get(cmd.Context(), args[0], r.user)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), matcher.Describe(m))
			return nil
		},
	}
}

func (r *root) matcherSet() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <key_type> <key> <value>...",
		Short: "Set one override",
		Long: `Set one override. The value depends on the matcher kind:

  bp          <ME level 0-10> <TE level 0-20>
  structure   <structure id>
  prod_block  <block level>

Key types: bp, market_group, group, meta, category.`,
		Example: `  eve-industry matcher set caps bp "Naglfar Blueprint" 10 20
  eve-industry matcher set caps group "Dreadnought" 8 16`,
		Args: argRange(4, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			kt, err := matcher.ParseKeyType(args[1])
			if err != nil {
				return err
			}
			m, err := a.matchers.Get(cmd.Context(), args[0], r.user)
			if err != nil {
				return err
			}
			payload, err := parsePayload(m.Kind, args[3:])
			if err != nil {
				return err
			}
			key, err := a.matchers.SetOverride(cmd.Context(), args[0], r.user, kt, args[2], payload)
			if err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "%s %s %s = %s", args[0], kt, key, payload)
			return nil
		},
	}
}

func (r *root) matcherUnset() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <name> <key_type> <key>",
		Short: "Remove one override",
		Args:  argRange(3, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			kt, err := matcher.ParseKeyType(args[1])
			if err != nil {
				return err
			}
			if err := a.matchers.UnsetOverride(cmd.Context(), args[0], r.user, kt, args[2]); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "%s %s %s removed", args[0], kt, args[2])
			return nil
		},
	}
}

// parsePayload builds the payload variant for kind from its CLI values.
func parsePayload(kind matcher.Kind, values []string) (matcher.Payload, error) {
	ints := make([]int64, len(values))
	for i, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not a whole number: %w", v, matcher.ErrInvalidPayload)
		}
		ints[i] = n
	}
	switch kind {
	case matcher.KindBlueprint:
		if len(ints) != 2 {
			return nil, fmt.Errorf("bp matchers take ME and TE levels: %w", matcher.ErrInvalidPayload)
		}
		return matcher.EfficiencyFromLevels(int(ints[0]), int(ints[1]))
	case matcher.KindStructure:
		if len(ints) != 1 {
			return nil, fmt.Errorf("structure matchers take one structure id: %w", matcher.ErrInvalidPayload)
		}
		return matcher.Facility{StructureID: ints[0]}, nil
	case matcher.KindProdBlock:
		if len(ints) != 1 {
			return nil, fmt.Errorf("prod_block matchers take one level: %w", matcher.ErrInvalidPayload)
		}
		return matcher.Block{Level: int(ints[0])}, nil
	}
	return nil, fmt.Errorf("%q: %w", kind, matcher.ErrInvalidKind)
}

func (r *root) matcherImport() *cobra.Command {
	var corporation int64
	cmd := &cobra.Command{
		Use:   "import-bp <name>",
		Short: "Fill a bp matcher with the best ME/TE of your corporation's blueprint originals",
		Args:  argRange(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			name := args[0]
			if _, err := a.matchers.Get(ctx, name, r.user); err != nil {
				if _, err := a.matchers.Create(ctx, name, r.user, matcher.KindBlueprint); err != nil {
					return err
				}
			}
			bps, err := a.esi.FetchCorporationBlueprints(ctx, corporation)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			set, skipped := 0, 0
			for typeID, lv := range esi.BestEfficiency(bps) {
				it, ok := a.catalog.ItemByID(typeID)
				if !ok {
					skipped++
					continue
				}
				eff, err := matcher.EfficiencyFromLevels(int(lv[0]), int(lv[1]))
				if err != nil {
					skipped++
					continue
				}
				if _, err := a.matchers.SetOverride(ctx, name, r.user, matcher.KeyBlueprint, it.Name, eff); err != nil {
					return err
				}
				set++
			}
			if skipped > 0 {
				warn(w, "%d blueprint types skipped", skipped)
			}
			success(w, "%s: %d blueprint overrides from %d blueprints", name, set, len(bps))
			return nil
		},
	}
	cmd.Flags().Int64Var(&corporation, "corporation", 0, "corporation id")
	cmd.MarkFlagRequired("corporation")
	return cmd
}
