package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/scorekeeper/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		problem  string
		limit    int
		feasible bool
		since    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scoring passes",
		Long: `List the scoring passes recorded in the score history, newest first.

Passes are recorded when a history database is configured, either with
history.path in the configuration or with --history.`,
		Example: `  # Last ten passes of any problem
  scorekeeper history --history scores.db

  # Feasible routing passes of the last day
  scorekeeper history --history scores.db -p vehicle-routing --feasible --since 24h

  # Constraint totals of one pass
  scorekeeper history show --history scores.db 6f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			svc, err := newService(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			filter := stores.PassFilter{Problem: problem, FeasibleOnly: feasible}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			passes, err := svc.Passes(ctx, filter, limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), passes, func(w io.Writer) error { return writePasses(w, passes) })
		},
	}

	cmd.Flags().StringVarP(&problem, "problem", "p", "", "only passes of this problem")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of passes")
	cmd.Flags().BoolVar(&feasible, "feasible", false, "only feasible passes")
	cmd.Flags().DurationVar(&since, "since", 0, "only passes scored within this duration")

	cmd.AddCommand(newHistoryShowCommand())
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <pass-id>",
		Short: "Show the constraint totals of a recorded pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			svc, err := newService(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			pass, err := svc.Pass(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), pass, func(w io.Writer) error { return writePass(w, pass) })
		},
	}
}

func writePasses(w io.Writer, passes []*stores.Pass) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PASS\tPROBLEM\tSCORE\tFEASIBLE\tFACTS\tFAILED\tSCORED AT\tSOURCE")
	for _, p := range passes {
		fmt.Fprintf(tw, "%s\t%s\t%dhard/%dsoft\t%t\t%d\t%d\t%s\t%s\n",
			p.ID, p.Problem, p.Hard, p.Soft, p.Feasible, p.FactCount, p.Failures,
			p.ScoredAt.Local().Format(time.DateTime), p.Source)
	}
	return tw.Flush()
}

func writePass(w io.Writer, p *stores.Pass) error {
	fmt.Fprintf(w, "Pass:    %s\n", p.ID)
	fmt.Fprintf(w, "Problem: %s\n", p.Problem)
	fmt.Fprintf(w, "Score:   %dhard/%dsoft (feasible: %t)\n", p.Hard, p.Soft, p.Feasible)
	fmt.Fprintf(w, "Scored:  %s\n", p.ScoredAt.Local().Format(time.RFC3339))
	if p.Source != "" {
		fmt.Fprintf(w, "Source:  %s\n", p.Source)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONSTRAINT\tLEVEL\tMATCHES\tMAGNITUDE\tSCORE")
	for _, t := range p.Totals {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%dhard/%dsoft\n", t.Constraint, t.Level, t.Count, t.Magnitude, t.Hard, t.Soft)
	}
	return tw.Flush()
}
