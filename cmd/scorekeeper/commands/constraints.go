package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openfroyo/scorekeeper/pkg/engine"
	"github.com/openfroyo/scorekeeper/pkg/problems"
)

func newConstraintsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "constraints <problem>",
		Short: "List the constraints of a problem",
		Long: `List every constraint registered for a problem, including scripted
constraints and overrides from the configuration.`,
		Example: `  scorekeeper constraints vehicle-routing
  scorekeeper constraints -c scorekeeper.cue -o yaml employee-scheduling`,
		Args: cobra.ExactArgs(1),
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
			descriptors, err := svc.Constraints(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), descriptors, func(w io.Writer) error {
				return writeDescriptors(w, descriptors)
			})
		},
	}
	return cmd
}

func writeDescriptors(w io.Writer, descriptors []engine.Descriptor) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONSTRAINT\tLEVEL\tDIRECTION\tWEIGHT\tFACTS\tENABLED")
	for _, d := range descriptors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%t\n",
			d.Name, d.Level, d.Direction, d.Weight, strings.Join(d.SourceTypes, ","), d.Enabled)
	}
	return tw.Flush()
}

func newProblemsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "problems",
		Short: "List the problems that can be scored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all := problems.All()
			type entry struct {
				Name        string `json:"name" yaml:"name"`
				Description string `json:"description" yaml:"description"`
			}
			out := make([]entry, len(all))
			for i, p := range all {
				out[i] = entry{Name: p.Name, Description: p.Description}
			}
			return render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, e := range out {
					fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Description)
				}
				return tw.Flush()
			})
		},
	}
}
