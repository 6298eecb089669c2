package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/scorekeeper/pkg/config"
	"github.com/openfroyo/scorekeeper/pkg/service"
)

// errExpectationFailed makes the command exit non-zero after printing.
var errExpectationFailed = errors.New("expectation not met")

func newVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <problem> <constraint> <fixture>",
		Short: "Verify one constraint against a fixture",
		Long: `Run a single constraint over a fixture in isolation and check the result.

The fixture holds the given facts in the problem's dataset format and at most
one expectation:

  given:       the facts
  penalizes:   number of penalized matches
  penalizesBy: sum of penalized magnitudes
  rewards:     number of rewarded matches
  rewardsWith: sum of rewarded magnitudes

Weight overrides from the configuration apply. The command exits non-zero when
the expectation does not hold.`,
		Example: `  # Check that two overlapping shifts are penalized once
  scorekeeper verify employee-scheduling "Overlapping shift" overlap.yaml`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			problem, constraint, path := args[0], args[1], args[2]

			data, err := config.NewCUEParser().ReadDataset(path)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			svc, err := newService(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			verdict, err := svc.Verify(ctx, problem, constraint, data)
			if err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), verdict, func(w io.Writer) error { return writeVerdict(w, verdict) }); err != nil {
				return err
			}
			if !verdict.Passed {
				return errExpectationFailed
			}
			return nil
		},
	}

	return cmd
}

func writeVerdict(w io.Writer, v *service.Verdict) error {
	r := v.Result
	fmt.Fprintf(w, "Constraint: %s (%s, %s)\n", r.Constraint, r.Level, strings.ToLower(r.Direction.String()))
	fmt.Fprintf(w, "Matches:    %d\n", r.Count)
	fmt.Fprintf(w, "Magnitude:  %d\n", r.Magnitude)
	fmt.Fprintf(w, "Impact:     %s\n", r.Impact)
	for _, m := range r.Matches {
		fmt.Fprintf(w, "  %s  magnitude %d\n", strings.Join(m.Facts, ", "), m.Magnitude)
	}

	switch {
	case v.Expectation == "":
	case v.Passed:
		fmt.Fprintf(w, "\nPASS %s\n", v.Expectation)
	default:
		fmt.Fprintf(w, "\nFAIL %s: %s\n", v.Expectation, v.Failure)
	}
	return nil
}
