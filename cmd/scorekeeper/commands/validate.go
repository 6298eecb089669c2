package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/scorekeeper/pkg/config"
	"github.com/openfroyo/scorekeeper/pkg/policy"
	"github.com/openfroyo/scorekeeper/pkg/problems"
)

// validation is the outcome of validating a configuration.
type validation struct {
	Valid    bool                     `json:"valid" yaml:"valid"`
	Files    []string                 `json:"files" yaml:"files"`
	Errors   []config.ValidationError `json:"errors,omitempty" yaml:"errors,omitempty"`
	Problems []problemValidation      `json:"problems,omitempty" yaml:"problems,omitempty"`
}

type problemValidation struct {
	Problem     string             `json:"problem" yaml:"problem"`
	Constraints int                `json:"constraints" yaml:"constraints"`
	Error       string             `json:"error,omitempty" yaml:"error,omitempty"`
	Findings    []policy.Violation `json:"findings,omitempty" yaml:"findings,omitempty"`
}

var errInvalidConfig = errors.New("configuration is invalid")

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a scoring configuration",
		Long: `Validate a CUE scoring configuration.

This command checks:
  - CUE syntax validity
  - Schema conformance
  - Scripted constraint expressions
  - Constraint overrides against the registered constraints
  - Policy compliance (OPA/rego)

A configuration pinned to one problem is checked against that problem only;
otherwise every problem that has scripted constraints is checked.`,
		Example: `  # Validate a configuration file
  scorekeeper validate scorekeeper.cue

  # Validate a directory of CUE files
  scorekeeper validate ./config`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			log.Info().Str("path", path).Msg("Validating configuration")

			parsed, err := config.NewCUEParser().Parse(ctx, []string{path})
			if err != nil {
				return err
			}
			result := validation{Files: parsed.SourceFiles, Errors: parsed.Errors}

			if len(parsed.Errors) == 0 {
				cfg := parsed.Config
				svc, err := newService(ctx, cfg, nil)
				if err != nil {
					return err
				}
				defer svc.Close()
				for _, name := range problemsToValidate(cfg) {
					pv := problemValidation{Problem: name}
					set, lint, err := svc.ConstraintSet(ctx, name)
					if err != nil {
						pv.Error = err.Error()
					} else {
						pv.Constraints = set.Len()
					}
					if lint != nil {
						pv.Findings = lint.Findings()
					}
					result.Problems = append(result.Problems, pv)
				}
			}

			result.Valid = len(result.Errors) == 0
			for _, pv := range result.Problems {
				if pv.Error != "" {
					result.Valid = false
				}
			}

			if err := render(cmd.OutOrStdout(), result, func(w io.Writer) error { return writeValidation(w, result) }); err != nil {
				return err
			}
			if !result.Valid {
				return errInvalidConfig
			}
			return nil
		},
	}

	return cmd
}

// problemsToValidate returns the pinned problem, or every problem a scripted
// constraint targets. Overrides can only be checked against a pinned problem.
func problemsToValidate(cfg *config.Config) []string {
	if cfg.Problem != "" {
		return []string{cfg.Problem}
	}
	var names []string
	for _, name := range problems.Names() {
		if len(cfg.ScriptedFor(name)) > 0 {
			names = append(names, name)
		}
	}
	return names
}

func writeValidation(w io.Writer, v validation) error {
	for _, e := range v.Errors {
		fmt.Fprintf(w, "error: %s\n", e.Error())
	}
	for _, pv := range v.Problems {
		if pv.Error != "" {
			fmt.Fprintf(w, "%s: %s\n", pv.Problem, pv.Error)
		} else {
			fmt.Fprintf(w, "%s: %d constraints\n", pv.Problem, pv.Constraints)
		}
		for _, f := range pv.Findings {
			fmt.Fprintf(w, "  policy %s [%s]: %s\n", f.Policy, f.Severity, f.Message)
		}
	}
	if v.Valid {
		fmt.Fprintf(w, "Configuration is valid (%d files)\n", len(v.Files))
	}
	return nil
}
