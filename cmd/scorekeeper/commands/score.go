package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/scorekeeper/pkg/config"
	"github.com/openfroyo/scorekeeper/pkg/engine"
	"github.com/openfroyo/scorekeeper/pkg/service"
	"github.com/openfroyo/scorekeeper/pkg/telemetry"
)

func newScoreCommand() *cobra.Command {
	var (
		problem string
		explain bool
		watch   bool
		tf      telemetryFlags
	)

	cmd := &cobra.Command{
		Use:   "score <dataset>",
		Short: "Score a dataset",
		Long: `Score a solution dataset against the constraints of its problem.

The dataset may be JSON, YAML or CUE. The score is reported as
"<hard>hard/<soft>soft"; a solution is feasible when its hard score is zero.
With --explain every constraint match is listed.

With --watch the dataset and configuration are re-read and re-scored whenever
either file changes.`,
		Example: `  # Score a schedule
  scorekeeper score --problem employee-scheduling schedule.json

  # Explain every match, with overrides from a configuration file
  scorekeeper score -c scorekeeper.cue --explain schedule.yaml

  # Re-score on every save
  scorekeeper score --problem vehicle-routing --watch routes.cue

  # Machine-readable output
  scorekeeper score --problem school-timetabling -o json timetable.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			tel, err := newTelemetry(tf)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			name, err := problemFor(problem, cfg)
			if err != nil {
				return err
			}
			svc, err := newService(ctx, cfg, tel)
			if err != nil {
				return err
			}
			defer svc.Close()

			run := func() error {
				return scoreFile(ctx, cmd.OutOrStdout(), svc, name, path, explain)
			}
			if !watch {
				return run()
			}

			if err := run(); err != nil {
				log.Error().Err(err).Str("dataset", path).Msg("Scoring failed")
			}
			return watchAndScore(ctx, svc, tel, name, path, run)
		},
	}

	cmd.Flags().StringVarP(&problem, "problem", "p", "", "problem the dataset belongs to (default from configuration)")
	cmd.Flags().BoolVar(&explain, "explain", false, "list every constraint match")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-score when the dataset or configuration changes")
	cmd.Flags().StringVar(&tf.exporter, "trace", "none", "trace exporter: none, stdout or otlp")
	cmd.Flags().StringVar(&tf.endpoint, "otlp-endpoint", "", "OTLP collector endpoint")

	return cmd
}

func scoreFile(ctx context.Context, w io.Writer, svc *service.Service, problem, path string, explain bool) error {
	data, err := config.NewCUEParser().ReadDataset(path)
	if err != nil {
		return err
	}

	report, err := svc.Score(service.WithSource(ctx, path), problem, data, explain)
	if report == nil {
		return err
	}
	if renderErr := render(w, report, func(w io.Writer) error { return writeReport(w, report, explain) }); renderErr != nil {
		return renderErr
	}
	return err
}

// watchAndScore re-scores on every change until ctx is cancelled. A failed
// re-score is logged and the previous output stays on screen.
func watchAndScore(ctx context.Context, svc *service.Service, tel *telemetry.Telemetry, problem, path string, run func() error) error {
	files := []string{path}
	if configPath != "" {
		files = append(files, configPath)
	}
	watcher, err := config.NewWatcher(log.Logger, config.DefaultDebounce, files...)
	if err != nil {
		return err
	}

	return watcher.Run(ctx, func() {
		if configPath != "" {
			cfg, err := loadConfig(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Keeping previous configuration")
			} else {
				svc.SetConfig(cfg)
			}
		}
		_ = tel.Events.PublishDatasetReloaded(problem, path)
		if err := run(); err != nil {
			log.Error().Err(err).Str("dataset", path).Msg("Scoring failed")
		}
	})
}

func writeReport(w io.Writer, report *service.Report, explain bool) error {
	feasibility := "feasible"
	if !report.Feasible {
		feasibility = "infeasible"
	}
	fmt.Fprintf(w, "Problem: %s\n", report.Problem)
	fmt.Fprintf(w, "Score:   %s (%s)\n\n", report.Score, feasibility)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONSTRAINT\tLEVEL\tMATCHES\tMAGNITUDE\tSCORE")
	for _, t := range report.Constraints {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", t.Constraint, t.Level, t.Count, t.Magnitude, t.Score)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if explain {
		for _, t := range report.Constraints {
			if len(t.Matches) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s:\n", t.Constraint)
			for _, m := range t.Matches {
				fmt.Fprintf(w, "  %s  magnitude %d  %s\n", strings.Join(m.Facts, ", "), m.Magnitude, m.Impact)
			}
		}
	}

	for _, f := range report.Failures {
		fmt.Fprintf(w, "\nFAILED %s: %s\n", f.Constraint, failureReason(f))
	}
	if report.Policy != nil {
		for _, v := range report.Policy.Findings() {
			fmt.Fprintf(w, "\npolicy %s [%s]: %s\n", v.Policy, v.Severity, v.Message)
		}
	}
	return nil
}

func failureReason(e *engine.EngineError) string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}
