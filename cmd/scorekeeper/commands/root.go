package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	historyPath string
	verbose     bool
	output      string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scorekeeper",
		Short: "Scorekeeper - constraint scoring for planning problems",
		Long: `Scorekeeper scores candidate solutions of planning problems against
weighted hard and soft constraints.

Features:
  - Employee scheduling, school timetabling and vehicle routing
  - Per-constraint explanations of every score
  - Isolated constraint verification against fixtures
  - Typed configuration via CUE
  - Scripted constraints via Starlark
  - Constraint set linting via OPA/rego
  - Score history in SQLite
  - HTTP scoring service with Prometheus metrics`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zerolog.SetGlobalLevel(logLevel(verbose, os.Getenv(LogLevelEnv)))
			switch output {
			case outputText, outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", output)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "scoring configuration (.cue file or directory)")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", "", "score history database (overrides history.path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")

	// Add subcommands
	rootCmd.AddCommand(newScoreCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newConstraintsCommand())
	rootCmd.AddCommand(newProblemsCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newDemoCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
