package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/scorekeeper/pkg/config"
	"github.com/openfroyo/scorekeeper/pkg/server"
)

func newServeCommand() *cobra.Command {
	var (
		addr  string
		watch bool
		tf    telemetryFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP scoring service",
		Long: `Run the HTTP scoring service.

Endpoints:
  GET  /health
  GET  /metrics
  GET  /v1/problems
  GET  /v1/problems/{problem}/constraints
  POST /v1/problems/{problem}/score[?explain=true]
  POST /v1/problems/{problem}/constraints/{constraint}/verify
  GET  /v1/history[?problem=&feasible=&limit=]
  GET  /v1/history/{pass}

With --watch the configuration is reloaded when it changes, and custom
policies are reloaded when their files change.`,
		Example: `  # Serve on the default address
  scorekeeper serve

  # Serve with a configuration and OTLP tracing
  scorekeeper serve -c scorekeeper.cue --addr :9000 --trace otlp --otlp-endpoint localhost:4317`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tel, err := newTelemetry(tf)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			svc, err := newService(ctx, cfg, tel)
			if err != nil {
				return err
			}
			defer svc.Close()

			if watch {
				if pe := svc.Policy(); pe != nil && len(cfg.Policy.Paths) > 0 {
					if err := pe.Watch(ctx, cfg.Policy.Paths); err != nil {
						return err
					}
					defer pe.StopWatching()
				}
				if configPath != "" {
					watcher, err := config.NewWatcher(log.Logger, config.DefaultDebounce, configPath)
					if err != nil {
						return err
					}
					go func() {
						err := watcher.Run(ctx, func() {
							cfg, err := loadConfig(ctx)
							if err != nil {
								log.Error().Err(err).Msg("Keeping previous configuration")
								return
							}
							svc.SetConfig(cfg)
							log.Info().Str("config", configPath).Msg("Configuration reloaded")
						})
						if err != nil {
							log.Error().Err(err).Msg("Configuration watcher stopped")
						}
					}()
				}
			}

			logger := tel.Logger.NewComponentLogger("http").Zerolog()
			return server.New(svc, logger).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload configuration and policies on change")
	cmd.Flags().StringVar(&tf.exporter, "trace", "none", "trace exporter: none, stdout or otlp")
	cmd.Flags().StringVar(&tf.endpoint, "otlp-endpoint", "", "OTLP collector endpoint")
	cmd.Flags().BoolVar(&tf.production, "production", false, "JSON logs and production telemetry defaults")

	return cmd
}
