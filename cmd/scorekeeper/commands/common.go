package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/scorekeeper/pkg/config"
	"github.com/openfroyo/scorekeeper/pkg/service"
	"github.com/openfroyo/scorekeeper/pkg/telemetry"
)

// buildVersion is reported as the telemetry service version.
var buildVersion = "dev"

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// LogLevelEnv names the environment variable holding the CLI log level.
const LogLevelEnv = "LOG_LEVEL"

// logLevel resolves the CLI log level. --verbose wins over the environment;
// an empty or unknown level means info.
func logLevel(verbose bool, env string) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(env)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// SetupLogging sends the global logger to w as console output at the level
// named by env.
func SetupLogging(w io.Writer, env string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
	zerolog.SetGlobalLevel(logLevel(false, env))
}

// loadConfig reads the configuration named by --config, or the defaults.
// --history overrides the configured history database.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.NewCUEParser().Load(ctx, configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration %s: %w", configPath, err)
		}
		log.Debug().Str("config", configPath).Msg("Configuration loaded")
		cfg = loaded
	}
	if historyPath != "" {
		cfg.History.Path = historyPath
	}
	return cfg, nil
}

// telemetryFlags selects where spans go.
type telemetryFlags struct {
	exporter   string
	endpoint   string
	production bool
}

// newTelemetry builds telemetry for a command. Logs go to stderr like the
// global logger; tracing stays off unless an exporter is chosen.
func newTelemetry(f telemetryFlags) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	if f.production {
		cfg = telemetry.ProductionConfig()
	}
	cfg.ServiceVersion = buildVersion
	if verbose {
		cfg.Logging.Level = "debug"
	}
	switch f.exporter {
	case "", "none":
		cfg.Tracing.Enabled = false
		cfg.Tracing.Exporter = "none"
	default:
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = f.exporter
		cfg.Tracing.Endpoint = f.endpoint
	}

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	return tel, nil
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// newService builds a scoring service over cfg. tel may be nil.
func newService(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (*service.Service, error) {
	logger := log.Logger
	return service.New(ctx, service.Options{Config: cfg, Telemetry: tel, Logger: &logger})
}

// problemFor resolves the problem from the flag or the configuration.
func problemFor(flag string, cfg *config.Config) (string, error) {
	switch {
	case flag != "":
		return flag, nil
	case cfg.Problem != "":
		return cfg.Problem, nil
	default:
		return "", fmt.Errorf("no problem given: pass --problem or set problem in the configuration")
	}
}

// render writes v in the selected output format; text falls back to
// writeText.
func render(w io.Writer, v any, writeText func(io.Writer) error) error {
	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeText(w)
	}
}
