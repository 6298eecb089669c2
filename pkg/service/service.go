// Package service ties the scoring engine to configuration, policies and
// telemetry. The CLI and the HTTP server are thin layers over it.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/scorekeeper/pkg/config"
	"github.com/openfroyo/scorekeeper/pkg/engine"
	"github.com/openfroyo/scorekeeper/pkg/policy"
	"github.com/openfroyo/scorekeeper/pkg/problems"
	"github.com/openfroyo/scorekeeper/pkg/stores"
	"github.com/openfroyo/scorekeeper/pkg/telemetry"
)

// Options configures a Service.
type Options struct {
	// Config is the scoring configuration; nil means config.Default().
	Config *config.Config

	// Telemetry receives scoring passes; nil disables it.
	Telemetry *telemetry.Telemetry

	// Policy lints constraint sets; nil builds an engine when the
	// configuration enables policies.
	Policy *policy.Engine

	// History records scoring passes; nil opens the database named by the
	// configuration, if any.
	History stores.Store

	// Logger defaults to the telemetry logger, then the global logger.
	Logger *zerolog.Logger
}

// Service scores datasets and verifies constraints of the registered
// problems.
type Service struct {
	mu      sync.RWMutex
	cfg     *config.Config
	tel     *telemetry.Telemetry
	policy  *policy.Engine
	scripts *config.StarlarkEvaluator
	history stores.Store
	logger  zerolog.Logger

	// ownsHistory is set when New opened the history and Close must close it.
	ownsHistory bool
}

// New creates a service. Custom policies listed in the configuration are
// loaded here.
func New(ctx context.Context, opts Options) (*Service, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	logger := log.Logger
	switch {
	case opts.Logger != nil:
		logger = *opts.Logger
	case opts.Telemetry != nil:
		logger = opts.Telemetry.Logger.Zerolog()
	}

	s := &Service{
		cfg:     cfg,
		tel:     opts.Telemetry,
		policy:  opts.Policy,
		scripts: config.NewStarlarkEvaluator(0),
		history: opts.History,
		logger:  logger.With().Str("component", "service").Logger(),
	}

	if s.policy == nil && cfg.Policy.Enabled {
		pe, err := policy.NewEngine(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create policy engine: %w", err)
		}
		s.policy = pe
	}
	if s.policy != nil && len(cfg.Policy.Paths) > 0 {
		if err := s.policy.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
	}
	if s.history == nil && cfg.History.Path != "" {
		if err := s.openHistory(ctx, cfg.History); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases the history database if New opened it.
func (s *Service) Close() error {
	if s.ownsHistory && s.history != nil {
		return s.history.Close()
	}
	return nil
}

// Config returns the active configuration.
func (s *Service) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig replaces the configuration used by later calls.
func (s *Service) SetConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Policy returns the policy engine, or nil when policies are disabled.
func (s *Service) Policy() *policy.Engine {
	return s.policy
}

// Telemetry returns the telemetry the service reports to, or nil.
func (s *Service) Telemetry() *telemetry.Telemetry {
	return s.tel
}

// ConstraintSet registers the constraints of problem with the configured
// overrides and scripted constraints, then lints the set. The lint result
// is nil when policies are disabled.
func (s *Service) ConstraintSet(ctx context.Context, problem string) (*engine.ConstraintSet, *policy.Result, error) {
	return s.constraintSet(ctx, problem, "register")
}

func (s *Service) constraintSet(ctx context.Context, problem, operation string) (*engine.ConstraintSet, *policy.Result, error) {
	cfg := s.Config()

	p, err := problems.Lookup(problem)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Problem != "" && cfg.Problem != p.Name {
		return nil, nil, engine.NewConfigurationError(
			fmt.Sprintf("configuration is for problem %q, not %q", cfg.Problem, p.Name), nil).
			WithCode(engine.ErrCodeInvalidConfig)
	}

	defs := p.Constraints()
	for _, sc := range cfg.ScriptedFor(p.Name) {
		def, err := s.scripts.Compile(sc)
		if err != nil {
			return nil, nil, engine.NewConfigurationError("invalid scripted constraint", err).
				WithConstraint(sc.Name).
				WithCode(engine.ErrCodeInvalidConfig)
		}
		defs = append(defs, def)
	}

	set, err := engine.NewConstraintSet(p.Schema(), defs, cfg.SetOptions()...)
	if err != nil {
		return nil, nil, err
	}

	lint, err := s.lint(ctx, set, operation)
	if err != nil {
		return nil, nil, err
	}
	return set, lint, nil
}

// lint runs the policies over set. Blocking findings reject the set unless
// the configuration asks only for warnings.
func (s *Service) lint(ctx context.Context, set *engine.ConstraintSet, operation string) (*policy.Result, error) {
	cfg := s.Config()
	if s.policy == nil || !cfg.Policy.Enabled {
		return nil, nil
	}

	problem := set.Schema().Name()
	res, err := s.policy.EvaluateSet(ctx, set, operation)
	if err != nil {
		return nil, err
	}

	for _, v := range res.Findings() {
		level := telemetry.EventLevelWarning
		if v.Severity.Blocking() {
			level = telemetry.EventLevelError
		}
		s.logger.WithLevel(zerologLevel(level)).
			Str("problem", problem).
			Str("policy", v.Policy).
			Str("constraint", v.Constraint).
			Str("severity", string(v.Severity)).
			Msg(v.Message)

		if s.tel != nil {
			s.tel.Metrics.RecordPolicyFinding(problem, v.Policy, string(v.Severity))
			_ = s.tel.Events.PublishPolicyViolation(problem, v.Constraint, v.Policy, level, v.Message)
		}
	}

	if !res.Allowed && cfg.Policy.OnViolation == "fail" {
		err := engine.NewConfigurationError(
			fmt.Sprintf("constraint set rejected by %d policy violation(s)", len(res.Violations)), violationsError(res.Violations)).
			WithCode(engine.ErrCodePolicyViolation).
			WithOperation(operation).
			WithDetail("violations", res.Violations)
		return res, err
	}
	return res, nil
}

func violationsError(vs []policy.Violation) error {
	errs := make([]error, len(vs))
	for i, v := range vs {
		errs[i] = fmt.Errorf("%s: %s", v.Policy, v.Message)
	}
	return errors.Join(errs...)
}

func zerologLevel(level string) zerolog.Level {
	if level == telemetry.EventLevelError {
		return zerolog.ErrorLevel
	}
	return zerolog.WarnLevel
}

// Constraints describes every constraint registered for problem, disabled
// ones included.
func (s *Service) Constraints(ctx context.Context, problem string) ([]engine.Descriptor, error) {
	set, _, err := s.constraintSet(ctx, problem, "describe")
	if err != nil {
		return nil, err
	}
	return set.Descriptors(), nil
}

// newSession creates a session reporting to telemetry, if any.
func (s *Service) newSession(set *engine.ConstraintSet) *engine.Session {
	opts := s.Config().SessionOptions()
	if s.tel != nil {
		opts = append(opts, engine.WithObserver(s.tel.Observer()))
	}
	return engine.NewSession(set, opts...)
}

func (s *Service) instrument(ctx context.Context) context.Context {
	if s.tel == nil {
		return ctx
	}
	return s.tel.WithContext(ctx)
}

func (s *Service) recordError(err error) {
	if s.tel != nil && err != nil {
		s.tel.Metrics.RecordError(err)
	}
}

// decodeFacts decodes a dataset in the problem's JSON format.
func decodeFacts(problem string, data []byte) ([]engine.Fact, error) {
	p, err := problems.Lookup(problem)
	if err != nil {
		return nil, err
	}
	facts, err := p.DecodeFacts(data)
	if err != nil {
		return nil, engine.NewConfigurationError("invalid dataset", err).
			WithCode(engine.ErrCodeInvalidDataset)
	}
	return facts, nil
}
