package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Config is the scoring configuration, usually read from scorekeeper.cue.
type Config struct {
	// Problem optionally pins the configuration to one problem.
	Problem string `json:"problem,omitempty"`

	// Engine tunes the scoring session.
	Engine EngineConfig `json:"engine"`

	// Constraints overrides registered constraints by name.
	Constraints map[string]ConstraintConfig `json:"constraints,omitempty" validate:"dive"`

	// Scripted declares additional constraints in Starlark.
	Scripted []ScriptedConstraint `json:"scripted,omitempty" validate:"dive"`

	// Policy configures the lint run over the constraint set before scoring.
	Policy PolicyConfig `json:"policy"`

	// History configures where scoring passes are recorded.
	History HistoryConfig `json:"history"`
}

// EngineConfig tunes the scoring session.
type EngineConfig struct {
	// Workers bounds the number of constraints evaluated in parallel.
	Workers int `json:"workers" validate:"gt=0"`

	// Incremental reuses per-constraint totals while their fact types are unchanged.
	Incremental bool `json:"incremental"`
}

// ConstraintConfig overrides one registered constraint.
type ConstraintConfig struct {
	// Enabled set to false removes the constraint from scoring.
	Enabled bool `json:"enabled"`

	// Weight replaces the amount of the constraint's weight, keeping its level.
	Weight *int64 `json:"weight,omitempty" validate:"omitempty,gte=0"`
}

// ScriptedConstraint is a constraint whose filter and magnitude are Starlark
// expressions over the attributes of the facts in the tuple, bound to a, b.
type ScriptedConstraint struct {
	// Name is the constraint name; it must not clash with registered ones.
	Name string `json:"name" validate:"required"`

	// Problem is the problem the constraint belongs to.
	Problem string `json:"problem" validate:"required"`

	// ForEach is the fact type the stream starts from.
	ForEach string `json:"forEach" validate:"required"`

	// Join is an optional second fact type joined to the first.
	Join string `json:"join,omitempty" validate:"excluded_with=Pair"`

	// Pair streams unique pairs of ForEach facts instead.
	Pair bool `json:"pair,omitempty"`

	// Equal lists attributes both sides of the join must share.
	Equal []string `json:"equal,omitempty"`

	// Level is HARD or SOFT.
	Level string `json:"level" validate:"required,oneof=HARD SOFT"`

	// Direction is PENALIZE or REWARD.
	Direction string `json:"direction" validate:"required,oneof=PENALIZE REWARD"`

	// Weight is the amount of the constraint's weight.
	Weight int64 `json:"weight" validate:"gte=0"`

	// Filter is a boolean expression; tuples for which it is false are dropped.
	Filter string `json:"filter,omitempty"`

	// Magnitude is an integer expression; it defaults to 1.
	Magnitude string `json:"magnitude,omitempty"`
}

// Arity returns the tuple size of the constraint's stream.
func (sc ScriptedConstraint) Arity() int {
	if sc.Pair || sc.Join != "" {
		return 2
	}
	return 1
}

// PolicyConfig configures the constraint set lint.
type PolicyConfig struct {
	// Enabled runs the built-in rules and any policies under Paths.
	Enabled bool `json:"enabled"`

	// Paths lists extra .rego files or directories.
	Paths []string `json:"paths,omitempty"`

	// OnViolation is "fail" to reject the set or "warn" to only log.
	OnViolation string `json:"onViolation" validate:"oneof=warn fail"`
}

// HistoryConfig configures the score history database.
type HistoryConfig struct {
	// Path is the SQLite database file; empty disables the history.
	Path string `json:"path,omitempty"`

	// RetentionDays drops passes older than this many days when the
	// history is opened; 0 keeps everything.
	RetentionDays int `json:"retentionDays" validate:"gte=0"`
}

// Retention returns the retention period, or 0 to keep everything.
func (h HistoryConfig) Retention() time.Duration {
	return time.Duration(h.RetentionDays) * 24 * time.Hour
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{Workers: engine.DefaultWorkers, Incremental: true},
		Policy: PolicyConfig{Enabled: true, OnViolation: "fail"},
	}
}

// SetOptions turns the constraint overrides into registration options.
func (c *Config) SetOptions() []engine.SetOption {
	opts := make([]engine.SetOption, 0, len(c.Constraints))
	for name, cc := range c.Constraints {
		opts = append(opts, engine.WithOverride(name, engine.Override{
			Weight:   cc.Weight,
			Disabled: !cc.Enabled,
		}))
	}
	return opts
}

// SessionOptions turns the engine settings into session options.
func (c *Config) SessionOptions() []engine.SessionOption {
	return []engine.SessionOption{
		engine.WithWorkers(c.Engine.Workers),
		engine.WithIncremental(c.Engine.Incremental),
	}
}

// ScriptedFor returns the scripted constraints declared for problem.
func (c *Config) ScriptedFor(problem string) []ScriptedConstraint {
	var out []ScriptedConstraint
	for _, sc := range c.Scripted {
		if sc.Problem == problem {
			out = append(out, sc)
		}
	}
	return out
}

// ParsedConfig is the outcome of parsing configuration sources.
type ParsedConfig struct {
	// Config is the decoded configuration, valid only when Errors is empty.
	Config *Config `json:"config,omitempty"`

	// SourceFiles are the CUE files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists any validation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// Err joins the validation errors, or returns nil.
func (pc *ParsedConfig) Err() error {
	if len(pc.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(pc.Errors))
	for i := range pc.Errors {
		errs[i] = pc.Errors[i]
	}
	return engine.NewConfigurationError("invalid configuration", errors.Join(errs...)).
		WithCode(engine.ErrCodeInvalidConfig)
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the CUE path to the error (e.g., "engine.workers").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	msg := e.Message
	if e.Path != "" && !strings.HasPrefix(msg, e.Path) {
		msg = e.Path + ": " + msg
	}
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, msg)
	}
	return msg
}
