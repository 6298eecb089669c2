package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/scorekeeper/pkg/config"
	"github.com/openfroyo/scorekeeper/pkg/domain/scheduling"
	"github.com/openfroyo/scorekeeper/pkg/engine"
	"github.com/openfroyo/scorekeeper/pkg/telemetry"
)

// Amy works two identical shifts: they overlap by 480 minutes and fall on
// the same day.
const overlappingShifts = `{
  "employees": [{"name": "Amy", "skills": ["Nurse"]}],
  "shifts": [
    {"id": "1", "start": "2021-02-01T09:00:00Z", "end": "2021-02-01T17:00:00Z", "location": "ER", "requiredSkill": "Nurse", "employee": "Amy"},
    {"id": "2", "start": "2021-02-01T09:00:00Z", "end": "2021-02-01T17:00:00Z", "location": "ER", "requiredSkill": "Nurse", "employee": "Amy"}
  ]
}`

func newService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	logger := zerolog.Nop()
	s, err := New(context.Background(), Options{Config: cfg, Logger: &logger})
	require.NoError(t, err)
	return s
}

func weight(n int64) *int64 { return &n }

func engineError(t *testing.T, err error) *engine.EngineError {
	t.Helper()
	var engErr *engine.EngineError
	require.ErrorAs(t, err, &engErr)
	return engErr
}

func TestScore(t *testing.T) {
	s := newService(t, nil)

	report, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
	require.NoError(t, err)

	assert.Equal(t, scheduling.Problem, report.Problem)
	assert.NotEmpty(t, report.PassID)
	assert.Equal(t, engine.Score{Hard: -481}, report.Score)
	assert.False(t, report.Feasible)
	assert.Equal(t, map[string]int{"Employee": 1, "Shift": 2, "Availability": 0}, report.Facts)
	assert.Len(t, report.Constraints, 7)
	assert.Empty(t, report.Failures)
	require.NotNil(t, report.Policy)
	assert.True(t, report.Policy.Allowed)

	for _, total := range report.Constraints {
		assert.Nil(t, total.Matches, total.Constraint)
	}
}

func TestScore_Explain(t *testing.T) {
	s := newService(t, nil)

	report, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), true)
	require.NoError(t, err)

	var overlap *engine.ConstraintMatchTotal
	for i := range report.Constraints {
		if report.Constraints[i].Constraint == scheduling.NoOverlappingShiftsName {
			overlap = &report.Constraints[i]
		}
	}
	require.NotNil(t, overlap)
	assert.Equal(t, 1, overlap.Count)
	assert.Equal(t, int64(480), overlap.Magnitude)
	require.Len(t, overlap.Matches, 1)
	assert.Equal(t, engine.Score{Hard: -480}, overlap.Matches[0].Impact)
}

func TestScore_Overrides(t *testing.T) {
	cfg := config.Default()
	cfg.Constraints = map[string]config.ConstraintConfig{
		scheduling.OneShiftPerDayName:      {Enabled: false},
		scheduling.NoOverlappingShiftsName: {Enabled: true, Weight: weight(2)},
	}
	s := newService(t, cfg)

	report, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
	require.NoError(t, err)
	assert.Equal(t, engine.Score{Hard: -960}, report.Score)
	assert.Len(t, report.Constraints, 6)
}

func TestScore_ScriptedConstraint(t *testing.T) {
	cfg := config.Default()
	cfg.Scripted = []config.ScriptedConstraint{{
		Name: "Emergency room shift", Problem: scheduling.Problem, ForEach: "Shift",
		Level: "SOFT", Direction: "PENALIZE", Weight: 3,
		Filter:    `a.location == "ER"`,
		Magnitude: "(a.end - a.start) // 3600",
	}}
	s := newService(t, cfg)

	report, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
	require.NoError(t, err)
	// Two eight hour shifts at weight 3.
	assert.Equal(t, engine.Score{Hard: -481, Soft: -48}, report.Score)
	assert.Len(t, report.Constraints, 8)
}

func TestScore_ScriptedConstraintForOtherProblemIgnored(t *testing.T) {
	cfg := config.Default()
	cfg.Scripted = []config.ScriptedConstraint{{
		Name: "Every lesson", Problem: "school-timetabling", ForEach: "Lesson",
		Level: "SOFT", Direction: "PENALIZE", Weight: 1,
	}}
	s := newService(t, cfg)

	descriptors, err := s.Constraints(context.Background(), scheduling.Problem)
	require.NoError(t, err)
	assert.Len(t, descriptors, 7)
}

func TestScore_InvalidScriptedConstraint(t *testing.T) {
	cfg := config.Default()
	cfg.Scripted = []config.ScriptedConstraint{{
		Name: "Broken", Problem: scheduling.Problem, ForEach: "Shift",
		Level: "SOFT", Direction: "PENALIZE", Weight: 1,
		Filter: "a.location ==",
	}}
	s := newService(t, cfg)

	_, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
	require.Error(t, err)
	engErr := engineError(t, err)
	assert.Equal(t, engine.ErrorClassConfiguration, engErr.Class)
	assert.Equal(t, "Broken", engErr.Constraint)
}

func TestScore_EvaluationFailureKeepsPartialScore(t *testing.T) {
	cfg := config.Default()
	cfg.Scripted = []config.ScriptedConstraint{{
		Name: "Broken", Problem: scheduling.Problem, ForEach: "Shift",
		Level: "SOFT", Direction: "PENALIZE", Weight: 1,
		Filter: "a.location + 1 > 0",
	}}
	s := newService(t, cfg)

	report, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
	require.Error(t, err)
	assert.True(t, engine.IsEvaluation(err))
	require.NotNil(t, report)
	assert.Equal(t, engine.Score{Hard: -481}, report.Score)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "Broken", report.Failures[0].Constraint)
	assert.Len(t, report.Constraints, 7)
}

func TestScore_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		problem string
		data    string
		class   engine.ErrorClass
		code    string
	}{
		{
			name:    "unknown problem",
			problem: "knapsack",
			data:    overlappingShifts,
			class:   engine.ErrorClassConfiguration,
			code:    engine.ErrCodeNotFound,
		},
		{
			name:    "configuration pinned to another problem",
			cfg:     &config.Config{Problem: "vehicle-routing", Engine: config.EngineConfig{Workers: 1}},
			problem: scheduling.Problem,
			data:    overlappingShifts,
			class:   engine.ErrorClassConfiguration,
			code:    engine.ErrCodeInvalidConfig,
		},
		{
			name:    "malformed dataset",
			problem: scheduling.Problem,
			data:    `{"employees": [`,
			class:   engine.ErrorClassConfiguration,
			code:    engine.ErrCodeInvalidDataset,
		},
		{
			name:    "unknown employee",
			problem: scheduling.Problem,
			data:    `{"employees": [], "shifts": [{"id": "1", "start": "2021-02-01T09:00:00Z", "end": "2021-02-01T17:00:00Z", "employee": "Amy"}]}`,
			class:   engine.ErrorClassConfiguration,
			code:    engine.ErrCodeInvalidDataset,
		},
		{
			name:    "duplicate fact",
			problem: scheduling.Problem,
			data:    `{"employees": [{"name": "Amy"}, {"name": "Amy"}], "shifts": []}`,
			class:   engine.ErrorClassState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t, tt.cfg)
			report, err := s.Score(context.Background(), tt.problem, []byte(tt.data), false)
			require.Error(t, err)
			assert.Nil(t, report)

			engErr := engineError(t, err)
			assert.Equal(t, tt.class, engErr.Class)
			if tt.code != "" {
				assert.Equal(t, tt.code, engErr.Code)
			}
		})
	}
}

func TestScore_ZeroWeightWarns(t *testing.T) {
	cfg := config.Default()
	cfg.Constraints = map[string]config.ConstraintConfig{
		scheduling.DesiredDayForEmployeeName: {Enabled: true, Weight: weight(0)},
	}
	s := newService(t, cfg)

	report, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
	require.NoError(t, err)
	require.NotNil(t, report.Policy)
	assert.True(t, report.Policy.Allowed)
	require.Len(t, report.Policy.Warnings, 1)
	assert.Equal(t, scheduling.DesiredDayForEmployeeName, report.Policy.Warnings[0].Constraint)
}

// writeDenyPolicy writes a custom policy rejecting the named constraint.
func writeDenyPolicy(t *testing.T, constraint string) string {
	t.Helper()
	dir := t.TempDir()
	rego := `package scorekeeper.policies.custom

import rego.v1

deny contains msg if {
	some c in input.constraints
	c.name == "` + constraint + `"
	msg := {"message": "constraint is not allowed here", "constraint": c.name, "severity": "error"}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forbidden.rego"), []byte(rego), 0o644))
	return dir
}

func TestScore_PolicyViolation(t *testing.T) {
	dir := writeDenyPolicy(t, scheduling.DesiredDayForEmployeeName)

	t.Run("fail rejects the constraint set", func(t *testing.T) {
		cfg := config.Default()
		cfg.Policy = config.PolicyConfig{Enabled: true, Paths: []string{dir}, OnViolation: "fail"}
		s := newService(t, cfg)

		_, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
		require.Error(t, err)
		engErr := engineError(t, err)
		assert.Equal(t, engine.ErrorClassConfiguration, engErr.Class)
		assert.Equal(t, engine.ErrCodePolicyViolation, engErr.Code)
		assert.Contains(t, err.Error(), "constraint is not allowed here")
	})

	t.Run("warn scores anyway", func(t *testing.T) {
		cfg := config.Default()
		cfg.Policy = config.PolicyConfig{Enabled: true, Paths: []string{dir}, OnViolation: "warn"}
		s := newService(t, cfg)

		report, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
		require.NoError(t, err)
		assert.Equal(t, engine.Score{Hard: -481}, report.Score)
		require.NotNil(t, report.Policy)
		assert.False(t, report.Policy.Allowed)
		require.Len(t, report.Policy.Violations, 1)
		assert.Equal(t, scheduling.DesiredDayForEmployeeName, report.Policy.Violations[0].Constraint)
	})

	t.Run("disabled policies skip the lint", func(t *testing.T) {
		cfg := config.Default()
		cfg.Policy = config.PolicyConfig{Enabled: false, OnViolation: "fail"}
		s := newService(t, cfg)
		assert.Nil(t, s.Policy())

		report, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
		require.NoError(t, err)
		assert.Nil(t, report.Policy)
	})
}

func TestConstraints(t *testing.T) {
	cfg := config.Default()
	cfg.Constraints = map[string]config.ConstraintConfig{
		scheduling.UndesiredDayForEmployeeName: {Enabled: false},
	}
	s := newService(t, cfg)

	descriptors, err := s.Constraints(context.Background(), scheduling.Problem)
	require.NoError(t, err)
	require.Len(t, descriptors, 7)

	enabled := make(map[string]bool)
	for _, d := range descriptors {
		enabled[d.Name] = d.Enabled
	}
	assert.False(t, enabled[scheduling.UndesiredDayForEmployeeName])
	assert.True(t, enabled[scheduling.RequiredSkillName])
}

func TestSetConfig(t *testing.T) {
	s := newService(t, nil)

	cfg := config.Default()
	cfg.Constraints = map[string]config.ConstraintConfig{scheduling.OneShiftPerDayName: {Enabled: false}}
	s.SetConfig(cfg)

	report, err := s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
	require.NoError(t, err)
	assert.Equal(t, engine.Score{Hard: -480}, report.Score)
}

func TestScore_Telemetry(t *testing.T) {
	telCfg := telemetry.DefaultConfig()
	telCfg.Logging.Level = "error"
	telCfg.Events.EnableAsync = false
	tel, err := telemetry.NewTelemetry(telCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	var (
		mu     sync.Mutex
		events []string
	)
	tel.Events.Subscribe(func(e telemetry.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
	}, nil)

	cfg := config.Default()
	cfg.Constraints = map[string]config.ConstraintConfig{
		scheduling.DesiredDayForEmployeeName: {Enabled: true, Weight: weight(0)},
	}
	s, err := New(context.Background(), Options{Config: cfg, Telemetry: tel})
	require.NoError(t, err)

	_, err = s.Score(context.Background(), scheduling.Problem, []byte(overlappingShifts), false)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{telemetry.EventTypePolicyViolation, telemetry.EventTypePassCompleted}, events)
}
