package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/scorekeeper/pkg/domain/routing"
	"github.com/openfroyo/scorekeeper/pkg/engine"
	"github.com/openfroyo/scorekeeper/pkg/service"
	"github.com/openfroyo/scorekeeper/pkg/stores"
)

const schedule = `employees:
  - name: Amy
    skills: [Nurse]
shifts:
  - id: "1"
    start: 2021-02-01T09:00:00Z
    end: 2021-02-01T17:00:00Z
    requiredSkill: Nurse
    employee: Amy
  - id: "2"
    start: 2021-02-01T09:00:00Z
    end: 2021-02-01T17:00:00Z
    requiredSkill: Nurse
    employee: Amy
`

// run executes the CLI with args and returns its standard output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configPath, historyPath, verbose, output = "", "", false, outputText

	cmd := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScoreCommand(t *testing.T) {
	path := writeFile(t, "schedule.yaml", schedule)

	out, err := run(t, "score", "--problem", "employee-scheduling", "-o", "json", path)
	require.NoError(t, err)

	var report struct {
		Score    engine.Score `json:"score"`
		Feasible bool         `json:"feasible"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, engine.Score{Hard: -481}, report.Score)
	assert.False(t, report.Feasible)
}

func TestScoreCommand_Text(t *testing.T) {
	path := writeFile(t, "schedule.yaml", schedule)

	out, err := run(t, "score", "--problem", "employee-scheduling", "--explain", path)
	require.NoError(t, err)
	assert.Contains(t, out, "-481hard/0soft (infeasible)")
	assert.Contains(t, out, "Overlapping shift")
	assert.Contains(t, out, "Shift:1, Shift:2")
}

func TestScoreCommand_Config(t *testing.T) {
	path := writeFile(t, "schedule.yaml", schedule)
	cfg := writeFile(t, "scorekeeper.cue", `
problem: "employee-scheduling"
constraints: "Max one shift per day": enabled: false
`)

	out, err := run(t, "score", "-c", cfg, "-o", "yaml", path)
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, "-480hard/0soft", report["score"])
}

func TestScoreCommand_Errors(t *testing.T) {
	path := writeFile(t, "schedule.yaml", schedule)

	_, err := run(t, "score", path)
	assert.ErrorContains(t, err, "no problem given")

	_, err = run(t, "score", "--problem", "employee-scheduling", "-o", "xml", path)
	assert.ErrorContains(t, err, "unknown output format")

	_, err = run(t, "score", "--problem", "employee-scheduling", writeFile(t, "schedule.txt", schedule))
	assert.ErrorContains(t, err, "cannot infer dataset format")
}

func TestVerifyCommand(t *testing.T) {
	fixture := `given:
  employees: [{name: Amy}]
  shifts:
    - {id: "1", start: 2021-02-01T09:00:00Z, end: 2021-02-01T17:00:00Z, employee: Amy}
    - {id: "2", start: 2021-02-01T13:00:00Z, end: 2021-02-01T21:00:00Z, employee: Amy}
`
	passing := writeFile(t, "overlap.yaml", fixture+"penalizesBy: 240\n")
	out, err := run(t, "verify", "employee-scheduling", "Overlapping shift", passing)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS penalizes by 240")

	failing := writeFile(t, "overlap.yaml", fixture+"penalizes: 2\n")
	out, err = run(t, "verify", "employee-scheduling", "Overlapping shift", failing)
	assert.ErrorIs(t, err, errExpectationFailed)
	assert.Contains(t, out, "FAIL penalizes 2")
}

func TestConstraintsCommand(t *testing.T) {
	out, err := run(t, "constraints", "-o", "json", "vehicle-routing")
	require.NoError(t, err)

	var descriptors []engine.Descriptor
	require.NoError(t, json.Unmarshal([]byte(out), &descriptors))
	require.Len(t, descriptors, 2)
	for _, d := range descriptors {
		assert.True(t, d.Enabled)
	}
}

func TestProblemsCommand(t *testing.T) {
	out, err := run(t, "problems")
	require.NoError(t, err)
	assert.Contains(t, out, "employee-scheduling")
	assert.Contains(t, out, "school-timetabling")
	assert.Contains(t, out, "vehicle-routing")
}

func TestValidateCommand(t *testing.T) {
	valid := writeFile(t, "scorekeeper.cue", `
problem: "employee-scheduling"
scripted: [{
	name: "Long shift"
	problem: "employee-scheduling"
	forEach: "Shift"
	filter: "a.end - a.start > 8 * 3600"
}]
`)
	out, err := run(t, "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "employee-scheduling: 8 constraints")
	assert.Contains(t, out, "Configuration is valid")

	unknown := writeFile(t, "scorekeeper.cue", `
problem: "employee-scheduling"
constraints: "No such constraint": enabled: false
`)
	out, err = run(t, "validate", unknown)
	assert.ErrorIs(t, err, errInvalidConfig)
	assert.Contains(t, out, "No such constraint")

	malformed := writeFile(t, "scorekeeper.cue", `engine: workers: 0`)
	_, err = run(t, "validate", malformed)
	assert.ErrorIs(t, err, errInvalidConfig)
}

func TestDemoCommand(t *testing.T) {
	out, err := run(t, "demo", "--customers", "5", "--vehicles", "2", "--depots", "1", "--seed", "3")
	require.NoError(t, err)

	var ds routing.Dataset
	require.NoError(t, json.Unmarshal([]byte(out), &ds))
	assert.Len(t, ds.Customers, 5)
	assert.Len(t, ds.Vehicles, 2)
	assert.Len(t, ds.Depots, 1)

	again, err := run(t, "demo", "--customers", "5", "--vehicles", "2", "--depots", "1", "--seed", "3")
	require.NoError(t, err)
	assert.Equal(t, out, again)

	_, err = run(t, "demo", "--customers", "0")
	assert.Error(t, err)
}

func TestHistoryCommand(t *testing.T) {
	path := writeFile(t, "schedule.yaml", schedule)
	db := filepath.Join(t.TempDir(), "history.db")

	_, err := run(t, "score", "--history", db, "--problem", "employee-scheduling", path)
	require.NoError(t, err)
	_, err = run(t, "score", "--history", db, "--problem", "employee-scheduling", path)
	require.NoError(t, err)

	out, err := run(t, "history", "--history", db, "-o", "json")
	require.NoError(t, err)

	var passes []stores.Pass
	require.NoError(t, json.Unmarshal([]byte(out), &passes), out)
	require.Len(t, passes, 2)
	assert.Equal(t, int64(-481), passes[0].Hard)
	assert.Equal(t, path, passes[0].Source)

	out, err = run(t, "history", "show", "--history", db, passes[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "-481hard/0soft")
	assert.Contains(t, out, "Overlapping shift")

	out, err = run(t, "history", "--history", db, "-p", "vehicle-routing", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	_, err = run(t, "history", "show", "--history", db, "missing")
	assert.ErrorContains(t, err, "not recorded")

	_, err = run(t, "history")
	assert.ErrorIs(t, err, service.ErrHistoryDisabled)
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		env     string
		want    zerolog.Level
	}{
		{name: "default", want: zerolog.InfoLevel},
		{name: "env", env: "warn", want: zerolog.WarnLevel},
		{name: "env is case insensitive", env: " ERROR ", want: zerolog.ErrorLevel},
		{name: "unknown env", env: "chatty", want: zerolog.InfoLevel},
		{name: "verbose", verbose: true, want: zerolog.DebugLevel},
		{name: "verbose wins over env", verbose: true, env: "error", want: zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logLevel(tt.verbose, tt.env))
		})
	}
}

func TestVerboseFlagSetsGlobalLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GetGlobalLevel())
	t.Setenv(LogLevelEnv, "error")

	_, err := run(t, "problems")
	require.NoError(t, err)
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GetGlobalLevel())

	_, err = run(t, "--verbose", "problems")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GetGlobalLevel())
}
