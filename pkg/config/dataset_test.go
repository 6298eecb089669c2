package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDataset(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"data.json": `{"rooms": [{"id": "A", "name": "Room A"}]}`,
		"data.yaml": "rooms:\n  - id: A\n    name: Room A\n",
		"data.cue":  "rooms: [{id: \"A\", name: \"Room \" + \"A\"}]\n",
	}

	parser := NewCUEParser()
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			data, err := parser.ReadDataset(path)
			require.NoError(t, err)
			assert.JSONEq(t, `{"rooms": [{"id": "A", "name": "Room A"}]}`, string(data))
		})
	}
}

func TestReadDatasetErrors(t *testing.T) {
	dir := t.TempDir()
	parser := NewCUEParser()

	_, err := parser.ReadDataset(filepath.Join(dir, "data.txt"))
	assert.ErrorContains(t, err, "cannot infer dataset format")

	_, err = parser.ReadDataset(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	_, err = parser.NormalizeDataset("bad.json", FormatJSON, []byte(`{"rooms": [`))
	assert.ErrorContains(t, err, "not valid JSON")

	_, err = parser.NormalizeDataset("bad.yaml", FormatYAML, []byte("rooms: [\n"))
	assert.Error(t, err)

	_, err = parser.NormalizeDataset("open.cue", FormatCUE, []byte(`rooms: [...{id: string}]`+"\nworkers: int\n"))
	assert.ErrorContains(t, err, "not concrete")
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]DatasetFormat{
		"a.json": FormatJSON,
		"a.YML":  FormatYAML,
		"a.yaml": FormatYAML,
		"a.cue":  FormatCUE,
	} {
		got, err := FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}
}
