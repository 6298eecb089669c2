package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DatasetFormat is the encoding of a dataset file.
type DatasetFormat string

const (
	FormatJSON DatasetFormat = "json"
	FormatYAML DatasetFormat = "yaml"
	FormatCUE  DatasetFormat = "cue"
)

// FormatOf infers the dataset format from a file extension.
func FormatOf(path string) (DatasetFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("cannot infer dataset format of %s (want .json, .yaml, .yml or .cue)", path)
	}
}

// ReadDataset reads a dataset file and returns it as JSON, the form the
// problem decoders accept.
func (cp *CUEParser) ReadDataset(path string) ([]byte, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return cp.NormalizeDataset(path, format, data)
}

// NormalizeDataset converts a dataset in the given format to JSON.
func (cp *CUEParser) NormalizeDataset(name string, format DatasetFormat, data []byte) ([]byte, error) {
	switch format {
	case FormatJSON:
		if !json.Valid(data) {
			return nil, fmt.Errorf("%s is not valid JSON", name)
		}
		return data, nil
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s to JSON: %w", name, err)
		}
		return out, nil
	case FormatCUE:
		return cp.ExportJSON(name, data)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", format)
	}
}
