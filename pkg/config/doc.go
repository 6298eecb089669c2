// Package config provides CUE configuration parsing, dataset loading and
// Starlark scripted constraints for the scorekeeper.
//
// # Overview
//
// A scoring configuration tunes the engine, overrides the weight or enabled
// state of registered constraints and declares extra constraints in
// Starlark. It is written in CUE and closed over the built-in #Config
// schema, which supplies defaults and rejects unknown fields.
//
//	engine: workers: 4
//
//	constraints: {
//		"Undesired day for employee": weight: 2
//		"Desired day for employee": enabled: false
//	}
//
//	scripted: [{
//		name:      "Long shift"
//		problem:   "employee-scheduling"
//		forEach:   "Shift"
//		filter:    "a.end - a.start > 10 * 3600"
//		magnitude: "(a.end - a.start) // 60 - 600"
//	}]
//
// # Components
//
// CUEParser: parses configuration files, directories and inline content, and
// converts JSON, YAML and CUE datasets to the JSON the problem decoders read.
//
// SchemaRegistry: holds the CUE schemas configuration is validated against.
//
// StarlarkEvaluator: compiles scripted constraints to engine definitions. Each
// expression sees the facts of the tuple as a, b (and c) with their declared
// attributes as fields. Execution is bounded by a step limit.
//
// Watcher: reports changes to configuration and dataset files, debounced.
package config
