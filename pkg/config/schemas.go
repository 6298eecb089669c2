package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation. Every schema is
// compiled in the registry's context so values built from it can be unified
// with them.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	if err := sr.RegisterSchema(ScorekeeperSchema, builtinScorekeeperSchema); err != nil {
		panic(err)
	}
	return sr
}

// Context returns the CUE context the schemas were compiled in.
func (sr *SchemaRegistry) Context() *cue.Context {
	return sr.ctx
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Definition returns the definition def (e.g. "#Config") of a named schema.
func (sr *SchemaRegistry) Definition(schemaName, def string) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}
	v := schema.LookupPath(cue.ParsePath(def))
	if !v.Exists() {
		return cue.Value{}, fmt.Errorf("schema %s has no definition %s", schemaName, def)
	}
	return v, nil
}

// ValidateAgainstSchema validates data against a definition of a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName, def string, data any) error {
	schema, err := sr.Definition(schemaName, def)
	if err != nil {
		return err
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScorekeeperSchema names the built-in configuration schema.
const ScorekeeperSchema = "scorekeeper"

const builtinScorekeeperSchema = `
// Scoring configuration
#Config: {
	// Problem pins the configuration to one problem
	problem?: #ProblemName

	engine: #Engine

	// Overrides of registered constraints, keyed by constraint name
	constraints: {[string]: #ConstraintOverride}

	scripted: *[] | [...#Scripted]

	policy: #Policy

	history: #History
}

#ProblemName: =~"^[a-z0-9]+(-[a-z0-9]+)*$"

#Engine: {
	workers:     *10 | int & >0
	incremental: *true | bool
}

#ConstraintOverride: {
	enabled: *true | bool
	weight?: int & >=0
}

#Scripted: {
	name:    string & !=""
	problem: #ProblemName
	forEach: string & !=""
	join?:   string & !=""
	pair:    *false | bool
	equal:   *[] | [...string]

	level:     *"SOFT" | "HARD"
	direction: *"PENALIZE" | "REWARD"
	weight:    *1 | int & >=0

	filter?:    string
	magnitude?: string
}

#History: {
	path:          *"" | string
	retentionDays: *0 | int & >=0
}

#Policy: {
	enabled:     *true | bool
	paths:       *[] | [...string]
	onViolation: *"fail" | "warn"
}
`
