package engine

import (
	"errors"
	"fmt"
	"strings"
)

// maxArity bounds the number of facts a tuple may carry.
const maxArity = 3

// Definition declares one constraint against a factory. Domain packages
// export their constraints as Definitions so they can be scored together or
// verified one at a time.
type Definition func(f *ConstraintFactory) *Constraint

// ConstraintFactory is the entry point of the constraint declaration surface.
type ConstraintFactory struct {
	schema *Schema
}

// NewConstraintFactory creates a factory resolving names against schema.
func NewConstraintFactory(schema *Schema) *ConstraintFactory {
	return &ConstraintFactory{schema: schema}
}

// Schema returns the schema the factory resolves type names against.
func (f *ConstraintFactory) Schema() *Schema { return f.schema }

// ForEach starts a stream over every initialized fact of the named type.
func (f *ConstraintFactory) ForEach(typeName string) *Stream {
	ft, ok := f.schema.Type(typeName)
	if !ok {
		return &Stream{factory: f, err: NewConfigurationError(
			fmt.Sprintf("forEach: unknown fact type %q", typeName), nil).WithCode(ErrCodeUnknownType)}
	}
	return &Stream{factory: f, source: ft, types: []*FactType{ft}}
}

// ForEachUniquePair starts a stream over unordered pairs of distinct facts of
// the named type satisfying the joiners. Each pair is produced once.
func (f *ConstraintFactory) ForEachUniquePair(typeName string, joiners ...Joiner) *Stream {
	pairJoiners := append(append([]Joiner(nil), joiners...), LessThan(IDAttribute))
	return f.ForEach(typeName).Join(typeName, pairJoiners...)
}

// Stream is an immutable pipeline under construction. Each method returns a
// new stream; a declaration error is carried to the terminal call.
type Stream struct {
	factory *ConstraintFactory
	source  *FactType
	types   []*FactType
	depends []*FactType
	stages  []stage
	err     error
}

func (s *Stream) with(st stage, ft *FactType) *Stream {
	next := &Stream{
		factory: s.factory,
		source:  s.source,
		types:   append([]*FactType(nil), s.types...),
		depends: s.depends,
		stages:  append(append([]stage(nil), s.stages...), st),
	}
	if ft != nil {
		next.types = append(next.types, ft)
	}
	return next
}

func (s *Stream) failed(err error) *Stream {
	return &Stream{factory: s.factory, source: s.source, types: s.types, depends: s.depends, stages: s.stages, err: err}
}

// DependsOn declares fact types the stream reads through references held by
// its tuples rather than through a join. Updating a fact of such a type
// invalidates the constraint's cached total.
func (s *Stream) DependsOn(typeNames ...string) *Stream {
	if s.err != nil {
		return s
	}
	depends := append([]*FactType(nil), s.depends...)
	for _, name := range typeNames {
		ft, ok := s.factory.schema.Type(name)
		if !ok {
			return s.failed(NewConfigurationError(
				fmt.Sprintf("dependsOn: unknown fact type %q", name), nil).WithCode(ErrCodeUnknownType))
		}
		depends = append(depends, ft)
	}
	return &Stream{factory: s.factory, source: s.source, types: s.types, depends: depends, stages: s.stages}
}

// Arity returns the number of facts per tuple.
func (s *Stream) Arity() int { return len(s.types) }

// Join extends every tuple with each fact of the named type satisfying all joiners.
func (s *Stream) Join(typeName string, joiners ...Joiner) *Stream {
	if s.err != nil {
		return s
	}
	if len(s.types) >= maxArity {
		return s.failed(NewConfigurationError(
			fmt.Sprintf("join %s: tuples are limited to %d facts", typeName, maxArity), nil).
			WithCode(ErrCodeInvalidJoin))
	}
	target, ok := s.factory.schema.Type(typeName)
	if !ok {
		return s.failed(NewConfigurationError(
			fmt.Sprintf("join: unknown fact type %q", typeName), nil).WithCode(ErrCodeUnknownType))
	}

	bound := make([]boundJoiner, 0, len(joiners))
	equal := 0
	for _, j := range joiners {
		b, err := bindJoiner(j, s.types, target)
		if err != nil {
			return s.failed(err)
		}
		if b.kind == JoinEqual {
			equal++
		}
		bound = append(bound, b)
	}
	if equal > maxEqualJoiners {
		return s.failed(NewConfigurationError(
			fmt.Sprintf("join %s: at most %d equal joiners are supported, got %d", typeName, maxEqualJoiners, equal), nil).
			WithCode(ErrCodeInvalidJoin))
	}
	return s.with(newJoinStage(s.types, target, bound), target)
}

// Filter keeps only the tuples for which the predicate holds.
func (s *Stream) Filter(p Predicate) *Stream {
	if s.err != nil {
		return s
	}
	if p.eval == nil {
		return s.failed(NewConfigurationError("filter: predicate is nil", nil).WithCode(ErrCodeInvalidConstraint))
	}
	if err := checkShape("filter", p.arity, p.types, s.types); err != nil {
		return s.failed(err)
	}
	return s.with(&filterStage{pred: p}, nil)
}

// Penalize terminates the stream, penalizing each tuple by one unit of weight.
func (s *Stream) Penalize(name string, w Weight) *Constraint {
	return s.terminate(name, w, Penalize, nil)
}

// PenalizeBy terminates the stream, penalizing each tuple by magnitude × weight.
func (s *Stream) PenalizeBy(name string, w Weight, m Magnitude) *Constraint {
	return s.terminate(name, w, Penalize, &m)
}

// Reward terminates the stream, rewarding each tuple by one unit of weight.
func (s *Stream) Reward(name string, w Weight) *Constraint {
	return s.terminate(name, w, Reward, nil)
}

// RewardBy terminates the stream, rewarding each tuple by magnitude × weight.
func (s *Stream) RewardBy(name string, w Weight, m Magnitude) *Constraint {
	return s.terminate(name, w, Reward, &m)
}

func (s *Stream) terminate(name string, w Weight, d Direction, m *Magnitude) *Constraint {
	c := &Constraint{
		name:      name,
		source:    s.source,
		types:     s.types,
		depends:   s.depends,
		stages:    s.stages,
		weight:    w,
		direction: d,
		magnitude: m,
	}

	var errs []error
	if s.err != nil {
		errs = append(errs, s.err)
	}
	if strings.TrimSpace(name) == "" {
		errs = append(errs, NewConfigurationError("constraint name is empty", nil).WithCode(ErrCodeInvalidConstraint))
	}
	if w.Amount < 0 {
		errs = append(errs, NewConfigurationError(
			fmt.Sprintf("weight %s is negative", w), nil).WithCode(ErrCodeInvalidConstraint))
	}
	if w.Level != LevelHard && w.Level != LevelSoft {
		errs = append(errs, NewConfigurationError(
			fmt.Sprintf("unknown score level %s", w.Level), nil).WithCode(ErrCodeInvalidConstraint))
	}
	if m != nil && s.err == nil {
		if m.eval == nil {
			errs = append(errs, NewConfigurationError("magnitude function is nil", nil).WithCode(ErrCodeInvalidConstraint))
		} else if err := checkShape("magnitude", m.arity, m.types, s.types); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		c.err = errors.Join(errs...)
	}
	return c
}

// Constraint is a named Join→Filter→Score pipeline. It is immutable once declared.
type Constraint struct {
	name      string
	source    *FactType
	types     []*FactType
	depends   []*FactType
	stages    []stage
	weight    Weight
	direction Direction
	magnitude *Magnitude
	err       error
}

// Name returns the constraint name.
func (c *Constraint) Name() string { return c.name }

// Weight returns the per-unit weight.
func (c *Constraint) Weight() Weight { return c.weight }

// Level returns the score level the constraint contributes to.
func (c *Constraint) Level() Level { return c.weight.Level }

// Direction returns whether the constraint penalizes or rewards.
func (c *Constraint) Direction() Direction { return c.direction }

// Err returns the declaration error, if any.
func (c *Constraint) Err() error { return c.err }

// SourceTypes returns the fact type names of the tuple positions.
func (c *Constraint) SourceTypes() []string {
	names := make([]string, len(c.types))
	for i, ft := range c.types {
		names[i] = ft.name
	}
	return names
}

// withWeight returns a copy of the constraint with a different weight amount.
func (c *Constraint) withWeight(amount int64) *Constraint {
	cp := *c
	cp.weight.Amount = amount
	return &cp
}

// Descriptor summarises a constraint for listings and policy checks.
type Descriptor struct {
	Name        string    `json:"name" yaml:"name"`
	Level       Level     `json:"level" yaml:"level"`
	Direction   Direction `json:"direction" yaml:"direction"`
	Weight      int64     `json:"weight" yaml:"weight"`
	SourceTypes []string  `json:"sourceTypes" yaml:"sourceTypes"`
	Enabled     bool      `json:"enabled" yaml:"enabled"`
}

// Descriptor summarises the constraint.
func (c *Constraint) Descriptor() Descriptor {
	return Descriptor{
		Name:        c.name,
		Level:       c.weight.Level,
		Direction:   c.direction,
		Weight:      c.weight.Amount,
		SourceTypes: c.SourceTypes(),
		Enabled:     true,
	}
}
