package engine

import (
	"errors"
	"fmt"
	"sort"
)

// Override adjusts a registered constraint without redeclaring it.
type Override struct {
	// Weight replaces the weight amount when set.
	Weight *int64

	// Disabled removes the constraint from scoring passes.
	Disabled bool
}

// SetOption configures a ConstraintSet.
type SetOption func(*setOptions)

type setOptions struct {
	overrides map[string]Override
}

// WithOverride applies an override to the named constraint.
func WithOverride(name string, o Override) SetOption {
	return func(opts *setOptions) {
		opts.overrides[name] = o
	}
}

// WithWeight replaces the weight amount of the named constraint.
func WithWeight(name string, amount int64) SetOption {
	return func(opts *setOptions) {
		o := opts.overrides[name]
		o.Weight = &amount
		opts.overrides[name] = o
	}
}

// WithDisabled removes the named constraints from scoring passes.
func WithDisabled(names ...string) SetOption {
	return func(opts *setOptions) {
		for _, name := range names {
			o := opts.overrides[name]
			o.Disabled = true
			opts.overrides[name] = o
		}
	}
}

// ConstraintSet is a registered, validated set of constraints over one schema.
type ConstraintSet struct {
	schema   *Schema
	all      []*Constraint
	enabled  []*Constraint
	disabled map[string]bool
	byName   map[string]*Constraint
}

// NewConstraintSet declares every definition against the schema and validates
// the result. All declaration errors are reported together, before any
// scoring can happen.
func NewConstraintSet(schema *Schema, defs []Definition, opts ...SetOption) (*ConstraintSet, error) {
	o := &setOptions{overrides: make(map[string]Override)}
	for _, opt := range opts {
		opt(o)
	}

	var errs []error
	if err := schema.Err(); err != nil {
		errs = append(errs, err)
	}

	factory := NewConstraintFactory(schema)
	set := &ConstraintSet{
		schema:   schema,
		disabled: make(map[string]bool),
		byName:   make(map[string]*Constraint, len(defs)),
	}

	for i, def := range defs {
		if def == nil {
			errs = append(errs, NewConfigurationError(fmt.Sprintf("definition %d is nil", i), nil).
				WithCode(ErrCodeInvalidConstraint))
			continue
		}
		c := def(factory)
		if c == nil {
			errs = append(errs, NewConfigurationError(fmt.Sprintf("definition %d returned no constraint", i), nil).
				WithCode(ErrCodeInvalidConstraint))
			continue
		}
		if c.err != nil {
			errs = append(errs, NewConfigurationError("invalid constraint", c.err).WithConstraint(c.name))
			continue
		}
		if _, dup := set.byName[c.name]; dup {
			errs = append(errs, NewConfigurationError("constraint declared twice", nil).
				WithConstraint(c.name).
				WithCode(ErrCodeDuplicate))
			continue
		}

		if ov, ok := o.overrides[c.name]; ok {
			if ov.Weight != nil {
				if *ov.Weight < 0 {
					errs = append(errs, NewConfigurationError(
						fmt.Sprintf("weight override %d is negative", *ov.Weight), nil).
						WithConstraint(c.name).
						WithCode(ErrCodeInvalidConstraint))
					continue
				}
				c = c.withWeight(*ov.Weight)
			}
			if ov.Disabled {
				set.disabled[c.name] = true
			}
		}

		set.byName[c.name] = c
		set.all = append(set.all, c)
		if !set.disabled[c.name] {
			set.enabled = append(set.enabled, c)
		}
	}

	unknown := make([]string, 0)
	for name := range o.overrides {
		if _, ok := set.byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, NewConfigurationError("override names an unknown constraint", nil).
			WithConstraint(name).
			WithCode(ErrCodeNotFound))
	}

	if len(errs) > 0 {
		return nil, NewConfigurationError(
			fmt.Sprintf("constraint set for %s is invalid", schema.name), errors.Join(errs...)).
			WithOperation("register")
	}
	return set, nil
}

// Schema returns the schema the set was registered against.
func (s *ConstraintSet) Schema() *Schema { return s.schema }

// Constraint looks up a registered constraint by name.
func (s *ConstraintSet) Constraint(name string) (*Constraint, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// Enabled returns the constraints taking part in scoring passes.
func (s *ConstraintSet) Enabled() []*Constraint {
	return append([]*Constraint(nil), s.enabled...)
}

// Descriptors lists every registered constraint, disabled ones included.
func (s *ConstraintSet) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(s.all))
	for _, c := range s.all {
		d := c.Descriptor()
		d.Enabled = !s.disabled[c.name]
		out = append(out, d)
	}
	return out
}

// Len returns the number of registered constraints.
func (s *ConstraintSet) Len() int { return len(s.all) }
