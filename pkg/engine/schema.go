package engine

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Fact is a typed, identified unit of domain data. The identity returned by
// FactID must be stable and unique within its fact type.
type Fact interface {
	FactID() string
}

// IDAttribute is the attribute every fact type carries, derived from FactID.
const IDAttribute = "id"

// Tuple is an ordered group of facts produced by a join.
type Tuple []Fact

// Refs renders every fact of the tuple as "Type:id".
func (t Tuple) Refs() []string {
	refs := make([]string, len(t))
	for i, f := range t {
		refs[i] = FactRef(f)
	}
	return refs
}

// FactRef renders a fact as "Type:id" using its Go type name.
func FactRef(f Fact) string {
	if f == nil {
		return "<nil>"
	}
	rt := reflect.TypeOf(f)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt.Name() + ":" + f.FactID()
}

// Attribute is a named accessor over one fact type, usable in join conditions.
type Attribute struct {
	name      string
	owner     *FactType
	valueType reflect.Type
	ordered   bool
	get       func(Fact) any
	compare   func(a, b any) int
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.name }

// ValueType returns the Go type of the attribute values.
func (a *Attribute) ValueType() reflect.Type { return a.valueType }

// Ordered reports whether the attribute supports range conditions.
func (a *Attribute) Ordered() bool { return a.ordered }

// Value reads the attribute from a fact of the owning type.
func (a *Attribute) Value(f Fact) any { return a.get(f) }

// FactType describes one declared fact type of a schema.
type FactType struct {
	name        string
	goType      reflect.Type
	attrs       map[string]*Attribute
	attrOrder   []string
	initialized func(Fact) bool
}

// Name returns the declared type name.
func (ft *FactType) Name() string { return ft.name }

// Attribute looks up an attribute by name.
func (ft *FactType) Attribute(name string) (*Attribute, bool) {
	a, ok := ft.attrs[name]
	return a, ok
}

// Attributes returns the attributes in declaration order, IDAttribute first.
func (ft *FactType) Attributes() []*Attribute {
	out := make([]*Attribute, 0, len(ft.attrOrder))
	for _, name := range ft.attrOrder {
		out = append(out, ft.attrs[name])
	}
	return out
}

// IsInitialized reports whether the fact takes part in streams. Facts whose
// planning variables are still unassigned are skipped by ForEach and Join.
func (ft *FactType) IsInitialized(f Fact) bool {
	if ft.initialized == nil {
		return true
	}
	return ft.initialized(f)
}

func (ft *FactType) addAttribute(a *Attribute) error {
	if a.name == "" {
		return fmt.Errorf("fact type %s: attribute name is empty", ft.name)
	}
	if _, exists := ft.attrs[a.name]; exists {
		return fmt.Errorf("fact type %s: attribute %q declared twice", ft.name, a.name)
	}
	a.owner = ft
	ft.attrs[a.name] = a
	ft.attrOrder = append(ft.attrOrder, a.name)
	return nil
}

// Schema is the set of fact types a problem declares. Constraints and
// verifier fixtures are checked against it.
type Schema struct {
	name   string
	types  map[reflect.Type]*FactType
	byName map[string]*FactType
	order  []*FactType
	errs   []error
}

// NewSchema creates an empty schema.
func NewSchema(name string) *Schema {
	return &Schema{
		name:   name,
		types:  make(map[reflect.Type]*FactType),
		byName: make(map[string]*FactType),
	}
}

// Name returns the schema (problem) name.
func (s *Schema) Name() string { return s.name }

// Type looks up a fact type by its declared name.
func (s *Schema) Type(name string) (*FactType, bool) {
	ft, ok := s.byName[name]
	return ft, ok
}

// Types returns the fact types in declaration order.
func (s *Schema) Types() []*FactType {
	return append([]*FactType(nil), s.order...)
}

// TypeOf resolves the declared fact type of a fact value.
func (s *Schema) TypeOf(f Fact) (*FactType, error) {
	if f == nil {
		return nil, NewConfigurationError("nil fact", nil).WithCode(ErrCodeUnknownType)
	}
	ft, ok := s.types[reflect.TypeOf(f)]
	if !ok {
		return nil, NewConfigurationError(
			fmt.Sprintf("fact type %s is not declared in schema %s", reflect.TypeOf(f), s.name), nil).
			WithCode(ErrCodeUnknownType)
	}
	return ft, nil
}

// Err reports every error recorded while the schema was declared.
func (s *Schema) Err() error {
	if len(s.errs) == 0 {
		return nil
	}
	return NewConfigurationError(fmt.Sprintf("schema %s is invalid", s.name), errors.Join(s.errs...))
}

// TypeDef is the typed handle returned by DefineType, used to declare attributes.
type TypeDef[T Fact] struct {
	schema *Schema
	ft     *FactType
}

// DefineType declares the Go type T as a fact type of the schema.
func DefineType[T Fact](s *Schema, name string) *TypeDef[T] {
	rt := reflect.TypeFor[T]()
	ft := &FactType{
		name:   name,
		goType: rt,
		attrs:  make(map[string]*Attribute),
	}
	def := &TypeDef[T]{schema: s, ft: ft}

	switch {
	case strings.TrimSpace(name) == "":
		s.errs = append(s.errs, fmt.Errorf("fact type %s: name is empty", rt))
		return def
	case s.byName[name] != nil:
		s.errs = append(s.errs, fmt.Errorf("fact type %q declared twice", name))
		return def
	case s.types[rt] != nil:
		s.errs = append(s.errs, fmt.Errorf("go type %s declared twice (as %q and %q)", rt, s.types[rt].name, name))
		return def
	}

	s.types[rt] = ft
	s.byName[name] = ft
	s.order = append(s.order, ft)

	_ = ft.addAttribute(&Attribute{
		name:      IDAttribute,
		valueType: reflect.TypeFor[string](),
		ordered:   true,
		get:       func(f Fact) any { return f.FactID() },
		compare:   compareAs[string],
	})
	return def
}

// Type returns the declared fact type.
func (d *TypeDef[T]) Type() *FactType { return d.ft }

// Initialized sets the predicate deciding whether a fact takes part in streams.
func (d *TypeDef[T]) Initialized(fn func(T) bool) *TypeDef[T] {
	d.ft.initialized = func(f Fact) bool { return fn(f.(T)) }
	return d
}

func (d *TypeDef[T]) add(a *Attribute) {
	if err := d.ft.addAttribute(a); err != nil {
		d.schema.errs = append(d.schema.errs, err)
	}
}

// Key declares an attribute usable in equality conditions.
func Key[T Fact, V comparable](d *TypeDef[T], name string, fn func(T) V) {
	d.add(&Attribute{
		name:      name,
		valueType: reflect.TypeFor[V](),
		get:       func(f Fact) any { return fn(f.(T)) },
	})
}

// Ordered declares an attribute usable in equality and range conditions.
func Ordered[T Fact, V cmp.Ordered](d *TypeDef[T], name string, fn func(T) V) {
	d.add(&Attribute{
		name:      name,
		valueType: reflect.TypeFor[V](),
		ordered:   true,
		get:       func(f Fact) any { return fn(f.(T)) },
		compare:   compareAs[V],
	})
}

// Instant declares an ordered timestamp attribute. Values are normalised to
// Unix seconds so that joins compare them without time zone concerns.
func Instant[T Fact](d *TypeDef[T], name string, fn func(T) time.Time) {
	Ordered(d, name, func(v T) int64 { return fn(v).Unix() })
}

func compareAs[V cmp.Ordered](a, b any) int {
	return cmp.Compare(a.(V), b.(V))
}
