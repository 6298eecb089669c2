package config

import (
	"fmt"
	"reflect"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// DefaultMaxSteps bounds the work a single filter or magnitude call may do.
const DefaultMaxSteps = 100_000

// tupleParams names the facts of a tuple inside scripted expressions.
var tupleParams = []string{"a", "b", "c"}

// StarlarkEvaluator compiles scripted constraints into engine definitions.
type StarlarkEvaluator struct {
	maxSteps uint64
}

// NewStarlarkEvaluator creates a new Starlark evaluator. Zero maxSteps means
// DefaultMaxSteps.
func NewStarlarkEvaluator(maxSteps uint64) *StarlarkEvaluator {
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	return &StarlarkEvaluator{maxSteps: maxSteps}
}

// Compile turns a scripted constraint into a definition. Expression syntax
// errors are reported here; unknown fact types and attributes are reported
// when the definition is registered.
func (se *StarlarkEvaluator) Compile(sc ScriptedConstraint) (engine.Definition, error) {
	if sc.Pair && sc.Join != "" {
		return nil, fmt.Errorf("scripted constraint %q: pair and join are mutually exclusive", sc.Name)
	}
	level, err := engine.ParseLevel(sc.Level)
	if err != nil {
		return nil, fmt.Errorf("scripted constraint %q: %w", sc.Name, err)
	}
	direction, err := engine.ParseDirection(sc.Direction)
	if err != nil {
		return nil, fmt.Errorf("scripted constraint %q: %w", sc.Name, err)
	}

	arity := sc.Arity()
	var filter, magnitude *starlark.Function
	if sc.Filter != "" {
		if filter, err = se.compileExpr(sc.Name, "filter", sc.Filter, arity); err != nil {
			return nil, err
		}
	}
	if sc.Magnitude != "" {
		if magnitude, err = se.compileExpr(sc.Name, "magnitude", sc.Magnitude, arity); err != nil {
			return nil, err
		}
	}

	weight := engine.Weight{Level: level, Amount: sc.Weight}

	return func(f *engine.ConstraintFactory) *engine.Constraint {
		schema := f.Schema()
		joiners := make([]engine.Joiner, 0, len(sc.Equal))
		for _, attr := range sc.Equal {
			joiners = append(joiners, engine.Equal(attr))
		}

		var s *engine.Stream
		switch {
		case sc.Pair:
			s = f.ForEachUniquePair(sc.ForEach, joiners...)
		case sc.Join != "":
			s = f.ForEach(sc.ForEach).Join(sc.Join, joiners...)
		default:
			s = f.ForEach(sc.ForEach)
		}

		if filter != nil {
			s = s.Filter(engine.TuplePredicate(arity, func(t engine.Tuple) (bool, error) {
				v, err := se.call(filter, schema, t)
				if err != nil {
					return false, err
				}
				return bool(v.Truth()), nil
			}))
		}

		if magnitude == nil {
			if direction == engine.Reward {
				return s.Reward(sc.Name, weight)
			}
			return s.Penalize(sc.Name, weight)
		}

		m := engine.TupleMagnitude(arity, func(t engine.Tuple) (int64, error) {
			v, err := se.call(magnitude, schema, t)
			if err != nil {
				return 0, err
			}
			return toInt64(v)
		})
		if direction == engine.Reward {
			return s.RewardBy(sc.Name, weight, m)
		}
		return s.PenalizeBy(sc.Name, weight, m)
	}, nil
}

// compileExpr wraps an expression in a function over the tuple parameters.
// The resulting globals are frozen, so the function may be called from
// several threads.
func (se *StarlarkEvaluator) compileExpr(constraint, what, expr string, arity int) (*starlark.Function, error) {
	if strings.Contains(expr, "\n") {
		return nil, fmt.Errorf("scripted constraint %q: %s must be a single expression", constraint, what)
	}
	src := fmt.Sprintf("def %s(%s):\n    return (%s)\n", what, strings.Join(tupleParams[:arity], ", "), expr)

	thread := se.thread(constraint)
	globals, err := starlark.ExecFile(thread, constraint+".star", src, se.predeclared())
	if err != nil {
		return nil, fmt.Errorf("scripted constraint %q: invalid %s: %w", constraint, what, err)
	}
	fn, ok := globals[what].(*starlark.Function)
	if !ok {
		return nil, fmt.Errorf("scripted constraint %q: %s did not compile to a function", constraint, what)
	}
	return fn, nil
}

func (se *StarlarkEvaluator) thread(name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			// Suppress print
		},
	}
	thread.SetMaxExecutionSteps(se.maxSteps)
	return thread
}

func (se *StarlarkEvaluator) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"abs":    starlark.NewBuiltin("abs", builtinAbs),
	}
}

// call runs fn over the tuple on a fresh thread.
func (se *StarlarkEvaluator) call(fn *starlark.Function, schema *engine.Schema, t engine.Tuple) (starlark.Value, error) {
	args := make(starlark.Tuple, len(t))
	for i, f := range t {
		v, err := factToStarlark(schema, f)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return starlark.Call(se.thread(fn.Name()), fn, args, nil)
}

// factToStarlark exposes a fact's declared attributes as a struct.
func factToStarlark(schema *engine.Schema, f engine.Fact) (starlark.Value, error) {
	ft, err := schema.TypeOf(f)
	if err != nil {
		return nil, err
	}
	attrs := ft.Attributes()
	fields := make(starlark.StringDict, len(attrs))
	for _, a := range attrs {
		v, err := toStarlarkValue(a.Value(f))
		if err != nil {
			return nil, fmt.Errorf("attribute %s.%s: %w", ft.Name(), a.Name(), err)
		}
		fields[a.Name()] = v
	}
	return starlarkstruct.FromStringDict(starlark.String(ft.Name()), fields), nil
}

// toStarlarkValue converts a Go value to a Starlark value. Named numeric and
// string types convert by kind; other values with a String method become
// strings.
func toStarlarkValue(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return starlark.Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return starlark.MakeUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return starlark.Float(rv.Float()), nil
	case reflect.String:
		return starlark.String(rv.String()), nil
	case reflect.Slice:
		list := make([]starlark.Value, rv.Len())
		for i := range list {
			item, err := toStarlarkValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return starlark.NewList(list), nil
	}

	if s, ok := v.(fmt.Stringer); ok {
		return starlark.String(s.String()), nil
	}
	return nil, fmt.Errorf("unsupported type: %T", v)
}

func toInt64(v starlark.Value) (int64, error) {
	switch val := v.(type) {
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return 0, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Bool:
		if val {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("magnitude must be an int, got %s", v.Type())
	}
}

// builtinAbs implements the abs() built-in function.
func builtinAbs(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
		return nil, err
	}
	switch val := x.(type) {
	case starlark.Int:
		if val.Sign() < 0 {
			return starlark.Zero.Sub(val), nil
		}
		return val, nil
	case starlark.Float:
		if val < 0 {
			return -val, nil
		}
		return val, nil
	default:
		return nil, fmt.Errorf("abs: want int or float, got %s", x.Type())
	}
}
