package engine

import (
	"fmt"
	"reflect"
	"strings"
)

// Predicate is a filter over tuples of a fixed arity. Build one with Filter1,
// Filter2, Filter3 or TuplePredicate.
type Predicate struct {
	arity int
	types []reflect.Type
	eval  func(Tuple) (bool, error)
}

// Magnitude maps a tuple to a non-negative amount. Build one with Magnitude1,
// Magnitude2, Magnitude3 or TupleMagnitude.
type Magnitude struct {
	arity int
	types []reflect.Type
	eval  func(Tuple) (int64, error)
}

// TuplePredicate wraps an untyped predicate over tuples of the given arity.
func TuplePredicate(arity int, fn func(Tuple) (bool, error)) Predicate {
	return Predicate{arity: arity, eval: fn}
}

// Filter1 wraps a predicate over single facts.
func Filter1[A Fact](fn func(A) bool) Predicate {
	return Predicate{
		arity: 1,
		types: []reflect.Type{reflect.TypeFor[A]()},
		eval:  func(t Tuple) (bool, error) { return fn(t[0].(A)), nil },
	}
}

// Filter2 wraps a predicate over pairs.
func Filter2[A, B Fact](fn func(A, B) bool) Predicate {
	return Predicate{
		arity: 2,
		types: []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B]()},
		eval:  func(t Tuple) (bool, error) { return fn(t[0].(A), t[1].(B)), nil },
	}
}

// Filter3 wraps a predicate over triples.
func Filter3[A, B, C Fact](fn func(A, B, C) bool) Predicate {
	return Predicate{
		arity: 3,
		types: []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C]()},
		eval:  func(t Tuple) (bool, error) { return fn(t[0].(A), t[1].(B), t[2].(C)), nil },
	}
}

// TupleMagnitude wraps an untyped magnitude function over tuples of the given arity.
func TupleMagnitude(arity int, fn func(Tuple) (int64, error)) Magnitude {
	return Magnitude{arity: arity, eval: fn}
}

// Magnitude1 wraps a magnitude function over single facts.
func Magnitude1[A Fact](fn func(A) int64) Magnitude {
	return Magnitude{
		arity: 1,
		types: []reflect.Type{reflect.TypeFor[A]()},
		eval:  func(t Tuple) (int64, error) { return fn(t[0].(A)), nil },
	}
}

// Magnitude2 wraps a magnitude function over pairs.
func Magnitude2[A, B Fact](fn func(A, B) int64) Magnitude {
	return Magnitude{
		arity: 2,
		types: []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B]()},
		eval:  func(t Tuple) (int64, error) { return fn(t[0].(A), t[1].(B)), nil },
	}
}

// Magnitude3 wraps a magnitude function over triples.
func Magnitude3[A, B, C Fact](fn func(A, B, C) int64) Magnitude {
	return Magnitude{
		arity: 3,
		types: []reflect.Type{reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C]()},
		eval:  func(t Tuple) (int64, error) { return fn(t[0].(A), t[1].(B), t[2].(C)), nil },
	}
}

// checkShape verifies that a typed function accepts the stream's tuples.
func checkShape(what string, arity int, types []reflect.Type, stream []*FactType) error {
	if arity != len(stream) {
		return NewConfigurationError(
			fmt.Sprintf("%s takes %d facts but the stream carries %d (%s)", what, arity, len(stream), typeNames(stream)), nil).
			WithCode(ErrCodeInvalidConstraint)
	}
	for i, rt := range types {
		if rt == nil {
			continue
		}
		if rt != stream[i].goType {
			return NewConfigurationError(
				fmt.Sprintf("%s expects %s at position %d but the stream carries %s", what, rt, i, stream[i].goType), nil).
				WithCode(ErrCodeInvalidConstraint)
		}
	}
	return nil
}

func typeNames(types []*FactType) string {
	names := make([]string, len(types))
	for i, ft := range types {
		names[i] = ft.name
	}
	return strings.Join(names, ", ")
}
