package engine

import (
	"fmt"
)

// JoinKind is the relation a Joiner imposes between a tuple and a joined fact.
type JoinKind int

const (
	JoinEqual JoinKind = iota
	JoinNotEqual
	JoinLessThan
	JoinLessOrEqual
	JoinGreaterThan
	JoinGreaterOrEqual
	JoinOverlapping
)

var joinKindNames = map[JoinKind]string{
	JoinEqual:          "equal",
	JoinNotEqual:       "notEqual",
	JoinLessThan:       "lessThan",
	JoinLessOrEqual:    "lessOrEqual",
	JoinGreaterThan:    "greaterThan",
	JoinGreaterOrEqual: "greaterOrEqual",
	JoinOverlapping:    "overlapping",
}

// String returns the joiner kind name.
func (k JoinKind) String() string {
	if name, ok := joinKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("JoinKind(%d)", int(k))
}

// ParseJoinKind parses a joiner kind name as produced by String.
func ParseJoinKind(s string) (JoinKind, error) {
	for k, name := range joinKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown join kind %q", s)
}

func (k JoinKind) isRange() bool {
	switch k {
	case JoinLessThan, JoinLessOrEqual, JoinGreaterThan, JoinGreaterOrEqual, JoinOverlapping:
		return true
	}
	return false
}

// maxEqualJoiners bounds the composite hash key of a join.
const maxEqualJoiners = 8

// Joiner is a join condition between an attribute of the tuple built so far
// (the left side) and an attribute of the fact being joined (the right side).
// Attributes are referenced by name and resolved when the constraint is
// registered.
type Joiner struct {
	kind     JoinKind
	left     string
	right    string
	leftEnd  string
	rightEnd string
	leftPos  int
}

// Equal requires left.attr == right.attr.
func Equal(attr string) Joiner {
	return Joiner{kind: JoinEqual, left: attr, right: attr}
}

// EqualTo requires left.leftAttr == right.rightAttr.
func EqualTo(leftAttr, rightAttr string) Joiner {
	return Joiner{kind: JoinEqual, left: leftAttr, right: rightAttr}
}

// NotEqual requires left.attr != right.attr.
func NotEqual(attr string) Joiner {
	return Joiner{kind: JoinNotEqual, left: attr, right: attr}
}

// LessThan requires left.attr < right.attr. On a self-join over IDAttribute it
// forms unique pairs.
func LessThan(attr string) Joiner {
	return Joiner{kind: JoinLessThan, left: attr, right: attr}
}

// LessOrEqual requires left.attr <= right.attr.
func LessOrEqual(attr string) Joiner {
	return Joiner{kind: JoinLessOrEqual, left: attr, right: attr}
}

// GreaterThan requires left.attr > right.attr.
func GreaterThan(attr string) Joiner {
	return Joiner{kind: JoinGreaterThan, left: attr, right: attr}
}

// GreaterOrEqual requires left.attr >= right.attr.
func GreaterOrEqual(attr string) Joiner {
	return Joiner{kind: JoinGreaterOrEqual, left: attr, right: attr}
}

// Overlapping requires the half-open intervals [start, end) of both sides to overlap.
func Overlapping(start, end string) Joiner {
	return Joiner{kind: JoinOverlapping, left: start, right: start, leftEnd: end, rightEnd: end}
}

// Relate builds a joiner of an arbitrary kind between two differently named
// attributes. Overlapping joiners need Overlapping or WithRight/WithRightEnd.
func Relate(kind JoinKind, left, right string) Joiner {
	return Joiner{kind: kind, left: left, right: right}
}

// WithRight reads the right side from a differently named attribute.
func (j Joiner) WithRight(attr string) Joiner {
	j.right = attr
	return j
}

// WithRightEnd reads the right interval end from a differently named attribute.
func (j Joiner) WithRightEnd(attr string) Joiner {
	j.rightEnd = attr
	return j
}

// OnLeft selects which fact of the left tuple the left attribute is read from.
// The default is the first fact.
func (j Joiner) OnLeft(pos int) Joiner {
	j.leftPos = pos
	return j
}

// Kind returns the joiner kind.
func (j Joiner) Kind() JoinKind { return j.kind }

// String describes the joiner, e.g. "equal(employee)".
func (j Joiner) String() string {
	if j.kind == JoinOverlapping {
		return fmt.Sprintf("overlapping([%s,%s) ~ [%s,%s))", j.left, j.leftEnd, j.right, j.rightEnd)
	}
	if j.left == j.right {
		return fmt.Sprintf("%s(%s)", j.kind, j.left)
	}
	return fmt.Sprintf("%s(%s, %s)", j.kind, j.left, j.right)
}

// boundJoiner is a joiner whose attributes are resolved against concrete types.
type boundJoiner struct {
	kind     JoinKind
	leftPos  int
	left     *Attribute
	right    *Attribute
	leftEnd  *Attribute
	rightEnd *Attribute
}

// bindJoiner resolves j against the left tuple types and the joined type.
func bindJoiner(j Joiner, leftTypes []*FactType, right *FactType) (boundJoiner, error) {
	if j.leftPos < 0 || j.leftPos >= len(leftTypes) {
		return boundJoiner{}, NewConfigurationError(
			fmt.Sprintf("joiner %s references left position %d of a %d-fact tuple", j, j.leftPos, len(leftTypes)), nil).
			WithCode(ErrCodeInvalidJoin)
	}
	leftType := leftTypes[j.leftPos]

	b := boundJoiner{kind: j.kind, leftPos: j.leftPos}
	var err error
	if b.left, err = lookupAttribute(leftType, j.left); err != nil {
		return boundJoiner{}, err
	}
	if b.right, err = lookupAttribute(right, j.right); err != nil {
		return boundJoiner{}, err
	}
	if err := checkComparable(j, b.left, b.right); err != nil {
		return boundJoiner{}, err
	}

	if j.kind == JoinOverlapping {
		if b.leftEnd, err = lookupAttribute(leftType, j.leftEnd); err != nil {
			return boundJoiner{}, err
		}
		if b.rightEnd, err = lookupAttribute(right, j.rightEnd); err != nil {
			return boundJoiner{}, err
		}
		if err := checkComparable(j, b.leftEnd, b.rightEnd); err != nil {
			return boundJoiner{}, err
		}
		if err := checkComparable(j, b.left, b.rightEnd); err != nil {
			return boundJoiner{}, err
		}
	}
	return b, nil
}

func lookupAttribute(ft *FactType, name string) (*Attribute, error) {
	a, ok := ft.Attribute(name)
	if !ok {
		return nil, NewConfigurationError(
			fmt.Sprintf("fact type %s has no attribute %q", ft.name, name), nil).
			WithCode(ErrCodeUnknownAttribute)
	}
	return a, nil
}

func checkComparable(j Joiner, left, right *Attribute) error {
	if left.valueType != right.valueType {
		return NewConfigurationError(
			fmt.Sprintf("joiner %s compares %s.%s (%s) with %s.%s (%s)", j,
				left.owner.name, left.name, left.valueType, right.owner.name, right.name, right.valueType), nil).
			WithCode(ErrCodeInvalidJoin)
	}
	if j.kind.isRange() && (!left.ordered || !right.ordered) {
		return NewConfigurationError(
			fmt.Sprintf("joiner %s needs ordered attributes", j), nil).
			WithCode(ErrCodeInvalidJoin)
	}
	return nil
}

// holds evaluates the joiner for one candidate pair.
func (b *boundJoiner) holds(left Tuple, right Fact) bool {
	l := b.left.get(left[b.leftPos])
	r := b.right.get(right)
	switch b.kind {
	case JoinEqual:
		return l == r
	case JoinNotEqual:
		return l != r
	case JoinLessThan:
		return b.left.compare(l, r) < 0
	case JoinLessOrEqual:
		return b.left.compare(l, r) <= 0
	case JoinGreaterThan:
		return b.left.compare(l, r) > 0
	case JoinGreaterOrEqual:
		return b.left.compare(l, r) >= 0
	case JoinOverlapping:
		le := b.leftEnd.get(left[b.leftPos])
		re := b.rightEnd.get(right)
		return b.left.compare(l, re) < 0 && b.left.compare(r, le) < 0
	}
	return false
}
