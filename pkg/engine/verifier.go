package engine

import (
	"fmt"
)

// Result is the isolated contribution of one constraint over a fixture.
type Result struct {
	Constraint string    `json:"constraint" yaml:"constraint"`
	Level      Level     `json:"level" yaml:"level"`
	Direction  Direction `json:"direction" yaml:"direction"`

	// Count is the number of contributing tuples.
	Count int `json:"count" yaml:"count"`

	// Magnitude is the sum of the unweighted magnitudes of the contributing tuples.
	Magnitude int64 `json:"totalMagnitude" yaml:"totalMagnitude"`

	// Impact is the signed, weighted contribution.
	Impact Score `json:"impact" yaml:"impact"`

	// Matches lists the contributing tuples.
	Matches []ConstraintMatch `json:"matches,omitempty" yaml:"matches,omitempty"`
}

// Verifier evaluates constraints against literal fixtures, one constraint at a
// time. It never consults facts outside the given fixture; every call starts
// from an empty store.
type Verifier struct {
	schema *Schema
}

// NewVerifier creates a verifier for constraints over schema.
func NewVerifier(schema *Schema) *Verifier {
	return &Verifier{schema: schema}
}

// Verify runs a single constraint over the fixture.
func (v *Verifier) Verify(def Definition, facts ...Fact) (Result, error) {
	set, err := NewConstraintSet(v.schema, []Definition{def})
	if err != nil {
		return Result{}, err
	}
	c := set.all[0]
	return v.verifyConstraint(c, facts)
}

// VerifyRegistered runs an already registered constraint over the fixture,
// honouring any weight override applied at registration.
func (v *Verifier) VerifyRegistered(c *Constraint, facts ...Fact) (Result, error) {
	if c == nil {
		return Result{}, NewVerificationError("constraint is nil", nil)
	}
	return v.verifyConstraint(c, facts)
}

func (v *Verifier) verifyConstraint(c *Constraint, facts []Fact) (Result, error) {
	view, err := v.fixtureView(c, facts)
	if err != nil {
		return Result{}, err
	}

	total, err := c.evaluate(view, true)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Constraint: total.Constraint,
		Level:      total.Level,
		Direction:  total.Direction,
		Count:      total.Count,
		Magnitude:  total.Magnitude,
		Impact:     total.Score,
		Matches:    total.Matches,
	}, nil
}

// fixtureView loads the fixture into a fresh store. Constraints and facts
// whose types are not part of the schema fail the verification.
func (v *Verifier) fixtureView(c *Constraint, facts []Fact) (*factView, error) {
	for _, ft := range c.referencedTypes() {
		if own, ok := v.schema.Type(ft.name); !ok || own != ft {
			return nil, NewVerificationError(
				fmt.Sprintf("constraint reads fact type %s of another schema than %s", ft.name, v.schema.name), nil).
				WithConstraint(c.name).
				WithCode(ErrCodeUnknownType)
		}
	}

	store := NewFactStore(v.schema)
	for _, f := range facts {
		if _, err := v.schema.TypeOf(f); err != nil {
			return nil, NewVerificationError(
				fmt.Sprintf("fixture fact %T does not belong to schema %s", f, v.schema.name), err).
				WithConstraint(c.name).
				WithCode(ErrCodeUnknownType)
		}
		if err := store.Insert(f); err != nil {
			return nil, NewVerificationError("invalid fixture", err).WithConstraint(c.name)
		}
	}

	types := make(map[*FactType]struct{})
	for _, ft := range c.referencedTypes() {
		types[ft] = struct{}{}
	}
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.view(types), nil
}

// VerifyThat starts a fluent assertion over a single constraint.
func (v *Verifier) VerifyThat(def Definition) *Assertion {
	return &Assertion{verifier: v, def: def}
}

// VerifyThatRegistered starts a fluent assertion over a constraint taken from
// a registered set.
func (v *Verifier) VerifyThatRegistered(c *Constraint) *Assertion {
	return &Assertion{verifier: v, registered: c}
}

// VerifyAll starts a fluent assertion over the combined score of several constraints.
func (v *Verifier) VerifyAll(defs ...Definition) *ScoreAssertion {
	return &ScoreAssertion{verifier: v, defs: defs}
}

// Assertion checks the isolated contribution of one constraint.
type Assertion struct {
	verifier   *Verifier
	def        Definition
	registered *Constraint
	facts      []Fact
}

// Given sets the fixture.
func (a *Assertion) Given(facts ...Fact) *Assertion {
	return &Assertion{verifier: a.verifier, def: a.def, registered: a.registered, facts: append([]Fact(nil), facts...)}
}

// Result evaluates the constraint over the fixture.
func (a *Assertion) Result() (Result, error) {
	if a.registered != nil {
		return a.verifier.VerifyRegistered(a.registered, a.facts...)
	}
	return a.verifier.Verify(a.def, a.facts...)
}

// Penalizes asserts that exactly count tuples are penalized.
func (a *Assertion) Penalizes(count int) error {
	return a.check(Penalize, "penalizes", "count", func(r Result) int64 { return int64(r.Count) }, int64(count))
}

// PenalizesBy asserts that the penalized magnitudes sum to exactly magnitude.
func (a *Assertion) PenalizesBy(magnitude int64) error {
	return a.check(Penalize, "penalizes by", "magnitude", func(r Result) int64 { return r.Magnitude }, magnitude)
}

// Rewards asserts that exactly count tuples are rewarded.
func (a *Assertion) Rewards(count int) error {
	return a.check(Reward, "rewards", "count", func(r Result) int64 { return int64(r.Count) }, int64(count))
}

// RewardsWith asserts that the rewarded magnitudes sum to exactly magnitude.
func (a *Assertion) RewardsWith(magnitude int64) error {
	return a.check(Reward, "rewards with", "magnitude", func(r Result) int64 { return r.Magnitude }, magnitude)
}

func (a *Assertion) check(want Direction, verb, field string, get func(Result) int64, expected int64) error {
	r, err := a.Result()
	if err != nil {
		return err
	}
	actual := get(r)

	// An expectation of zero holds for either direction.
	if expected == 0 && actual == 0 {
		return nil
	}
	if r.Direction != want {
		return NewVerificationError(
			fmt.Sprintf("expected constraint to %s %d but it %ss", verb, expected, lowerDirection(r.Direction)), nil).
			WithConstraint(r.Constraint).
			WithCode(ErrCodeAssertion)
	}
	if actual != expected {
		return NewVerificationError(
			fmt.Sprintf("expected constraint to %s %d but got %s %d", verb, expected, field, actual), nil).
			WithConstraint(r.Constraint).
			WithCode(ErrCodeAssertion).
			WithDetail("matches", r.Matches)
	}
	return nil
}

func lowerDirection(d Direction) string {
	if d == Reward {
		return "reward"
	}
	return "penalize"
}

// ScoreAssertion checks the combined score of several constraints.
type ScoreAssertion struct {
	verifier *Verifier
	defs     []Definition
	facts    []Fact
}

// Given sets the fixture.
func (a *ScoreAssertion) Given(facts ...Fact) *ScoreAssertion {
	return &ScoreAssertion{verifier: a.verifier, defs: a.defs, facts: append([]Fact(nil), facts...)}
}

// Score evaluates every constraint over the fixture and sums their impacts.
func (a *ScoreAssertion) Score() (Score, error) {
	var total Score
	for _, def := range a.defs {
		r, err := a.verifier.Verify(def, a.facts...)
		if err != nil {
			return Score{}, err
		}
		total = total.Add(r.Impact)
	}
	return total, nil
}

// Scores asserts that the combined score equals expected.
func (a *ScoreAssertion) Scores(expected Score) error {
	actual, err := a.Score()
	if err != nil {
		return err
	}
	if actual != expected {
		return NewVerificationError(
			fmt.Sprintf("expected score %s but got %s", expected, actual), nil).
			WithCode(ErrCodeAssertion)
	}
	return nil
}
