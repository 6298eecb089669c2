package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openfroyo/scorekeeper/pkg/engine"
	"github.com/openfroyo/scorekeeper/pkg/telemetry"
)

// Fixture is a verification request: a dataset fragment in the problem's
// format and at most one expectation about the constraint.
type Fixture struct {
	Given json.RawMessage `json:"given"`

	Penalizes   *int   `json:"penalizes,omitempty"`
	PenalizesBy *int64 `json:"penalizesBy,omitempty"`
	Rewards     *int   `json:"rewards,omitempty"`
	RewardsWith *int64 `json:"rewardsWith,omitempty"`
}

// ParseFixture strictly decodes a JSON fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, engine.NewVerificationError("invalid fixture", err).WithCode(engine.ErrCodeInvalidDataset)
	}
	if len(f.Given) == 0 {
		return nil, engine.NewVerificationError("fixture has no given facts", nil).WithCode(engine.ErrCodeInvalidDataset)
	}
	if n := f.expectations(); n > 1 {
		return nil, engine.NewVerificationError(
			fmt.Sprintf("fixture has %d expectations, at most one is allowed", n), nil).
			WithCode(engine.ErrCodeInvalidDataset)
	}
	return &f, nil
}

func (f *Fixture) expectations() int {
	n := 0
	for _, set := range []bool{f.Penalizes != nil, f.PenalizesBy != nil, f.Rewards != nil, f.RewardsWith != nil} {
		if set {
			n++
		}
	}
	return n
}

// Expectation describes the fixture's expectation, or "" when it has none.
func (f *Fixture) Expectation() string {
	switch {
	case f.Penalizes != nil:
		return fmt.Sprintf("penalizes %d", *f.Penalizes)
	case f.PenalizesBy != nil:
		return fmt.Sprintf("penalizes by %d", *f.PenalizesBy)
	case f.Rewards != nil:
		return fmt.Sprintf("rewards %d", *f.Rewards)
	case f.RewardsWith != nil:
		return fmt.Sprintf("rewards with %d", *f.RewardsWith)
	}
	return ""
}

// Verdict is the outcome of verifying a constraint against a fixture.
type Verdict struct {
	Result      engine.Result `json:"result" yaml:"result"`
	Expectation string        `json:"expectation,omitempty" yaml:"expectation,omitempty"`
	Passed      bool          `json:"passed" yaml:"passed"`
	Failure     string        `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Verify runs one registered constraint of problem over a fixture in
// isolation. Configured weight overrides apply; a disabled constraint can
// still be verified. An unmet expectation is reported in the verdict, not as
// an error.
func (s *Service) Verify(ctx context.Context, problem, constraint string, fixture []byte) (*Verdict, error) {
	ctx = s.instrument(ctx)
	op := telemetry.StartOperation(ctx, "verify",
		telemetry.AttrProblem.String(problem),
		telemetry.AttrConstraint.String(constraint))

	verdict, err := s.verify(op.Ctx, problem, constraint, fixture)
	if err != nil {
		s.recordError(err)
	}
	op.End(err)
	return verdict, err
}

func (s *Service) verify(ctx context.Context, problem, constraint string, data []byte) (*Verdict, error) {
	f, err := ParseFixture(data)
	if err != nil {
		return nil, err
	}

	set, _, err := s.constraintSet(ctx, problem, "verify")
	if err != nil {
		return nil, err
	}
	c, ok := set.Constraint(constraint)
	if !ok {
		return nil, engine.NewConfigurationError(
			fmt.Sprintf("problem %q has no constraint %q", problem, constraint), nil).
			WithCode(engine.ErrCodeNotFound)
	}

	facts, err := decodeFacts(problem, f.Given)
	if err != nil {
		return nil, err
	}

	v := engine.NewVerifier(set.Schema())
	result, err := v.VerifyRegistered(c, facts...)
	if err != nil {
		return nil, err
	}

	verdict := &Verdict{Result: result, Expectation: f.Expectation(), Passed: true}
	if verdict.Expectation == "" {
		return verdict, nil
	}

	assertion := v.VerifyThatRegistered(c).Given(facts...)
	var failed error
	switch {
	case f.Penalizes != nil:
		failed = assertion.Penalizes(*f.Penalizes)
	case f.PenalizesBy != nil:
		failed = assertion.PenalizesBy(*f.PenalizesBy)
	case f.Rewards != nil:
		failed = assertion.Rewards(*f.Rewards)
	case f.RewardsWith != nil:
		failed = assertion.RewardsWith(*f.RewardsWith)
	}

	var engErr *engine.EngineError
	if failed != nil {
		if !errors.As(failed, &engErr) || engErr.Code != engine.ErrCodeAssertion {
			return nil, failed
		}
		verdict.Passed = false
		verdict.Failure = engErr.Message
	}

	s.logger.Debug().
		Str("problem", problem).
		Str("constraint", constraint).
		Str("expectation", verdict.Expectation).
		Bool("passed", verdict.Passed).
		Msg("Constraint verified")
	return verdict, nil
}
