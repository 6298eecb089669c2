package service

import (
	"context"

	"github.com/openfroyo/scorekeeper/pkg/engine"
	"github.com/openfroyo/scorekeeper/pkg/policy"
	"github.com/openfroyo/scorekeeper/pkg/telemetry"
)

// Report is the result of scoring one dataset.
type Report struct {
	Problem  string         `json:"problem" yaml:"problem"`
	PassID   string         `json:"passId" yaml:"passId"`
	Score    engine.Score   `json:"score" yaml:"score"`
	Feasible bool           `json:"feasible" yaml:"feasible"`
	Facts    map[string]int `json:"facts" yaml:"facts"`

	// Constraints holds the per-constraint totals; matches are included only
	// when an explanation was requested.
	Constraints []engine.ConstraintMatchTotal `json:"constraints" yaml:"constraints"`

	// Failures lists the constraints whose evaluation failed. The score
	// leaves them out.
	Failures []*engine.EngineError `json:"failures,omitempty" yaml:"failures,omitempty"`

	// Policy is the lint result of the constraint set, if policies ran.
	Policy *policy.Result `json:"policy,omitempty" yaml:"policy,omitempty"`
}

// Score decodes a dataset of problem and scores it. When some constraints
// fail to evaluate, the report carries the partial score and the joined
// evaluation errors are returned with it.
func (s *Service) Score(ctx context.Context, problem string, data []byte, explain bool) (*Report, error) {
	ctx = s.instrument(ctx)
	op := telemetry.StartOperation(ctx, "score", telemetry.AttrProblem.String(problem))

	report, err := s.score(op.Ctx, problem, data, explain)
	op.End(err)
	return report, err
}

func (s *Service) score(ctx context.Context, problem string, data []byte, explain bool) (*Report, error) {
	set, lint, err := s.constraintSet(ctx, problem, "score")
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	facts, err := decodeFacts(problem, data)
	if err != nil {
		s.recordError(err)
		return nil, err
	}

	session := s.newSession(set)
	if err := session.Insert(facts...); err != nil {
		s.recordError(err)
		return nil, err
	}

	if s.tel != nil {
		s.tel.Metrics.PassStarted()
		defer s.tel.Metrics.PassFinished()
	}

	exp, err := session.Explain(ctx)
	report := &Report{
		Problem:     exp.Problem,
		PassID:      exp.PassID,
		Score:       exp.Score,
		Feasible:    exp.Score.IsFeasible(),
		Facts:       session.FactCounts(),
		Constraints: exp.Totals,
		Failures:    engine.EvaluationFailures(err),
		Policy:      lint,
	}
	if !explain {
		for i := range report.Constraints {
			report.Constraints[i].Matches = nil
		}
	}

	s.recordPass(ctx, report)

	s.logger.Info().
		Str("problem", report.Problem).
		Str("pass_id", report.PassID).
		Str("score", report.Score.String()).
		Bool("feasible", report.Feasible).
		Int("failed", len(report.Failures)).
		Msg("Dataset scored")

	return report, err
}
