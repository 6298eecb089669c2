package engine

import (
	"fmt"
)

// stage transforms the tuple set of a constraint pipeline.
type stage interface {
	apply(c *Constraint, in []Tuple, v *factView, tr *tracker) ([]Tuple, error)
}

// tracker remembers the tuple under evaluation so a panic can name it.
type tracker struct {
	current Tuple
}

// filterStage drops tuples failing the predicate.
type filterStage struct {
	pred Predicate
}

func (st *filterStage) apply(c *Constraint, in []Tuple, _ *factView, tr *tracker) ([]Tuple, error) {
	out := in[:0:0]
	for _, t := range in {
		tr.current = t
		keep, err := st.pred.eval(t)
		if err != nil {
			return nil, NewEvaluationError("filter failed", err).
				WithConstraint(c.name).
				WithTuple(t).
				WithCode(ErrCodePredicateFailed)
		}
		if keep {
			out = append(out, t)
		}
	}
	return out, nil
}

// ConstraintMatch is one tuple contributing to a constraint.
type ConstraintMatch struct {
	// Facts lists the tuple as "Type:id" references.
	Facts []string `json:"facts" yaml:"facts"`

	// Magnitude is the unweighted amount of the match.
	Magnitude int64 `json:"magnitude" yaml:"magnitude"`

	// Impact is the signed, weighted contribution of the match.
	Impact Score `json:"impact" yaml:"impact"`
}

// ConstraintMatchTotal is the isolated contribution of one constraint.
type ConstraintMatchTotal struct {
	Constraint string    `json:"constraint" yaml:"constraint"`
	Level      Level     `json:"level" yaml:"level"`
	Direction  Direction `json:"direction" yaml:"direction"`
	Weight     int64     `json:"weight" yaml:"weight"`

	// Count is the number of tuples with a non-zero magnitude.
	Count int `json:"count" yaml:"count"`

	// Magnitude is the sum of the unweighted magnitudes.
	Magnitude int64 `json:"magnitude" yaml:"magnitude"`

	// Score is the signed, weighted contribution at the constraint's level.
	Score Score `json:"score" yaml:"score"`

	// Matches is filled only when explanations are requested.
	Matches []ConstraintMatch `json:"matches,omitempty" yaml:"matches,omitempty"`
}

func newMatchTotal(c *Constraint) ConstraintMatchTotal {
	return ConstraintMatchTotal{
		Constraint: c.name,
		Level:      c.weight.Level,
		Direction:  c.direction,
		Weight:     c.weight.Amount,
	}
}

// evaluate runs the constraint's Join→Filter→Score pipeline over the view.
// A failing or panicking filter or magnitude aborts only this constraint.
func (c *Constraint) evaluate(v *factView, withMatches bool) (total ConstraintMatchTotal, err error) {
	total = newMatchTotal(c)
	tr := &tracker{}

	defer func() {
		if r := recover(); r != nil {
			total = newMatchTotal(c)
			err = NewEvaluationError("constraint evaluation panicked", fmt.Errorf("%v", r)).
				WithConstraint(c.name).
				WithTuple(tr.current)
		}
	}()

	source := v.of(c.source)
	tuples := make([]Tuple, len(source))
	for i, f := range source {
		tuples[i] = Tuple{f}
	}

	for _, st := range c.stages {
		tuples, err = st.apply(c, tuples, v, tr)
		if err != nil {
			return newMatchTotal(c), err
		}
		if len(tuples) == 0 {
			return total, nil
		}
	}

	sign := c.direction.sign()
	for _, t := range tuples {
		tr.current = t
		magnitude := int64(1)
		if c.magnitude != nil {
			magnitude, err = c.magnitude.eval(t)
			if err != nil {
				return newMatchTotal(c), NewEvaluationError("magnitude failed", err).
					WithConstraint(c.name).
					WithTuple(t).
					WithCode(ErrCodeMagnitudeFailed)
			}
		}
		if magnitude < 0 {
			return newMatchTotal(c), NewEvaluationError(
				fmt.Sprintf("magnitude %d is negative", magnitude), nil).
				WithConstraint(c.name).
				WithTuple(t).
				WithCode(ErrCodeNegativeMagnitude)
		}
		if magnitude == 0 {
			continue
		}

		impact := ScoreOf(c.weight.Level, sign*magnitude*c.weight.Amount)
		total.Count++
		total.Magnitude += magnitude
		total.Score = total.Score.Add(impact)
		if withMatches {
			total.Matches = append(total.Matches, ConstraintMatch{
				Facts:     t.Refs(),
				Magnitude: magnitude,
				Impact:    impact,
			})
		}
	}
	return total, nil
}

// referencedTypes returns every fact type the constraint reads.
func (c *Constraint) referencedTypes() []*FactType {
	seen := make(map[*FactType]struct{}, len(c.types)+len(c.depends))
	out := make([]*FactType, 0, len(c.types)+len(c.depends))
	for _, ft := range append(append([]*FactType(nil), c.types...), c.depends...) {
		if _, ok := seen[ft]; ok {
			continue
		}
		seen[ft] = struct{}{}
		out = append(out, ft)
	}
	return out
}
