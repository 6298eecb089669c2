package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openfroyo/scorekeeper/pkg/config"
	"github.com/openfroyo/scorekeeper/pkg/engine"
	"github.com/openfroyo/scorekeeper/pkg/stores"
)

// ErrHistoryDisabled is returned by history queries when no history
// database is configured.
var ErrHistoryDisabled = errors.New("score history is not configured")

type sourceKey struct{}

// WithSource labels the passes scored with ctx, e.g. with the dataset path.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	source, _ := ctx.Value(sourceKey{}).(string)
	return source
}

func (s *Service) openHistory(ctx context.Context, hc config.HistoryConfig) error {
	store, err := stores.Open(ctx, hc.Path)
	if err != nil {
		return fmt.Errorf("failed to open score history %s: %w", hc.Path, err)
	}
	s.history = store
	s.ownsHistory = true

	if retention := hc.Retention(); retention > 0 {
		n, err := store.DeletePassesBefore(ctx, time.Now().Add(-retention))
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to prune score history: %w", err)
		}
		s.logger.Debug().Int64("deleted", n).Dur("retention", retention).Msg("Pruned score history")
	}
	return nil
}

// History returns the score history, or nil when it is disabled.
func (s *Service) History() stores.Store {
	return s.history
}

// Passes lists recorded passes newest first.
func (s *Service) Passes(ctx context.Context, filter stores.PassFilter, limit int) ([]*stores.Pass, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.ListPasses(ctx, filter, limit, 0)
}

// Pass returns one recorded pass with its constraint totals.
func (s *Service) Pass(ctx context.Context, id string) (*stores.Pass, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	pass, err := s.history.GetPass(ctx, id)
	if errors.Is(err, stores.ErrPassNotFound) {
		return nil, engine.NewStateError(fmt.Sprintf("pass %s not recorded", id), err).
			WithCode(engine.ErrCodeNotFound)
	}
	return pass, err
}

// recordPass stores report in the history. A failed write is logged and
// does not fail the scoring call.
func (s *Service) recordPass(ctx context.Context, report *Report) {
	if s.history == nil {
		return
	}

	pass := &stores.Pass{
		ID:       report.PassID,
		Problem:  report.Problem,
		Hard:     report.Score.Hard,
		Soft:     report.Score.Soft,
		Feasible: report.Feasible,
		Failures: len(report.Failures),
		Source:   sourceFrom(ctx),
		ScoredAt: time.Now(),
	}
	for _, n := range report.Facts {
		pass.FactCount += n
	}
	for _, t := range report.Constraints {
		pass.Totals = append(pass.Totals, &stores.ConstraintTotal{
			Constraint: t.Constraint,
			Level:      t.Level.String(),
			Count:      t.Count,
			Magnitude:  t.Magnitude,
			Hard:       t.Score.Hard,
			Soft:       t.Score.Soft,
		})
	}

	if err := s.history.RecordPass(ctx, pass); err != nil {
		s.logger.Warn().Err(err).Str("pass_id", pass.ID).Msg("Failed to record pass")
	}
}
