package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Observer reports scoring passes to metrics, traces, logs and events. It
// implements engine.Observer.
type Observer struct {
	logger  *Logger
	tracer  *Tracer
	metrics *Metrics
	events  *EventPublisher
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver creates an observer. Any component may be nil.
func NewObserver(logger *Logger, tracer *Tracer, metrics *Metrics, events *EventPublisher) *Observer {
	if logger == nil {
		logger = FromContext(context.Background())
	}
	return &Observer{
		logger:  logger.NewComponentLogger("scoring"),
		tracer:  tracer,
		metrics: metrics,
		events:  events,
	}
}

// ConstraintEvaluated records one constraint evaluation. The span is
// backdated to when the evaluation started.
func (o *Observer) ConstraintEvaluated(ctx context.Context, ev engine.ConstraintEvaluation) {
	total := ev.Total

	if o.metrics != nil {
		o.metrics.RecordConstraint(ev)
	}

	if o.tracer != nil {
		_, span := o.tracer.Start(ctx, "constraint.evaluate",
			trace.WithTimestamp(ev.Started),
			trace.WithAttributes(
				AttrProblem.String(ev.Problem),
				AttrPassID.String(ev.PassID),
				AttrConstraint.String(total.Constraint),
				AttrLevel.String(total.Level.String()),
				AttrCached.Bool(ev.Cached),
				AttrMatches.Int(total.Count),
				AttrMagnitude.Int64(total.Magnitude),
			))
		if ev.Err != nil {
			RecordError(span, ev.Err)
			span.SetAttributes(errorAttributes(ev.Err)...)
		}
		span.End(trace.WithTimestamp(ev.Started.Add(ev.Duration)))
	}

	if ev.Err != nil {
		o.logger.zlog.Warn().Err(ev.Err).
			Str("problem", ev.Problem).
			Str("pass_id", ev.PassID).
			Str("constraint", total.Constraint).
			Msg("Constraint evaluation failed")
		if o.events != nil {
			_ = o.events.PublishConstraintFailed(ev.Problem, ev.PassID, total.Constraint, ev.Err.Error())
		}
		return
	}

	o.logger.zlog.Trace().
		Str("problem", ev.Problem).
		Str("pass_id", ev.PassID).
		Str("constraint", total.Constraint).
		Bool("cached", ev.Cached).
		Int("matches", total.Count).
		Int64("magnitude", total.Magnitude).
		Dur("duration", ev.Duration).
		Msg("Constraint evaluated")
}

// PassCompleted records a finished scoring pass.
func (o *Observer) PassCompleted(ctx context.Context, pass engine.PassSummary) {
	if o.metrics != nil {
		o.metrics.RecordPass(pass)
	}

	if o.tracer != nil {
		facts := 0
		for _, n := range pass.Facts {
			facts += n
		}
		_, span := o.tracer.Start(ctx, "score.pass",
			trace.WithTimestamp(pass.Started),
			trace.WithAttributes(
				AttrProblem.String(pass.Problem),
				AttrPassID.String(pass.PassID),
				AttrScore.String(pass.Score.String()),
				AttrFacts.Int(facts),
				attribute.Int("scorekeeper.pass.evaluated", pass.Evaluated),
				attribute.Int("scorekeeper.pass.cached", pass.Cached),
				attribute.Int("scorekeeper.pass.failed", pass.Failed),
			))
		if pass.Err != nil {
			RecordError(span, pass.Err)
		} else {
			RecordSuccess(span)
		}
		span.End(trace.WithTimestamp(pass.Started.Add(pass.Duration)))
	}

	if o.events == nil {
		return
	}
	if pass.Err != nil {
		_ = o.events.PublishPassFailed(pass.Problem, pass.PassID, pass.Failed, pass.Err.Error())
		return
	}
	_ = o.events.PublishPassCompleted(pass.Problem, pass.PassID, pass.Score.String(), pass.Duration)
}

func errorAttributes(err error) []attribute.KeyValue {
	var engErr *engine.EngineError
	if !errors.As(err, &engErr) {
		return nil
	}
	attrs := []attribute.KeyValue{AttrErrorClass.String(string(engErr.Class))}
	if engErr.Code != "" {
		attrs = append(attrs, AttrErrorCode.String(engErr.Code))
	}
	return attrs
}
