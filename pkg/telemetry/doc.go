// Package telemetry instruments scoring with structured logging (zerolog),
// tracing (OpenTelemetry), metrics (Prometheus) and an in-process event
// stream.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tel.Logger.SetGlobal()
//	session := engine.NewSession(set, engine.WithObserver(tel.Observer()))
//
// The Observer turns every scoring pass into:
//
//   - a "score.pass" span and one "constraint.evaluate" span per constraint,
//     backdated to when the work actually ran
//   - pass, constraint, score and fact-count metrics labelled by problem
//   - pass.completed, pass.failed and constraint.failed events
//
// # Metrics
//
//	scorekeeper_score_passes_total{problem,status}
//	scorekeeper_score_pass_duration_seconds{problem}
//	scorekeeper_score{problem,level}
//	scorekeeper_facts{problem,type}
//	scorekeeper_constraint_evaluations_total{problem,constraint,cached,status}
//	scorekeeper_constraint_duration_seconds{problem,constraint}
//	scorekeeper_constraint_matches{problem,constraint}
//	scorekeeper_errors_total{class,code}
//	scorekeeper_policy_findings_total{problem,policy,severity}
//	scorekeeper_active_passes
//
// Metrics.Handler serves them; the HTTP server mounts it at /metrics.
//
// # Events
//
// Subscribers receive events in publication order:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
package telemetry
