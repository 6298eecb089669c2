package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Metrics provides Prometheus metrics for scoring passes.
type Metrics struct {
	config MetricsConfig

	// Pass metrics
	passesTotal  *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	score        *prometheus.GaugeVec
	facts        *prometheus.GaugeVec

	// Constraint metrics
	constraintEvaluations *prometheus.CounterVec
	constraintDuration    *prometheus.HistogramVec
	constraintMatches     *prometheus.GaugeVec

	// Error and policy metrics
	errorsByClass    *prometheus.CounterVec
	policyViolations *prometheus.CounterVec

	activePasses prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a collector whose methods do nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "score_passes_total",
				Help:      "Total number of scoring passes",
			},
			[]string{"problem", "status"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "score_pass_duration_seconds",
				Help:      "Duration of scoring passes in seconds",
				Buckets:   buckets,
			},
			[]string{"problem"},
		),
		score: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "score",
				Help:      "Score of the last successful pass per level",
			},
			[]string{"problem", "level"},
		),
		facts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "facts",
				Help:      "Facts scored in the last pass per fact type",
			},
			[]string{"problem", "type"},
		),

		constraintEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "constraint_evaluations_total",
				Help:      "Total number of constraint evaluations",
			},
			[]string{"problem", "constraint", "cached", "status"},
		),
		constraintDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "constraint_duration_seconds",
				Help:      "Duration of constraint evaluations in seconds",
				Buckets:   buckets,
			},
			[]string{"problem", "constraint"},
		),
		constraintMatches: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "constraint_matches",
				Help:      "Matches of each constraint in the last pass",
			},
			[]string{"problem", "constraint"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of engine errors by class and code",
			},
			[]string{"class", "code"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_findings_total",
				Help:      "Total number of constraint set policy findings",
			},
			[]string{"problem", "policy", "severity"},
		),

		activePasses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_passes",
				Help:      "Number of scoring passes in progress",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.passesTotal, m.passDuration, m.score, m.facts,
		m.constraintEvaluations, m.constraintDuration, m.constraintMatches,
		m.errorsByClass, m.policyViolations, m.activePasses,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the registry metrics are collected in, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PassStarted and PassFinished bracket a scoring pass.
func (m *Metrics) PassStarted() {
	if m.activePasses == nil {
		return
	}
	m.activePasses.Inc()
}

// PassFinished decrements the active pass gauge.
func (m *Metrics) PassFinished() {
	if m.activePasses == nil {
		return
	}
	m.activePasses.Dec()
}

// RecordPass records a completed scoring pass.
func (m *Metrics) RecordPass(pass engine.PassSummary) {
	if m.registry == nil {
		return
	}

	status := "success"
	if pass.Err != nil {
		status = "failed"
		m.RecordError(pass.Err)
	}
	m.passesTotal.WithLabelValues(pass.Problem, status).Inc()
	m.passDuration.WithLabelValues(pass.Problem).Observe(pass.Duration.Seconds())

	for typeName, n := range pass.Facts {
		m.facts.WithLabelValues(pass.Problem, typeName).Set(float64(n))
	}
	if pass.Err == nil {
		m.score.WithLabelValues(pass.Problem, engine.LevelHard.String()).Set(float64(pass.Score.Hard))
		m.score.WithLabelValues(pass.Problem, engine.LevelSoft.String()).Set(float64(pass.Score.Soft))
	}
}

// RecordConstraint records one constraint evaluation.
func (m *Metrics) RecordConstraint(ev engine.ConstraintEvaluation) {
	if m.registry == nil {
		return
	}

	name := ev.Total.Constraint
	status := "success"
	if ev.Err != nil {
		status = "failed"
	}
	m.constraintEvaluations.WithLabelValues(ev.Problem, name, strconv.FormatBool(ev.Cached), status).Inc()
	if !ev.Cached {
		m.constraintDuration.WithLabelValues(ev.Problem, name).Observe(ev.Duration.Seconds())
	}
	if ev.Err == nil {
		m.constraintMatches.WithLabelValues(ev.Problem, name).Set(float64(ev.Total.Count))
	}
}

// RecordError records an error by its engine class and code.
func (m *Metrics) RecordError(err error) {
	if m.registry == nil || err == nil {
		return
	}

	class, code := "unknown", ""
	var engErr *engine.EngineError
	if errors.As(err, &engErr) {
		class, code = string(engErr.Class), engErr.Code
	}
	m.errorsByClass.WithLabelValues(class, code).Inc()
}

// RecordPolicyFinding records one policy finding against a constraint set.
func (m *Metrics) RecordPolicyFinding(problem, policy, severity string) {
	if m.registry == nil {
		return
	}
	m.policyViolations.WithLabelValues(problem, policy, severity).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves metrics on the configured address in the
// background.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("Metrics server stopped")
		}
	}()

	return nil
}
