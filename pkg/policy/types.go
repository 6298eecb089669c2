package policy

import (
	"time"

	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that make a constraint set unusable.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity reject a constraint set.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module whose deny rule inspects a constraint set.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation is a single policy finding.
type Violation struct {
	// Policy is the name of the policy that produced the finding.
	Policy string `json:"policy"`

	// Constraint is the constraint the finding is about, if any.
	Constraint string `json:"constraint,omitempty"`

	Message  string   `json:"message"`
	Severity Severity `json:"severity"`

	DetectedAt time.Time `json:"detected_at"`
}

// Result is the outcome of linting one constraint set.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists the error and critical findings.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists findings that don't block scoring.
	Warnings []Violation `json:"warnings,omitempty"`

	EvaluatedAt       time.Time     `json:"evaluated_at"`
	EvaluatedPolicies []string      `json:"evaluated_policies"`
	Duration          time.Duration `json:"duration"`
}

// Findings returns violations followed by warnings.
func (r *Result) Findings() []Violation {
	out := make([]Violation, 0, len(r.Violations)+len(r.Warnings))
	out = append(out, r.Violations...)
	return append(out, r.Warnings...)
}

// Input is the document policies see as `input`.
type Input struct {
	// Problem names the problem the constraints belong to.
	Problem string `json:"problem"`

	// Constraints describes every registered constraint, disabled ones included.
	Constraints []engine.Descriptor `json:"constraints"`

	// FactTypes lists the fact types the problem's schema declares.
	FactTypes []string `json:"fact_types"`

	Context *Context `json:"context"`
}

// Context provides information about the evaluation itself.
type Context struct {
	Timestamp time.Time `json:"timestamp"`

	// Operation is what triggered the lint (e.g. "score", "validate").
	Operation string `json:"operation,omitempty"`
}
