package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of an engine error.
type ErrorClass string

const (
	// ErrorClassConfiguration indicates a malformed constraint declaration or schema.
	// Configuration errors are detected at registration time and are fatal.
	ErrorClassConfiguration ErrorClass = "configuration"

	// ErrorClassEvaluation indicates that a filter or magnitude function failed
	// while a single constraint was being evaluated.
	ErrorClassEvaluation ErrorClass = "evaluation"

	// ErrorClassVerification indicates a verifier fixture that cannot be evaluated
	// or an assertion that did not hold.
	ErrorClassVerification ErrorClass = "verification"

	// ErrorClassState indicates an invalid fact store mutation.
	// Examples: inserting a duplicate identity, retracting an unknown fact.
	ErrorClassState ErrorClass = "state"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Constraint is the name of the constraint involved, if applicable.
	Constraint string `json:"constraint,omitempty"`

	// Tuple lists the references ("Type:id") of the facts being evaluated, if applicable.
	Tuple []string `json:"tuple,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)

	var ctx []string
	if e.Constraint != "" {
		ctx = append(ctx, "constraint="+e.Constraint)
	}
	if len(e.Tuple) > 0 {
		ctx = append(ctx, "tuple=("+strings.Join(e.Tuple, ", ")+")")
	}
	if e.Operation != "" {
		ctx = append(ctx, "operation="+e.Operation)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConfiguration,
		Message: message,
		Err:     err,
	}
}

// NewEvaluationError creates a new evaluation error.
func NewEvaluationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassEvaluation,
		Message: message,
		Err:     err,
	}
}

// NewVerificationError creates a new verification error.
func NewVerificationError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassVerification,
		Message: message,
		Err:     err,
	}
}

// NewStateError creates a new fact store state error.
func NewStateError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassState,
		Message: message,
		Err:     err,
	}
}

// WithConstraint adds constraint context to an error.
func (e *EngineError) WithConstraint(name string) *EngineError {
	e.Constraint = name
	return e
}

// WithTuple adds the offending tuple to an error.
func (e *EngineError) WithTuple(t Tuple) *EngineError {
	e.Tuple = t.Refs()
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsConfiguration returns true if the error is classified as a configuration error.
func IsConfiguration(err error) bool {
	return hasClass(err, ErrorClassConfiguration)
}

// IsEvaluation returns true if the error is classified as an evaluation error.
func IsEvaluation(err error) bool {
	return hasClass(err, ErrorClassEvaluation)
}

// IsVerification returns true if the error is classified as a verification error.
func IsVerification(err error) bool {
	return hasClass(err, ErrorClassVerification)
}

// IsState returns true if the error is classified as a state error.
func IsState(err error) bool {
	return hasClass(err, ErrorClassState)
}

func hasClass(err error, class ErrorClass) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// EvaluationFailures extracts every evaluation error from a (possibly joined) error.
func EvaluationFailures(err error) []*EngineError {
	if err == nil {
		return nil
	}
	var out []*EngineError
	var walk func(error)
	walk = func(err error) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var e *EngineError
		if errors.As(err, &e) && e.Class == ErrorClassEvaluation {
			out = append(out, e)
		}
	}
	walk(err)
	return out
}

// Common error codes.
const (
	ErrCodeUnknownType       = "UNKNOWN_FACT_TYPE"
	ErrCodeUnknownAttribute  = "UNKNOWN_ATTRIBUTE"
	ErrCodeInvalidJoin       = "INVALID_JOIN"
	ErrCodeInvalidConstraint = "INVALID_CONSTRAINT"
	ErrCodeDuplicate         = "DUPLICATE"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodePredicateFailed   = "PREDICATE_FAILED"
	ErrCodeMagnitudeFailed   = "MAGNITUDE_FAILED"
	ErrCodeNegativeMagnitude = "NEGATIVE_MAGNITUDE"
	ErrCodeAssertion         = "ASSERTION_FAILED"
	ErrCodeInvalidConfig     = "INVALID_CONFIG"
	ErrCodeInvalidDataset    = "INVALID_DATASET"
	ErrCodePolicyViolation   = "POLICY_VIOLATION"
)
