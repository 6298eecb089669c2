package stores

import (
	"context"
	"time"
)

// Pass is one recorded scoring pass.
type Pass struct {
	ID        string    `json:"id" yaml:"id"`
	Problem   string    `json:"problem" yaml:"problem"`
	Hard      int64     `json:"hard" yaml:"hard"`
	Soft      int64     `json:"soft" yaml:"soft"`
	Feasible  bool      `json:"feasible" yaml:"feasible"`
	FactCount int       `json:"factCount" yaml:"factCount"`
	Failures  int       `json:"failures" yaml:"failures"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"` // dataset path or request origin
	ScoredAt  time.Time `json:"scoredAt" yaml:"scoredAt"`

	// Totals is only filled by GetPass.
	Totals []*ConstraintTotal `json:"totals,omitempty" yaml:"totals,omitempty"`
}

// ConstraintTotal is the contribution of one constraint to a recorded pass.
type ConstraintTotal struct {
	PassID     string `json:"passId" yaml:"passId"`
	Constraint string `json:"constraint" yaml:"constraint"`
	Level      string `json:"level" yaml:"level"`
	Count      int    `json:"count" yaml:"count"`
	Magnitude  int64  `json:"magnitude" yaml:"magnitude"`
	Hard       int64  `json:"hard" yaml:"hard"`
	Soft       int64  `json:"soft" yaml:"soft"`
}

// PassFilter narrows ListPasses. Zero fields match everything.
type PassFilter struct {
	Problem      string
	FeasibleOnly bool
	Since        time.Time
}

// Store defines the interface for the score history.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Pass operations
	RecordPass(ctx context.Context, pass *Pass) error
	GetPass(ctx context.Context, id string) (*Pass, error)
	ListPasses(ctx context.Context, filter PassFilter, limit, offset int) ([]*Pass, error)
	DeletePassesBefore(ctx context.Context, before time.Time) (int64, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
