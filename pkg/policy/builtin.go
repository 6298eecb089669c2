package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		constraintNamingPolicy(),
		constraintWeightsPolicy(),
		scoreLevelsPolicy(),
	}
}

// constraintNamingPolicy requires non-empty, unique constraint names.
func constraintNamingPolicy() Policy {
	return Policy{
		Name:        "constraint-naming",
		Description: "Constraint names must be non-empty and unique within a problem",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package scorekeeper.policies.naming

import rego.v1

deny contains violation if {
	some c in input.constraints
	trim_space(c.name) == ""
	violation := {
		"message": sprintf("Constraint on %v has no name", [c.sourceTypes]),
		"severity": "error",
	}
}

deny contains violation if {
	some i, j
	input.constraints[i].name == input.constraints[j].name
	i < j
	name := input.constraints[i].name
	violation := {
		"message": sprintf("Constraint name '%s' is registered more than once", [name]),
		"severity": "error",
		"constraint": name,
	}
}

declared contains t if some t in input.fact_types

deny contains violation if {
	some c in input.constraints
	some t in c.sourceTypes
	not declared[t]
	violation := {
		"message": sprintf("Constraint '%s' reads undeclared fact type '%s'", [c.name, t]),
		"severity": "error",
		"constraint": c.name,
	}
}
`,
	}
}

// constraintWeightsPolicy rejects negative weights and flags zero weights.
func constraintWeightsPolicy() Policy {
	return Policy{
		Name:        "constraint-weights",
		Description: "Constraint weights must be non-negative; a zero weight on an enabled constraint is suspicious",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"weights"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package scorekeeper.policies.weights

import rego.v1

deny contains violation if {
	some c in input.constraints
	c.weight < 0
	violation := {
		"message": sprintf("Constraint '%s' has negative weight %d", [c.name, c.weight]),
		"severity": "error",
		"constraint": c.name,
	}
}

deny contains violation if {
	some c in input.constraints
	c.enabled
	c.weight == 0
	violation := {
		"message": sprintf("Constraint '%s' is enabled with weight 0 and never affects the score", [c.name]),
		"severity": "warning",
		"constraint": c.name,
	}
}
`,
	}
}

// scoreLevelsPolicy flags hard constraints that reward. A hard reward can
// make an infeasible solution look feasible.
func scoreLevelsPolicy() Policy {
	return Policy{
		Name:        "score-levels",
		Description: "Hard constraints should penalize",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"levels"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package scorekeeper.policies.levels

import rego.v1

deny contains violation if {
	some c in input.constraints
	c.enabled
	c.level == "HARD"
	c.direction == "REWARD"
	violation := {
		"message": sprintf("Hard constraint '%s' rewards; hard constraints should penalize", [c.name]),
		"severity": "warning",
		"constraint": c.name,
	}
}
`,
	}
}
