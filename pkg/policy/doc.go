// Package policy lints constraint sets with Open Policy Agent.
//
// Before a constraint set scores anything, the policy engine evaluates Rego
// policies over a description of it: the problem name, the declared fact
// types and one descriptor per constraint (name, level, direction, weight,
// source types, enabled). Built-in policies reject empty or duplicate names,
// negative weights and constraints over undeclared fact types, and warn about
// zero weights and hard constraints that reward.
//
// # Writing policies
//
// A policy is a Rego module exposing a `deny` set:
//
//	package scorekeeper.custom
//
//	import rego.v1
//
//	deny contains violation if {
//		some c in input.constraints
//		c.level == "SOFT"
//		c.weight > 1000
//		violation := {
//			"message": sprintf("%s outweighs the rest of the soft level", [c.name]),
//			"severity": "warning",
//			"constraint": c.name,
//		}
//	}
//
// Members may also be plain strings, which take the policy's default
// severity. Error and critical findings make the result disallowed.
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"policies/"}); err != nil {
//	    return err
//	}
//	result, err := eng.EvaluateSet(ctx, set, "score")
//	if err != nil {
//	    return err
//	}
//	if !result.Allowed {
//	    for _, v := range result.Violations {
//	        fmt.Printf("%s: %s\n", v.Policy, v.Message)
//	    }
//	}
//
// Policy files are .rego modules (named after the file) or JSON documents
// holding a Policy. Watch reloads them when they change.
package policy
