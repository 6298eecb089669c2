// Package problems is the registry of the problems the scorekeeper knows
// how to score.
package problems

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/openfroyo/scorekeeper/pkg/domain/routing"
	"github.com/openfroyo/scorekeeper/pkg/domain/scheduling"
	"github.com/openfroyo/scorekeeper/pkg/domain/timetabling"
	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Problem bundles everything needed to score datasets of one kind.
type Problem struct {
	Name        string
	Description string
	Schema      func() *engine.Schema
	Constraints func() []engine.Definition
	DecodeFacts func(data []byte) ([]engine.Fact, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Problem{}
)

func init() {
	Register(Problem{
		Name:        scheduling.Problem,
		Description: "Assign employees to shifts respecting skills, rest and availability",
		Schema:      scheduling.Schema,
		Constraints: scheduling.Constraints,
		DecodeFacts: scheduling.DecodeFacts,
	})
	Register(Problem{
		Name:        timetabling.Problem,
		Description: "Assign lessons to timeslots and rooms without conflicts",
		Schema:      timetabling.Schema,
		Constraints: timetabling.Constraints,
		DecodeFacts: timetabling.DecodeFacts,
	})
	Register(Problem{
		Name:        routing.Problem,
		Description: "Route capacitated vehicles from their depots through customers",
		Schema:      routing.Schema,
		Constraints: routing.Constraints,
		DecodeFacts: routing.DecodeFacts,
	})
}

// Register adds a problem, replacing any problem of the same name.
func Register(p Problem) {
	if p.Name == "" || p.Schema == nil || p.Constraints == nil || p.DecodeFacts == nil {
		panic(fmt.Sprintf("problems: incomplete registration %q", p.Name))
	}
	mu.Lock()
	defer mu.Unlock()
	registry[p.Name] = p
}

// Lookup returns the named problem.
func Lookup(name string) (Problem, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return Problem{}, engine.NewConfigurationError(
			fmt.Sprintf("unknown problem %q (known: %v)", name, namesLocked()), nil).
			WithCode(engine.ErrCodeNotFound)
	}
	return p, nil
}

// Names returns the registered problem names in order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

// All returns the registered problems ordered by name.
func All() []Problem {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Problem, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
