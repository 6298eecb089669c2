package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/openfroyo/scorekeeper/pkg/stores"
)

// Example demonstrates recording a pass and listing the history.
func Example() {
	ctx := context.Background()

	store, err := stores.Open(ctx, stores.MemoryPath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	err = store.RecordPass(ctx, &stores.Pass{
		ID:        "3b0c7e9a",
		Problem:   "vehicle-routing",
		Soft:      -18204,
		Feasible:  true,
		FactCount: 42,
		ScoredAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Totals: []*stores.ConstraintTotal{
			{Constraint: "Distance from previous standstill", Level: "SOFT", Count: 40, Magnitude: 18204, Soft: -18204},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	passes, err := store.ListPasses(ctx, stores.PassFilter{Problem: "vehicle-routing"}, 10, 0)
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range passes {
		fmt.Printf("%s %dhard/%dsoft feasible=%t\n", p.ID, p.Hard, p.Soft, p.Feasible)
	}
	// Output: 3b0c7e9a 0hard/-18204soft feasible=true
}
