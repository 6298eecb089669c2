package routing

import (
	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Problem is the schema and registry name of the problem.
const Problem = "vehicle-routing"

// Constraint names.
const (
	VehicleCapacityName = "Vehicle capacity"
	TotalDistanceName   = "Distance from previous standstill"
)

// Schema declares the fact types of the problem.
func Schema() *engine.Schema {
	s := engine.NewSchema(Problem)

	engine.DefineType[*Depot](s, "Depot")

	customer := engine.DefineType[*Customer](s, "Customer")
	engine.Ordered(customer, "demand", func(c *Customer) int64 { return c.Demand })

	vehicle := engine.DefineType[*Vehicle](s, "Vehicle")
	engine.Ordered(vehicle, "capacity", func(v *Vehicle) int64 { return v.Capacity })
	engine.Key(vehicle, "depot", func(v *Vehicle) string {
		if v.Depot == nil {
			return ""
		}
		return v.Depot.ID
	})

	return s
}

// Constraints returns every constraint of the problem with straight line distances.
func Constraints() []engine.Definition {
	return ConstraintsWith(nil)
}

// ConstraintsWith returns every constraint of the problem, measuring distance
// with calc. A nil calc means EuclideanDistanceCalculator.
func ConstraintsWith(calc DistanceCalculator) []engine.Definition {
	if calc == nil {
		calc = EuclideanDistanceCalculator{}
	}
	return []engine.Definition{
		VehicleCapacity,
		TotalDistance(calc),
	}
}

// VehicleCapacity penalizes the demand a vehicle carries beyond its capacity.
func VehicleCapacity(f *engine.ConstraintFactory) *engine.Constraint {
	return f.ForEach("Vehicle").
		DependsOn("Customer").
		Filter(engine.Filter1(func(v *Vehicle) bool {
			return v.TotalDemand() > v.Capacity
		})).
		PenalizeBy(VehicleCapacityName, engine.OneHard, engine.Magnitude1((*Vehicle).ExcessDemand))
}

// TotalDistance penalizes every meter a vehicle travels.
func TotalDistance(calc DistanceCalculator) engine.Definition {
	return func(f *engine.ConstraintFactory) *engine.Constraint {
		return f.ForEach("Vehicle").
			DependsOn("Customer", "Depot").
			PenalizeBy(TotalDistanceName, engine.OneSoft, engine.Magnitude1(func(v *Vehicle) int64 {
				return v.TotalDistance(calc)
			}))
	}
}
