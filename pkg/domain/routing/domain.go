// Package routing declares the capacitated vehicle routing problem: which
// customers each vehicle visits, and in what order, starting and ending at
// its depot.
package routing

import (
	"fmt"
)

// Location is a point given in degrees.
type Location struct {
	ID  string
	Lat float64
	Lon float64
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%.6f,%.6f)", l.ID, l.Lat, l.Lon)
}

// Depot is where vehicles start and end their routes.
type Depot struct {
	ID       string
	Location Location
}

// FactID implements engine.Fact.
func (d *Depot) FactID() string { return d.ID }

// Customer is a problem fact with a demand to be delivered.
type Customer struct {
	ID       string
	Location Location
	Demand   int64
}

// FactID implements engine.Fact.
func (c *Customer) FactID() string { return c.ID }

// Vehicle is the planning entity. Customers is its planning list variable,
// visited in order.
type Vehicle struct {
	ID        string
	Capacity  int64
	Depot     *Depot
	Customers []*Customer
}

// FactID implements engine.Fact.
func (v *Vehicle) FactID() string { return v.ID }

// TotalDemand sums the demand of every customer on the route.
func (v *Vehicle) TotalDemand() int64 {
	var total int64
	for _, c := range v.Customers {
		total += c.Demand
	}
	return total
}

// ExcessDemand returns how far the route's demand exceeds capacity, or 0.
func (v *Vehicle) ExcessDemand() int64 {
	return max(v.TotalDemand()-v.Capacity, 0)
}

// Route returns the visited locations from depot, through every customer,
// back to depot. An empty route has no locations.
func (v *Vehicle) Route() []Location {
	if len(v.Customers) == 0 || v.Depot == nil {
		return nil
	}
	route := make([]Location, 0, len(v.Customers)+2)
	route = append(route, v.Depot.Location)
	for _, c := range v.Customers {
		route = append(route, c.Location)
	}
	return append(route, v.Depot.Location)
}

// TotalDistance measures the route with calc.
func (v *Vehicle) TotalDistance(calc DistanceCalculator) int64 {
	route := v.Route()
	var total int64
	for i := 1; i < len(route); i++ {
		total += calc.Distance(route[i-1], route[i])
	}
	return total
}
