package routing

import (
	"fmt"

	"github.com/openfroyo/scorekeeper/pkg/domain"
	"github.com/openfroyo/scorekeeper/pkg/engine"
)

// Dataset is the serialised form of a routing plan.
type Dataset struct {
	Depots    []DepotRecord    `json:"depots" validate:"dive"`
	Customers []CustomerRecord `json:"customers" validate:"dive"`
	Vehicles  []VehicleRecord  `json:"vehicles" validate:"dive"`
}

// LocationRecord is a serialised Location in degrees.
type LocationRecord struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// DepotRecord is a serialised Depot.
type DepotRecord struct {
	ID       string         `json:"id" validate:"required"`
	Location LocationRecord `json:"location"`
}

// CustomerRecord is a serialised Customer.
type CustomerRecord struct {
	ID       string         `json:"id" validate:"required"`
	Location LocationRecord `json:"location"`
	Demand   int64          `json:"demand" validate:"gte=0"`
}

// VehicleRecord is a serialised Vehicle. Customers lists customer IDs in
// visiting order.
type VehicleRecord struct {
	ID        string   `json:"id" validate:"required"`
	Capacity  int64    `json:"capacity" validate:"gte=0"`
	Depot     string   `json:"depot" validate:"required"`
	Customers []string `json:"customers,omitempty"`
}

// DecodeFacts decodes a JSON dataset into facts.
func DecodeFacts(data []byte) ([]engine.Fact, error) {
	var ds Dataset
	if err := domain.DecodeDataset(data, &ds); err != nil {
		return nil, err
	}
	return ds.Facts()
}

// Facts resolves the dataset's references and returns its facts. A customer
// may be visited by at most one vehicle.
func (ds *Dataset) Facts() ([]engine.Fact, error) {
	facts := make([]engine.Fact, 0, len(ds.Depots)+len(ds.Customers)+len(ds.Vehicles))

	depots := make(map[string]*Depot, len(ds.Depots))
	for _, r := range ds.Depots {
		d := &Depot{ID: r.ID, Location: Location{ID: "depot/" + r.ID, Lat: r.Location.Lat, Lon: r.Location.Lon}}
		depots[r.ID] = d
		facts = append(facts, d)
	}

	customers := make(map[string]*Customer, len(ds.Customers))
	for _, r := range ds.Customers {
		c := &Customer{
			ID:       r.ID,
			Location: Location{ID: "customer/" + r.ID, Lat: r.Location.Lat, Lon: r.Location.Lon},
			Demand:   r.Demand,
		}
		customers[r.ID] = c
		facts = append(facts, c)
	}

	visitedBy := make(map[string]string, len(ds.Customers))
	for _, r := range ds.Vehicles {
		depot, ok := depots[r.Depot]
		if !ok {
			return nil, &domain.UnknownReferenceError{Kind: "depot", ID: r.Depot, Owner: "vehicle " + r.ID}
		}
		v := &Vehicle{ID: r.ID, Capacity: r.Capacity, Depot: depot}
		for _, id := range r.Customers {
			c, ok := customers[id]
			if !ok {
				return nil, &domain.UnknownReferenceError{Kind: "customer", ID: id, Owner: "vehicle " + r.ID}
			}
			if other, seen := visitedBy[id]; seen {
				return nil, fmt.Errorf("customer %q is visited by both vehicle %q and vehicle %q", id, other, r.ID)
			}
			visitedBy[id] = r.ID
			v.Customers = append(v.Customers, c)
		}
		facts = append(facts, v)
	}
	return facts, nil
}

// Locations returns the distinct locations of the dataset's depots and customers.
func Locations(facts []engine.Fact) []Location {
	var out []Location
	for _, f := range facts {
		switch f := f.(type) {
		case *Depot:
			out = append(out, f.Location)
		case *Customer:
			out = append(out, f.Location)
		}
	}
	return out
}
