package routing

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
)

// DemoBuilder generates reproducible random routing datasets.
type DemoBuilder struct {
	SouthWest       LocationRecord
	NorthEast       LocationRecord
	MinDemand       int64
	MaxDemand       int64
	CustomerCount   int
	VehicleCount    int
	DepotCount      int
	VehicleCapacity int64
	Seed            uint64
}

// DefaultDemo is a small dataset around Philadelphia.
var DefaultDemo = DemoBuilder{
	SouthWest:       LocationRecord{Lat: 39.7656099067391, Lon: -76.83782328143754},
	NorthEast:       LocationRecord{Lat: 40.77636644354855, Lon: -74.9300739430771},
	MinDemand:       1,
	MaxDemand:       2,
	CustomerCount:   77,
	VehicleCount:    6,
	DepotCount:      2,
	VehicleCapacity: 15,
}

func (b DemoBuilder) validate() error {
	var errs []error
	if b.MinDemand < 1 {
		errs = append(errs, fmt.Errorf("minDemand (%d) must be greater than zero", b.MinDemand))
	}
	if b.MaxDemand < 1 {
		errs = append(errs, fmt.Errorf("maxDemand (%d) must be greater than zero", b.MaxDemand))
	}
	if b.MinDemand >= b.MaxDemand {
		errs = append(errs, fmt.Errorf("maxDemand (%d) must be greater than minDemand (%d)", b.MaxDemand, b.MinDemand))
	}
	if b.VehicleCapacity < 1 {
		errs = append(errs, fmt.Errorf("vehicleCapacity (%d) must be greater than zero", b.VehicleCapacity))
	}
	if b.CustomerCount < 1 {
		errs = append(errs, fmt.Errorf("customerCount (%d) must be greater than zero", b.CustomerCount))
	}
	if b.VehicleCount < 1 {
		errs = append(errs, fmt.Errorf("vehicleCount (%d) must be greater than zero", b.VehicleCount))
	}
	if b.DepotCount < 1 {
		errs = append(errs, fmt.Errorf("depotCount (%d) must be greater than zero", b.DepotCount))
	}
	if b.NorthEast.Lat <= b.SouthWest.Lat {
		errs = append(errs, fmt.Errorf("north east latitude (%v) must be greater than south west latitude (%v)",
			b.NorthEast.Lat, b.SouthWest.Lat))
	}
	if b.NorthEast.Lon <= b.SouthWest.Lon {
		errs = append(errs, fmt.Errorf("north east longitude (%v) must be greater than south west longitude (%v)",
			b.NorthEast.Lon, b.SouthWest.Lon))
	}
	return errors.Join(errs...)
}

// Build generates a dataset. Customers are handed out to vehicles round
// robin so the plan can be scored as is.
func (b DemoBuilder) Build() (*Dataset, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(b.Seed, b.Seed))
	seq := 0
	nextID := func() string {
		id := strconv.Itoa(seq)
		seq++
		return id
	}
	location := func() LocationRecord {
		return LocationRecord{
			Lat: b.SouthWest.Lat + rng.Float64()*(b.NorthEast.Lat-b.SouthWest.Lat),
			Lon: b.SouthWest.Lon + rng.Float64()*(b.NorthEast.Lon-b.SouthWest.Lon),
		}
	}

	ds := &Dataset{}
	for range b.DepotCount {
		ds.Depots = append(ds.Depots, DepotRecord{ID: nextID(), Location: location()})
	}
	for range b.VehicleCount {
		depot := ds.Depots[rng.IntN(len(ds.Depots))]
		ds.Vehicles = append(ds.Vehicles, VehicleRecord{ID: nextID(), Capacity: b.VehicleCapacity, Depot: depot.ID})
	}
	for i := range b.CustomerCount {
		c := CustomerRecord{
			ID:       nextID(),
			Location: location(),
			Demand:   b.MinDemand + rng.Int64N(b.MaxDemand-b.MinDemand+1),
		}
		ds.Customers = append(ds.Customers, c)
		v := &ds.Vehicles[i%len(ds.Vehicles)]
		v.Customers = append(v.Customers, c.ID)
	}
	return ds, nil
}
