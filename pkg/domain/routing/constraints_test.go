package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/scorekeeper/pkg/engine"
)

var (
	location1 = Location{ID: "1", Lat: 0, Lon: 0}
	location2 = Location{ID: "2", Lat: 0, Lon: 4}
	location3 = Location{ID: "3", Lat: 3, Lon: 0}
)

func fixture() (*Vehicle, *Customer, *Customer) {
	v := &Vehicle{ID: "1", Capacity: 100, Depot: &Depot{ID: "1", Location: location1}}
	c1 := &Customer{ID: "2", Location: location2, Demand: 80}
	c2 := &Customer{ID: "3", Location: location3, Demand: 40}
	return v, c1, c2
}

func TestVehicleCapacity(t *testing.T) {
	verifier := engine.NewVerifier(Schema())

	t.Run("within capacity", func(t *testing.T) {
		v, c1, _ := fixture()
		v.Customers = []*Customer{c1}
		assert.NoError(t, verifier.VerifyThat(VehicleCapacity).Given(v, c1).PenalizesBy(0))
	})

	t.Run("over capacity", func(t *testing.T) {
		v, c1, c2 := fixture()
		v.Customers = []*Customer{c1, c2}
		assert.NoError(t, verifier.VerifyThat(VehicleCapacity).Given(v, c1, c2).PenalizesBy(20))
		assert.NoError(t, verifier.VerifyThat(VehicleCapacity).Given(v, c1, c2).Penalizes(1))
	})

	t.Run("exactly at capacity", func(t *testing.T) {
		v, c1, c2 := fixture()
		c2.Demand = 20
		v.Customers = []*Customer{c1, c2}
		assert.NoError(t, verifier.VerifyThat(VehicleCapacity).Given(v, c1, c2).Penalizes(0))
	})
}

func TestTotalDistance(t *testing.T) {
	calculators := map[string]DistanceCalculator{
		"euclidean": EuclideanDistanceCalculator{},
		"matrix":    NewDistanceMatrix(EuclideanDistanceCalculator{}, location1, location2, location3),
	}

	for name, calc := range calculators {
		t.Run(name, func(t *testing.T) {
			v, c1, c2 := fixture()
			v.Customers = []*Customer{c1, c2}
			err := engine.NewVerifier(Schema()).
				VerifyThat(TotalDistance(calc)).
				Given(v, c1, c2).
				PenalizesBy((4 + 5 + 3) * MetersPerDegree)
			assert.NoError(t, err)
		})
	}
}

func TestEmptyRouteTravelsNowhere(t *testing.T) {
	v, _, _ := fixture()
	// Zero magnitudes do not count as matches.
	res, err := engine.NewVerifier(Schema()).Verify(TotalDistance(EuclideanDistanceCalculator{}), v)
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.Zero(t, res.Magnitude)
}

func TestRoutingScore(t *testing.T) {
	v, c1, c2 := fixture()
	v.Customers = []*Customer{c1, c2}
	err := engine.NewVerifier(Schema()).
		VerifyAll(Constraints()...).
		Given(v, c1, c2, v.Depot).
		Scores(engine.Score{Hard: -20, Soft: -12 * MetersPerDegree})
	assert.NoError(t, err)
}

func TestDistanceMatrix(t *testing.T) {
	m := NewDistanceMatrix(EuclideanDistanceCalculator{}, location1, location2)
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, int64(4*MetersPerDegree), m.Distance(location1, location2))
	assert.Equal(t, int64(0), m.Distance(location2, location2))

	// Unknown pairs are computed once and remembered.
	assert.Equal(t, int64(3*MetersPerDegree), m.Distance(location3, location1))
	assert.Equal(t, 5, m.Len())
}

func TestDistanceMatrixKeysOnCoordinates(t *testing.T) {
	m := NewDistanceMatrix(EuclideanDistanceCalculator{}, location1, location2)

	// Same ID as location2, different place.
	moved := Location{ID: "2", Lat: 3, Lon: 0}
	assert.Equal(t, int64(3*MetersPerDegree), m.Distance(location1, moved))
	assert.Equal(t, int64(4*MetersPerDegree), m.Distance(location1, location2))

	// Different ID, same place.
	alias := Location{ID: "depot", Lat: 0, Lon: 4}
	assert.Equal(t, int64(4*MetersPerDegree), m.Distance(location1, alias))
	assert.Equal(t, 5, m.Len())
}

func TestSessionRescoresCustomerUpdates(t *testing.T) {
	newSessions := func() (*engine.Session, *engine.Session, *Customer, *Customer) {
		set, err := engine.NewConstraintSet(Schema(), Constraints())
		require.NoError(t, err)
		incremental := engine.NewSession(set)
		full := engine.NewSession(set, engine.WithIncremental(false))

		v, c1, c2 := fixture()
		v.Customers = []*Customer{c1}
		require.NoError(t, incremental.Insert(v, v.Depot, c1, c2))
		require.NoError(t, full.Insert(v, v.Depot, c1, c2))
		return incremental, full, c1, c2
	}

	ctx := context.Background()
	incremental, full, c1, _ := newSessions()
	before, err := incremental.CalculateScore(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before.Hard)

	c1.Demand = 150
	require.NoError(t, incremental.Update(c1))
	require.NoError(t, full.Update(c1))

	got, err := incremental.CalculateScore(ctx)
	require.NoError(t, err)
	want, err := full.CalculateScore(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(-50), got.Hard)

	// Moving a visited customer changes the distance travelled.
	incremental, full, c1, _ = newSessions()
	_, err = incremental.CalculateScore(ctx)
	require.NoError(t, err)

	c1.Location = Location{ID: "2", Lat: 0, Lon: 8}
	require.NoError(t, incremental.Update(c1))
	require.NoError(t, full.Update(c1))

	got, err = incremental.CalculateScore(ctx)
	require.NoError(t, err)
	want, err = full.CalculateScore(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(-16*MetersPerDegree), got.Soft)
}

func TestEuclideanDistanceRoundsUp(t *testing.T) {
	calc := EuclideanDistanceCalculator{}
	d := calc.Distance(Location{ID: "a"}, Location{ID: "b", Lat: 0.000001})
	assert.Equal(t, int64(1), d)
}
