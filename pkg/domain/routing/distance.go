package routing

import (
	"math"
	"sync"
)

// MetersPerDegree approximates the length of one degree of arc.
const MetersPerDegree = 111_000

// DistanceCalculator returns the distance between two locations in meters.
// Implementations must be deterministic.
type DistanceCalculator interface {
	Distance(from, to Location) int64
}

// EuclideanDistanceCalculator treats degrees as a flat plane.
type EuclideanDistanceCalculator struct{}

// Distance returns the straight line distance, rounded up to whole meters.
func (EuclideanDistanceCalculator) Distance(from, to Location) int64 {
	if from == to {
		return 0
	}
	dLat := from.Lat - to.Lat
	dLon := from.Lon - to.Lon
	return int64(math.Ceil(math.Sqrt(dLat*dLat+dLon*dLon) * MetersPerDegree))
}

type point struct {
	lat, lon float64
}

// locationPair is keyed on coordinates. IDs are labels and may repeat.
type locationPair struct {
	from, to point
}

func pairOf(from, to Location) locationPair {
	return locationPair{point{from.Lat, from.Lon}, point{to.Lat, to.Lon}}
}

// DistanceMatrix serves precomputed distances between known locations and
// falls back to its calculator, memoizing the result, for any other pair.
type DistanceMatrix struct {
	calc DistanceCalculator

	mu        sync.RWMutex
	distances map[locationPair]int64
}

// NewDistanceMatrix precomputes the distance between every ordered pair of locations.
func NewDistanceMatrix(calc DistanceCalculator, locations ...Location) *DistanceMatrix {
	m := &DistanceMatrix{
		calc:      calc,
		distances: make(map[locationPair]int64, len(locations)*len(locations)),
	}
	for _, from := range locations {
		for _, to := range locations {
			m.distances[pairOf(from, to)] = calc.Distance(from, to)
		}
	}
	return m
}

// Distance implements DistanceCalculator.
func (m *DistanceMatrix) Distance(from, to Location) int64 {
	key := pairOf(from, to)
	m.mu.RLock()
	d, ok := m.distances[key]
	m.mu.RUnlock()
	if ok {
		return d
	}

	d = m.calc.Distance(from, to)
	m.mu.Lock()
	m.distances[key] = d
	m.mu.Unlock()
	return d
}

// Len returns the number of memoized coordinate pairs.
func (m *DistanceMatrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.distances)
}
