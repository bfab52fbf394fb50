// Package mileage implements the mileage cost engine: distance estimation
// between waypoints, reimbursable amount computation, and date-range
// aggregation over persisted trips.
//
// Distance estimation uses the Strategy Pattern: each estimator encapsulates
// one way of computing the distance in meters between two coordinates, and
// estimators are selected by name through explicit configuration.
package mileage

import (
	"errors"
	"fmt"
	"math"
)

// LatLng is a coordinate pair in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceEstimator is the strategy interface for computing the distance in
// meters between two points.
type DistanceEstimator interface {
	EstimateMeters(origin, dest LatLng) (int, error)
}

const earthRadiusMeters = 6371000.0

// HaversineEstimator computes great-circle ("as the crow flies") distance.
// It is symmetric in its arguments and returns 0 for identical points.
type HaversineEstimator struct{}

func (HaversineEstimator) EstimateMeters(origin, dest LatLng) (int, error) {
	dLat := radians(dest.Lat - origin.Lat)
	dLng := radians(dest.Lng - origin.Lng)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(origin.Lat))*math.Cos(radians(dest.Lat))*
			math.Pow(math.Sin(dLng/2), 2)
	// Rounding can push a fractionally past 1 near antipodal points, which
	// would make Sqrt(1-a) NaN.
	a = math.Min(a, 1)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return int(math.Round(earthRadiusMeters * c)), nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ErrRoutingUnavailable is returned by the routing-service estimator until a
// routing backend is wired up.
var ErrRoutingUnavailable = errors.New("routing distance estimator not available")

// RoutingEstimator will delegate to an external routing service for driving
// distance. It is registered so configuration can name it, but estimating
// through it fails until the service integration lands; its absence never
// affects the haversine estimator.
type RoutingEstimator struct{}

func (RoutingEstimator) EstimateMeters(origin, dest LatLng) (int, error) {
	return 0, ErrRoutingUnavailable
}

const (
	StrategyHaversine = "haversine"
	StrategyRouting   = "routing"
)

// estimators maps strategy names to their implementations. The registry keeps
// selection explicit and data-driven instead of relying on type checks.
var estimators = map[string]DistanceEstimator{
	StrategyHaversine: HaversineEstimator{},
	StrategyRouting:   RoutingEstimator{},
}

// GetEstimator returns the estimator registered under name.
func GetEstimator(name string) (DistanceEstimator, error) {
	est, ok := estimators[name]
	if !ok {
		return nil, fmt.Errorf("unknown distance strategy: %s", name)
	}
	return est, nil
}

// RegisterEstimator registers a custom estimator for a strategy name,
// allowing new variants without modifying this package.
func RegisterEstimator(name string, est DistanceEstimator) {
	estimators[name] = est
}
