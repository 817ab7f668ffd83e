package service

import (
	"math"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
	"github.com/bahromnajmiddinov/food-delivery/module/driver/geo"
)

// AverageSpeedKmh is the fixed urban speed the local estimator assumes.
const AverageSpeedKmh = 30

// EstimateETA approximates minutes and distance from current to destination.
// It never touches the network and is always less precise than a live route;
// results that replace a failed live fetch must be shown as estimates.
// A nil current position yields an empty result.
func EstimateETA(current *domain.Coordinate, destination domain.Coordinate, preparationMinutes, trafficMultiplier float64) domain.ETAResult {
	if current == nil {
		return domain.ETAResult{}
	}
	if trafficMultiplier <= 0 {
		trafficMultiplier = 1
	}

	distanceKm := geo.DistanceKm(*current, destination)
	travelMinutes := distanceKm / AverageSpeedKmh * 60 * trafficMultiplier
	total := math.Max(0, preparationMinutes) + travelMinutes

	minutes := int(math.Round(total))
	rounded := roundTo(distanceKm, 2)
	return domain.ETAResult{Minutes: &minutes, DistanceKm: &rounded}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// EstimateETA runs the local estimator from the driver's current position.
func (s *LocationService) EstimateETA(destination domain.Coordinate, preparationMinutes, trafficMultiplier float64) domain.ETAResult {
	c, ok := s.Location()
	if !ok {
		return EstimateETA(nil, destination, preparationMinutes, trafficMultiplier)
	}
	return EstimateETA(&c, destination, preparationMinutes, trafficMultiplier)
}
