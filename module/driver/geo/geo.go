// Package geo holds the spherical primitives the driver module is built on.
package geo

import (
	"math"

	"github.com/bahromnajmiddinov/food-delivery/module/driver/domain"
)

const earthRadiusKm = 6371

// DistanceKm returns the haversine great-circle distance between a and b.
// Inputs are not range checked.
func DistanceKm(a, b domain.Coordinate) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + sinLon*sinLon*math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsWithin reports whether point lies inside zone. The boundary is inclusive.
func IsWithin(point domain.Coordinate, zone domain.Zone) bool {
	return DistanceKm(zone.Center, point)*1000 <= zone.RadiusMeters
}

// Toward returns the point a fraction f of the way from a to b, interpolating
// linearly in degrees.
func Toward(a, b domain.Coordinate, f float64) domain.Coordinate {
	if f >= 1 {
		return b
	}
	if f <= 0 {
		return a
	}
	return domain.Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lon: a.Lon + (b.Lon-a.Lon)*f,
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
