package route

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// minFallbackMinutes is the floor applied to distance-derived durations.
const minFallbackMinutes = 10

// minutesPerKm is the linear duration factor used without routing data.
const minutesPerKm = 2.5

// GreatCircleKm calculates the haversine distance between two coordinates in kilometers.
func GreatCircleKm(a, b location.Coordinates) float64 {
	// Fixed argument order keeps the result bit-for-bit symmetric.
	if b.Lat < a.Lat || (b.Lat == a.Lat && b.Lng < a.Lng) {
		a, b = b, a
	}
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// FallbackDurationMinutes derives a trip duration from distance alone.
func FallbackDurationMinutes(distanceKm float64) int {
	minutes := int(math.Round(distanceKm * minutesPerKm))
	if minutes < minFallbackMinutes {
		return minFallbackMinutes
	}
	return minutes
}
