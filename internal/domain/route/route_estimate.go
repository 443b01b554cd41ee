package route

import (
	"fmt"
	"math"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
)

// RouteEstimate is a value object representing distance, time and geometry
// between two resolved locations.
type RouteEstimate struct {
	DistanceKm      float64                `json:"distance_km"`
	DurationMinutes int                    `json:"duration_minutes"`
	Path            []location.Coordinates `json:"path"`
	IsApproximate   bool                   `json:"is_approximate"`
	SourceRideClass RideClass              `json:"source_ride_class,omitempty"`
}

// NewRouteEstimate validates and builds a RouteEstimate. Only approximate
// estimates may have an empty path.
func NewRouteEstimate(distanceKm float64, durationMinutes int, path []location.Coordinates, approximate bool) (RouteEstimate, error) {
	if distanceKm < 0 || math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		return RouteEstimate{}, fmt.Errorf("invalid route distance: %v", distanceKm)
	}
	if durationMinutes < 0 {
		return RouteEstimate{}, fmt.Errorf("invalid route duration: %d", durationMinutes)
	}
	if len(path) == 0 && !approximate {
		return RouteEstimate{}, fmt.Errorf("authoritative route estimate requires a path")
	}

	p := make([]location.Coordinates, len(path))
	copy(p, path)

	return RouteEstimate{
		DistanceKm:      distanceKm,
		DurationMinutes: durationMinutes,
		Path:            p,
		IsApproximate:   approximate,
	}, nil
}

// WithRideClass returns a copy tagged with the ride class a fare was computed for.
func (r RouteEstimate) WithRideClass(class RideClass) RouteEstimate {
	p := make([]location.Coordinates, len(r.Path))
	copy(p, r.Path)
	r.Path = p
	r.SourceRideClass = class
	return r
}

// StraightLineEstimate builds the approximate estimate used when no routing
// service is available: great-circle distance, linear duration, two-point path.
func StraightLineEstimate(from, to location.Coordinates) RouteEstimate {
	distance := GreatCircleKm(from, to)
	return RouteEstimate{
		DistanceKm:      distance,
		DurationMinutes: FallbackDurationMinutes(distance),
		Path:            []location.Coordinates{from, to},
		IsApproximate:   true,
	}
}
