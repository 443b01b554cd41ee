package route

import (
	"fmt"
	"math"
)

// CurrencyRWF is the only currency fares are quoted in.
const CurrencyRWF = "RWF"

// FareStrategy defines the interface for pricing a route.
type FareStrategy interface {
	// Quote returns the fare for the given route and ride class.
	Quote(route RouteEstimate, class RideClass) (FareQuote, error)
}

// FareQuote is the price of a route for one ride class.
type FareQuote struct {
	RideClass    RideClass `json:"ride_class"`
	BaseFare     int64     `json:"base_fare"`
	DistanceFare int64     `json:"distance_fare"`
	Total        int64     `json:"total"`
	Currency     string    `json:"currency"`
}

// StandardFareStrategy implements the default Kigali rate table.
type StandardFareStrategy struct {
	baseFare  int64
	increment int64
	ratePerKm map[RideClass]int64
}

// NewStandardFareStrategy creates a new StandardFareStrategy.
func NewStandardFareStrategy() *StandardFareStrategy {
	return &StandardFareStrategy{
		baseFare:  2000,
		increment: 500,
		ratePerKm: map[RideClass]int64{
			RideClassEconomy: 1500,
			RideClassPremium: 2500,
			RideClassSUV:     3000,
		},
	}
}

// RatePerKm returns the per-kilometre rate for a ride class.
func (s *StandardFareStrategy) RatePerKm(class RideClass) (int64, error) {
	rate, ok := s.ratePerKm[class]
	if !ok {
		return 0, fmt.Errorf("unknown ride class for pricing: %s", class)
	}
	return rate, nil
}

// Quote computes the fare in RWF.
//
// Pricing formula:
//   - Base fare: RWF 2000
//   - Distance: economy 1500, premium 2500, suv 3000 RWF/km
//   - Total: (base + distance) rounded to the nearest RWF 500
func (s *StandardFareStrategy) Quote(route RouteEstimate, class RideClass) (FareQuote, error) {
	if route.DistanceKm < 0 || math.IsNaN(route.DistanceKm) || math.IsInf(route.DistanceKm, 0) {
		return FareQuote{}, fmt.Errorf("distance must be a non-negative number")
	}

	rate, err := s.RatePerKm(class)
	if err != nil {
		return FareQuote{}, err
	}

	distanceAmount := route.DistanceKm * float64(rate)

	return FareQuote{
		RideClass:    class,
		BaseFare:     s.roundToIncrement(float64(s.baseFare)),
		DistanceFare: s.roundToIncrement(distanceAmount),
		Total:        s.roundToIncrement(float64(s.baseFare) + distanceAmount),
		Currency:     CurrencyRWF,
	}, nil
}

// roundToIncrement rounds to the nearest increment, halves away from zero.
func (s *StandardFareStrategy) roundToIncrement(amount float64) int64 {
	return int64(math.Round(amount/float64(s.increment))) * s.increment
}
