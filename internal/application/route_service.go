package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
	locationDomain "github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
	routeDomain "github.com/Kilat-Pet-Delivery/service-location/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-location/internal/events"
	"github.com/Kilat-Pet-Delivery/service-location/internal/fallback"
	"github.com/Kilat-Pet-Delivery/service-location/internal/metrics"
)

// Router is the part of the geocoding client the route service needs.
type Router interface {
	Route(ctx context.Context, from, to locationDomain.Coordinates, departAt routeDomain.DepartAt) (routeDomain.RouteEstimate, error)
}

// ComputeRouteRequest holds the data needed to price a trip.
type ComputeRouteRequest struct {
	Origin      locationDomain.ResolvedLocation `json:"origin"`
	Destination locationDomain.ResolvedLocation `json:"destination"`
	RideClass   string                          `json:"ride_class"`
	DepartAt    string                          `json:"depart_at"`
}

// RouteQuoteDTO is the response representation of a priced route.
type RouteQuoteDTO struct {
	QuoteID     string                    `json:"quote_id"`
	Route       routeDomain.RouteEstimate `json:"route"`
	Fare        routeDomain.FareQuote     `json:"fare"`
	DepartAt    string                    `json:"depart_at"`
	Approximate bool                      `json:"approximate"`
	Notice      string                    `json:"notice,omitempty"`
}

// RouteQuotesDTO is a route priced for every ride class.
type RouteQuotesDTO struct {
	Route       routeDomain.RouteEstimate `json:"route"`
	Fares       []routeDomain.FareQuote   `json:"fares"`
	DepartAt    string                    `json:"depart_at"`
	Approximate bool                      `json:"approximate"`
	Notice      string                    `json:"notice,omitempty"`
}

// RouteService is the application service for route and fare estimation.
// It keeps no state between calls.
type RouteService struct {
	router    Router
	fallback  *fallback.Provider
	pricing   routeDomain.FareStrategy
	publisher events.QuotePublisher
	logger    *zap.Logger
}

// NewRouteService creates a new RouteService.
func NewRouteService(
	router Router,
	fallbackProvider *fallback.Provider,
	pricing routeDomain.FareStrategy,
	publisher events.QuotePublisher,
	logger *zap.Logger,
) *RouteService {
	if publisher == nil {
		publisher = events.NopQuotePublisher{}
	}
	return &RouteService{
		router:    router,
		fallback:  fallbackProvider,
		pricing:   pricing,
		publisher: publisher,
		logger:    logger,
	}
}

// EstimateRoute returns the route between two resolved locations. Both must
// have coordinates. When routing fails for any reason other than
// cancellation or throttling, a straight-line estimate is returned.
func (s *RouteService) EstimateRoute(
	ctx context.Context,
	origin, destination locationDomain.ResolvedLocation,
	departAt routeDomain.DepartAt,
) (routeDomain.RouteEstimate, error) {
	from, to, err := endpoints(origin, destination)
	if err != nil {
		return routeDomain.RouteEstimate{}, err
	}

	est, err := s.router.Route(ctx, from, to, departAt)
	if err == nil {
		return est, nil
	}

	kind := failure.KindOf(err)
	switch kind {
	case failure.KindCancelled, failure.KindPreconditionFailed, failure.KindRateLimited:
		return routeDomain.RouteEstimate{}, err
	}

	metrics.TrackFallback("route", kind.String())
	s.logger.Warn("routing failed, using straight-line estimate",
		zap.String("kind", kind.String()),
		zap.Error(err),
	)
	return s.fallback.MockRoute(from, to), nil
}

// QuoteFare prices a route for a ride class.
func (s *RouteService) QuoteFare(est routeDomain.RouteEstimate, class routeDomain.RideClass) (routeDomain.FareQuote, error) {
	quote, err := s.pricing.Quote(est, class)
	if err != nil {
		return routeDomain.FareQuote{}, failure.Wrap(failure.KindValidation, "cannot price route", err)
	}
	return quote, nil
}

// ComputeRoute estimates the route and prices it for the requested ride
// class, then announces the quote. The ride class defaults to economy.
func (s *RouteService) ComputeRoute(ctx context.Context, req ComputeRouteRequest) (*RouteQuoteDTO, error) {
	class := routeDomain.RideClassEconomy
	var err error
	if strings.TrimSpace(req.RideClass) != "" {
		class, err = routeDomain.ParseRideClass(req.RideClass)
	}
	if err != nil {
		return nil, failure.NewValidationError(err.Error())
	}
	departAt, err := routeDomain.ParseDepartAt(req.DepartAt)
	if err != nil {
		return nil, failure.NewValidationError(err.Error())
	}

	est, err := s.EstimateRoute(ctx, req.Origin, req.Destination, departAt)
	if err != nil {
		return nil, err
	}
	quote, err := s.QuoteFare(est, class)
	if err != nil {
		return nil, err
	}

	result := &RouteQuoteDTO{
		QuoteID:     uuid.NewString(),
		Route:       est.WithRideClass(class),
		Fare:        quote,
		DepartAt:    departAt.String(),
		Approximate: approximate(est, req.Origin, req.Destination),
	}
	if result.Approximate {
		result.Notice = NoticeApproximate
	}

	s.publishQuote(ctx, result, req.Origin, req.Destination)
	return result, nil
}

// QuoteAll estimates the route once and prices it for every ride class.
func (s *RouteService) QuoteAll(
	ctx context.Context,
	origin, destination locationDomain.ResolvedLocation,
	departAt routeDomain.DepartAt,
) (*RouteQuotesDTO, error) {
	est, err := s.EstimateRoute(ctx, origin, destination, departAt)
	if err != nil {
		return nil, err
	}

	fares := make([]routeDomain.FareQuote, 0, len(routeDomain.AllRideClasses))
	for _, class := range routeDomain.AllRideClasses {
		quote, err := s.QuoteFare(est, class)
		if err != nil {
			return nil, err
		}
		fares = append(fares, quote)
	}

	result := &RouteQuotesDTO{
		Route:       est,
		Fares:       fares,
		DepartAt:    departAt.String(),
		Approximate: approximate(est, origin, destination),
	}
	if result.Approximate {
		result.Notice = NoticeApproximate
	}
	return result, nil
}

func (s *RouteService) publishQuote(ctx context.Context, q *RouteQuoteDTO, origin, destination locationDomain.ResolvedLocation) {
	from, _ := origin.Coordinates()
	to, _ := destination.Coordinates()

	s.publisher.PublishQuote(ctx, events.RouteQuotedEvent{
		QuoteID:         q.QuoteID,
		OriginLat:       from.Lat,
		OriginLng:       from.Lng,
		DestinationLat:  to.Lat,
		DestinationLng:  to.Lng,
		DistanceKm:      q.Route.DistanceKm,
		DurationMinutes: q.Route.DurationMinutes,
		IsApproximate:   q.Approximate,
		RideClass:       q.Fare.RideClass.String(),
		TotalFare:       q.Fare.Total,
		Currency:        q.Fare.Currency,
		DepartAt:        q.DepartAt,
		OccurredAt:      time.Now().UTC(),
	})
}

// endpoints extracts both coordinate pairs or fails before any network call.
func endpoints(origin, destination locationDomain.ResolvedLocation) (locationDomain.Coordinates, locationDomain.Coordinates, error) {
	from, ok := origin.Coordinates()
	if !ok {
		return from, locationDomain.Coordinates{}, failure.NewPreconditionError("origin is not resolved to coordinates")
	}
	to, ok := destination.Coordinates()
	if !ok {
		return from, to, failure.NewPreconditionError("destination is not resolved to coordinates")
	}
	return from, to, nil
}

func approximate(est routeDomain.RouteEstimate, origin, destination locationDomain.ResolvedLocation) bool {
	return est.IsApproximate || origin.SourceIsApproximate() || destination.SourceIsApproximate()
}
