package application

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-location/internal/cache"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
	locationDomain "github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
	"github.com/Kilat-Pet-Delivery/service-location/internal/fallback"
	"github.com/Kilat-Pet-Delivery/service-location/internal/geocoding"
	"github.com/Kilat-Pet-Delivery/service-location/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-location/internal/ranking"
)

// NoticeApproximate is shown whenever offline data replaced live results.
const NoticeApproximate = "using local/estimated data"

// Geocoder is the part of the geocoding client the location service needs.
type Geocoder interface {
	Suggest(ctx context.Context, query string) ([]locationDomain.Suggestion, error)
	Search(ctx context.Context, query string, opts geocoding.SearchOptions) ([]locationDomain.Suggestion, error)
	Details(ctx context.Context, opaqueKey string) (locationDomain.ResolvedLocation, error)
	Reverse(ctx context.Context, at locationDomain.Coordinates) (locationDomain.ResolvedLocation, error)
}

// SuggestionsDTO is the response representation of a suggestion list.
type SuggestionsDTO struct {
	Query       string                      `json:"query"`
	Suggestions []locationDomain.Suggestion `json:"suggestions"`
	Approximate bool                        `json:"approximate"`
	Notice      string                      `json:"notice,omitempty"`
}

// LocationService is the application service for autocomplete, search and
// location resolution.
type LocationService struct {
	geo       Geocoder
	fallback  *fallback.Provider
	cache     *cache.SuggestionCache
	history   *HistoryService
	rankLimit int
	logger    *zap.Logger
}

// NewLocationService creates a new LocationService.
func NewLocationService(
	geo Geocoder,
	fallbackProvider *fallback.Provider,
	suggestionCache *cache.SuggestionCache,
	history *HistoryService,
	rankLimit int,
	logger *zap.Logger,
) *LocationService {
	if rankLimit <= 0 {
		rankLimit = ranking.DefaultLimit
	}
	return &LocationService{
		geo:       geo,
		fallback:  fallbackProvider,
		cache:     suggestionCache,
		history:   history,
		rankLimit: rankLimit,
		logger:    logger,
	}
}

// History returns the history service backing this location service.
func (s *LocationService) History() *HistoryService {
	return s.history
}

// Suggest returns ranked autocomplete suggestions. An empty query returns
// the search history; coordinate-shaped input is reverse geocoded.
func (s *LocationService) Suggest(ctx context.Context, query string, limit int) (*SuggestionsDTO, error) {
	q := strings.TrimSpace(query)
	limit = s.limit(limit)

	if q == "" {
		history := s.history.Suggestions(ctx)
		if len(history) > limit {
			history = history[:limit]
		}
		return newSuggestionsDTO(q, history), nil
	}
	if utf8.RuneCountInString(q) < geocoding.MinQueryLength {
		return newSuggestionsDTO(q, nil), nil
	}
	if locationDomain.IsCoordinate(q) {
		return s.suggestAt(ctx, q)
	}

	key := s.cache.SuggestKey(q, limit)
	if cached, ok := s.fromCache(ctx, key); ok {
		return newSuggestionsDTO(q, cached), nil
	}

	live, err := s.geo.Suggest(ctx, q)
	if err != nil {
		return s.suggestFailed(q, limit, "suggest", err)
	}

	ranked := ranking.Rank(live, q, limit)
	s.toCache(ctx, key, ranked)
	return newSuggestionsDTO(q, ranked), nil
}

// Search merges autocomplete and full search results for a query and ranks
// them together. Both lookups run concurrently.
func (s *LocationService) Search(ctx context.Context, query string, limit int) (*SuggestionsDTO, error) {
	q := strings.TrimSpace(query)
	limit = s.limit(limit)

	if utf8.RuneCountInString(q) < geocoding.MinQueryLength {
		return newSuggestionsDTO(q, nil), nil
	}

	key := s.cache.SearchKey(q, limit)
	if cached, ok := s.fromCache(ctx, key); ok {
		return newSuggestionsDTO(q, cached), nil
	}

	var (
		wg                  sync.WaitGroup
		suggested, found    []locationDomain.Suggestion
		suggestErr, findErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		suggested, suggestErr = s.geo.Suggest(ctx, q)
	}()
	go func() {
		defer wg.Done()
		found, findErr = s.geo.Search(ctx, q, geocoding.SearchOptions{Limit: limit})
	}()
	wg.Wait()

	switch {
	case failure.IsCancelled(suggestErr):
		return nil, suggestErr
	case failure.IsCancelled(findErr):
		return nil, findErr
	case suggestErr != nil && findErr != nil:
		err := suggestErr
		if !failure.KindOf(err).Degraded() && failure.KindOf(findErr).Degraded() {
			err = findErr
		}
		return s.suggestFailed(q, limit, "search", err)
	case suggestErr != nil:
		s.logger.Debug("suggest half of search failed", zap.Error(suggestErr))
	case findErr != nil:
		s.logger.Debug("search half of search failed", zap.Error(findErr))
	}

	ranked := ranking.Rank(ranking.Merge(suggested, found), q, limit)
	s.toCache(ctx, key, ranked)
	return newSuggestionsDTO(q, ranked), nil
}

// Resolve turns a selection into a resolved location. The opaque key is
// authoritative, then coordinates, then text. Live resolutions with
// coordinates are recorded in the search history.
func (s *LocationService) Resolve(ctx context.Context, sel locationDomain.Selection) (locationDomain.ResolvedLocation, error) {
	var (
		loc locationDomain.ResolvedLocation
		err error
	)

	switch sel.Kind() {
	case locationDomain.SelectByOpaqueKey:
		if fallback.IsFallbackID(sel.OpaqueKey) {
			return s.resolveFallbackID(sel.OpaqueKey)
		}
		loc, err = s.geo.Details(ctx, sel.OpaqueKey)
	case locationDomain.SelectByCoordinates:
		loc, err = s.resolveCoordinates(ctx, sel)
	case locationDomain.SelectByText:
		loc, err = s.resolveText(ctx, sel.Text)
	default:
		return locationDomain.ResolvedLocation{}, failure.NewValidationError("selection needs an opaque key, coordinates or text")
	}

	if err != nil {
		kind := failure.KindOf(err)
		if !kind.Degraded() {
			return locationDomain.ResolvedLocation{}, err
		}
		loc, err = s.resolveOffline(sel, err)
		if err != nil {
			return locationDomain.ResolvedLocation{}, err
		}
	}

	// Offline results are never remembered.
	if loc.HasCoordinates() && !loc.SourceIsApproximate() {
		if err := s.history.Record(ctx, loc); err != nil {
			s.logger.Warn("failed to record search history", zap.Error(err))
		}
	}
	return loc, nil
}

// resolveFallbackID serves an offline suggestion the caller picked by id.
func (s *LocationService) resolveFallbackID(id string) (locationDomain.ResolvedLocation, error) {
	loc := s.fallback.MockLocationDetails(id)
	if !loc.HasCoordinates() {
		return locationDomain.ResolvedLocation{}, failure.New(failure.KindNotFound, loc.Error())
	}
	return loc, nil
}

func (s *LocationService) resolveCoordinates(ctx context.Context, sel locationDomain.Selection) (locationDomain.ResolvedLocation, error) {
	point, ok := sel.Point()
	if !ok || !point.Valid() {
		return locationDomain.ResolvedLocation{}, failure.NewValidationError("coordinates out of range")
	}

	loc, err := s.geo.Reverse(ctx, point)
	if failure.Is(err, failure.KindNotFound) {
		// No address for the point; the caller's own coordinates still stand.
		return locationDomain.NewResolvedLocation(locationDomain.ResolvedFields{
			Name:        selectionName(sel, point),
			Coordinates: &point,
		}), nil
	}
	return loc, err
}

func (s *LocationService) resolveText(ctx context.Context, text string) (locationDomain.ResolvedLocation, error) {
	results, err := s.geo.Search(ctx, text, geocoding.SearchOptions{Limit: 1})
	if err != nil {
		return locationDomain.ResolvedLocation{}, err
	}
	if len(results) == 0 {
		return locationDomain.ResolvedLocation{}, failure.New(failure.KindNotFound, "no place matches "+strings.TrimSpace(text))
	}

	best := results[0]
	if best.Coordinates == nil && best.OpaqueKey != "" {
		return s.geo.Details(ctx, best.OpaqueKey)
	}
	return locationDomain.NewResolvedLocation(locationDomain.ResolvedFields{
		Name:        best.Text,
		Address:     best.Address,
		City:        best.City,
		Country:     best.Country,
		Coordinates: best.Coordinates,
		OpaqueKey:   best.OpaqueKey,
	}), nil
}

// resolveOffline serves a selection while the service is degraded. Only the
// caller's own coordinates survive, flagged approximate; any other
// selection fails with the degraded kind.
func (s *LocationService) resolveOffline(sel locationDomain.Selection, cause error) (locationDomain.ResolvedLocation, error) {
	point, ok := sel.Point()
	if !ok || !point.Valid() {
		return locationDomain.ResolvedLocation{}, cause
	}

	metrics.TrackFallback("resolve", failure.KindOf(cause).String())
	return locationDomain.NewResolvedLocation(locationDomain.ResolvedFields{
		Name:        selectionName(sel, point),
		Coordinates: &point,
		Approximate: true,
	}), nil
}

func (s *LocationService) suggestAt(ctx context.Context, q string) (*SuggestionsDTO, error) {
	point, err := locationDomain.ParseCoordinates(q)
	if err != nil {
		return nil, failure.NewValidationError(err.Error())
	}

	loc, err := s.geo.Reverse(ctx, point)
	if err != nil {
		kind := failure.KindOf(err)
		switch {
		case kind == failure.KindNotFound:
			return newSuggestionsDTO(q, []locationDomain.Suggestion{pointSuggestion(point, false)}), nil
		case kind.Degraded():
			metrics.TrackFallback("reverse", kind.String())
			return newSuggestionsDTO(q, []locationDomain.Suggestion{pointSuggestion(point, true)}), nil
		default:
			return nil, err
		}
	}

	coords, ok := loc.Coordinates()
	if !ok {
		coords = point
	}
	return newSuggestionsDTO(q, []locationDomain.Suggestion{{
		ID:          "reverse-" + point.String(),
		Text:        loc.Name(),
		Address:     loc.Address(),
		City:        loc.City(),
		Country:     loc.Country(),
		Type:        "coordinates",
		OpaqueKey:   loc.OpaqueKey(),
		Coordinates: &coords,
		Origin:      locationDomain.OriginLive,
	}}), nil
}

// suggestFailed turns a lookup failure into the response the UI sees.
// NotFound is an empty list; a degraded service gets offline suggestions.
func (s *LocationService) suggestFailed(q string, limit int, component string, err error) (*SuggestionsDTO, error) {
	kind := failure.KindOf(err)
	switch {
	case kind == failure.KindNotFound:
		return newSuggestionsDTO(q, nil), nil
	case kind.Degraded():
		metrics.TrackFallback(component, kind.String())
		offline := ranking.Rank(s.fallback.MockSuggestions(q), q, limit)
		return newSuggestionsDTO(q, offline), nil
	default:
		return nil, err
	}
}

func (s *LocationService) fromCache(ctx context.Context, key string) ([]locationDomain.Suggestion, bool) {
	cached, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("suggestion cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return cached, found
}

func (s *LocationService) toCache(ctx context.Context, key string, suggestions []locationDomain.Suggestion) {
	if err := s.cache.Set(ctx, key, suggestions); err != nil {
		s.logger.Warn("suggestion cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *LocationService) limit(limit int) int {
	if limit <= 0 || limit > s.rankLimit {
		return s.rankLimit
	}
	return limit
}

func newSuggestionsDTO(q string, suggestions []locationDomain.Suggestion) *SuggestionsDTO {
	if suggestions == nil {
		suggestions = []locationDomain.Suggestion{}
	}
	dto := &SuggestionsDTO{
		Query:       q,
		Suggestions: suggestions,
		Approximate: locationDomain.AnyApproximate(suggestions),
	}
	if dto.Approximate {
		dto.Notice = NoticeApproximate
	}
	return dto
}

func pointSuggestion(point locationDomain.Coordinates, approximate bool) locationDomain.Suggestion {
	origin := locationDomain.OriginLive
	if approximate {
		origin = locationDomain.OriginFallback
	}
	return locationDomain.Suggestion{
		ID:            "point-" + point.String(),
		Text:          point.String(),
		Type:          "coordinates",
		Coordinates:   &point,
		IsApproximate: approximate,
		Origin:        origin,
	}
}

func selectionName(sel locationDomain.Selection, point locationDomain.Coordinates) string {
	if text := strings.TrimSpace(sel.Text); text != "" && !locationDomain.IsCoordinate(text) {
		return text
	}
	return point.String()
}
