package geocoding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/failure"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-location/internal/metrics"
)

// Endpoint names used in logs and metrics.
const (
	EndpointSuggest = "suggest"
	EndpointSearch  = "search"
	EndpointDetails = "details"
	EndpointReverse = "reverse"
	EndpointRoute   = "route"
	EndpointHealth  = "health"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// SearchOptions narrows a full search.
type SearchOptions struct {
	Limit        int
	CountryCodes string
}

// Client talks to the remote geocoding and routing service.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a new Client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg.withDefaults(),
		http:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger: logger,
	}
}

// Suggest returns autocomplete suggestions for a partial query. Queries
// shorter than MinQueryLength return an empty list without a network call.
func (c *Client) Suggest(ctx context.Context, query string) ([]location.Suggestion, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []location.Suggestion{}, nil
	}

	q := url.Values{}
	q.Set("q", query)
	body, err := c.get(ctx, EndpointSuggest, "/placename/suggest", q)
	if err != nil {
		return nil, err
	}

	suggestions, shape, err := decodeSuggestions(body)
	if err != nil {
		c.logMalformed(EndpointSuggest, body, err)
		return nil, err
	}
	c.logger.Debug("suggestions decoded",
		zap.String("shape", shape),
		zap.Int("count", len(suggestions)),
	)
	return suggestions, nil
}

// Search runs a full place search.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]location.Suggestion, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []location.Suggestion{}, nil
	}

	q := url.Values{}
	q.Set("q", query)
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	countries := opts.CountryCodes
	if countries == "" {
		countries = c.cfg.CountryCodes
	}
	if countries != "" {
		q.Set("countrycodes", countries)
	}

	body, err := c.get(ctx, EndpointSearch, "/placename/search", q)
	if err != nil {
		return nil, err
	}

	results, _, err := decodeSuggestions(body)
	if err != nil {
		c.logMalformed(EndpointSearch, body, err)
		return nil, err
	}
	return results, nil
}

// Details fetches the authoritative record behind an opaque key. When the
// service omits coordinates the record has none and carries an error.
func (c *Client) Details(ctx context.Context, opaqueKey string) (location.ResolvedLocation, error) {
	if strings.TrimSpace(opaqueKey) == "" {
		return location.ResolvedLocation{}, failure.NewValidationError("opaque key is required")
	}

	q := url.Values{}
	q.Set("magicKey", opaqueKey)
	body, err := c.get(ctx, EndpointDetails, "/placename/details", q)
	if err != nil {
		return location.ResolvedLocation{}, err
	}

	place, _, err := decodePlace(body)
	if err != nil {
		if failure.Is(err, failure.KindMalformedResponse) {
			c.logMalformed(EndpointDetails, body, err)
		}
		return location.ResolvedLocation{}, err
	}
	return place.resolved(opaqueKey), nil
}

// Reverse looks up the place at the given coordinates. The queried point is
// kept when the service does not echo one back.
func (c *Client) Reverse(ctx context.Context, at location.Coordinates) (location.ResolvedLocation, error) {
	if !at.Valid() {
		return location.ResolvedLocation{}, failure.NewValidationError("coordinates out of range")
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(at.Lng, 'f', -1, 64))
	body, err := c.get(ctx, EndpointReverse, "/placename/reverse", q)
	if err != nil {
		return location.ResolvedLocation{}, err
	}

	place, _, err := decodePlace(body)
	if err != nil {
		if failure.Is(err, failure.KindMalformedResponse) {
			c.logMalformed(EndpointReverse, body, err)
		}
		return location.ResolvedLocation{}, err
	}

	f := place.resolved("").Fields()
	if f.Coordinates == nil {
		f.Coordinates = &at
		f.Error = ""
	}
	if f.Name == "" {
		f.Name = at.String()
	}
	return location.NewResolvedLocation(f), nil
}

// Route asks the routing service for a route between two points.
func (c *Client) Route(ctx context.Context, from, to location.Coordinates, departAt route.DepartAt) (route.RouteEstimate, error) {
	q := url.Values{}
	q.Set("stops", fmt.Sprintf("%s;%s", from.String(), to.String()))
	q.Set("startTime", departAt.String())

	body, err := c.get(ctx, EndpointRoute, "/route/find", q)
	if err != nil {
		return route.RouteEstimate{}, err
	}

	summary, shape, err := decodeRoute(body)
	if err != nil {
		if failure.Is(err, failure.KindMalformedResponse) {
			c.logMalformed(EndpointRoute, body, err)
		}
		return route.RouteEstimate{}, err
	}
	c.logger.Debug("route decoded",
		zap.String("shape", shape),
		zap.Float64("distance_km", summary.distanceKm),
		zap.Int("path_points", len(summary.path)),
	)
	return summary.estimate(from, to)
}

// HealthCheck reports whether the service answers its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.get(ctx, EndpointHealth, "/health", nil)
	return err
}

// get performs a GET against the service and, when the retry policy allows
// it, once more through the relay.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	target := c.cfg.BaseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	start := time.Now()
	body, err := c.do(ctx, target)
	metrics.TrackGeocoderRequest(endpoint, outcomeOf(err), false, time.Since(start))

	for retries := 0; err != nil && c.cfg.RelayURL != "" && c.cfg.Retry.Allows(retries, failure.KindOf(err)); retries++ {
		c.logger.Warn("retrying geocoder request through relay",
			zap.String("endpoint", endpoint),
			zap.String("kind", failure.KindOf(err).String()),
			zap.Error(err),
		)
		start = time.Now()
		body, err = c.do(ctx, relayURL(c.cfg.RelayURL, target))
		metrics.TrackGeocoderRequest(endpoint, outcomeOf(err), true, time.Since(start))
	}

	if err != nil {
		if failure.IsCancelled(err) {
			c.logger.Debug("geocoder request cancelled", zap.String("endpoint", endpoint))
		} else {
			c.logger.Warn("geocoder request failed",
				zap.String("endpoint", endpoint),
				zap.String("kind", failure.KindOf(err).String()),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, failure.Wrap(failure.KindValidation, "invalid request URL", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportFailure(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusFailure(resp.StatusCode)
	}
	return body, nil
}

// transportFailure classifies a request that produced no usable response.
// Cancellation of the caller's context is Cancelled; any timeout is
// ServiceUnavailable; everything else is NetworkUnreachable.
func transportFailure(parent context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return failure.Wrap(failure.KindCancelled, "request cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failure.Wrap(failure.KindServiceUnavailable, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failure.Wrap(failure.KindServiceUnavailable, "request timed out", err)
	}
	return failure.Wrap(failure.KindNetworkUnreachable, "service unreachable", err)
}

// statusFailure maps a non-2xx status onto a failure kind.
func statusFailure(status int) error {
	msg := fmt.Sprintf("service returned status %d", status)
	switch {
	case status == http.StatusNotFound:
		return failure.New(failure.KindNotFound, msg)
	case status == http.StatusTooManyRequests:
		return failure.New(failure.KindRateLimited, msg)
	case status == http.StatusRequestTimeout, status >= 500:
		return failure.New(failure.KindServiceUnavailable, msg)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return failure.New(failure.KindServiceUnavailable, msg)
	case status >= 400:
		return failure.New(failure.KindNotFound, msg)
	default:
		return failure.New(failure.KindMalformedResponse, msg)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return failure.KindOf(err).String()
}

func (c *Client) logMalformed(endpoint string, body []byte, err error) {
	c.logger.Warn("malformed geocoder response",
		zap.String("endpoint", endpoint),
		zap.String("shape", shapeOf(body)),
		zap.Error(err),
	)
}
