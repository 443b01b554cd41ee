package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts inbound HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration observes inbound HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RequestsInFlight is the number of requests being served.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// GeocoderRequestsTotal counts outbound calls to the geocoding service.
	GeocoderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocoder_requests_total",
			Help: "Total number of requests to the geocoding service",
		},
		[]string{"endpoint", "outcome", "relayed"},
	)

	// GeocoderRequestDuration observes outbound call latency.
	GeocoderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geocoder_request_duration_seconds",
			Help:    "Geocoding service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// FallbackSubstitutionsTotal counts responses served from offline data.
	FallbackSubstitutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_substitutions_total",
			Help: "Total number of times offline data replaced a live response",
		},
		[]string{"component", "kind"},
	)

	// SuggestionCacheTotal counts suggestion cache lookups.
	SuggestionCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestion_cache_lookups_total",
			Help: "Total number of suggestion cache lookups",
		},
		[]string{"result"},
	)

	// LiveSessions is the number of open websocket field sessions.
	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_sessions",
			Help: "Current number of open live suggestion sessions",
		},
	)
)

// TrackGeocoderRequest records one outbound call to the geocoding service.
func TrackGeocoderRequest(endpoint, outcome string, relayed bool, duration time.Duration) {
	GeocoderRequestsTotal.WithLabelValues(endpoint, outcome, strconv.FormatBool(relayed)).Inc()
	GeocoderRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// TrackFallback records a fallback substitution.
func TrackFallback(component, kind string) {
	FallbackSubstitutionsTotal.WithLabelValues(component, kind).Inc()
}

// TrackCacheLookup records a cache hit or miss.
func TrackCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SuggestionCacheTotal.WithLabelValues(result).Inc()
}
