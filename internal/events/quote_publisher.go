package events

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// SourceLocationService identifies this service as an event source.
	SourceLocationService = "service-location"

	// RouteQuoted is emitted whenever a fare is quoted for a route.
	RouteQuoted = "location.route.quoted"

	// TopicRideQuotes is the default topic for quote events.
	TopicRideQuotes = "ride.quotes"
)

// RouteQuotedEvent describes a fare quoted to the booking UI.
type RouteQuotedEvent struct {
	QuoteID         string    `json:"quote_id"`
	OriginLat       float64   `json:"origin_lat"`
	OriginLng       float64   `json:"origin_lng"`
	DestinationLat  float64   `json:"destination_lat"`
	DestinationLng  float64   `json:"destination_lng"`
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes int       `json:"duration_minutes"`
	IsApproximate   bool      `json:"is_approximate"`
	RideClass       string    `json:"ride_class"`
	TotalFare       int64     `json:"total_fare"`
	Currency        string    `json:"currency"`
	DepartAt        string    `json:"depart_at"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// QuotePublisher announces quoted fares. Publishing never fails the quote.
type QuotePublisher interface {
	PublishQuote(ctx context.Context, evt RouteQuotedEvent)
}

// KafkaQuotePublisher publishes quotes as CloudEvents.
type KafkaQuotePublisher struct {
	producer *Producer
	topic    string
	logger   *zap.Logger
}

// NewKafkaQuotePublisher creates a new KafkaQuotePublisher.
func NewKafkaQuotePublisher(producer *Producer, topic string, logger *zap.Logger) *KafkaQuotePublisher {
	if topic == "" {
		topic = TopicRideQuotes
	}
	return &KafkaQuotePublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// PublishQuote publishes the event, logging failures.
func (p *KafkaQuotePublisher) PublishQuote(ctx context.Context, evt RouteQuotedEvent) {
	cloudEvent, err := NewCloudEvent(SourceLocationService, RouteQuoted, evt)
	if err != nil {
		p.logger.Error("failed to create cloud event",
			zap.String("event_type", RouteQuoted),
			zap.Error(err),
		)
		return
	}

	if err := p.producer.PublishEvent(ctx, p.topic, evt.QuoteID, cloudEvent); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", p.topic),
			zap.String("event_type", RouteQuoted),
			zap.Error(err),
		)
	}
}

// NopQuotePublisher drops every quote. It is used when no brokers are configured.
type NopQuotePublisher struct{}

// PublishQuote does nothing.
func (NopQuotePublisher) PublishQuote(context.Context, RouteQuotedEvent) {}
