package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Kilat-Pet-Delivery/service-location/internal/domain/location"
	"github.com/Kilat-Pet-Delivery/service-location/internal/metrics"
)

// DefaultTTL is used when the config leaves the TTL unset.
const DefaultTTL = 10 * time.Minute

// Config holds the Redis connection settings.
type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// SuggestionCache stores authoritative suggestion lists in Redis. A disabled
// cache misses every lookup and drops every write.
type SuggestionCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
}

// New creates a SuggestionCache from config.
func New(cfg Config) *SuggestionCache {
	if !cfg.Enabled {
		return &SuggestionCache{enabled: false}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, cfg.TTL)
}

// NewWithClient creates an enabled SuggestionCache over an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *SuggestionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SuggestionCache{
		client:  client,
		ttl:     ttl,
		enabled: true,
	}
}

// Enabled reports whether the cache is backed by Redis.
func (c *SuggestionCache) Enabled() bool {
	return c.enabled
}

// Get loads the suggestions stored under key.
func (c *SuggestionCache) Get(ctx context.Context, key string) ([]location.Suggestion, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}

	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		metrics.TrackCacheLookup(false)
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to read suggestion cache: %w", err)
	}

	var out []location.Suggestion
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached suggestions: %w", err)
	}
	metrics.TrackCacheLookup(true)
	return out, true, nil
}

// Set stores suggestions under key. Lists containing offline data are never
// stored.
func (c *SuggestionCache) Set(ctx context.Context, key string, suggestions []location.Suggestion) error {
	if !c.enabled || location.AnyApproximate(suggestions) {
		return nil
	}

	data, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions for cache: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write suggestion cache: %w", err)
	}
	return nil
}

// Ping checks the Redis connection. A disabled cache is always healthy.
func (c *SuggestionCache) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// SuggestKey builds the key for an autocomplete query.
func (c *SuggestionCache) SuggestKey(query string, limit int) string {
	return fmt.Sprintf("suggest:%d:%s", limit, location.NormalizeText(query))
}

// SearchKey builds the key for a merged search query.
func (c *SuggestionCache) SearchKey(query string, limit int) string {
	return fmt.Sprintf("search:%d:%s", limit, location.NormalizeText(query))
}

// Close closes the Redis connection.
func (c *SuggestionCache) Close() error {
	if c.enabled {
		return c.client.Close()
	}
	return nil
}
