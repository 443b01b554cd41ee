package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8085", cfg.Port)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, 12*time.Second, cfg.GeoConfig.Timeout)
	assert.Equal(t, "rw", cfg.GeoConfig.CountryCodes)
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 10, cfg.RankLimit)
	assert.Equal(t, "location_search_history", cfg.HistoryConfig.Key)
	assert.Equal(t, "./data/location.db", cfg.HistoryConfig.DBPath)
	assert.False(t, cfg.CacheConfig.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.CacheConfig.TTL)
	assert.Empty(t, cfg.KafkaConfig.Brokers)
	assert.False(t, cfg.PublishingEnabled())
	assert.Equal(t, "ride.quotes", cfg.KafkaConfig.QuoteTopic)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("LOCATION_SERVICE_PORT", "9090")
	t.Setenv("LOCATION_GEO_BASE_URL", "http://geo.local/")
	t.Setenv("LOCATION_GEO_RELAY_URL", "https://relay.local/?url=")
	t.Setenv("LOCATION_GEO_TIMEOUT", "3s")
	t.Setenv("LOCATION_CACHE_ENABLED", "true")
	t.Setenv("LOCATION_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := fromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.True(t, cfg.CacheConfig.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaConfig.Brokers)
	assert.True(t, cfg.PublishingEnabled())

	geo := cfg.Geo()
	assert.Equal(t, "http://geo.local", geo.BaseURL)
	assert.Equal(t, "https://relay.local/?url=", geo.RelayURL)
	assert.Equal(t, 3*time.Second, geo.Timeout)
	assert.Equal(t, 1, geo.Retry.MaxAttempts)

	assert.True(t, cfg.Cache().Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("LOCATION_RANK_LIMIT", "0")
	_, err := fromViper(newViper())
	assert.Error(t, err)
}
