package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Kilat-Pet-Delivery/service-location/internal/cache"
	"github.com/Kilat-Pet-Delivery/service-location/internal/events"
	"github.com/Kilat-Pet-Delivery/service-location/internal/geocoding"
	"github.com/Kilat-Pet-Delivery/service-location/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-location/internal/suggest"
)

// EnvPrefix is prepended to every environment variable the service reads.
const EnvPrefix = "LOCATION"

// GeoConfig configures the upstream geocoding and routing service.
type GeoConfig struct {
	BaseURL      string
	RelayURL     string
	Timeout      time.Duration
	CountryCodes string
}

// HistoryConfig locates the search history database.
type HistoryConfig struct {
	DBPath string
	Key    string
}

// CacheConfig configures the redis suggestion cache.
type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig configures quote event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	QuoteTopic string
}

// ServiceConfig holds all configuration for the location service.
type ServiceConfig struct {
	Port                  string
	AppEnv                string
	GeoConfig             GeoConfig
	HistoryConfig         HistoryConfig
	CacheConfig           CacheConfig
	KafkaConfig           KafkaConfig
	Debounce              time.Duration
	RankLimit             int
	MaxConcurrentRequests int
}

// Load reads configuration from environment variables, after loading a
// .env file when one exists.
func Load() (*ServiceConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", ":8085")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("GEO_BASE_URL", "https://geoservice-e7rc.onrender.com")
	v.SetDefault("GEO_RELAY_URL", "")
	v.SetDefault("GEO_TIMEOUT", geocoding.DefaultTimeout)
	v.SetDefault("GEO_COUNTRY_CODES", "rw")
	v.SetDefault("DEBOUNCE", suggest.DefaultDebounce)
	v.SetDefault("RANK_LIMIT", 10)
	v.SetDefault("HISTORY_DB_PATH", "./data/location.db")
	v.SetDefault("HISTORY_KEY", repository.DefaultHistoryKey)
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", cache.DefaultTTL)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_QUOTE_TOPIC", events.TopicRideQuotes)
	v.SetDefault("MAX_CONCURRENT_REQUESTS", 200)
	return v
}

func fromViper(v *viper.Viper) (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		Port:   normalizePort(v.GetString("SERVICE_PORT")),
		AppEnv: v.GetString("APP_ENV"),
		GeoConfig: GeoConfig{
			BaseURL:      strings.TrimRight(v.GetString("GEO_BASE_URL"), "/"),
			RelayURL:     v.GetString("GEO_RELAY_URL"),
			Timeout:      v.GetDuration("GEO_TIMEOUT"),
			CountryCodes: v.GetString("GEO_COUNTRY_CODES"),
		},
		HistoryConfig: HistoryConfig{
			DBPath: v.GetString("HISTORY_DB_PATH"),
			Key:    v.GetString("HISTORY_KEY"),
		},
		CacheConfig: CacheConfig{
			Enabled:  v.GetBool("CACHE_ENABLED"),
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("CACHE_TTL"),
		},
		KafkaConfig: KafkaConfig{
			Brokers:    splitList(v.GetString("KAFKA_BROKERS")),
			QuoteTopic: v.GetString("KAFKA_QUOTE_TOPIC"),
		},
		Debounce:              v.GetDuration("DEBOUNCE"),
		RankLimit:             v.GetInt("RANK_LIMIT"),
		MaxConcurrentRequests: v.GetInt("MAX_CONCURRENT_REQUESTS"),
	}

	if cfg.GeoConfig.BaseURL == "" {
		return nil, errors.New("GEO_BASE_URL is required")
	}
	if cfg.GeoConfig.Timeout <= 0 {
		return nil, fmt.Errorf("GEO_TIMEOUT must be positive, got %s", cfg.GeoConfig.Timeout)
	}
	if cfg.HistoryConfig.DBPath == "" {
		return nil, errors.New("HISTORY_DB_PATH is required")
	}
	if cfg.RankLimit <= 0 {
		return nil, fmt.Errorf("RANK_LIMIT must be positive, got %d", cfg.RankLimit)
	}
	if cfg.MaxConcurrentRequests <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_REQUESTS must be positive, got %d", cfg.MaxConcurrentRequests)
	}
	return cfg, nil
}

// Geo returns the configuration handed to the geocoding client.
func (c *ServiceConfig) Geo() geocoding.Config {
	return geocoding.Config{
		BaseURL:      c.GeoConfig.BaseURL,
		RelayURL:     c.GeoConfig.RelayURL,
		Timeout:      c.GeoConfig.Timeout,
		CountryCodes: c.GeoConfig.CountryCodes,
		Retry:        geocoding.DefaultRetryPolicy(),
	}
}

// Cache returns the configuration handed to the suggestion cache.
func (c *ServiceConfig) Cache() cache.Config {
	return cache.Config{
		Enabled:  c.CacheConfig.Enabled,
		Addr:     c.CacheConfig.Addr,
		Password: c.CacheConfig.Password,
		DB:       c.CacheConfig.DB,
		TTL:      c.CacheConfig.TTL,
	}
}

// PublishingEnabled reports whether quote events go to kafka.
func (c *ServiceConfig) PublishingEnabled() bool {
	return len(c.KafkaConfig.Brokers) > 0
}

func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
