//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-location/internal/application"
	"github.com/Kilat-Pet-Delivery/service-location/internal/cache"
	"github.com/Kilat-Pet-Delivery/service-location/internal/database"
	routeDomain "github.com/Kilat-Pet-Delivery/service-location/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-location/internal/events"
	"github.com/Kilat-Pet-Delivery/service-location/internal/fallback"
	"github.com/Kilat-Pet-Delivery/service-location/internal/geocoding"
	"github.com/Kilat-Pet-Delivery/service-location/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	Redis        *redis.Client
	KafkaBrokers []string
	Cleanup      func()
}

// locationStack holds wired-up location service components.
type locationStack struct {
	Locations       *application.LocationService
	Routes          *application.RouteService
	Geo             *geoStub
	CleanupProducer func()
}

// geoStub is an httptest geocoding service with scripted replies per path.
type geoStub struct {
	Server  *httptest.Server
	Hits    atomic.Int64
	Status  atomic.Int64
	Replies map[string]string
}

func newGeoStub(t *testing.T, replies map[string]string) *geoStub {
	t.Helper()
	g := &geoStub{Replies: replies}
	g.Status.Store(http.StatusOK)
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.Hits.Add(1)
		status := int(g.Status.Load())
		body, ok := g.Replies[r.URL.Path]
		if !ok {
			status, body = http.StatusNotFound, `{}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(g.Server.Close)
	return g
}

// setupContainers starts Redis and Kafka testcontainers.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start Redis container with log-based wait strategy.
	redisReq := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: redisReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Redis container")

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: net.JoinHostPort(redisHost, redisPort.Port())})

	// Poll until Redis answers.
	require.Eventually(t, func() bool {
		return client.Ping(ctx).Err() == nil
	}, 30*time.Second, 1*time.Second, "Redis not ready for connections")

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, events.TopicRideQuotes)

	cleanup := func() {
		_ = client.Close()
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	}

	return &testInfra{
		Redis:        client,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// newHistoryRepo opens a SQLite history store in a temp directory.
func newHistoryRepo(t *testing.T) *repository.GormHistoryRepository {
	t.Helper()
	db, err := database.Connect(database.SQLiteConfig{Path: filepath.Join(t.TempDir(), "history.db")}, zap.NewNop())
	require.NoError(t, err, "failed to open history database")
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return repository.NewGormHistoryRepository(db, "")
}

// setupLocationStack wires up the full location service stack against a stub geocoder.
func setupLocationStack(t *testing.T, infra *testInfra, replies map[string]string) *locationStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	geo := newGeoStub(t, replies)
	client := geocoding.NewClient(geocoding.Config{
		BaseURL:      geo.Server.URL,
		Timeout:      5 * time.Second,
		CountryCodes: "rw",
	}, logger)

	suggestionCache := cache.NewWithClient(infra.Redis, time.Minute)
	history := application.NewHistoryService(newHistoryRepo(t), logger)
	provider := fallback.NewProvider()

	producer := events.NewProducer(infra.KafkaBrokers, logger)
	publisher := events.NewKafkaQuotePublisher(producer, events.TopicRideQuotes, logger)

	return &locationStack{
		Locations:       application.NewLocationService(client, provider, suggestionCache, history, 10, logger),
		Routes:          application.NewRouteService(client, provider, routeDomain.NewStandardFareStrategy(), publisher, logger),
		Geo:             geo,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) events.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := events.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
