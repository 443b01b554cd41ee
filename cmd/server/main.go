package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/easonlin404/limit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-location/internal/application"
	"github.com/Kilat-Pet-Delivery/service-location/internal/cache"
	"github.com/Kilat-Pet-Delivery/service-location/internal/config"
	"github.com/Kilat-Pet-Delivery/service-location/internal/database"
	routeDomain "github.com/Kilat-Pet-Delivery/service-location/internal/domain/route"
	"github.com/Kilat-Pet-Delivery/service-location/internal/events"
	"github.com/Kilat-Pet-Delivery/service-location/internal/fallback"
	"github.com/Kilat-Pet-Delivery/service-location/internal/geocoding"
	"github.com/Kilat-Pet-Delivery/service-location/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-location/internal/health"
	"github.com/Kilat-Pet-Delivery/service-location/internal/logger"
	"github.com/Kilat-Pet-Delivery/service-location/internal/middleware"
	"github.com/Kilat-Pet-Delivery/service-location/internal/repository"
)

const serviceName = "service-location"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-location",
		zap.String("port", cfg.Port),
		zap.String("geo_base_url", cfg.GeoConfig.BaseURL),
		zap.Bool("relay_configured", cfg.GeoConfig.RelayURL != ""),
	)

	// Initialize geocoding client
	geoClient := geocoding.NewClient(cfg.Geo(), log.Named("geocoding"))

	// Initialize suggestion cache
	suggestionCache := cache.New(cfg.Cache())
	defer func() { _ = suggestionCache.Close() }()
	if suggestionCache.Enabled() {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := suggestionCache.Ping(pingCtx); err != nil {
			log.Warn("suggestion cache unreachable, lookups will miss", zap.Error(err))
		}
		pingCancel()
	}

	// Initialize quote publisher
	var quotePublisher events.QuotePublisher = events.NopQuotePublisher{}
	if cfg.PublishingEnabled() {
		kafkaProducer := events.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		quotePublisher = events.NewKafkaQuotePublisher(kafkaProducer, cfg.KafkaConfig.QuoteTopic, log)
	} else {
		log.Info("no kafka brokers configured, quote events disabled")
	}

	// Connect to database
	db, err := database.Connect(database.SQLiteConfig{Path: cfg.HistoryConfig.DBPath}, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	// Run database migrations
	if err := repository.AutoMigrate(db); err != nil {
		log.Fatal("failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	historyRepo := repository.NewGormHistoryRepository(db, cfg.HistoryConfig.Key)

	// Initialize application services
	fallbackProvider := fallback.NewProvider()
	historyService := application.NewHistoryService(historyRepo, log)
	locationService := application.NewLocationService(
		geoClient,
		fallbackProvider,
		suggestionCache,
		historyService,
		cfg.RankLimit,
		log,
	)
	routeService := application.NewRouteService(
		geoClient,
		fallbackProvider,
		routeDomain.NewStandardFareStrategy(),
		quotePublisher,
		log,
	)

	// Initialize HTTP handlers
	locationHandler := handler.NewLocationHandler(locationService)
	routeHandler := handler.NewRouteHandler(routeService)
	liveHandler := handler.NewLiveHandler(locationService, cfg.Debounce, cfg.RankLimit, log.Named("live"))

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.PrometheusMiddleware())
	router.Use(limit.Limit(cfg.MaxConcurrentRequests))

	// Register health check routes
	healthHandler := health.NewHandler(serviceName,
		health.Check{Name: "geocoder", Probe: geoClient.HealthCheck},
		health.Check{Name: "cache", Probe: suggestionCache.Ping},
		health.Check{Name: "database", Critical: true, Probe: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
	)
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Register routes
	locationHandler.RegisterRoutes(&router.RouterGroup)
	routeHandler.RegisterRoutes(&router.RouterGroup)
	liveHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-location...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-location stopped")
}
