package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"PharmaChat/backend/go/internal/config"
	"PharmaChat/backend/go/internal/database/mongo"
	"PharmaChat/backend/go/internal/pharmacy_service/analytics"
	"PharmaChat/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Databases.Kafka.Brokers) == 0 {
		log.Fatalf("databases.kafka.brokers is required for the analytics service")
	}

	// 2. Initialize Logger
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("PharmacyAnalytics", "", "")
	appLogger.Info("Starting Pharmacy Analytics Service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Dependencies
	var store analytics.EventStore
	if cfg.Databases.MongoDB.Address != "" {
		client, err := mongo.GetClient(ctx, &cfg.Databases.MongoDB)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer mongo.Close(context.Background())
		ms, err := analytics.NewMongoEventStore(ctx, client.Database(cfg.Databases.MongoDB.Database), cfg.Analytics.Collection)
		if err != nil {
			log.Fatalf("Failed to prepare event collection: %v", err)
		}
		store = ms
	} else {
		appLogger.Warn("MongoDB not configured, keeping query events in memory")
		store = analytics.NewMemoryEventStore()
	}

	reader := analytics.NewQueryReader(cfg.Databases.Kafka)
	defer reader.Close()

	// 4. Start Kafka Consumer
	consumer := analytics.NewKafkaConsumer(reader, store, appLogger.WithField("component", "consumer"))
	go func() {
		if err := consumer.Run(ctx); err != nil {
			appLogger.WithField("error", err.Error()).Error("consumer stopped")
		}
	}()

	// 5. Start Gin HTTP Server
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	analytics.RegisterRoutes(router, analytics.NewAPI(store, appLogger))
	server := &http.Server{Addr: cfg.Analytics.Address, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		appLogger.Info(fmt.Sprintf("HTTP server listening at %s", cfg.Analytics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	// 6. Graceful Shutdown
	<-ctx.Done()
	appLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithField("error", err.Error()).Warn("HTTP server shutdown")
	}
	appLogger.Info("Analytics service stopped")
}
