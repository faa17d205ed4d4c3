package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PharmaChat/backend/go/internal/config"
	"PharmaChat/backend/go/internal/discovery/etcd"
	"PharmaChat/backend/go/internal/pharmacy_service/app"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/loaders"
	"PharmaChat/backend/go/internal/pharmacy_service/service"
	"PharmaChat/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", envOr("PHARMACY_CONFIG", "config/config.yaml"), "path to the YAML config file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	appLogger := logger.New("PharmacyService", "", "")
	appLogger.WithField("config", *configPath).Info("Starting Pharmacy Service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Dependencies
	application, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			appLogger.WithField("error", err.Error()).Warn("close resources")
		}
	}()

	// 4. Initial catalog load and source watching
	if cfg.Pharmacy.RefreshOnStart && cfg.Pharmacy.SheetURL != "" {
		go func() {
			status := application.Ingestion.Refresh(ctx)
			appLogger.WithField("status", status).Info("initial catalog refresh finished")
		}()
	}
	if path := loaders.LocalPath(cfg.Pharmacy.SheetURL); cfg.Pharmacy.WatchSource && path != "" {
		go func() {
			debounce := config.Duration(cfg.Pharmacy.WatchDebounce, 2*time.Second)
			onChange := func() {
				status := application.Ingestion.Refresh(ctx)
				appLogger.WithField("status", status).Info("catalog file changed, refreshed")
			}
			if err := service.WatchSource(ctx, path, debounce, onChange, appLogger.WithField("component", "watcher")); err != nil {
				appLogger.WithField("error", err.Error()).Error("source watcher stopped")
			}
		}()
	}

	// 5. Start Gin HTTP Server
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info(fmt.Sprintf("HTTP server listening at %s", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 6. Register in etcd
	if ec := cfg.Databases.Etcd; len(ec.Endpoints) > 0 {
		sd, err := etcd.NewServiceDiscovery(ec)
		if err != nil {
			log.Fatalf("Failed to connect to etcd: %v", err)
		}
		defer sd.Close()
		deregister, err := sd.Register(ctx, cfg.App.Name, advertiseAddr(cfg.Server.Address), ec.LeaseTTL)
		if err != nil {
			log.Fatalf("Failed to register service: %v", err)
		}
		defer deregister()
	}

	// 7. Graceful Shutdown
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		appLogger.WithField("error", err.Error()).Error("HTTP server failed")
	}
	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithField("error", err.Error()).Warn("HTTP server shutdown")
	}
	appLogger.Info("Server gracefully stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// advertiseAddr 把 ":8080" 这类只有端口的监听地址补全为主机名。
func advertiseAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil || host != "" {
		return listen
	}
	if h, err := os.Hostname(); err == nil {
		host = h
	}
	return net.JoinHostPort(host, port)
}
