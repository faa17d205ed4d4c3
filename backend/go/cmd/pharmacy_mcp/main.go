package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"PharmaChat/backend/go/internal/config"
	"PharmaChat/backend/go/internal/mcp"
	"PharmaChat/backend/go/internal/pharmacy_service/app"
	"PharmaChat/backend/go/pkg/logger"

	"github.com/mark3labs/mcp-go/server"
)

// STDIO transport (default)
//go run main.go -config=config/config.yaml
//
// SSE transport
//go run main.go -transport=sse -addr=:8090
//
// StreamableHTTP transport
//go run main.go -transport=httpstream -addr=:8090

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	transport := flag.String("transport", "", "Transport method: stdio, sse, or httpstream (default from config)")
	addr := flag.String("addr", "", "Listen address for HTTP-based transports (default from config)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *transport == "" {
		*transport = cfg.MCP.Transport
	}
	if *addr == "" {
		*addr = cfg.MCP.Address
	}

	// stdout 属于 stdio 传输，日志写到 stderr
	logger.InitWithOutput(logger.ParseLevel(cfg.Logger.Level), os.Stderr)
	appLogger := logger.New("PharmacyMCP", "", "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}
	defer application.Close()

	if cfg.Pharmacy.RefreshOnStart && cfg.Pharmacy.SheetURL != "" {
		appLogger.WithField("status", application.Ingestion.Refresh(ctx)).Info("initial catalog refresh finished")
	}

	s := server.NewMCPServer(
		"PharmacyAssistant",
		cfg.App.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	mcp.NewTools(application.Search, application.Ingestion).Register(s)

	switch *transport {
	case "sse":
		log.Printf("Starting pharmacy MCP server with SSE transport on %s", *addr)
		sseServer := server.NewSSEServer(s)
		go func() {
			<-ctx.Done()
			sseServer.Shutdown(context.Background())
		}()
		if err := sseServer.Start(*addr); err != nil {
			log.Printf("SSE server stopped: %v", err)
		}
	case "httpstream":
		log.Printf("Starting pharmacy MCP server with StreamableHTTP transport on %s", *addr)
		httpServer := server.NewStreamableHTTPServer(s)
		go func() {
			<-ctx.Done()
			httpServer.Shutdown(context.Background())
		}()
		if err := httpServer.Start(*addr); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	case "stdio":
		log.Println("Starting pharmacy MCP server with STDIO transport")
		if err := server.ServeStdio(s); err != nil {
			log.Printf("STDIO server stopped: %v", err)
		}
	default:
		log.Fatalf("Unknown transport: %s. Use stdio, sse, or httpstream", *transport)
	}
}
