// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/snowhub/chat-service/internal/auth"
	"github.com/snowhub/chat-service/internal/config"
	"github.com/snowhub/chat-service/internal/handler"
	"github.com/snowhub/chat-service/internal/middleware"
	mongostore "github.com/snowhub/chat-service/internal/mongo"
	natsclient "github.com/snowhub/chat-service/internal/nats"
	"github.com/snowhub/chat-service/internal/realtime"
	"github.com/snowhub/chat-service/internal/service"
	"github.com/snowhub/chat-service/internal/store"
	"github.com/snowhub/chat-service/pkg/logger"
	"github.com/snowhub/chat-service/pkg/tracing"
)

// backend is the storage selected at startup.
type backend struct {
	threads   store.ThreadStore
	messages  store.MessageStore
	directory auth.Directory
	pinger    handler.Pinger
	close     func(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		logger.Global().Fatal("failed to create logger", zap.Error(err))
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	log.Info("starting API server", zap.String("store", cfg.StoreBackend))

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-service", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Storage
	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}

	// Cross-replica fan-out
	var (
		natsClient *natsclient.Client
		relay      *natsclient.Relay
		fanout     realtime.Relay
		relayState handler.Connectivity
	)
	if cfg.RelayEnabled() {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		relay = natsclient.NewRelay(natsClient, cfg.NATSSubject, log)
		fanout = relay
		relayState = natsClient
	}

	// Initialize services
	registry := realtime.NewRegistry(service.NewMemberships(be.threads, cfg.StoreTimeout), fanout, log)
	if err := registry.Start(ctx); err != nil {
		log.Fatal("failed to start registry", zap.Error(err))
	}
	presence := realtime.NewPresence(registry, log)
	typing := realtime.NewTyping(registry)

	threadSvc := service.NewThreadService(be.threads, be.messages, be.directory, registry, cfg.StoreTimeout, log)
	dispatcher := service.NewDispatcher(be.threads, be.messages, registry, cfg.StoreTimeout, log)
	authn := auth.NewAuthenticator(cfg.JWTSecret, be.directory)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(be.pinger, relayState)
	chatHandler := handler.NewChatHandler(threadSvc, dispatcher, log)
	messageHandler := handler.NewMessageHandler(threadSvc, dispatcher, log)
	liveHandler := handler.NewLiveHandler(authn, threadSvc, dispatcher, registry, presence, typing, handler.LiveConfig{
		SendBuffer:      cfg.LiveSendBuffer,
		EventsPerSecond: cfg.LiveEventsPerSecond,
		EventsBurst:     cfg.LiveEventsBurst,
		AllowedOrigins:  cfg.AllowedOrigins,
	}, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Live channel; the handshake authenticates itself
	r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).Get("/ws", liveHandler.Serve)

	// API routes with authentication
	r.Route("/api/chat", func(r chi.Router) {
		r.Use(middleware.Auth(authn, middleware.HeaderToken))
		r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/", chatHandler.Open)
		r.Get("/", chatHandler.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", chatHandler.Get)
			r.Put("/read", chatHandler.MarkRead)

			// Messages
			r.Get("/messages", messageHandler.List)
			r.Post("/messages", messageHandler.Send)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Hijacked WebSocket connections are not covered by Shutdown.
	registry.Close()

	if relay != nil {
		if err := relay.Close(); err != nil {
			log.Warn("failed to close relay", zap.Error(err))
		}
	}
	if natsClient != nil {
		natsClient.Close()
	}
	if err := be.close(shutdownCtx); err != nil {
		log.Warn("failed to close store", zap.Error(err))
	}

	log.Info("server stopped")
}

// openBackend connects the configured store.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart and every token subject is accepted as a user")
		mem := store.NewMemory()
		return &backend{
			threads:   mem,
			messages:  mem,
			directory: auth.NewStaticDirectory(true),
			pinger:    mem,
			close:     func(context.Context) error { return nil },
		}, nil

	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, mongostore.Config{
			URI:       cfg.MongoURI,
			Database:  cfg.MongoDatabase,
			OpTimeout: cfg.StoreTimeout,
		}, log)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return &backend{
			threads:   mongostore.NewThreadRepository(client),
			messages:  mongostore.NewMessageRepository(client),
			directory: mongostore.NewUserDirectory(client),
			pinger:    client,
			close:     client.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
