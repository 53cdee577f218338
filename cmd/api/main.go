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
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/angebot-ai/sales-assistant/internal/config"
	"github.com/angebot-ai/sales-assistant/internal/handler"
	"github.com/angebot-ai/sales-assistant/internal/knowledge"
	"github.com/angebot-ai/sales-assistant/internal/llm"
	"github.com/angebot-ai/sales-assistant/internal/middleware"
	natsclient "github.com/angebot-ai/sales-assistant/internal/nats"
	"github.com/angebot-ai/sales-assistant/internal/service"
	"github.com/angebot-ai/sales-assistant/pkg/logger"
	"github.com/angebot-ai/sales-assistant/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "sales-assistant", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsClient, err := natsclient.Connect(natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsClient.Close()

	// Ensure the message stream and KV buckets exist
	streamManager := natsclient.NewStreamManager(natsClient)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	offersKV, err := natsclient.NewKVStore(ctx, natsClient, natsclient.OffersBucket)
	if err != nil {
		log.Error("failed to open offers bucket", zap.Error(err))
		os.Exit(1)
	}
	knowledgeKV, err := natsclient.NewKVStore(ctx, natsClient, natsclient.KnowledgeBucket)
	if err != nil {
		log.Error("failed to open knowledge bucket", zap.Error(err))
		os.Exit(1)
	}

	// Initialize LLM client
	var llmClient llm.Client
	if cfg.DefaultLLM == string(llm.ProviderOpenAI) && cfg.OpenAIAPIKey != "" {
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
	} else {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	}
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}

	// Initialize services
	knowledgeStore := knowledge.NewStore(knowledgeKV)
	conversationSvc := service.NewConversationService(log)
	offerSvc := service.NewOfferService(offersKV, log)
	chatSvc := service.NewChatService(
		streamManager,
		conversationSvc,
		knowledgeStore,
		knowledge.BuildSystemPrompt,
		llmClient,
		cfg,
		log,
	)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(chatSvc, conversationSvc, streamManager, log)
	streamHandler := handler.NewStreamHandler(chatSvc, conversationSvc, streamManager, log)
	offerHandler := handler.NewOfferHandler(offerSvc, log)
	knowledgeHandler := handler.NewKnowledgeHandler(knowledgeStore, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Conversations and chat
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)

				// Messages
				r.Get("/messages", messageHandler.List)
				r.With(middleware.ChatRateLimit(cfg.ChatRateLimitRequests, cfg.ChatRateLimitWindow)).
					Post("/messages", messageHandler.Send)

				// Streaming
				r.Get("/stream", streamHandler.Stream)
				r.With(middleware.ChatRateLimit(cfg.ChatRateLimitRequests, cfg.ChatRateLimitWindow)).
					Post("/stream", streamHandler.StreamWithMessage)
			})
		})

		// Saved offers
		r.Route("/offers", func(r chi.Router) {
			r.Post("/", offerHandler.Save)
			r.Get("/", offerHandler.List)
			r.Get("/{id}", offerHandler.Get)
			r.Delete("/{id}", offerHandler.Delete)
		})

		// Knowledge base (admin only)
		r.Route("/knowledge", func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin))
			r.Post("/", knowledgeHandler.Create)
			r.Get("/", knowledgeHandler.List)
			r.Put("/{id}", knowledgeHandler.Update)
			r.Delete("/{id}", knowledgeHandler.Delete)
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
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
