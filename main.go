package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"support-router/config"
	"support-router/handlers"
	"support-router/logger"
	"support-router/middleware"
	"support-router/services"
	"support-router/webhooks"
)

const (
	connectMaxWait         = 30 * time.Second
	shutdownTimeout        = 15 * time.Second
	historyCleanupInterval = 10 * time.Minute
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found")
	}

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Error("Server stopped with error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	history, closeHistory, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeHistory()

	if !cfg.MessengerConfigured() {
		logger.Log.Warn("FB_PAGE_ACCESS_TOKEN not set, replies to customers will be dropped")
	}
	if !cfg.WhatsAppConfigured() {
		logger.Log.Warn("WhatsApp not configured, support notifications will be dropped")
	}
	messenger := services.NewMessengerClient(cfg.GraphAPIURL, cfg.PageAccessToken, cfg.OutboundTimeout)
	support := services.NewWhatsAppClient(cfg.GraphAPIURL, cfg.WhatsAppPhoneNumberID, cfg.WhatsAppAccessToken,
		cfg.SupportPhoneNumber, cfg.OutboundTimeout)

	intel := services.NewIntelligence(newTextGenerator(cfg), services.NewRateLimiter(cfg.AIRequestsPerMinute), cfg.OutboundTimeout)
	if !intel.Available() {
		logger.Log.Warn("No AI provider configured, deterministic fallbacks only")
	}

	profile := handlers.BusinessProfile{Name: cfg.BusinessName, Description: cfg.BusinessDescription}

	heuristic, err := handlers.NewHeuristicClassifier(cfg.SpamThreshold, handlers.DefaultVocabulary())
	if err != nil {
		return fmt.Errorf("build spam classifier: %w", err)
	}
	var spam handlers.SpamClassifier = heuristic
	if cfg.SpamStrategy == "ai" {
		spam = handlers.NewAIClassifier(intel, profile, heuristic)
	}

	var onboarding handlers.OnboardingFlow
	switch cfg.OnboardingStrategy {
	case "scripted":
		onboarding = handlers.NewScriptedOnboarding(store, messenger, support)
	default:
		onboarding = handlers.NewAIOnboarding(store, messenger, support, intel, history, profile)
	}

	repeat := handlers.RepeatPolicy{Window: cfg.RepeatSpamWindow, MinMatches: cfg.RepeatSpamMinMatches}
	pipeline := handlers.NewQueryPipeline(store, messenger, support, intel, spam, profile, repeat)

	feed := services.NewWebSocketManager()
	defer feed.Close()

	locks := services.NewKeyedMutex()
	router := handlers.NewRouter(store, support, handlers.NewQueryClassifier(intel, heuristic, profile),
		onboarding, pipeline, locks, feed, handlers.RouterOptions{
			AppID:        cfg.AppID,
			ResumeAfter:  cfg.PauseResumeAfter,
			EventTimeout: cfg.EventTimeout,
		})

	pool, err := services.NewWorkerPool(cfg.WorkerPoolSize, cfg.WorkerQueueSize)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}

	app := newApp(cfg)
	webhooks.RegisterRoutes(app, cfg, router, pool)

	if cfg.AdminTokenHash != "" {
		admin := app.Group("/admin", middleware.RequireAdminToken(cfg.AdminTokenHash))
		handlers.NewAdminHandler(store, locks, cfg.PauseResumeAfter).RegisterRoutes(admin)
		admin.Get("/ws", handlers.WebSocketUpgrade, websocket.New(handlers.NewFeedHandler(feed).Handle))
	} else {
		logger.Log.Info("ADMIN_TOKEN_HASH not set, admin API disabled")
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Info("Server starting", zap.String("port", cfg.Port))
		serveErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Log.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := pool.Shutdown(shutdownTimeout); err != nil {
		logger.Log.Warn("Worker pool did not drain in time", zap.Error(err))
	}
	return nil
}

func newApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			logger.Log.Error("Request error", zap.Error(err), zap.Int("status", code), zap.String("path", c.Path()))
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "support-router",
		})
	})

	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	return app
}

// openStore connects the configured persistence gateway.
func openStore(ctx context.Context, cfg *config.Config) (handlers.Store, func(), error) {
	switch cfg.StorageDriver {
	case "postgres":
		db, err := services.OpenPostgres(ctx, cfg.PostgresDSN, cfg.PostgresAutoMigrate, connectMaxWait)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return services.NewPostgresStore(db), closeFn, nil

	default:
		client, err := services.InitMongoDB(ctx, cfg.MongoURI, connectMaxWait)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}

		store := services.NewMongoStore(client.Database(cfg.DatabaseName))
		if err := store.EnsureIndexes(ctx); err != nil {
			// Continue anyway - queries still work without indexes
			logger.Log.Error("Failed to create indexes", zap.Error(err))
		}
		return store, closeFn, nil
	}
}

// openHistory builds the onboarding conversation cache.
func openHistory(ctx context.Context, cfg *config.Config) (handlers.HistoryStore, func(), error) {
	if cfg.HistoryStore == "redis" {
		client, err := services.NewRedisClient(ctx, cfg.RedisURL, connectMaxWait)
		if err != nil {
			return nil, nil, err
		}
		logger.Log.Info("Using Redis conversation history")
		return services.NewRedisHistoryStore(client, cfg.HistoryTTL), func() { _ = client.Close() }, nil
	}

	store := services.NewMemoryHistoryStore(cfg.HistoryTTL)
	cleanupCtx, cancel := context.WithCancel(ctx)
	services.StartHistoryCleanup(cleanupCtx, store, historyCleanupInterval)
	return store, cancel, nil
}

// newTextGenerator returns the configured AI backend, or nil when AI is
// off or its key is missing.
func newTextGenerator(cfg *config.Config) services.TextGenerator {
	var key string
	var gen services.TextGenerator
	switch cfg.AIProvider {
	case "gemini":
		key, gen = cfg.GeminiAPIKey, services.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.OutboundTimeout)
	case "claude":
		key, gen = cfg.ClaudeAPIKey, services.NewClaudeClient(cfg.ClaudeAPIKey, cfg.ClaudeModel, cfg.OutboundTimeout)
	case "openai":
		key, gen = cfg.OpenAIAPIKey, services.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, "")
	default:
		return nil
	}
	if key == "" {
		logger.Log.Warn("AI provider selected without an API key", zap.String("provider", cfg.AIProvider))
		return nil
	}
	logger.Log.Info("AI provider configured", zap.String("provider", cfg.AIProvider))
	return gen
}
