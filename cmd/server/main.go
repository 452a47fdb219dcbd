package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sohaibansari420/careease-backened/internal/api"
	"github.com/sohaibansari420/careease-backened/internal/auth"
	"github.com/sohaibansari420/careease-backened/internal/config"
	"github.com/sohaibansari420/careease-backened/internal/core"
	"github.com/sohaibansari420/careease-backened/internal/logging"
	"github.com/sohaibansari420/careease-backened/internal/ratelimit"
	"github.com/sohaibansari420/careease-backened/internal/store"
)

func main() {
	// Command line flag for seeding an administrator
	createAdminFlag := flag.Bool("create-admin", false, "Create an admin user from ADMIN_EMAIL/ADMIN_USERNAME/ADMIN_PASSWORD and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// Initialize database store
	dbStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.String("datastore", cfg.Datastore), zap.Error(err))
	}
	defer dbStore.Close()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpire)
	authService := core.NewAuthService(dbStore, tokens, nil, logger)

	if *createAdminFlag {
		admin, err := authService.CreateAdmin(ctx, core.RegisterInput{
			Username:  cfg.AdminUsername,
			Email:     cfg.AdminEmail,
			Password:  cfg.AdminPassword,
			FirstName: "System",
			LastName:  "Administrator",
		})
		if err != nil {
			logger.Fatal("Failed to create admin user", zap.Error(err))
		}
		logger.Info("Admin user created. Exiting.", zap.String("user_id", admin.ID), zap.String("email", admin.Email))
		return
	}

	// Initialize AI responder
	responder, closeResponder, err := newResponder(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AI responder", zap.String("provider", cfg.AIProvider), zap.Error(err))
	}
	defer closeResponder()

	limiter, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	stats := &core.AssistantStats{}
	services := api.Services{
		Auth: authService,
		Chats: core.NewChatService(dbStore, responder, core.ChatOptions{
			AITimeout: cfg.AITimeout,
			AutoTitle: cfg.ChatAutoTitle,
			Stats:     stats,
		}, logger),
		Alarms:  core.NewAlarmService(dbStore, nil, logger),
		Reports: core.NewReportService(dbStore, dbStore, dbStore, nil, logger),
		Admin:   core.NewAdminService(dbStore, dbStore, stats, nil, logger),
	}

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(services, api.Options{
		Environment:     cfg.Environment,
		Database:        dbStore,
		FrontendOrigins: cfg.FrontendOrigins,
		Limiter:         limiter,
	}, logger)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.Port)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // AI calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("Server exiting gracefully")
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Datastore {
	case "sqlite":
		return store.NewSQLiteStore(cfg.SQLitePath)
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return store.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	}
}

// newResponder builds the configured AI provider. A missing API key is not an
// error here; every call will then use a fallback reply.
func newResponder(ctx context.Context, cfg config.Config, logger *zap.Logger) (core.Responder, func(), error) {
	switch cfg.AIProvider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			logger.Warn("GEMINI_API_KEY is not set, chat replies will use fallback responses")
		}
		r, err := core.NewGeminiResponder(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		if cfg.GroqAPIKey == "" {
			logger.Warn("GROQ_API_KEY is not set, chat replies will use fallback responses")
		}
		return core.NewGroqResponder(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel, logger), func() {}, nil
	}
}

// newLimiter prefers Redis so limits are shared across instances, falling
// back to an in-process limiter when Redis is absent or unreachable.
func newLimiter(ctx context.Context, cfg config.Config, logger *zap.Logger) (ratelimit.Limiter, func()) {
	if !cfg.RateLimitEnabled {
		logger.Info("Rate limiting disabled")
		return nil, func() {}
	}
	if cfg.RedisURL != "" {
		l, err := ratelimit.NewRedisLimiter(ctx, cfg.RedisURL)
		if err == nil {
			logger.Info("Using Redis rate limiter")
			return l, func() { _ = l.Close() }
		}
		logger.Warn("Redis unavailable, using in-memory rate limiter", zap.Error(err))
	}
	return ratelimit.NewMemoryLimiter(), func() {}
}
