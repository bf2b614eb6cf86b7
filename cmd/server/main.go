package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"quillpost/internal/config"
	"quillpost/internal/database"
	"quillpost/internal/handlers"
	"quillpost/internal/middleware"
	"quillpost/internal/repository"
	"quillpost/internal/router"
	"quillpost/internal/secrets"
	"quillpost/internal/services"
	"quillpost/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	logger.Info("starting quillpost server", zap.String("env", cfg.Env))

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.PoolOptions{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		logger.Fatal("PostgreSQL connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("PostgreSQL connected")

	// ──── Step 3: Initialize Redis Client ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, os.DirFS(cfg.MigrationsDir), logger); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	// ──── Initialize Repositories ────
	historyRepo := repository.NewChatHistoryRepo(pool)
	modelRepo := repository.NewModelConfigRepo(pool)
	articleRepo := repository.NewArticleRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Initialize Services ────
	sealer, err := secrets.NewSealer(cfg.ModelKeySecret, 0)
	if err != nil {
		logger.Fatal("key sealer initialization failed", zap.Error(err))
	}

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	completionService := services.NewCompletionService(
		modelRepo,
		sealer,
		services.DefaultProviders(),
		cfg.CompletionConcurrency,
		time.Duration(cfg.CompletionTimeoutSeconds)*time.Second,
		logger.Named("completion"),
	)
	modelService := services.NewModelConfigService(modelRepo, sealer)
	publishService := services.NewPublishService(articleRepo, jobRepo, services.NewRedisQueue(redisClient), logger.Named("publish"))

	// ──── Initialize Handlers ────
	historyHandler := handlers.NewChatHistoryHandler(historyRepo)
	modelsHandler := handlers.NewChatModelsHandler(modelService)
	chatHandler := handlers.NewChatHandler(completionService)
	articleHandler := handlers.NewArticleHandler(publishService)

	// ──── Step 5: Start Publish Workers ────
	workerPool := worker.NewPool(
		redisClient,
		articleRepo,
		jobRepo,
		worker.NewWebhookDeliverer(cfg.PublishWebhookURL, logger.Named("webhook")),
		logger.Named("worker"),
		cfg.PublishWorkers,
	)
	workerPool.Start()

	// ──── Step 6: Start HTTP Server ────
	r, stopRouter := router.New(
		jwtAuth,
		historyHandler,
		modelsHandler,
		chatHandler,
		articleHandler,
		logger.Named("http"),
		router.Options{
			FrontendURL:         cfg.FrontendURL,
			FrontendDir:         cfg.FrontendDir,
			LoginPath:           cfg.LoginPath,
			ChatRateLimitPerMin: cfg.ChatRateLimitPerMin,
		},
	)

	// Completions can take as long as the provider timeout.
	writeTimeout := time.Duration(cfg.CompletionTimeoutSeconds+15) * time.Second
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		stopRouter()
		workerPool.Stop()
	}()

	logger.Info("quillpost server ready", zap.String("addr", "http://localhost:"+cfg.Port), zap.String("env", cfg.Env))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
	<-done
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
