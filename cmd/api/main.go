package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/answer"
	"github.com/campusbrain/backend/internal/api/handlers"
	"github.com/campusbrain/backend/internal/cohort"
	"github.com/campusbrain/backend/internal/llm"
	"github.com/campusbrain/backend/internal/metrics"
	"github.com/campusbrain/backend/internal/middleware/ratelimit"
	"github.com/campusbrain/backend/internal/middleware/security"
	"github.com/campusbrain/backend/internal/middleware/validation"
	"github.com/campusbrain/backend/internal/persona"
	"github.com/campusbrain/backend/internal/retrieval"
	"github.com/campusbrain/backend/internal/storage/sqlite"
	"github.com/campusbrain/backend/internal/vector/milvus"
	"github.com/campusbrain/backend/pkg/apperr"
	"github.com/campusbrain/backend/pkg/config"
	appLogger "github.com/campusbrain/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting CampusBrain API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path, appLogger.L())
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	ctx := context.Background()

	milvusClient, err := milvus.NewClient(ctx,
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.LLM.EmbeddingDim,
		appLogger.L(),
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.EnsureCollection(ctx)
	if err != nil {
		// A dimension mismatch means the index was built with a different
		// embedding model. Serving against it would return garbage scores,
		// so refuse to start rather than degrade.
		if apperr.IsDimensionMismatch(err) {
			appLogger.Fatal("Collection dimension does not match embedding model; re-ingest required", zap.Error(err))
		}
		appLogger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	llmClient := llm.NewClient(cfg.LLM, appLogger.L())

	cohorts := cohort.NewRegistry(cfg.Cohorts, cfg.Retrieval.DefaultCohort)
	personas := persona.NewRegistry(cfg.Personas)

	engine := retrieval.NewEngine(llmClient, milvusClient, cfg.Retrieval.TopK, appLogger.L())
	synthesizer := answer.NewSynthesizer(llmClient, personas, cohorts, appLogger.L())
	service := answer.NewService(engine, synthesizer, cohorts, cfg.Retrieval.TopK,
		time.Duration(cfg.Server.RequestTimeout)*time.Second, sqliteClient, appLogger.L())

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.Warn("Redis unreachable, rate limiting falls back to per-process buckets", zap.Error(err))
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Redis:                redisClient,
		Logger:               appLogger.L(),
	})
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	chatHandler := handlers.NewChatHandler(service, personas)
	adminHandler := handlers.NewAdminHandler(sqliteClient)

	api := app.Group("/api")

	api.Post("/chat",
		limiter.Middleware(),
		validation.Middleware(validation.Config{Logger: appLogger.L()}),
		chatHandler.HandleChat,
	)
	api.Get("/personas", chatHandler.ListPersonas)
	api.Get("/chats", adminHandler.RecentChats)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
