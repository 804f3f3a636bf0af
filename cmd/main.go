package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"aim-assistant-backend/internal/ai"
	"aim-assistant-backend/internal/config"
	"aim-assistant-backend/internal/logger"
	"aim-assistant-backend/internal/telemetry"
	"aim-assistant-backend/middleware"
	"aim-assistant-backend/routes"
	"aim-assistant-backend/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("aim-assistant-backend", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Redis is optional: without it the service runs with no response cache,
	// no rate limiting and synchronous-only ingestion.
	redisClient, err := config.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, cache and async ingestion disabled", "error", err)
		redisClient = nil
	}

	ctx := context.Background()

	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize embeddings provider:", err)
	}
	defer embedder.Close()

	completer, err := ai.NewGeminiCompleter(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize completion model:", err)
	}
	defer completer.Close()

	store := services.NewMongoStore(mongoClient, cfg.DBName)
	cache := services.NewQueryCache(redisClient, cfg.CacheTTL)
	extractor := services.NewExtractor()
	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)
	pipeline := services.NewIngestionPipeline(extractor, chunker, embedder, store, cache)
	retriever := services.NewRetriever(embedder, store)
	composer := services.NewComposer(retriever, completer)

	var queueClient *asynq.Client
	if redisClient != nil {
		queueClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisClient.Options().Addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer queueClient.Close()
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
		if metrics, err := telemetry.InitMetrics(); err == nil {
			router.Use(middleware.MetricsMiddleware(metrics))
		}
	}
	if redisClient != nil {
		router.Use(middleware.RateLimitMiddleware(redisClient, cfg))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupRAGRoutes(router, routes.RAGDeps{
		Cfg:         cfg,
		Pipeline:    pipeline,
		Composer:    composer,
		Store:       store,
		Cache:       cache,
		Embedder:    embedder,
		QueueClient: queueClient,
	})
	routes.SetupChatRoutes(router, routes.ChatDeps{
		Cfg:          cfg,
		Composer:     composer,
		MessagesColl: mongoClient.Database(cfg.DBName).Collection("messages"),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
