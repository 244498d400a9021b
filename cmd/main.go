package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nsoterop/asii-medical-sub000/internal/config"
	"github.com/nsoterop/asii-medical-sub000/internal/handlers"
	"github.com/nsoterop/asii-medical-sub000/internal/importer"
	"github.com/nsoterop/asii-medical-sub000/internal/middleware"
	"github.com/nsoterop/asii-medical-sub000/internal/repository"
	"github.com/nsoterop/asii-medical-sub000/internal/search"
	"github.com/nsoterop/asii-medical-sub000/internal/worker"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client; the service degrades to uncached reads when
	// Redis is unreachable
	var redisClient *redis.Client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
	} else {
		redisClient = redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
			redisClient = nil
		} else {
			log.Println("✓ Redis connected successfully")
		}
		cancel()
	}

	// Repositories
	runsRepo := repository.NewImportRunsRepository(db)
	catalogRepo := repository.NewCatalogRepository(db, redisClient)

	// Search collaborator
	var indexer search.Indexer = search.NoopIndexer{}
	if cfg.SearchServiceURL != "" {
		indexer = search.NewHTTPIndexer(cfg.SearchServiceURL, logger)
		log.Println("✓ Search indexer configured")
	} else {
		log.Println("SEARCH_SERVICE_URL not set, skipping search reindex trigger")
	}

	// Import pipeline
	pipeline := importer.NewService(runsRepo, catalogRepo, indexer, logger, importer.Options{
		ChunkSize:   cfg.ImportChunkSize,
		Concurrency: cfg.ImportConcurrency,
	})

	// Sweep runs stranded in RUNNING by a previous crash before accepting
	// new work
	reconciler := importer.NewReconciler(runsRepo, time.Duration(cfg.ImportStaleAfterMins)*time.Minute, logger)
	sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if swept, err := reconciler.FailStranded(sweepCtx); err != nil {
		log.Printf("WARNING: Failed to sweep stranded import runs: %v", err)
	} else if swept > 0 {
		log.Printf("Swept %d stranded import run(s)", swept)
	}
	sweepCancel()

	// Import worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	importWorker := worker.New(pipeline, runsRepo, cfg.ImportQueueDepth, logger)
	importWorker.Start(workerCtx)
	log.Println("✓ Import worker started")

	// Handlers
	importHandler := handlers.NewImportHandler(runsRepo, importWorker, cfg.UploadDir, cfg.DefaultPageSize, cfg.MaxPageSize, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, logger)

	// Router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)

	v1 := router.Group("/api/v1/catalog")
	{
		imports := v1.Group("/imports")
		{
			imports.POST("", importHandler.UploadFeed)
			imports.GET("", importHandler.ListRuns)
			imports.GET("/template", importHandler.GetFeedTemplate)
			imports.GET("/:id", importHandler.GetRun)
			imports.GET("/:id/errors", importHandler.ListRunErrors)
			imports.POST("/:id/cancel", importHandler.CancelRun)
		}

		v1.GET("/categories/tree", catalogHandler.GetCategoryTree)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Catalog import service starting on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down catalog import service...")
	workerCancel()
	log.Println("Catalog import service stopped")
}
