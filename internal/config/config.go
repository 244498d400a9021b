package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/nsoterop/asii-medical-sub000/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// Server
	Port        string
	Environment string

	// Collaborators
	SearchServiceURL string

	// Uploads
	UploadDir string

	// Import pipeline tuning
	ImportChunkSize       int
	ImportConcurrency     int
	ImportStaleAfterMins  int
	ImportQueueDepth      int

	// Pagination
	DefaultPageSize int
	MaxPageSize     int
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	chunkSize, _ := strconv.Atoi(getEnv("IMPORT_CHUNK_SIZE", "500"))
	concurrency, _ := strconv.Atoi(getEnv("IMPORT_CONCURRENCY", "4"))
	staleAfter, _ := strconv.Atoi(getEnv("IMPORT_STALE_AFTER_MINUTES", "30"))
	queueDepth, _ := strconv.Atoi(getEnv("IMPORT_QUEUE_DEPTH", "16"))
	defaultPageSize, _ := strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "20"))
	maxPageSize, _ := strconv.Atoi(getEnv("MAX_PAGE_SIZE", "100"))

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "catalog_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port:        getEnv("PORT", "8087"),
		Environment: getEnv("ENVIRONMENT", "development"),

		SearchServiceURL: getEnv("SEARCH_SERVICE_URL", ""),

		UploadDir: getEnv("UPLOAD_DIR", os.TempDir()),

		ImportChunkSize:      chunkSize,
		ImportConcurrency:    concurrency,
		ImportStaleAfterMins: staleAfter,
		ImportQueueDepth:     queueDepth,

		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.ImportRun{},
		&models.ImportRowError{},
		&models.Manufacturer{},
		&models.CategoryPath{},
		&models.Category{},
		&models.Product{},
		&models.Sku{},
	); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
