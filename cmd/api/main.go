package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zombar/optimizer"
	"github.com/zombar/optimizer/api"
	"github.com/zombar/optimizer/db"
	"github.com/zombar/optimizer/storage"
	"github.com/zombar/optimizer/telemetry"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Setup structured logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("optimizer service initializing", "version", "1.0.0")

	// Default values
	defaultPort := getEnv("PORT", "8080")
	defaultStoragePath := getEnv("STORAGE_BASE_PATH", "./storage")
	defaultRewriteURL := getEnv("REWRITE_URL", "http://localhost:11434")
	defaultRewriteModel := getEnv("REWRITE_MODEL", "gpt-oss:20b")
	defaultSearchURL := getEnv("SEARCH_URL", "")
	searchAPIKey := getEnv("SEARCH_API_KEY", "")
	unsplashAccessKey := getEnv("UNSPLASH_ACCESS_KEY", "")
	pexelsAPIKey := getEnv("PEXELS_API_KEY", "")
	defaultTargetFlesch := getEnv("DEFAULT_TARGET_FLESCH", "60")

	// Parse target reading-ease score
	targetFlesch, err := strconv.ParseFloat(defaultTargetFlesch, 64)
	if err != nil || targetFlesch < 0 || targetFlesch > 100 {
		logger.Warn("invalid DEFAULT_TARGET_FLESCH value, using default",
			"provided", defaultTargetFlesch,
			"default", 60.0,
		)
		targetFlesch = 60.0
	}

	// Command-line flags (override environment variables)
	port := flag.String("port", defaultPort, "Server port")
	rewriteURL := flag.String("rewrite-url", defaultRewriteURL, "Rewrite service base URL (Ollama-compatible)")
	rewriteModel := flag.String("rewrite-model", defaultRewriteModel, "Model to use for rewrite passes")
	disableCORS := flag.Bool("disable-cors", false, "Disable CORS")
	disableImageProbing := flag.Bool("disable-image-probing", false, "Disable downloading image candidates for metadata")
	flag.Parse()

	// PostgreSQL database configuration (required)
	dbHost := getEnv("DB_HOST", "")
	if dbHost == "" {
		logger.Error("DB_HOST environment variable is required")
		os.Exit(1)
	}

	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "optimizer")
	dbPassword := getEnv("DB_PASSWORD", "optimizer_dev_pass")
	dbName := getEnv("DB_NAME", "optimizer")

	dbConfig := db.Config{
		DSN: fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", dbHost, dbPort, dbUser, dbPassword, dbName),
	}
	logger.Info("using PostgreSQL database", "host", dbHost, "port", dbPort, "database", dbName)

	// Optional S3-compatible snapshot storage; filesystem otherwise
	var s3Config *storage.S3Config
	if bucket := getEnv("S3_BUCKET", ""); bucket != "" {
		s3Config = &storage.S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          bucket,
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnv("S3_USE_PATH_STYLE", "") == "true",
		}
		logger.Info("using S3 snapshot storage", "bucket", bucket, "endpoint", s3Config.Endpoint)
	}

	recorder := telemetry.NewRecorder("optimizer")

	// Create server configuration
	config := api.Config{
		Addr:     ":" + *port,
		DBConfig: dbConfig,
		OptimizerConfig: optimizer.Config{
			HTTPTimeout:         30 * time.Second,
			RewriteBaseURL:      *rewriteURL,
			RewriteModel:        *rewriteModel,
			SearchBaseURL:       defaultSearchURL,
			SearchAPIKey:        searchAPIKey,
			UnsplashAccessKey:   unsplashAccessKey,
			PexelsAPIKey:        pexelsAPIKey,
			EnableImageProbing:  !*disableImageProbing,
			MaxImageSizeBytes:   10 * 1024 * 1024, // 10MB
			ImageTimeout:        15 * time.Second,
			DefaultTargetFlesch: targetFlesch,
		},
		StoragePath: defaultStoragePath,
		CORSEnabled: !*disableCORS,
		S3:          s3Config,
		Recorder:    recorder,
	}

	// Create server
	server, err := api.NewServer(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Initialize database metrics
	dbMetrics := telemetry.NewDatabaseMetrics("optimizer")
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			dbMetrics.UpdateDBStats(server.DB().DB())
		}
	}()
	logger.Info("database metrics initialized")

	// Start server in a goroutine
	go func() {
		logger.Info("optimizer service starting",
			"port", *port,
			"database_host", dbHost,
			"database_name", dbName,
			"storage_path", defaultStoragePath,
			"rewrite_url", *rewriteURL,
			"rewrite_model", *rewriteModel,
			"search_configured", searchAPIKey != "",
			"unsplash_configured", unsplashAccessKey != "",
			"pexels_configured", pexelsAPIKey != "",
			"image_probing_enabled", !*disableImageProbing,
			"target_flesch", targetFlesch,
		)

		if err := server.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
