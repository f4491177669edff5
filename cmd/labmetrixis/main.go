package main

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labmetrixis/labmetrixis/db"
	"github.com/labmetrixis/labmetrixis/internal/auth"
	"github.com/labmetrixis/labmetrixis/internal/handlers"
	"github.com/labmetrixis/labmetrixis/internal/router"
	"github.com/labmetrixis/labmetrixis/internal/scheduler"
	"github.com/labmetrixis/labmetrixis/internal/storage"
)

func main() {
	var err error

	err = godotenv.Load()

	if err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	if err = auth.InitJWTSecret(); err != nil {
		log.Fatalf("Failed to initialize JWT: %v", err)
	}

	dsn := os.Getenv("DATABASE_URL")

	if dsn == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err = db.ConnectDatabase(dsn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err = db.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		store, err := storage.NewProtocolStore(
			endpoint,
			os.Getenv("MINIO_ACCESS_KEY"),
			os.Getenv("MINIO_SECRET_KEY"),
			getEnv("MINIO_BUCKET", "labmetrixis-protocols"),
			os.Getenv("MINIO_USE_SSL") == "true",
		)

		if err != nil {
			log.Fatalf("Failed to initialize protocol storage: %v", err)
		}

		handlers.ProtocolFiles = store
	} else {
		log.Println("MINIO_ENDPOINT not set, protocol file storage disabled")
	}

	interval := time.Hour

	if raw := os.Getenv("SAMPLE_EXPIRY_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)

		if err != nil {
			log.Fatalf("Invalid SAMPLE_EXPIRY_INTERVAL: %v", err)
		}

		interval = parsed
	}

	sweeper := scheduler.NewSweeper(interval)
	sweeper.Start()
	defer sweeper.Stop()

	r := router.NewRouter()

	port := getEnv("PORT", "3000")

	if err = r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
