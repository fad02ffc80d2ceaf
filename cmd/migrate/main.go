package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/spendora/expense-qa/internal/database"
	"github.com/spendora/expense-qa/internal/history"
)

func main() {
	_ = godotenv.Load()

	config := history.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		Database: getEnv("DB_NAME", "spendora_history"),
		Username: getEnv("DB_USER", "spendora"),
		Password: getEnv("DB_PASSWORD", "changeme"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	fmt.Println("=== Running Database Migrations ===")
	fmt.Printf("Connecting to database: %s@%s:%s/%s\n", config.Username, config.Host, config.Port, config.Database)

	if err := database.Verify(config.Host, config.Port, config.Username, config.Password, config.Database); err != nil {
		log.Fatalf("Database connectivity failed: %v", err)
	}
	fmt.Println("✓ Database connectivity verified")

	databaseURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database, config.SSLMode)

	if err := database.Apply(databaseURL, getEnv("MIGRATIONS_PATH", "./migrations")); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	fmt.Println("✓ Database migrations completed")

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Schema check failed: %v", err)
	}
	defer db.Close()
	if err := database.CheckSchema(db); err != nil {
		log.Fatalf("Schema check failed: %v", err)
	}
	fmt.Println("✓ Schema verified")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
