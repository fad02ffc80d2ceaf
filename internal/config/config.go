package config

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Mongo holds the expense store configuration
	Mongo MongoConfig

	// History holds the PostgreSQL translation-history configuration
	History HistoryConfig

	// Redis configuration
	Redis RedisConfig

	// Gemini LLM configuration
	Gemini GeminiConfig

	// Authentication configuration
	Auth AuthConfig

	// Server configuration
	Server ServerConfig

	// Query configuration
	Query QueryConfig

	// Budget holds default generator spend caps
	Budget BudgetConfig
}

// MongoConfig holds the expense store configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// HistoryConfig holds PostgreSQL configuration for the translation history
type HistoryConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string
	Model  string
}

// AuthConfig holds authentication and authorization configuration
type AuthConfig struct {
	JWTSecret      string
	JWTExpiry      time.Duration
	SessionExpiry  time.Duration
	RateLimit      int
	AllowAnonymous bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port    string
	GinMode string
}

// QueryConfig holds question processing configuration
type QueryConfig struct {
	Timeout           time.Duration
	CacheTTL          time.Duration
	MaxQuestionLength int
	MaxResultRecords  int
}

// BudgetConfig caps per-tenant generator spend in USD. Zero disables a cap.
type BudgetConfig struct {
	DailyUSD   float64
	MonthlyUSD float64
}

// Loader reads configuration values through a Source.
type Loader struct {
	source Source
}

// NewLoader creates a loader over the given source.
func NewLoader(source Source) *Loader {
	return &Loader{source: source}
}

// NewDefaultLoader chains Kubernetes secrets, a file mount, and environment
// variables, in that order.
func NewDefaultLoader() *Loader {
	return NewLoader(NewChain(
		NewKubernetesSource("", ""),
		NewFileSource("/var/secrets"),
		NewEnvSource(),
	))
}

// Load loads the complete configuration
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	cfg := &Config{}

	cfg.Mongo = MongoConfig{
		URI:        l.getString(ctx, "MONGO_URI", "mongodb://localhost:27017"),
		Database:   l.getString(ctx, "MONGO_DB", "spendora"),
		Collection: l.getString(ctx, "MONGO_COLLECTION", "expenses"),
		Timeout:    l.getDuration(ctx, "MONGO_TIMEOUT", 10*time.Second),
	}

	cfg.History = HistoryConfig{
		Enabled:  l.getBool(ctx, "HISTORY_ENABLED", true),
		Host:     l.getString(ctx, "DB_HOST", "localhost"),
		Port:     l.getString(ctx, "DB_PORT", "5432"),
		Database: l.getString(ctx, "DB_NAME", "spendora_history"),
		Username: l.getString(ctx, "DB_USER", "spendora"),
		Password: l.getString(ctx, "DB_PASSWORD", ""),
		SSLMode:  l.getString(ctx, "DB_SSLMODE", "disable"),
	}

	cfg.Redis = RedisConfig{
		Addr:     l.getString(ctx, "REDIS_ADDR", "localhost:6379"),
		Password: l.getString(ctx, "REDIS_PASSWORD", ""),
		DB:       l.getInt(ctx, "REDIS_DB", 0),
	}

	cfg.Gemini = GeminiConfig{
		APIKey: l.getString(ctx, "GEMINI_API_KEY", ""),
		Model:  l.getString(ctx, "GEMINI_MODEL", "gemini-2.0-flash"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret:      l.getString(ctx, "JWT_SECRET", ""),
		JWTExpiry:      l.getDuration(ctx, "JWT_EXPIRY", 24*time.Hour),
		SessionExpiry:  l.getDuration(ctx, "SESSION_EXPIRY", 7*24*time.Hour),
		RateLimit:      l.getInt(ctx, "RATE_LIMIT", 100),
		AllowAnonymous: l.getBool(ctx, "ALLOW_ANONYMOUS", false),
	}

	cfg.Server = ServerConfig{
		Port:    l.getString(ctx, "PORT", "8080"),
		GinMode: l.getString(ctx, "GIN_MODE", "debug"),
	}

	cfg.Query = QueryConfig{
		Timeout:           l.getDuration(ctx, "QUERY_TIMEOUT", 30*time.Second),
		CacheTTL:          l.getDuration(ctx, "CACHE_TTL", 5*time.Minute),
		MaxQuestionLength: l.getInt(ctx, "MAX_QUESTION_LENGTH", 500),
		MaxResultRecords:  l.getInt(ctx, "MAX_RESULT_RECORDS", 1000),
	}

	cfg.Budget = BudgetConfig{
		DailyUSD:   l.getFloat(ctx, "BUDGET_DAILY_USD", 0),
		MonthlyUSD: l.getFloat(ctx, "BUDGET_MONTHLY_USD", 0),
	}

	return cfg, nil
}

// Lookup helpers fall back to the default on a missing value or parse error.

func (l *Loader) getString(ctx context.Context, key, defaultValue string) string {
	value, err := l.source.Lookup(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}

func (l *Loader) getBool(ctx context.Context, key string, defaultValue bool) bool {
	value, err := l.source.Lookup(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func (l *Loader) getInt(ctx context.Context, key string, defaultValue int) int {
	value, err := l.source.Lookup(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}

func (l *Loader) getFloat(ctx context.Context, key string, defaultValue float64) float64 {
	value, err := l.source.Lookup(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func (l *Loader) getDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	value, err := l.source.Lookup(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// MustLoad loads configuration and panics on error
// Useful for application startup
func (l *Loader) MustLoad(ctx context.Context) *Config {
	cfg, err := l.Load(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
