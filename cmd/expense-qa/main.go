package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/spendora/expense-qa/internal/auth"
	"github.com/spendora/expense-qa/internal/config"
	"github.com/spendora/expense-qa/internal/history"
	"github.com/spendora/expense-qa/internal/llm"
	"github.com/spendora/expense-qa/internal/observability"
	"github.com/spendora/expense-qa/internal/processor"
	"github.com/spendora/expense-qa/internal/session"
	"github.com/spendora/expense-qa/internal/store"
	"github.com/spendora/expense-qa/internal/summarizer"
	"github.com/spendora/expense-qa/internal/translator"
)

func main() {
	// Local development convenience; ignored when no .env file exists.
	_ = godotenv.Load()

	ctx := context.Background()

	cfg := config.NewDefaultLoader().MustLoad(ctx)
	if err := cfg.ValidateWithContext(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	gin.SetMode(cfg.Server.GinMode)

	logger := observability.NewLogger("main")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	geminiClient, err := llm.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatal("Failed to initialize generator client: ", err)
	}
	generator := llm.NewCircuitBreakerClient(geminiClient, "gemini", llm.DefaultCircuitBreakerConfig)

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	expenseStore, err := store.NewStore(connectCtx, store.Config{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
		Timeout:    cfg.Mongo.Timeout,
	})
	cancel()
	if err != nil {
		log.Fatal("Failed to connect to the expense store: ", err)
	}

	var historyStore *history.Store
	if cfg.History.Enabled {
		historyStore, err = history.NewStore(history.Config{
			Host:     cfg.History.Host,
			Port:     cfg.History.Port,
			Database: cfg.History.Database,
			Username: cfg.History.Username,
			Password: cfg.History.Password,
			SSLMode:  cfg.History.SSLMode,
		})
		if err != nil {
			log.Fatal("Failed to connect to the translation history store: ", err)
		}
	}

	var examples translator.ExampleProvider
	if historyStore != nil {
		examples = historyStore
	}
	queryTranslator := translator.New(generator, "", examples)
	resultSummarizer := summarizer.New(generator)

	sessionManager := session.NewManager(rdb, cfg.Auth.SessionExpiry)
	authManager := auth.NewManager(auth.Config{
		JWTSecret:      cfg.Auth.JWTSecret,
		JWTExpiry:      cfg.Auth.JWTExpiry,
		SessionExpiry:  cfg.Auth.SessionExpiry,
		RateLimit:      cfg.Auth.RateLimit,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
	}, sessionManager)

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			authManager.PruneExpired()
		}
	}()

	healthChecker := observability.NewHealthChecker("expense-qa")
	healthChecker.RegisterCheck("mongodb", observability.PingCheck(expenseStore))
	healthChecker.RegisterCheck("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if historyStore != nil {
		healthChecker.RegisterOptionalCheck("postgres", observability.PingCheck(historyStore))
	}
	healthChecker.RegisterOptionalCheck("memory", observability.MemoryCheck(1<<30))

	qp := processor.New(queryTranslator, expenseStore, resultSummarizer, processor.Config{
		MaxQuestionLength: cfg.Query.MaxQuestionLength,
		MaxResultRecords:  cfg.Query.MaxResultRecords,
		CacheTTL:          cfg.Query.CacheTTL,
		Timeout:           cfg.Query.Timeout,
	})
	qp.SetCache(rdb)
	budgets := auth.NewBudgetManager()
	budgets.SetDefaultLimits(auth.Limits{
		DailyUSD:   cfg.Budget.DailyUSD,
		MonthlyUSD: cfg.Budget.MonthlyUSD,
	})
	qp.SetBudgetManager(budgets)
	qp.SetHealthChecker(healthChecker)
	if historyStore != nil {
		qp.SetHistoryStore(historyStore)
	}

	engine := qp.SetupRoutes(authManager)
	auth.NewHandlers(authManager).SetupRoutes(engine.Group("/api/v1"))

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}

	go func() {
		logger.Info(ctx, "Server starting", map[string]interface{}{
			"port": cfg.Server.Port,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed: ", err)
		}
	}()

	stopCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()

	logger.Info(ctx, "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Forced shutdown", err, nil)
	}

	if err := expenseStore.Close(shutdownCtx); err != nil {
		logger.Warn(ctx, "Expense store close failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if historyStore != nil {
		if err := historyStore.Close(); err != nil {
			logger.Warn(ctx, "History store close failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	if err := rdb.Close(); err != nil {
		logger.Warn(ctx, "Redis close failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
