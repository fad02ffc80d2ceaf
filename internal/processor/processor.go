// Package processor orchestrates one question end to end: validation, cache
// lookup, translation, payload normalization, execution, and summarization.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/spendora/expense-qa/internal/auth"
	"github.com/spendora/expense-qa/internal/errors"
	"github.com/spendora/expense-qa/internal/history"
	"github.com/spendora/expense-qa/internal/observability"
	"github.com/spendora/expense-qa/internal/query"
	"github.com/spendora/expense-qa/internal/store"
	"github.com/spendora/expense-qa/internal/summarizer"
)

// QueryRequest is an incoming natural-language question.
type QueryRequest struct {
	Question   string `json:"question" binding:"required"`
	UserID     string `json:"userId,omitempty"`
	SearchTerm string `json:"searchTerm,omitempty"`
}

// QueryResponse is the processed result for one question.
type QueryResponse struct {
	Question         string             `json:"question"`
	ResultsAvailable bool               `json:"resultsAvailable"`
	Summary          *summarizer.Report `json:"summary,omitempty"`
	Count            int                `json:"count"`
	Shape            query.Shape        `json:"shape,omitempty"`
	CacheHit         bool               `json:"cacheHit"`
	ProcessingTimeMS int64              `json:"processing_time_ms,omitempty"`
}

// Translator converts a question into a normalized query payload.
type Translator interface {
	Translate(ctx context.Context, question string) (*query.Payload, error)
}

// Executor runs a normalized payload against the expense store.
type Executor interface {
	Execute(ctx context.Context, payload *query.Payload) ([]store.Record, error)
	Insert(ctx context.Context, expense *store.Expense) (string, error)
	List(ctx context.Context, tenantID string, limit int64) ([]store.Expense, error)
}

// HistoryStore records successful translations and serves past ones.
type HistoryStore interface {
	Record(ctx context.Context, tenantID, question, payload, shape string) error
	List(ctx context.Context, tenantID string, limit int) ([]history.Entry, error)
}

// Config holds per-request limits for the processor.
type Config struct {
	MaxQuestionLength int
	MaxResultRecords  int
	CacheTTL          time.Duration
	Timeout           time.Duration
}

// Processor is the per-request orchestrator.
type Processor struct {
	translator    Translator
	executor      Executor
	summarizer    *summarizer.Summarizer
	historyStore  HistoryStore
	cache         *redis.Client
	budgets       *auth.BudgetManager
	logger        *observability.Logger
	healthChecker *observability.HealthChecker
	config        Config
	now           func() time.Time
}

// New creates a Processor. The cache, history store, and budget manager are
// optional; a nil value disables that concern.
func New(translator Translator, executor Executor, s *summarizer.Summarizer, config Config) *Processor {
	if config.MaxQuestionLength == 0 {
		config.MaxQuestionLength = 500
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Minute
	}
	return &Processor{
		translator: translator,
		executor:   executor,
		summarizer: s,
		config:     config,
		logger:     observability.NewLogger("processor"),
		now:        time.Now,
	}
}

// SetCache enables the Redis response cache.
func (p *Processor) SetCache(cache *redis.Client) {
	p.cache = cache
}

// SetHistoryStore enables translation history recording.
func (p *Processor) SetHistoryStore(h HistoryStore) {
	p.historyStore = h
}

// SetBudgetManager enables per-tenant generator cost budgets.
func (p *Processor) SetBudgetManager(budgets *auth.BudgetManager) {
	p.budgets = budgets
}

// SetHealthChecker sets the checker backing the /health endpoint.
func (p *Processor) SetHealthChecker(h *observability.HealthChecker) {
	p.healthChecker = h
}

// ProcessQuestion handles one question end to end.
//
// Translation failures abort the request before the executor is reached.
// Execution failures fail the request. Summarization never fails the
// request; a degraded report still carries the local aggregates.
func (p *Processor) ProcessQuestion(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, errors.NewMissingFieldError("question")
	}
	if len(question) > p.config.MaxQuestionLength {
		return nil, errors.NewInvalidInputError("question",
			fmt.Sprintf("question exceeds the %d character limit", p.config.MaxQuestionLength))
	}

	tenantID := strings.TrimSpace(req.UserID)
	if tenantID == "" {
		return nil, errors.NewMissingFieldError("userId")
	}

	ctx = observability.WithTenantID(ctx, tenantID)
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	p.logger.Info(ctx, "Processing question", map[string]interface{}{
		"question": question,
	})

	if cached, err := p.getCachedResponse(ctx, tenantID, question); err == nil {
		cached.CacheHit = true
		cached.ProcessingTimeMS = time.Since(start).Milliseconds()
		p.logger.Debug(ctx, "Cache hit for question", map[string]interface{}{
			"question": question,
		})
		return cached, nil
	}

	estimatedCost := estimateGeneratorCost(question)
	if p.budgets != nil {
		if err := p.budgets.CheckBudget(tenantID, estimatedCost); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeBudgetExceeded, "Generator budget exceeded").
				WithSuggestion("Wait for the daily or monthly budget window to reset, or raise the budget.")
		}
	}

	payload, err := p.translator.Translate(ctx, question)
	if err != nil {
		p.logger.Error(ctx, "Translation failed", err, map[string]interface{}{
			"question":    question,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil, err
	}

	if p.budgets != nil {
		p.budgets.RecordCost(tenantID, estimatedCost)
	}

	// Record the translation as produced by the generator, before dates and
	// tenant scoping are bound, so the stored example generalizes to the
	// tenant's later questions.
	translated, serializeErr := payload.Serialize()

	now := p.now()
	payload, err = query.ResolvePlaceholders(payload, now)
	if err != nil {
		return nil, err
	}
	payload = query.EnsureDateRange(payload, now)
	payload = query.InjectTenant(payload, tenantID)

	records, err := p.executor.Execute(ctx, payload)
	if err != nil {
		p.logger.Error(ctx, "Query execution failed", err, map[string]interface{}{
			"question":    question,
			"shape":       string(payload.Shape),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil, err
	}

	if p.config.MaxResultRecords > 0 && len(records) > p.config.MaxResultRecords {
		records = records[:p.config.MaxResultRecords]
	}

	report := p.summarizer.Summarize(ctx, question, records, req.SearchTerm)

	response := &QueryResponse{
		Question:         question,
		ResultsAvailable: len(records) > 0,
		Summary:          report,
		Count:            len(records),
		Shape:            payload.Shape,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}

	if p.historyStore != nil && serializeErr == nil {
		if err := p.historyStore.Record(ctx, tenantID, question, string(translated), string(payload.Shape)); err != nil {
			p.logger.Warn(ctx, "Failed to record translation history", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if err := p.cacheResponse(ctx, tenantID, question, response); err != nil {
		p.logger.Warn(ctx, "Failed to cache response", map[string]interface{}{
			"error": err.Error(),
		})
	}

	p.logger.Info(ctx, "Question processed", map[string]interface{}{
		"question":          question,
		"shape":             string(payload.Shape),
		"count":             len(records),
		"results_available": response.ResultsAvailable,
		"duration_ms":       time.Since(start).Milliseconds(),
	})

	return response, nil
}

// estimateGeneratorCost is a rough per-question USD estimate for budget
// accounting. The prompt dominates, so it scales with question length.
func estimateGeneratorCost(question string) float64 {
	return 0.0005 + float64(len(question))*0.0000005
}

func cacheKey(tenantID, question string) string {
	return fmt.Sprintf("qa:%s:%s", tenantID, question)
}

func (p *Processor) getCachedResponse(ctx context.Context, tenantID, question string) (*QueryResponse, error) {
	if p.cache == nil {
		return nil, errors.New(errors.ErrCodeCacheRead, "cache disabled")
	}

	start := time.Now()
	raw, err := p.cache.Get(ctx, cacheKey(tenantID, question)).Result()
	observability.RecordCacheMetrics("get", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	var response QueryResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		return nil, err
	}

	return &response, nil
}

func (p *Processor) cacheResponse(ctx context.Context, tenantID, question string, response *QueryResponse) error {
	if p.cache == nil {
		return nil
	}

	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.cache.Set(ctx, cacheKey(tenantID, question), data, p.config.CacheTTL).Err()
	observability.RecordCacheMetrics("set", time.Since(start), err)
	return err
}
