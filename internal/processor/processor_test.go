package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendora/expense-qa/internal/errors"
	"github.com/spendora/expense-qa/internal/history"
	"github.com/spendora/expense-qa/internal/query"
	"github.com/spendora/expense-qa/internal/store"
	"github.com/spendora/expense-qa/internal/summarizer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeTranslator returns a fixed payload or error and counts calls.
type fakeTranslator struct {
	payload *query.Payload
	err     error
	calls   int
}

func (f *fakeTranslator) Translate(ctx context.Context, question string) (*query.Payload, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload.Clone(), nil
}

// fakeExecutor captures the payload it receives and returns canned records.
type fakeExecutor struct {
	records  []store.Record
	err      error
	calls    int
	payload  *query.Payload
	inserted []*store.Expense
	listed   []store.Expense
}

func (f *fakeExecutor) Execute(ctx context.Context, payload *query.Payload) ([]store.Record, error) {
	f.calls++
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeExecutor) Insert(ctx context.Context, expense *store.Expense) (string, error) {
	f.inserted = append(f.inserted, expense)
	return "generated-id", nil
}

func (f *fakeExecutor) List(ctx context.Context, tenantID string, limit int64) ([]store.Expense, error) {
	return f.listed, nil
}

// fakeHistory captures recorded translations.
type fakeHistory struct {
	tenantID string
	question string
	payload  string
	shape    string
	calls    int
}

func (f *fakeHistory) Record(ctx context.Context, tenantID, question, payload, shape string) error {
	f.calls++
	f.tenantID = tenantID
	f.question = question
	f.payload = payload
	f.shape = shape
	return nil
}

func (f *fakeHistory) List(ctx context.Context, tenantID string, limit int) ([]history.Entry, error) {
	return nil, nil
}

func fixedClock() time.Time {
	return time.Date(2025, time.September, 17, 10, 0, 0, 0, time.UTC)
}

func newTestProcessor(t *fakeTranslator, e *fakeExecutor) *Processor {
	p := New(t, e, summarizer.New(nil), Config{})
	p.now = fixedClock
	return p
}

func TestProcessQuestion_InjectsDateRangeAndTenant(t *testing.T) {
	translator := &fakeTranslator{
		payload: &query.Payload{
			Shape:  query.ShapeFilter,
			Filter: query.Filter{"category": "groceries"},
		},
	}
	executor := &fakeExecutor{
		records: []store.Record{
			{"amount": 120.0, "reason": "milk", "category": "groceries", "date": "05/09/2025"},
			{"amount": 80.0, "reason": "bread", "category": "groceries", "date": "12/09/2025"},
		},
	}
	p := newTestProcessor(translator, executor)

	response, err := p.ProcessQuestion(context.Background(), &QueryRequest{
		Question: "how much did I spend on groceries?",
		UserID:   "u1",
	})
	require.NoError(t, err)

	require.NotNil(t, executor.payload)
	assert.Equal(t, query.ShapeFilter, executor.payload.Shape)
	assert.Equal(t, "u1", executor.payload.Filter["userId"])
	assert.Equal(t, map[string]interface{}{
		"$gte": "01/09/2025",
		"$lte": "17/09/2025",
	}, executor.payload.Filter["date"])

	assert.True(t, response.ResultsAvailable)
	assert.Equal(t, 2, response.Count)
	require.NotNil(t, response.Summary)
	assert.Equal(t, 200.0, response.Summary.Total)
}

func TestProcessQuestion_PipelineTenantScoping(t *testing.T) {
	translator := &fakeTranslator{
		payload: &query.Payload{
			Shape: query.ShapePipeline,
			Pipeline: []query.Stage{
				{"$match": map[string]interface{}{"category": "food"}},
				{"$group": map[string]interface{}{"_id": "$category", "total": map[string]interface{}{"$sum": "$amount"}}},
			},
		},
	}
	executor := &fakeExecutor{records: []store.Record{{"_id": "food", "total": 300.0}}}
	p := newTestProcessor(translator, executor)

	_, err := p.ProcessQuestion(context.Background(), &QueryRequest{
		Question: "total per category",
		UserID:   "u1",
	})
	require.NoError(t, err)

	require.NotNil(t, executor.payload)
	require.Equal(t, query.ShapePipeline, executor.payload.Shape)

	match, ok := executor.payload.Pipeline[0]["$match"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "u1", match["userId"])
	assert.Equal(t, map[string]interface{}{
		"$gte": "01/09/2025",
		"$lte": "17/09/2025",
	}, match["date"])
}

func TestProcessQuestion_TranslationFailureSkipsExecutor(t *testing.T) {
	translator := &fakeTranslator{
		err: errors.New(errors.ErrCodeTranslationFailed, "generator returned garbage"),
	}
	executor := &fakeExecutor{}
	p := newTestProcessor(translator, executor)

	_, err := p.ProcessQuestion(context.Background(), &QueryRequest{
		Question: "how much did I spend?",
		UserID:   "u1",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTranslationFailed, errors.Code(err))
	assert.Equal(t, 0, executor.calls, "executor must not run after a translation failure")
}

func TestProcessQuestion_ExecutionFailurePropagates(t *testing.T) {
	translator := &fakeTranslator{
		payload: &query.Payload{Shape: query.ShapeFilter, Filter: query.Filter{}},
	}
	executor := &fakeExecutor{
		err: errors.New(errors.ErrCodeExecutionFailed, "collection unavailable"),
	}
	p := newTestProcessor(translator, executor)

	_, err := p.ProcessQuestion(context.Background(), &QueryRequest{
		Question: "how much did I spend?",
		UserID:   "u1",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExecutionFailed, errors.Code(err))
}

func TestProcessQuestion_InputValidation(t *testing.T) {
	tests := []struct {
		name         string
		request      QueryRequest
		expectedCode errors.ErrorCode
	}{
		{
			name:         "empty question",
			request:      QueryRequest{Question: "   ", UserID: "u1"},
			expectedCode: errors.ErrCodeMissingRequired,
		},
		{
			name:         "missing userId",
			request:      QueryRequest{Question: "how much did I spend?"},
			expectedCode: errors.ErrCodeMissingRequired,
		},
		{
			name: "question over length limit",
			request: QueryRequest{
				Question: string(bytes.Repeat([]byte("x"), 501)),
				UserID:   "u1",
			},
			expectedCode: errors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			translator := &fakeTranslator{
				payload: &query.Payload{Shape: query.ShapeFilter, Filter: query.Filter{}},
			}
			p := newTestProcessor(translator, &fakeExecutor{})

			_, err := p.ProcessQuestion(context.Background(), &tt.request)
			require.Error(t, err)
			assert.Equal(t, tt.expectedCode, errors.Code(err))
			assert.Equal(t, 0, translator.calls)
		})
	}
}

func TestProcessQuestion_EmptyResults(t *testing.T) {
	translator := &fakeTranslator{
		payload: &query.Payload{Shape: query.ShapeFilter, Filter: query.Filter{}},
	}
	executor := &fakeExecutor{records: []store.Record{}}
	p := newTestProcessor(translator, executor)

	response, err := p.ProcessQuestion(context.Background(), &QueryRequest{
		Question: "how much did I spend?",
		UserID:   "u1",
	})
	require.NoError(t, err)

	assert.False(t, response.ResultsAvailable)
	assert.Equal(t, 0, response.Count)
	require.NotNil(t, response.Summary)
	assert.Equal(t, summarizer.NoDataSummary, response.Summary.Summary)
}

func TestProcessQuestion_CacheHit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	translator := &fakeTranslator{
		payload: &query.Payload{Shape: query.ShapeFilter, Filter: query.Filter{}},
	}
	executor := &fakeExecutor{
		records: []store.Record{{"amount": 50.0, "reason": "coffee"}},
	}
	p := newTestProcessor(translator, executor)
	p.SetCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	req := &QueryRequest{Question: "coffee spend this month", UserID: "u1"}

	first, err := p.ProcessQuestion(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, translator.calls)

	second, err := p.ProcessQuestion(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, translator.calls, "cached responses must not trigger translation")
	assert.Equal(t, first.Count, second.Count)
}

func TestProcessQuestion_CacheIsTenantScoped(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	translator := &fakeTranslator{
		payload: &query.Payload{Shape: query.ShapeFilter, Filter: query.Filter{}},
	}
	executor := &fakeExecutor{records: []store.Record{{"amount": 50.0}}}
	p := newTestProcessor(translator, executor)
	p.SetCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	_, err = p.ProcessQuestion(context.Background(), &QueryRequest{Question: "total spend", UserID: "u1"})
	require.NoError(t, err)

	_, err = p.ProcessQuestion(context.Background(), &QueryRequest{Question: "total spend", UserID: "u2"})
	require.NoError(t, err)

	assert.Equal(t, 2, translator.calls, "a different tenant must not see another tenant's cache entry")
}

func TestProcessQuestion_RecordsPreScopedTranslation(t *testing.T) {
	translator := &fakeTranslator{
		payload: &query.Payload{
			Shape:  query.ShapeFilter,
			Filter: query.Filter{"category": "travel"},
		},
	}
	executor := &fakeExecutor{records: []store.Record{{"amount": 10.0}}}
	hist := &fakeHistory{}
	p := newTestProcessor(translator, executor)
	p.SetHistoryStore(hist)

	_, err := p.ProcessQuestion(context.Background(), &QueryRequest{
		Question: "travel expenses",
		UserID:   "u1",
	})
	require.NoError(t, err)

	require.Equal(t, 1, hist.calls)
	assert.Equal(t, "u1", hist.tenantID)
	assert.Equal(t, "travel expenses", hist.question)
	assert.Equal(t, "filter", hist.shape)
	assert.NotContains(t, hist.payload, "userId",
		"history must store the translation before tenant scoping")
	assert.NotContains(t, hist.payload, "date",
		"history must store the translation before the default date range")
}

func TestHandleQuery_HTTP(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		translator     *fakeTranslator
		executor       *fakeExecutor
		expectedStatus int
		checkResponse  func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "successful question",
			body: `{"question":"how much did I spend?","userId":"u1"}`,
			translator: &fakeTranslator{
				payload: &query.Payload{Shape: query.ShapeFilter, Filter: query.Filter{}},
			},
			executor:       &fakeExecutor{records: []store.Record{{"amount": 42.0}}},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var response QueryResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.True(t, response.ResultsAvailable)
				require.NotNil(t, response.Summary)
				assert.Equal(t, 42.0, response.Summary.Total)
			},
		},
		{
			name:           "malformed body",
			body:           `{"userId":"u1"}`,
			translator:     &fakeTranslator{},
			executor:       &fakeExecutor{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "translation failure maps to bad gateway",
			body: `{"question":"how much did I spend?","userId":"u1"}`,
			translator: &fakeTranslator{
				err: errors.New(errors.ErrCodeTranslationFailed, "no candidates"),
			},
			executor:       &fakeExecutor{},
			expectedStatus: http.StatusBadGateway,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var response map[string]interface{}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				errorObj := response["error"].(map[string]interface{})
				assert.Equal(t, "TRANSLATION_FAILED", errorObj["code"])
			},
		},
		{
			name: "execution failure maps to internal error",
			body: `{"question":"how much did I spend?","userId":"u1"}`,
			translator: &fakeTranslator{
				payload: &query.Payload{Shape: query.ShapeFilter, Filter: query.Filter{}},
			},
			executor: &fakeExecutor{
				err: errors.New(errors.ErrCodeExecutionFailed, "collection unavailable"),
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(tt.translator, tt.executor)
			r := p.SetupRoutes(nil)

			req, _ := http.NewRequest("POST", "/api/v1/query", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
		})
	}
}

func TestHandleInsertExpense(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		checkExecutor  func(*testing.T, *fakeExecutor)
	}{
		{
			name:           "valid expense",
			body:           `{"amount":120.5,"reason":"milk","category":"groceries","date":"05/09/2025","userId":"u1"}`,
			expectedStatus: http.StatusCreated,
			checkExecutor: func(t *testing.T, e *fakeExecutor) {
				require.Len(t, e.inserted, 1)
				assert.Equal(t, "u1", e.inserted[0].UserID)
				assert.Equal(t, "05/09/2025", e.inserted[0].Date)
			},
		},
		{
			name:           "date defaults to today",
			body:           `{"amount":10,"reason":"coffee","userId":"u1"}`,
			expectedStatus: http.StatusCreated,
			checkExecutor: func(t *testing.T, e *fakeExecutor) {
				require.Len(t, e.inserted, 1)
				assert.Equal(t, "17/09/2025", e.inserted[0].Date)
			},
		},
		{
			name:           "rejects bad date format",
			body:           `{"amount":10,"reason":"coffee","date":"2025-09-05","userId":"u1"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "rejects non-positive amount",
			body:           `{"amount":0,"reason":"coffee","userId":"u1"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "rejects missing userId",
			body:           `{"amount":10,"reason":"coffee"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := &fakeExecutor{}
			p := newTestProcessor(&fakeTranslator{}, executor)
			r := p.SetupRoutes(nil)

			req, _ := http.NewRequest("POST", "/api/v1/expenses", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.checkExecutor != nil {
				tt.checkExecutor(t, executor)
			}
		})
	}
}

func TestHandleListExpenses(t *testing.T) {
	executor := &fakeExecutor{
		listed: []store.Expense{
			{Amount: 10, Reason: "coffee", UserID: "u1"},
		},
	}
	p := newTestProcessor(&fakeTranslator{}, executor)
	r := p.SetupRoutes(nil)

	req, _ := http.NewRequest("GET", "/api/v1/expenses?userId=u1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(1), response["count"])
}

func TestGetErrorStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid input", errors.New(errors.ErrCodeInvalidInput, "bad"), http.StatusBadRequest},
		{"missing field", errors.New(errors.ErrCodeMissingRequired, "bad"), http.StatusBadRequest},
		{"not authenticated", errors.New(errors.ErrCodeNotAuthenticated, "bad"), http.StatusUnauthorized},
		{"budget exceeded", errors.New(errors.ErrCodeBudgetExceeded, "bad"), http.StatusTooManyRequests},
		{"translation failed", errors.New(errors.ErrCodeTranslationFailed, "bad"), http.StatusBadGateway},
		{"no candidate", errors.New(errors.ErrCodeNoCandidate, "bad"), http.StatusBadGateway},
		{"execution failed", errors.New(errors.ErrCodeExecutionFailed, "bad"), http.StatusInternalServerError},
		{"plain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, getErrorStatusCode(tt.err))
		})
	}
}
