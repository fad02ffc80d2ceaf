// Package history persists past question translations in PostgreSQL and
// serves similar past questions for prompt enrichment via pgvector
// similarity search.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/spendora/expense-qa/internal/observability"
	"github.com/spendora/expense-qa/internal/translator"
)

// Config holds PostgreSQL connection configuration
type Config struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

// Entry is one recorded translation.
type Entry struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Question  string    `json:"question"`
	Payload   string    `json:"payload"`
	Shape     string    `json:"shape"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the PostgreSQL-backed translation history.
type Store struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewStore opens the history database and verifies the connection
func NewStore(config Config) (*Store, error) {
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{
		db:     db,
		logger: observability.NewLogger("history"),
	}, nil
}

// Ping tests the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one successful translation together with its question
// embedding. Re-asking the same question for the same tenant refreshes the
// stored payload instead of inserting a duplicate.
func (s *Store) Record(ctx context.Context, tenantID, question, payload, shape string) error {
	start := time.Now()
	vector := pgvector.NewVector(EmbedQuestion(question))

	insertQuery := `
		INSERT INTO query_translations (id, tenant_id, question, payload, shape, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, question) DO UPDATE SET
			payload = $4,
			shape = $5,
			embedding = $6,
			created_at = $7
	`

	_, err := s.db.ExecContext(ctx, insertQuery,
		uuid.New().String(), tenantID, question, payload, shape, vector, time.Now().UTC())
	observability.RecordHistoryMetrics("record", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to record translation: %w", err)
	}

	return nil
}

// similarTranslationsQuery only matches rows owned by the requesting tenant.
// Past questions are user data; serving them as examples to another tenant
// would leak them into that tenant's prompts and possibly its responses.
const similarTranslationsQuery = `
	SELECT question, payload,
	       1 - (embedding <=> $1) AS similarity
	FROM query_translations
	WHERE tenant_id = $2
	  AND 1 - (embedding <=> $1) > 0.8
	ORDER BY similarity DESC
	LIMIT 3
`

// SimilarTranslations returns the tenant's past questions close to the given
// one, ranked by cosine similarity. It satisfies the example provider used
// for prompt enrichment; a weak match set is simply an empty slice, never an
// error. The tenant comes from the request context; without one no examples
// are served.
func (s *Store) SimilarTranslations(ctx context.Context, question string) ([]translator.Example, error) {
	tenantID := observability.GetTenantID(ctx)
	if tenantID == "" {
		return nil, nil
	}

	start := time.Now()
	vector := pgvector.NewVector(EmbedQuestion(question))

	rows, err := s.db.QueryContext(ctx, similarTranslationsQuery, vector, tenantID)
	observability.RecordHistoryMetrics("similar", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar translations: %w", err)
	}
	defer rows.Close()

	var examples []translator.Example
	for rows.Next() {
		var example translator.Example
		var similarity float64
		if err := rows.Scan(&example.Question, &example.Payload, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan similar translation row: %w", err)
		}
		examples = append(examples, example)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating similar translation rows: %w", err)
	}

	return examples, nil
}

// List returns a tenant's recorded translations, newest first.
func (s *Store) List(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, question, payload, shape, created_at
		FROM query_translations
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query translation history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.Question, &entry.Payload, &entry.Shape, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan translation history row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating translation history rows: %w", err)
	}

	return entries, nil
}
