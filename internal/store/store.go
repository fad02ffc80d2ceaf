// Package store provides the MongoDB-backed expense store. It is the query
// executor for the translation pipeline: payloads arrive fully normalized and
// tenant-scoped, and the store runs them without further inspection.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spendora/expense-qa/internal/errors"
	"github.com/spendora/expense-qa/internal/observability"
	"github.com/spendora/expense-qa/internal/query"
)

// Config holds MongoDB connection configuration
type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Expense is one stored expense entry.
type Expense struct {
	Amount          float64   `bson:"amount" json:"amount"`
	Reason          string    `bson:"reason" json:"reason"`
	Category        string    `bson:"category" json:"category"`
	Date            string    `bson:"date" json:"date"` // "dd/mm/yyyy"
	PaymentMethod   string    `bson:"paymentMethod" json:"paymentMethod"`
	Type            string    `bson:"type" json:"type"`
	UserID          string    `bson:"userId" json:"userId"`
	InsertTimestamp time.Time `bson:"insertTimestamp" json:"insertTimestamp"`
}

// Record is one document returned by a query. Find returns full expense
// entries; Aggregate may return reshaped documents (group keys, computed
// totals), so the result type stays schema-flexible rather than forcing
// every result through the Expense struct.
type Record = bson.M

// Store wraps the expenses collection
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	logger     *observability.Logger
}

// NewStore connects to MongoDB and verifies the connection
func NewStore(ctx context.Context, config Config) (*Store, error) {
	if config.Database == "" {
		config.Database = "spendora"
	}
	if config.Collection == "" {
		config.Collection = "expenses"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Store{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
		timeout:    config.Timeout,
		logger:     observability.NewLogger("store"),
	}, nil
}

// Execute dispatches a normalized payload to the matching collection
// operation and returns the ordered result set.
func (s *Store) Execute(ctx context.Context, payload *query.Payload) ([]Record, error) {
	if payload.Shape == query.ShapePipeline {
		return s.Aggregate(ctx, payload.Pipeline)
	}
	return s.Find(ctx, payload.Filter)
}

// Find runs a filter query against the expenses collection
func (s *Store) Find(ctx context.Context, filter query.Filter) ([]Record, error) {
	start := time.Now()

	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, errors.NewExecutionError(err, "find")
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.NewExecutionError(err, "find")
	}

	s.logger.Debug(ctx, "Find executed", map[string]interface{}{
		"records":     len(records),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	observability.RecordStoreMetrics("find", time.Since(start), nil)

	return records, nil
}

// Aggregate runs an aggregation pipeline against the expenses collection
func (s *Store) Aggregate(ctx context.Context, pipeline []query.Stage) ([]Record, error) {
	start := time.Now()

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.NewExecutionError(err, "aggregate")
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.NewExecutionError(err, "aggregate")
	}

	s.logger.Debug(ctx, "Aggregate executed", map[string]interface{}{
		"stages":      len(pipeline),
		"records":     len(records),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	observability.RecordStoreMetrics("aggregate", time.Since(start), nil)

	return records, nil
}

// Insert stores a new expense entry for a tenant
func (s *Store) Insert(ctx context.Context, expense *Expense) (string, error) {
	if expense.InsertTimestamp.IsZero() {
		expense.InsertTimestamp = time.Now().UTC()
	}

	result, err := s.collection.InsertOne(ctx, expense)
	if err != nil {
		return "", errors.NewExecutionError(err, "insert")
	}

	id := fmt.Sprintf("%v", result.InsertedID)
	return id, nil
}

// List returns a tenant's expenses, newest first
func (s *Store) List(ctx context.Context, tenantID string, limit int64) ([]Expense, error) {
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "insertTimestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, bson.M{query.TenantField: tenantID}, opts)
	if err != nil {
		return nil, errors.NewExecutionError(err, "list")
	}
	defer cursor.Close(ctx)

	var expenses []Expense
	if err := cursor.All(ctx, &expenses); err != nil {
		return nil, errors.NewExecutionError(err, "list")
	}

	return expenses, nil
}

// Ping tests the MongoDB connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the MongoDB client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
