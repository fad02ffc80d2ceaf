package llm

import (
	"context"
)

// Client interface for text generator integration
type Client interface {
	// Generate sends a prompt and returns the raw concatenated candidate text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for text generator clients
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout int // seconds
}
