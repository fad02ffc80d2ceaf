package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spendora/expense-qa/internal/errors"
)

const (
	GeminiAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel     = "gemini-2.0-flash"
)

// GeminiClient implements the Client interface using the Gemini generateContent API
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// Gemini API request structures
type GeminiRequest struct {
	Contents []Content `json:"contents"`
}

type Content struct {
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

// Gemini API response structures
type GeminiResponse struct {
	Candidates []Candidate `json:"candidates"`
}

type Candidate struct {
	Content Content `json:"content"`
}

// Error response structure
type GeminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type GeminiErrorResponse struct {
	Error GeminiError `json:"error"`
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if model == "" {
		model = DefaultModel
	}

	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: GeminiAPIBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Generate sends a prompt to Gemini and returns the concatenated candidate text.
// Absence of candidates is a hard failure for the call.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	request := GeminiRequest{
		Contents: []Content{
			{Parts: []Part{{Text: prompt}}},
		},
	}

	response, err := c.sendWithRetry(ctx, request)
	if err != nil {
		return "", err
	}

	if len(response.Candidates) == 0 {
		return "", errors.NewNoCandidateError()
	}

	// Join all parts of the first candidate, matching the generator's own
	// convention of splitting long answers across parts.
	var sb strings.Builder
	for i, part := range response.Candidates[0].Content.Parts {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(part.Text)
	}

	return strings.TrimSpace(sb.String()), nil
}

// sendGeminiRequest handles the HTTP communication with the Gemini API
func (c *GeminiClient) sendGeminiRequest(ctx context.Context, request GeminiRequest) (*GeminiResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleAPIError(resp.StatusCode, body)
	}

	var geminiResponse GeminiResponse
	if err := json.Unmarshal(body, &geminiResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &geminiResponse, nil
}

// handleAPIError processes Gemini API errors
func (c *GeminiClient) handleAPIError(statusCode int, body []byte) error {
	var errorResponse GeminiErrorResponse
	if err := json.Unmarshal(body, &errorResponse); err != nil {
		return fmt.Errorf("API error %d: %s", statusCode, string(body))
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("invalid API key: %s", errorResponse.Error.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limit exceeded: %s", errorResponse.Error.Message)
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s", errorResponse.Error.Message)
	case http.StatusInternalServerError:
		return fmt.Errorf("Gemini API internal error: %s", errorResponse.Error.Message)
	default:
		return fmt.Errorf("Gemini API error %d: %s", statusCode, errorResponse.Error.Message)
	}
}
