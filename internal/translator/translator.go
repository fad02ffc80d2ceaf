// Package translator turns a natural-language question into a normalized
// query payload via a single text-generator round-trip.
package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/spendora/expense-qa/internal/errors"
	"github.com/spendora/expense-qa/internal/llm"
	"github.com/spendora/expense-qa/internal/observability"
	"github.com/spendora/expense-qa/internal/query"
)

// Example is a past question and the serialized payload it translated to,
// used as an additional few-shot example in the prompt.
type Example struct {
	Question string
	Payload  string
}

// ExampleProvider supplies similar past translations for prompt enrichment.
// Providers are optional; a nil provider or a provider error only means the
// prompt carries the fixed examples.
type ExampleProvider interface {
	SimilarTranslations(ctx context.Context, question string) ([]Example, error)
}

// Translator orchestrates the translation call: prompt construction, one
// generator round-trip, payload extraction, and normalization.
type Translator struct {
	client   llm.Client
	template string
	examples ExampleProvider
	logger   *observability.Logger
}

// New creates a Translator. An empty template selects DefaultPromptTemplate;
// examples may be nil.
func New(client llm.Client, template string, examples ExampleProvider) *Translator {
	if template == "" {
		template = DefaultPromptTemplate
	}
	return &Translator{
		client:   client,
		template: template,
		examples: examples,
		logger:   observability.NewLogger("translator"),
	}
}

// Translate converts a question into a normalized query payload.
//
// Every failure mode of the translation stage - transport errors, missing
// candidates, unextractable or unparsable output, malformed shapes - is
// caught here and returned as a single typed translation failure. Nothing
// escapes as a panic and no partial payload is ever returned.
func (t *Translator) Translate(ctx context.Context, question string) (*query.Payload, error) {
	prompt := t.buildPrompt(ctx, question)

	raw, err := t.client.Generate(ctx, prompt)
	if err != nil {
		t.logger.Error(ctx, "Generator call failed during translation", err, map[string]interface{}{
			"question": question,
		})
		return nil, errors.NewTranslationError(err)
	}

	parsed, err := llm.ExtractPayload(raw)
	if err != nil {
		t.logger.Error(ctx, "Failed to extract payload from generator output", err, map[string]interface{}{
			"question":   question,
			"raw_length": len(raw),
		})
		return nil, errors.NewTranslationError(err)
	}

	payload, err := query.Normalize(parsed)
	if err != nil {
		t.logger.Error(ctx, "Generator produced a malformed query shape", err, map[string]interface{}{
			"question": question,
		})
		return nil, errors.NewTranslationError(err)
	}

	t.logger.Debug(ctx, "Question translated", map[string]interface{}{
		"question": question,
		"shape":    string(payload.Shape),
	})

	return payload, nil
}

// buildPrompt combines the instruction template, any similar past
// translations, and the question itself.
func (t *Translator) buildPrompt(ctx context.Context, question string) string {
	var sb strings.Builder
	sb.WriteString(t.template)

	if t.examples != nil {
		similar, err := t.examples.SimilarTranslations(ctx, question)
		if err != nil {
			// Similar translations are optional prompt enrichment only.
			t.logger.Warn(ctx, "Failed to fetch similar translations", map[string]interface{}{
				"error": err.Error(),
			})
		}
		for _, example := range similar {
			sb.WriteString(fmt.Sprintf("\n\nQ: %q\nA: %s", example.Question, example.Payload))
		}
	}

	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}
