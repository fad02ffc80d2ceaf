package translator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendora/expense-qa/internal/errors"
	"github.com/spendora/expense-qa/internal/query"
)

// recordingClient plays back a canned reply and captures the prompt.
type recordingClient struct {
	reply  string
	err    error
	prompt string
}

func (c *recordingClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.prompt = prompt
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

// staticExamples serves a fixed set of past translations.
type staticExamples struct {
	examples []Example
	err      error
}

func (s *staticExamples) SimilarTranslations(ctx context.Context, question string) ([]Example, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.examples, nil
}

func TestTranslate_FilterReply(t *testing.T) {
	client := &recordingClient{
		reply: "```json\n{\"reason\": {\"$regex\": \"milk\", \"$options\": \"i\"}}\n```",
	}
	tr := New(client, "", nil)

	payload, err := tr.Translate(context.Background(), "show milk expenses")
	require.NoError(t, err)

	assert.Equal(t, query.ShapeFilter, payload.Shape)
	assert.Equal(t, query.Filter{
		"reason": map[string]interface{}{"$regex": "milk", "$options": "i"},
	}, payload.Filter)
}

func TestTranslate_PipelineReply(t *testing.T) {
	client := &recordingClient{
		reply: `[{"$match": {"category": "food"}}, {"$group": {"_id": "$paymentMethod", "total": {"$sum": "$amount"}}}]`,
	}
	tr := New(client, "", nil)

	payload, err := tr.Translate(context.Background(), "total per payment method")
	require.NoError(t, err)

	assert.Equal(t, query.ShapePipeline, payload.Shape)
	require.Len(t, payload.Pipeline, 2)
	assert.Contains(t, payload.Pipeline[0], "$match")
	assert.Contains(t, payload.Pipeline[1], "$group")
}

func TestTranslate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		client *recordingClient
	}{
		{
			name:   "transport error",
			client: &recordingClient{err: assert.AnError},
		},
		{
			name:   "reply with no structure",
			client: &recordingClient{reply: "I cannot answer that."},
		},
		{
			name:   "reply with unparsable structure",
			client: &recordingClient{reply: `{"reason": }`},
		},
		{
			name:   "reply with a malformed pipeline stage",
			client: &recordingClient{reply: `[{"$lookup": {"from": "users"}}]`},
		},
		{
			name:   "scalar reply",
			client: &recordingClient{reply: `"just a string"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(tt.client, "", nil)

			payload, err := tr.Translate(context.Background(), "show milk expenses")
			require.Error(t, err)
			assert.Nil(t, payload)
			assert.Equal(t, errors.ErrCodeTranslationFailed, errors.Code(err))
		})
	}
}

func TestTranslate_NonObjectPipelineElementsFail(t *testing.T) {
	client := &recordingClient{reply: `[42, 43]`}
	tr := New(client, "", nil)

	_, err := tr.Translate(context.Background(), "show milk expenses")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTranslationFailed, errors.Code(err))
}

func TestBuildPrompt_IncludesTemplateAndQuestion(t *testing.T) {
	client := &recordingClient{reply: `{}`}
	tr := New(client, "", nil)

	_, err := tr.Translate(context.Background(), "show milk expenses")
	require.NoError(t, err)

	assert.Contains(t, client.prompt, "MongoDB assistant")
	assert.Contains(t, client.prompt, "Question: show milk expenses")
}

func TestBuildPrompt_CustomTemplate(t *testing.T) {
	client := &recordingClient{reply: `{}`}
	tr := New(client, "Translate questions about spending.", nil)

	_, err := tr.Translate(context.Background(), "total spend")
	require.NoError(t, err)

	assert.Contains(t, client.prompt, "Translate questions about spending.")
	assert.NotContains(t, client.prompt, "MongoDB assistant")
}

func TestBuildPrompt_SimilarTranslations(t *testing.T) {
	t.Run("examples are appended to the prompt", func(t *testing.T) {
		client := &recordingClient{reply: `{}`}
		provider := &staticExamples{
			examples: []Example{
				{Question: "grocery spend in march", Payload: `{"category":"groceries"}`},
			},
		}
		tr := New(client, "", provider)

		_, err := tr.Translate(context.Background(), "grocery spend in april")
		require.NoError(t, err)

		assert.Contains(t, client.prompt, "grocery spend in march")
		assert.Contains(t, client.prompt, `{"category":"groceries"}`)
	})

	t.Run("provider failure only drops the enrichment", func(t *testing.T) {
		client := &recordingClient{reply: `{"category": "groceries"}`}
		tr := New(client, "", &staticExamples{err: assert.AnError})

		payload, err := tr.Translate(context.Background(), "grocery spend")
		require.NoError(t, err)
		assert.Equal(t, query.ShapeFilter, payload.Shape)
	})
}
