package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendora/expense-qa/internal/errors"
)

func TestNormalize_FilterShapes(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		expected Filter
	}{
		{
			name:     "plain object is a filter",
			raw:      map[string]interface{}{"category": "groceries"},
			expected: Filter{"category": "groceries"},
		},
		{
			name: "find envelope unwraps to the inner filter",
			raw: map[string]interface{}{
				"find":   "expenses",
				"filter": map[string]interface{}{"paymentMethod": "upi"},
			},
			expected: Filter{"paymentMethod": "upi"},
		},
		{
			name:     "empty object is an empty filter",
			raw:      map[string]interface{}{},
			expected: Filter{},
		},
		{
			name: "object with filter key but no find key stays as-is",
			raw: map[string]interface{}{
				"filter": map[string]interface{}{"category": "food"},
			},
			expected: Filter{"filter": map[string]interface{}{"category": "food"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, ShapeFilter, payload.Shape)
			assert.Equal(t, tt.expected, payload.Filter)
			assert.Nil(t, payload.Pipeline)
		})
	}
}

func TestNormalize_PipelineShapes(t *testing.T) {
	tests := []struct {
		name     string
		raw      interface{}
		expected []Stage
	}{
		{
			name: "sequence is a pipeline",
			raw: []interface{}{
				map[string]interface{}{"$match": map[string]interface{}{"category": "food"}},
				map[string]interface{}{"$group": map[string]interface{}{"_id": "$category"}},
			},
			expected: []Stage{
				{"$match": map[string]interface{}{"category": "food"}},
				{"$group": map[string]interface{}{"_id": "$category"}},
			},
		},
		{
			name: "aggregate envelope unwraps to a pipeline",
			raw: map[string]interface{}{
				"aggregate": []interface{}{
					map[string]interface{}{"$match": map[string]interface{}{"type": "debit"}},
				},
			},
			expected: []Stage{
				{"$match": map[string]interface{}{"type": "debit"}},
			},
		},
		{
			name:     "empty sequence is an empty pipeline",
			raw:      []interface{}{},
			expected: []Stage{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, ShapePipeline, payload.Shape)
			assert.Equal(t, tt.expected, payload.Pipeline)
			assert.Nil(t, payload.Filter)
		})
	}
}

func TestNormalize_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
	}{
		{
			name: "scalar input",
			raw:  "how much did I spend",
		},
		{
			name: "numeric input",
			raw:  42.0,
		},
		{
			name: "nil input",
			raw:  nil,
		},
		{
			name: "pipeline element is not an object",
			raw:  []interface{}{"$match"},
		},
		{
			name: "pipeline stage with multiple operators",
			raw: []interface{}{
				map[string]interface{}{
					"$match": map[string]interface{}{},
					"$limit": 5,
				},
			},
		},
		{
			name: "unrecognized stage operator",
			raw: []interface{}{
				map[string]interface{}{"$merge": map[string]interface{}{"into": "other"}},
			},
		},
		{
			name: "aggregate envelope without a sequence",
			raw: map[string]interface{}{
				"aggregate": map[string]interface{}{"$match": map[string]interface{}{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Normalize(tt.raw)
			require.Error(t, err)
			assert.Nil(t, payload)
			assert.Equal(t, errors.ErrCodeParseFailed, errors.Code(err))
		})
	}
}

func TestNormalize_DoesNotAliasInput(t *testing.T) {
	raw := map[string]interface{}{
		"category": "groceries",
		"date":     map[string]interface{}{"$gte": "01/01/2025"},
	}

	payload, err := Normalize(raw)
	require.NoError(t, err)

	payload.Filter["category"] = "mutated"
	payload.Filter["date"].(map[string]interface{})["$gte"] = "mutated"

	assert.Equal(t, "groceries", raw["category"])
	assert.Equal(t, "01/01/2025", raw["date"].(map[string]interface{})["$gte"])
}

func TestPayload_Clone(t *testing.T) {
	original := &Payload{
		Shape: ShapePipeline,
		Pipeline: []Stage{
			{"$match": map[string]interface{}{"category": "food", "tags": []interface{}{"a", "b"}}},
		},
	}

	copied := original.Clone()
	copied.Pipeline[0]["$match"].(map[string]interface{})["category"] = "mutated"

	assert.Equal(t, "food", original.Pipeline[0]["$match"].(map[string]interface{})["category"])
}

func TestPayload_Serialize(t *testing.T) {
	filter := &Payload{Shape: ShapeFilter, Filter: Filter{"category": "food"}}
	data, err := filter.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"food"}`, string(data))

	pipeline := &Payload{
		Shape:    ShapePipeline,
		Pipeline: []Stage{{"$limit": 5}},
	}
	data, err = pipeline.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"$limit":5}]`, string(data))
}
