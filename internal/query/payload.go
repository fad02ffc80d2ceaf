// Package query turns raw parsed generator output into a well-formed,
// tenant-scoped query payload for the expense store.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/spendora/expense-qa/internal/errors"
)

// Shape discriminates the two mutually exclusive query shapes.
type Shape string

const (
	ShapeFilter   Shape = "filter"
	ShapePipeline Shape = "pipeline"
)

// Filter is a single constraint set selecting matching expense records.
type Filter = map[string]interface{}

// Stage is one aggregation pipeline stage, keyed by a single stage operator.
type Stage = map[string]interface{}

// Payload is the normalized query representation. Exactly one of Filter or
// Pipeline is populated, according to Shape. Every downstream step pattern
// matches on Shape once instead of re-probing the underlying value.
type Payload struct {
	Shape    Shape
	Filter   Filter
	Pipeline []Stage
}

// recognizedStages lists the pipeline stage operators the expense store
// accepts. Anything else coming back from the generator is treated as a
// parse-equivalent failure.
var recognizedStages = map[string]bool{
	"$match":     true,
	"$group":     true,
	"$sort":      true,
	"$limit":     true,
	"$skip":      true,
	"$project":   true,
	"$count":     true,
	"$unwind":    true,
	"$addFields": true,
}

// Normalize classifies a raw parsed value as a Filter or a Pipeline and
// reshapes it into the canonical Payload form.
//
// A sequence is a Pipeline; a map is a Filter, unless it is one of the two
// historical envelope conventions the generator has been observed to emit:
// {"find": ..., "filter": {...}} unwraps to the inner Filter, and
// {"aggregate": [...]} unwraps to a Pipeline.
//
// The returned Payload is a deep copy; the caller's value is never mutated.
func Normalize(raw interface{}) (*Payload, error) {
	switch value := raw.(type) {
	case []interface{}:
		pipeline, err := normalizePipeline(value)
		if err != nil {
			return nil, err
		}
		return &Payload{Shape: ShapePipeline, Pipeline: pipeline}, nil

	case map[string]interface{}:
		// Envelope: {"aggregate": [...]}
		if agg, ok := value["aggregate"]; ok {
			stages, ok := agg.([]interface{})
			if !ok {
				return nil, errors.NewParseError(fmt.Errorf("aggregate envelope does not contain a sequence"))
			}
			pipeline, err := normalizePipeline(stages)
			if err != nil {
				return nil, err
			}
			return &Payload{Shape: ShapePipeline, Pipeline: pipeline}, nil
		}

		// Envelope: {"find": ..., "filter": {...}}
		if _, hasFind := value["find"]; hasFind {
			if inner, hasFilter := value["filter"]; hasFilter {
				filter, ok := inner.(map[string]interface{})
				if !ok {
					return nil, errors.NewParseError(fmt.Errorf("find envelope filter is not an object"))
				}
				return &Payload{Shape: ShapeFilter, Filter: cloneMap(filter)}, nil
			}
		}

		return &Payload{Shape: ShapeFilter, Filter: cloneMap(value)}, nil

	default:
		return nil, errors.NewParseError(fmt.Errorf("payload is neither an object nor a sequence: %T", raw))
	}
}

func normalizePipeline(raw []interface{}) ([]Stage, error) {
	pipeline := make([]Stage, 0, len(raw))
	for i, element := range raw {
		stage, ok := element.(map[string]interface{})
		if !ok {
			return nil, errors.NewParseError(fmt.Errorf("pipeline element %d is not an object: %T", i, element))
		}
		if len(stage) != 1 {
			return nil, errors.NewParseError(fmt.Errorf("pipeline element %d must contain exactly one stage operator, got %d keys", i, len(stage)))
		}
		for operator := range stage {
			if !recognizedStages[operator] {
				return nil, errors.NewParseError(fmt.Errorf("pipeline element %d uses unrecognized stage operator %q", i, operator))
			}
		}
		pipeline = append(pipeline, cloneMap(stage))
	}
	return pipeline, nil
}

// Clone returns a deep copy of the payload so normalization steps can build
// on each other without aliasing.
func (p *Payload) Clone() *Payload {
	copied := &Payload{Shape: p.Shape}
	if p.Filter != nil {
		copied.Filter = cloneMap(p.Filter)
	}
	if p.Pipeline != nil {
		copied.Pipeline = make([]Stage, len(p.Pipeline))
		for i, stage := range p.Pipeline {
			copied.Pipeline[i] = cloneMap(stage)
		}
	}
	return copied
}

// Serialize returns the JSON encoding of the active shape.
func (p *Payload) Serialize() ([]byte, error) {
	if p.Shape == ShapePipeline {
		return json.Marshal(p.Pipeline)
	}
	return json.Marshal(p.Filter)
}

func cloneMap(src map[string]interface{}) map[string]interface{} {
	dst := make(map[string]interface{}, len(src))
	for key, value := range src {
		dst[key] = cloneValue(value)
	}
	return dst
}

func cloneValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		return cloneMap(typed)
	case []interface{}:
		cloned := make([]interface{}, len(typed))
		for i, element := range typed {
			cloned[i] = cloneValue(element)
		}
		return cloned
	default:
		return typed
	}
}
