package query

import (
	"fmt"
	"time"
)

// DateFormat is the canonical persisted date convention: "dd/mm/yyyy".
const DateFormat = "02/01/2006"

// EnsureDateRange guarantees the payload carries a date constraint, injecting
// a default range from the first day of the current month through today
// (inclusive on both ends) when none is present.
//
// This is a policy default, not a correction of generator intent: the
// generator is instructed to omit an explicit range when the user says
// nothing about time, and the query must still be bounded.
//
// Idempotent: any existing date constraint, including one nested inside a
// logical combinator, is left untouched.
func EnsureDateRange(p *Payload, now time.Time) *Payload {
	defaultRange := map[string]interface{}{
		"$gte": fmt.Sprintf("01/%02d/%04d", int(now.Month()), now.Year()),
		"$lte": now.Format(DateFormat),
	}

	result := p.Clone()

	switch result.Shape {
	case ShapePipeline:
		for _, stage := range result.Pipeline {
			match, ok := stage["$match"].(map[string]interface{})
			if !ok {
				continue
			}
			if !hasDateConstraint(match) {
				match["date"] = defaultRange
			}
			return result
		}
		// No match stage at all: bound the whole pipeline with a new head stage.
		head := Stage{"$match": map[string]interface{}{"date": defaultRange}}
		result.Pipeline = append([]Stage{head}, result.Pipeline...)

	default:
		if !hasDateConstraint(result.Filter) {
			result.Filter["date"] = defaultRange
		}
	}

	return result
}

// hasDateConstraint reports whether a constraint set mentions the date field,
// either at the top level or inside $and/$or/$nor combinators.
func hasDateConstraint(constraints map[string]interface{}) bool {
	if _, ok := constraints["date"]; ok {
		return true
	}

	for _, combinator := range []string{"$and", "$or", "$nor"} {
		clauses, ok := constraints[combinator].([]interface{})
		if !ok {
			continue
		}
		for _, clause := range clauses {
			if nested, ok := clause.(map[string]interface{}); ok && hasDateConstraint(nested) {
				return true
			}
		}
	}

	return false
}
