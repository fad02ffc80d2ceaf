package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date placeholder tokens the generator is instructed to emit for
// "current month" style questions. They stand for the calendar values at the
// moment of execution and are resolved textually against the serialized
// payload, which keeps resolution shape-agnostic.
const (
	PlaceholderYear  = "%Y"
	PlaceholderMonth = "%m"
	PlaceholderDay   = "%d"
)

// ResolvePlaceholders substitutes every date placeholder token with the
// concrete calendar value derived from now: four-digit year, two-digit month
// and two-digit day of month. All tokens of the same kind resolve to the same
// value within one call.
//
// This must run exactly once per request, before the range and tenant
// injectors, so injected literal date strings are never reinterpreted as
// substitution targets.
func ResolvePlaceholders(p *Payload, now time.Time) (*Payload, error) {
	serialized, err := p.Serialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}

	replacer := strings.NewReplacer(
		PlaceholderYear, fmt.Sprintf("%04d", now.Year()),
		PlaceholderMonth, fmt.Sprintf("%02d", int(now.Month())),
		PlaceholderDay, fmt.Sprintf("%02d", now.Day()),
	)
	resolved := replacer.Replace(string(serialized))

	result := &Payload{Shape: p.Shape}
	switch p.Shape {
	case ShapePipeline:
		if err := json.Unmarshal([]byte(resolved), &result.Pipeline); err != nil {
			return nil, fmt.Errorf("failed to deserialize resolved pipeline: %w", err)
		}
	default:
		if err := json.Unmarshal([]byte(resolved), &result.Filter); err != nil {
			return nil, fmt.Errorf("failed to deserialize resolved filter: %w", err)
		}
	}

	return result, nil
}
