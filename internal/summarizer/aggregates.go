package summarizer

import (
	"regexp"
	"time"

	"github.com/spendora/expense-qa/internal/store"
)

var questionDateRegex = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

// aggregates holds the locally computed numeric fields of a report. Local
// arithmetic is the source of truth; the generator only contributes prose.
type aggregates struct {
	Total            float64
	HighestExpense   float64
	AveragePerItem   float64
	AveragePerDay    float64
	TopCategory      string
	TopPaymentMethod string
}

// computeAggregates derives totals from the record set using standard
// sum/average semantics. The per-day average is only computed when the
// question itself names exactly two dd/mm/yyyy dates; the day count between
// them is inclusive on both ends.
func computeAggregates(question string, records []store.Record) aggregates {
	var agg aggregates

	categories := make(map[string]float64)
	payments := make(map[string]float64)

	for _, record := range records {
		amount, ok := amountOf(record)
		if !ok {
			continue
		}

		agg.Total += amount
		if amount > agg.HighestExpense {
			agg.HighestExpense = amount
		}
		if category, ok := record["category"].(string); ok && category != "" {
			categories[category] += amount
		}
		if payment, ok := record["paymentMethod"].(string); ok && payment != "" {
			payments[payment] += amount
		}
	}

	if len(records) > 0 {
		agg.AveragePerItem = agg.Total / float64(len(records))
	}

	if days, ok := dayCountFromQuestion(question); ok && days > 0 {
		agg.AveragePerDay = agg.Total / float64(days)
	}

	agg.TopCategory = topKey(categories)
	agg.TopPaymentMethod = topKey(payments)

	return agg
}

// amountOf reads the amount field with numeric coercion. Aggregation results
// reshape documents, so the field may be absent or carry a driver-native
// integer type.
func amountOf(record store.Record) (float64, bool) {
	switch amount := record["amount"].(type) {
	case float64:
		return amount, true
	case int32:
		return float64(amount), true
	case int64:
		return float64(amount), true
	case int:
		return float64(amount), true
	default:
		return 0, false
	}
}

// dayCountFromQuestion extracts an inclusive day count when the question
// contains exactly two dd/mm/yyyy dates.
func dayCountFromQuestion(question string) (int, bool) {
	matches := questionDateRegex.FindAllString(question, -1)
	if len(matches) != 2 {
		return 0, false
	}

	start, err := time.Parse("02/01/2006", matches[0])
	if err != nil {
		return 0, false
	}
	end, err := time.Parse("02/01/2006", matches[1])
	if err != nil {
		return 0, false
	}
	if end.Before(start) {
		return 0, false
	}

	return int(end.Sub(start).Hours()/24) + 1, true
}

// topKey returns the key with the largest sum. Ties break lexicographically
// so the winner does not depend on map iteration order.
func topKey(sums map[string]float64) string {
	var best string
	var bestSum float64
	for key, sum := range sums {
		switch {
		case best == "" || sum > bestSum:
			best, bestSum = key, sum
		case sum == bestSum && key < best:
			best = key
		}
	}
	return best
}
