// Package summarizer produces the human-readable report for an executed
// expense query. Numeric fields are always computed locally; the text
// generator is only asked for the prose summary and qualitative insights, so
// numbers stay deterministic and testable.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spendora/expense-qa/internal/llm"
	"github.com/spendora/expense-qa/internal/observability"
	"github.com/spendora/expense-qa/internal/store"
)

// Fixed summary texts for the deterministic no-call paths.
const (
	NoDataSummary  = "No data available to summarize."
	noMatchSummary = "No expenses matching %q were found."
)

// Report is the output artifact of a request. Summary is always populated;
// the numeric and categorical fields are zero/empty when there was nothing
// to aggregate.
type Report struct {
	Summary          string   `json:"summary"`
	Total            float64  `json:"total"`
	AveragePerItem   float64  `json:"averagePerItem"`
	AveragePerDay    float64  `json:"averagePerDay,omitempty"`
	TopCategory      string   `json:"topCategory,omitempty"`
	TopPaymentMethod string   `json:"topPaymentMethod,omitempty"`
	HighestExpense   float64  `json:"highestExpense"`
	Insights         []string `json:"insights,omitempty"`
}

// Summarizer turns a result set into a Report, optionally enriching it with
// one generator call.
type Summarizer struct {
	client llm.Client
	logger *observability.Logger
}

// New creates a Summarizer. A nil client disables the generator call and
// every report falls back to the deterministic local summary.
func New(client llm.Client) *Summarizer {
	return &Summarizer{
		client: client,
		logger: observability.NewLogger("summarizer"),
	}
}

// Summarize builds the report for a result set.
//
// Empty input and an empty post-filter set are handled without any generator
// call. Generator failures of any kind degrade to a report that still
// carries the locally computed aggregates; summarization never fails the
// request.
func (s *Summarizer) Summarize(ctx context.Context, question string, records []store.Record, searchTerm string) *Report {
	if len(records) == 0 {
		return &Report{Summary: NoDataSummary}
	}

	if searchTerm != "" {
		records = filterByReason(records, searchTerm)
		if len(records) == 0 {
			return &Report{Summary: fmt.Sprintf(noMatchSummary, searchTerm)}
		}
	}

	agg := computeAggregates(question, records)
	report := &Report{
		Total:            agg.Total,
		AveragePerItem:   agg.AveragePerItem,
		AveragePerDay:    agg.AveragePerDay,
		TopCategory:      agg.TopCategory,
		TopPaymentMethod: agg.TopPaymentMethod,
		HighestExpense:   agg.HighestExpense,
	}

	if s.client == nil {
		report.Summary = s.localSummary(agg, len(records))
		return report
	}

	raw, err := s.client.Generate(ctx, s.buildPrompt(question, records))
	if err != nil {
		s.logger.Warn(ctx, "Summarization call failed, using local summary", map[string]interface{}{
			"error": err.Error(),
		})
		report.Summary = s.localSummary(agg, len(records))
		return report
	}

	summary, insights, ok := parseStructuredSummary(raw)
	if !ok {
		// The generator answered but not in the requested structure; its raw
		// prose is still the best summary text available.
		report.Summary = strings.TrimSpace(raw)
		if report.Summary == "" {
			report.Summary = s.localSummary(agg, len(records))
		}
		return report
	}

	report.Summary = summary
	report.Insights = insights
	return report
}

// filterByReason keeps records whose reason contains the search term,
// case-insensitively.
func filterByReason(records []store.Record, searchTerm string) []store.Record {
	needle := strings.ToLower(searchTerm)
	filtered := make([]store.Record, 0, len(records))
	for _, record := range records {
		reason, _ := record["reason"].(string)
		if strings.Contains(strings.ToLower(reason), needle) {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// localSummary renders the deterministic fallback summary text.
func (s *Summarizer) localSummary(agg aggregates, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total spent: %.2f across %d expenses. Highest single expense: %.2f. Average per item: %.2f.",
		agg.Total, count, agg.HighestExpense, agg.AveragePerItem)
	if agg.AveragePerDay > 0 {
		fmt.Fprintf(&sb, " Average per day: %.2f.", agg.AveragePerDay)
	}
	if agg.TopCategory != "" {
		fmt.Fprintf(&sb, " Top category: %s.", agg.TopCategory)
	}
	if agg.TopPaymentMethod != "" {
		fmt.Fprintf(&sb, " Top payment method: %s.", agg.TopPaymentMethod)
	}
	return sb.String()
}

// buildPrompt asks the generator for prose and insights only. The numeric
// aggregates are computed locally, so the prompt explicitly forbids the
// generator from doing arithmetic.
func (s *Summarizer) buildPrompt(question string, records []store.Record) string {
	data, err := json.Marshal(records)
	if err != nil {
		data = []byte("[]")
	}

	var sb strings.Builder
	sb.WriteString("You are a financial data analyst AI.\n")
	sb.WriteString("Summarize the following expense query results for a non-technical user.\n\n")
	fmt.Fprintf(&sb, "User asked: %q\n", question)
	fmt.Fprintf(&sb, "Results: %s\n\n", data)
	sb.WriteString("Instructions:\n")
	sb.WriteString("1. Write a short plain-language summary of the results.\n")
	sb.WriteString("2. Highlight notable patterns or anomalies as insights (e.g. \"Most expenses are via UPI\").\n")
	sb.WriteString("3. Do NOT compute totals or averages; they are computed separately.\n")
	sb.WriteString("4. Respond with ONLY valid JSON: {\"summary\": string, \"insights\": [string]}")
	return sb.String()
}

// parseStructuredSummary leniently parses the generator's structured reply.
func parseStructuredSummary(raw string) (string, []string, bool) {
	parsed, err := llm.ExtractPayload(raw)
	if err != nil {
		return "", nil, false
	}

	object, ok := parsed.(map[string]interface{})
	if !ok {
		return "", nil, false
	}

	summary, ok := object["summary"].(string)
	if !ok || summary == "" {
		return "", nil, false
	}

	var insights []string
	if rawInsights, ok := object["insights"].([]interface{}); ok {
		for _, insight := range rawInsights {
			if text, ok := insight.(string); ok {
				insights = append(insights, text)
			}
		}
	}

	return summary, insights, true
}
