package llm

import (
	"regexp"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/spendora/expense-qa/internal/errors"
)

var codeFenceRegex = regexp.MustCompile("(?i)```(?:json5?)?")

// ExtractPayload pulls a structured payload out of raw generator text.
//
// Generator output is not guaranteed to be clean serialized data: it may wrap
// the payload in code fences and surround it with commentary. This strips the
// fences, bounds the text to the dominant JSON-like structure (first opening
// brace or bracket through the matching last closer), and parses the bounded
// substring leniently so trailing commas, unquoted keys and single quotes do
// not fail the call.
//
// Shared by the translator and the summarizer so the two call sites cannot
// diverge.
func ExtractPayload(raw string) (interface{}, error) {
	cleaned := strings.TrimSpace(codeFenceRegex.ReplaceAllString(raw, ""))

	bounded, ok := boundStructure(cleaned)
	if !ok {
		return nil, errors.NewExtractionError(raw)
	}

	var parsed interface{}
	if err := json5.Unmarshal([]byte(normalizeQuotes(bounded)), &parsed); err != nil {
		return nil, errors.NewParseError(err)
	}

	return parsed, nil
}

// normalizeQuotes rewrites single-quoted strings as double-quoted ones so the
// lenient parse accepts them. The parser already tolerates unquoted keys and
// trailing commas but rejects the single-quote string form. Quote characters
// inside strings are tracked so an apostrophe in a double-quoted value is
// left alone.
func normalizeQuotes(text string) string {
	var out strings.Builder
	out.Grow(len(text))

	const (
		stateBare = iota
		stateDouble
		stateSingle
	)

	state := stateBare
	escaped := false

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if escaped {
			if state == stateSingle && ch == '\'' {
				// \' has no meaning in a double-quoted string
				out.WriteByte('\'')
			} else {
				out.WriteByte('\\')
				out.WriteByte(ch)
			}
			escaped = false
			continue
		}

		if ch == '\\' && state != stateBare {
			escaped = true
			continue
		}

		switch state {
		case stateBare:
			switch ch {
			case '"':
				state = stateDouble
				out.WriteByte('"')
			case '\'':
				state = stateSingle
				out.WriteByte('"')
			default:
				out.WriteByte(ch)
			}
		case stateDouble:
			if ch == '"' {
				state = stateBare
			}
			out.WriteByte(ch)
		case stateSingle:
			switch ch {
			case '\'':
				state = stateBare
				out.WriteByte('"')
			case '"':
				out.WriteString(`\"`)
			default:
				out.WriteByte(ch)
			}
		}
	}

	return out.String()
}

// boundStructure returns the substring between the first opening brace or
// bracket and the last matching closer. The earlier of '{' and '[' decides
// which structure dominates, so a pipeline wrapped in prose that happens to
// mention braces still extracts as an array.
func boundStructure(text string) (string, bool) {
	braceStart := strings.IndexByte(text, '{')
	bracketStart := strings.IndexByte(text, '[')

	start, closer := braceStart, byte('}')
	if braceStart == -1 || (bracketStart != -1 && bracketStart < braceStart) {
		start, closer = bracketStart, ']'
	}

	if start == -1 {
		return "", false
	}

	end := strings.LastIndexByte(text, closer)
	if end == -1 || end < start {
		return "", false
	}

	return text[start : end+1], true
}
