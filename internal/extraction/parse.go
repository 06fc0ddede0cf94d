package extraction

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Saksha05/Invoices-Information-Extraction/internal/domain"
)

// RepairStep rewrites a model response that failed to parse. Steps run in
// order and each sees the output of the previous one.
type RepairStep struct {
	Name  string
	Apply func(string) string
}

var (
	StripCodeFences      = RepairStep{Name: "strip_code_fences", Apply: stripCodeFences}
	LargestObject        = RepairStep{Name: "largest_object", Apply: largestObject}
	RemoveTrailingCommas = RepairStep{Name: "remove_trailing_commas", Apply: removeTrailingCommas}
)

// DefaultRepairs is the repair chain used when none is configured.
func DefaultRepairs() []RepairStep {
	return []RepairStep{StripCodeFences, LargestObject}
}

var errNotObject = errors.New("response is not a JSON object")

// Parser decodes model responses into JSON objects.
type Parser struct {
	repairs []RepairStep
}

func NewParser(repairs []RepairStep) Parser {
	return Parser{repairs: repairs}
}

// Parse decodes raw strictly, then retries after each repair step. Failure is
// an ExtractionParseError carrying raw.
func (p Parser) Parse(raw string) (map[string]any, error) {
	text := strings.TrimSpace(raw)
	obj, err := decodeObject(text)
	if err == nil {
		return obj, nil
	}

	for _, step := range p.repairs {
		repaired := strings.TrimSpace(step.Apply(text))
		if repaired == text {
			continue
		}
		text = repaired
		obj, err = decodeObject(text)
		if err == nil {
			return obj, nil
		}
	}
	return nil, domain.NewExtractionParseError(raw, err)
}

func decodeObject(text string) (map[string]any, error) {
	if text == "" {
		return nil, errors.New("empty response")
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// largestObject returns the longest balanced {...} span, ignoring braces
// inside strings. Unbalanced input is returned unchanged.
func largestObject(s string) string {
	bestStart, bestEnd := -1, -1
	depth := 0
	start := -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && i+1-start > bestEnd-bestStart {
				bestStart, bestEnd = start, i+1
			}
		}
	}
	if bestStart < 0 {
		return s
	}
	return s[bestStart:bestEnd]
}

// removeTrailingCommas drops commas directly before } or ], outside strings.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\r' || s[j] == '\t') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
