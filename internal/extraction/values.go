package extraction

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DateLayouts are the date formats accepted from documents, tried in order.
// Day-first layouts win over month-first ones for numeric dates.
var DateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02.01.2006",
	"January 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// ParseDate parses s with DateLayouts. A leading ISO date followed by a time
// is accepted too.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

var errNoDigits = errors.New("no digits")

// ParseMoney parses an amount as printed on documents. Currency symbols and
// codes are ignored, parentheses or a minus sign mark negatives, and the
// decimal separator is inferred: the last of "," and "." when both appear, a
// lone "," followed by exactly three digits is a thousands separator, and a
// lone "." is always decimal.
func ParseMoney(s string) (float64, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimSuffix(s, "/-")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-', r == '\u2212':
			negative = true
		case r == ' ', r == '\'', r == '\u00a0', r == '\u202f':
			// digit grouping
		case unicode.IsLetter(r), unicode.Is(unicode.Sc, r), unicode.IsSpace(r):
			// currency symbols and codes
		default:
			return 0, fmt.Errorf("unexpected character %q in amount %q", r, s)
		}
	}

	digits := strings.Trim(b.String(), ".,")
	if digits == "" {
		return 0, fmt.Errorf("amount %q: %w", s, errNoDigits)
	}

	lastComma := strings.LastIndexByte(digits, ',')
	lastDot := strings.LastIndexByte(digits, '.')
	var normalized string
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			normalized = strings.ReplaceAll(digits, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(digits, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(digits, ",") > 1 || len(digits)-lastComma-1 == 3 {
			normalized = strings.ReplaceAll(digits, ",", "")
		} else {
			normalized = strings.Replace(digits, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(digits, ".") > 1 {
			normalized = strings.ReplaceAll(digits, ".", "")
		} else {
			normalized = digits
		}
	default:
		normalized = digits
	}
	if strings.Count(normalized, ".") > 1 {
		return 0, fmt.Errorf("ambiguous amount %q", s)
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	if negative {
		v = -v
	}
	return v, nil
}

// toNumber converts a decoded JSON value to a float.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("not a finite number")
		}
		return n, nil
	case string:
		return ParseMoney(n)
	case bool:
		return 0, fmt.Errorf("boolean is not a number")
	}
	return 0, fmt.Errorf("%T is not a number", v)
}

// roundCents rounds to two decimals for comparisons of money.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
