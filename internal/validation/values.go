package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"shipflow/internal/fieldpath"
)

var (
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	statePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

const dateLayout = "2006-01-02"

// filled reports whether a form value counts as entered. Zero numbers, blank
// strings and empty collections do not.
func filled(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case bool:
		return true
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, toString(e))
		}
		return out
	}
	return nil
}

func stringAt(record fieldpath.Record, path string) string {
	v, _ := fieldpath.Get(record, fieldpath.MustParse(path))
	return toString(v)
}

func floatAt(record fieldpath.Record, path string) float64 {
	v, _ := fieldpath.Get(record, fieldpath.MustParse(path))
	f, _ := toFloat(v)
	return f
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func positiveNumber(label string) Check {
	return func(v any, _ fieldpath.Record) (string, string) {
		f, ok := toFloat(v)
		if !ok {
			return label + " must be a number", ""
		}
		if f <= 0 {
			return label + " must be greater than zero", ""
		}
		return "", ""
	}
}

func nonNegativeNumber(label string) Check {
	return func(v any, _ fieldpath.Record) (string, string) {
		f, ok := toFloat(v)
		if !ok {
			return label + " must be a number", ""
		}
		if f < 0 {
			return label + " cannot be negative", ""
		}
		return "", ""
	}
}

func matches(re *regexp.Regexp, msg string) Check {
	return func(v any, _ fieldpath.Record) (string, string) {
		if !re.MatchString(toString(v)) {
			return msg, ""
		}
		return "", ""
	}
}

func phoneCheck(v any, _ fieldpath.Record) (string, string) {
	if n := digitCount(toString(v)); n < 10 || n > 15 {
		return "Phone number must have 10 to 15 digits", ""
	}
	return "", ""
}

func maxLength(n int, label string) Check {
	return func(v any, _ fieldpath.Record) (string, string) {
		if len([]rune(toString(v))) > n {
			return fmt.Sprintf("%s must be at most %d characters", label, n), ""
		}
		return "", ""
	}
}

func oneOf[T ~string](allowed []T, label string) Check {
	return func(v any, _ fieldpath.Record) (string, string) {
		s := toString(v)
		for _, a := range allowed {
			if string(a) == s {
				return "", ""
			}
		}
		return fmt.Sprintf("%s %q is not supported", label, s), ""
	}
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, s)
	return t, err == nil
}

func pathEquals(path, want string) func(fieldpath.Record) bool {
	return func(r fieldpath.Record) bool { return stringAt(r, path) == want }
}
