package query

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// matchValue coerces a loosely typed request value into the type Match
// expects for field and op. It reports false when the value cannot be used.
func matchValue(field Field, op Op, value any) (any, bool) {
	if op == OpIn {
		values, ok := textValues(value)
		return values, ok && len(values) > 0
	}
	switch field.Kind() {
	case KindNumber:
		return numberValue(value)
	case KindDate:
		if op.IsDateComponent() {
			number, ok := numberValue(value)
			if !ok || number != math.Trunc(number) {
				return nil, false
			}
			return int(number), true
		}
		text, ok := textValue(value)
		if !ok {
			return nil, false
		}
		return parseDate(text)
	default:
		return textValue(value)
	}
}

func textValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

func textValues(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			text, ok := textValue(item)
			if !ok {
				return nil, false
			}
			values = append(values, text)
		}
		return values, true
	}
	if text, ok := textValue(value); ok {
		return []string{text}, true
	}
	return nil, false
}

func numberValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		number, err := v.Float64()
		return number, err == nil
	case string:
		number, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return number, err == nil
	}
	return 0, false
}

// parseDate reads a free-text date. Dates without a zone are taken as UTC.
func parseDate(value string) (any, bool) {
	parsed, err := dateparse.ParseIn(strings.TrimSpace(value), time.UTC)
	if err != nil {
		return nil, false
	}
	return parsed, true
}
