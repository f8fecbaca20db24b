package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// coerceValue guesses the type a query-string value was meant to be.
// Integers win over floats so "70" stays an int64, and anything that
// parses as a supported date layout becomes a TimestampValue that
// remembers its precision. Everything else stays a string.
func coerceValue(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if fl, err := strconv.ParseFloat(raw, 64); err == nil {
		return fl
	}

	if t, err := ParseDateTime(raw); err == nil {
		return TimestampValue{Time: t, Original: raw, Precision: precisionOf(raw)}
	}

	return raw
}

// sqlValue unwraps a coerced value into what the driver should bind.
func sqlValue(value interface{}) interface{} {
	if ts, ok := value.(TimestampValue); ok {
		return ts.Time
	}
	return value
}

func allStrings(values []interface{}) bool {
	for _, v := range values {
		if _, ok := v.(string); !ok {
			return false
		}
	}
	return true
}

func stringSlice(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%v", v)
	}
	return out
}

// containmentJSON renders {key: value} for a jsonb @> match.
func containmentJSON(key string, value interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{key: value})
}
