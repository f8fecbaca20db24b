package filter

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseFromQuery reads field_operator params out of a URL query and
// turns them into a filter set. Params that are not filters at all,
// reserved pagination params and keys without a recognized operator
// suffix, are passed over without comment; params that are filters but
// malformed come back as ParseErrors so the handler can tell the
// client which one was wrong.
func ParseFromQuery(queryParams url.Values, opts *ParseOptions) *ParseResult {
	limits := opts.withDefaults()

	result := &ParseResult{
		Filters: &QueryFilterSet{Filters: make([]QueryFilter, 0)},
		Errors:  make([]ParseError, 0),
	}

	for key, values := range queryParams {
		if len(values) == 0 || isReservedParam(key) {
			continue
		}

		// The operator is everything after the last underscore, the
		// field is everything before it: risk_score_gte filters the
		// risk_score column with gte.
		sep := strings.LastIndex(key, "_")
		if sep < 0 {
			continue
		}
		op := ResolveOperator(key[sep+1:])
		if op == "" {
			continue
		}
		field := key[:sep]

		if len(result.Filters.Filters) >= limits.MaxFilters {
			result.reject(key, fmt.Sprintf("exceeded maximum number of filters (%d)", limits.MaxFilters))
			continue
		}

		raw := values[0]
		if len(raw) > limits.MaxCharLen {
			result.reject(key, fmt.Sprintf("value exceeds maximum length (%d chars)", limits.MaxCharLen))
			continue
		}

		f, problem := assembleFilter(field, op, raw, limits.MaxInValues)
		if problem != "" {
			result.reject(key, problem)
			continue
		}
		result.Filters.Filters = append(result.Filters.Filters, f)
	}

	return result
}

// assembleFilter shapes the raw param value for one operator. A
// non-empty problem string means the value did not fit the operator.
func assembleFilter(field string, op Operator, raw string, maxInValues int) (QueryFilter, string) {
	f := QueryFilter{Field: field, Operator: op}

	switch op {
	case OpBetween:
		bounds := strings.Split(raw, "|")
		if len(bounds) != 2 {
			return f, "between operator requires exactly 2 pipe-separated values (value1|value2)"
		}
		f.Values = []interface{}{coerceValue(bounds[0]), coerceValue(bounds[1])}

	case OpIn:
		members := strings.Split(raw, ",")
		if len(members) > maxInValues {
			return f, fmt.Sprintf("IN operator exceeds maximum values (%d)", maxInValues)
		}
		f.Values = make([]interface{}, len(members))
		for i, m := range members {
			f.Values[i] = coerceValue(strings.TrimSpace(m))
		}

	case OpIsNull, OpIsNotNull:
		// Presence checks carry no operand.

	default:
		f.Value = coerceValue(raw)
	}

	return f, ""
}

func (r *ParseResult) reject(param, message string) {
	r.Errors = append(r.Errors, ParseError{Param: param, Message: message})
}
