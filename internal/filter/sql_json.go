package filter

import (
	"fmt"
	"strings"
)

// Comparison fragments shared by the operators that only differ in
// their SQL symbol. Numeric casts apply to ordering comparisons on
// jsonb text values; LIKE and ILIKE compare the text directly.
var jsonNumericOps = map[Operator]string{
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
}

var jsonTextOps = map[Operator]string{
	OpLike:  "LIKE",
	OpILike: "ILIKE",
}

// jsonPathCondition builds SQL for a meta_data.key filter. The column
// and key are interpolated into the statement text rather than bound,
// so both must come out of jsonColumnFor and safeJSONKey, which only
// ever return vetted literals.
func jsonPathCondition(f QueryFilter, tableAlias string, argPosition int) (condition string, args []interface{}, newArgPosition int) {
	parts := strings.SplitN(f.Field, ".", 2)
	if len(parts) != 2 {
		return "", nil, argPosition
	}

	jsonCol := jsonColumnFor(parts[0])
	jsonKey := safeJSONKey(parts[1])
	if jsonCol == "" || jsonKey == "" {
		return "", nil, argPosition
	}
	if tableAlias != "" {
		jsonCol = tableAlias + "." + jsonCol
	}

	if sym, ok := jsonNumericOps[f.Operator]; ok {
		condition = fmt.Sprintf("(%s->>'%s')::numeric %s $%d", jsonCol, jsonKey, sym, argPosition)
		return condition, []interface{}{sqlValue(f.Value)}, argPosition + 1
	}
	if kw, ok := jsonTextOps[f.Operator]; ok {
		condition = fmt.Sprintf("%s->>'%s' %s $%d", jsonCol, jsonKey, kw, argPosition)
		return condition, []interface{}{sqlValue(f.Value)}, argPosition + 1
	}

	switch f.Operator {
	case OpEqual:
		// Timestamp equality matches the window the value's precision
		// implies, everything else goes through jsonb containment.
		if floor, ceiling, ok := timestampRangeFor(f.Value); ok {
			condition = fmt.Sprintf("(%s->>'%s')::timestamp >= $%d AND (%s->>'%s')::timestamp < $%d",
				jsonCol, jsonKey, argPosition, jsonCol, jsonKey, argPosition+1)
			return condition, []interface{}{floor, ceiling}, argPosition + 2
		}
		doc, err := containmentJSON(jsonKey, f.Value)
		if err != nil {
			return "", nil, argPosition
		}
		condition = fmt.Sprintf("%s @> $%d::jsonb", jsonCol, argPosition)
		return condition, []interface{}{string(doc)}, argPosition + 1

	case OpNotEqual:
		condition = fmt.Sprintf("%s->>'%s' != $%d", jsonCol, jsonKey, argPosition)
		return condition, []interface{}{jsonTextArg(f.Value)}, argPosition + 1

	case OpIn:
		if len(f.Values) == 0 {
			return "", nil, argPosition
		}
		placeholders := make([]string, len(f.Values))
		args = make([]interface{}, len(f.Values))
		for i, val := range f.Values {
			placeholders[i] = fmt.Sprintf("$%d", argPosition+i)
			args[i] = jsonTextArg(val)
		}
		condition = fmt.Sprintf("%s->>'%s' IN (%s)", jsonCol, jsonKey, strings.Join(placeholders, ", "))
		return condition, args, argPosition + len(f.Values)

	case OpBetween:
		if len(f.Values) != 2 {
			return "", nil, argPosition
		}
		condition = fmt.Sprintf("(%s->>'%s')::numeric BETWEEN $%d AND $%d", jsonCol, jsonKey, argPosition, argPosition+1)
		return condition, []interface{}{sqlValue(f.Values[0]), sqlValue(f.Values[1])}, argPosition + 2

	case OpIsNull:
		condition = fmt.Sprintf("(%s->>'%s' IS NULL OR %s ? '%s' = false)", jsonCol, jsonKey, jsonCol, jsonKey)
		return condition, []interface{}{}, argPosition

	case OpIsNotNull:
		condition = fmt.Sprintf("(%s->>'%s' IS NOT NULL AND %s ? '%s' = true)", jsonCol, jsonKey, jsonCol, jsonKey)
		return condition, []interface{}{}, argPosition
	}

	return "", nil, argPosition
}

// jsonTextArg binds a value against a ->> text extraction. Booleans
// must be compared as their text form, the extraction never yields a
// boolean type.
func jsonTextArg(value interface{}) interface{} {
	if b, ok := value.(bool); ok {
		return fmt.Sprintf("%t", b)
	}
	return sqlValue(value)
}

// jsonColumnFor resolves a request's column segment to a known jsonb
// column. meta_data is the only one exposed to filtering.
func jsonColumnFor(col string) string {
	switch col {
	case "meta_data":
		return "meta_data"
	}
	return ""
}

// safeJSONKey admits a key only when it is shaped like an identifier,
// a leading ASCII letter followed by letters, digits or underscores.
// Anything else is rejected outright rather than escaped.
func safeJSONKey(key string) string {
	if key == "" || !asciiLetter(key[0]) {
		return ""
	}
	for i := 1; i < len(key); i++ {
		c := key[i]
		if !asciiLetter(c) && !asciiDigit(c) && c != '_' {
			return ""
		}
	}
	return key
}

func asciiLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func asciiDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
