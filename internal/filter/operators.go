package filter

import "strings"

// operatorAliases maps every accepted suffix spelling to its operator.
// The longer neq/gteq/lteq forms exist for callers coming from search
// engines that spell them that way.
var operatorAliases = map[string]Operator{
	"eq":        OpEqual,
	"ne":        OpNotEqual,
	"neq":       OpNotEqual,
	"gt":        OpGreaterThan,
	"gte":       OpGreaterThanOrEqual,
	"gteq":      OpGreaterThanOrEqual,
	"lt":        OpLessThan,
	"lte":       OpLessThanOrEqual,
	"lteq":      OpLessThanOrEqual,
	"in":        OpIn,
	"between":   OpBetween,
	"like":      OpLike,
	"ilike":     OpILike,
	"isnull":    OpIsNull,
	"isnotnull": OpIsNotNull,
}

// ResolveOperator resolves a param suffix to an Operator, empty when
// the suffix is not one we accept.
func ResolveOperator(s string) Operator {
	return operatorAliases[strings.ToLower(s)]
}
