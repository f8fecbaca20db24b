package filter

import "time"

// Operator names a comparison the query string can request. The wire
// form is the lowercase suffix on a filter param (status_eq, amount_gte).
type Operator string

const (
	OpEqual              Operator = "eq"
	OpNotEqual           Operator = "ne"
	OpGreaterThan        Operator = "gt"
	OpGreaterThanOrEqual Operator = "gte"
	OpLessThan           Operator = "lt"
	OpLessThanOrEqual    Operator = "lte"
	OpIn                 Operator = "in"
	OpBetween            Operator = "between"
	OpLike               Operator = "like"
	OpILike              Operator = "ilike"
	OpIsNull             Operator = "isnull"
	OpIsNotNull          Operator = "isnotnull"
)

// QueryFilter is one parsed condition. Value carries single-operand
// operators; Values carries in and between operands.
type QueryFilter struct {
	Field    string        `json:"field"`
	Operator Operator      `json:"operator"`
	Value    interface{}   `json:"value,omitempty"`
	Values   []interface{} `json:"values,omitempty"`
}

type QueryFilterSet struct {
	Filters []QueryFilter `json:"filters"`
}

// TimestampValue keeps the caller's original date string next to the
// parsed time. Precision decides how wide an equality match is: a
// date-only filter matches the whole day, a second-precision filter
// matches that second.
type TimestampValue struct {
	Time      time.Time
	Original  string
	Precision string
}

// SortOrder is the requested sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// QueryOptions carries the sorting and count preferences of a listing
// request. Pagination stays with the handler.
type QueryOptions struct {
	SortBy       string    `json:"sort_by,omitempty"`
	SortOrder    SortOrder `json:"sort_order,omitempty"`
	IncludeCount bool      `json:"include_count,omitempty"`
}

// DefaultSortOrder normalizes the order, falling back to desc when the
// request gave none or gave something that is neither asc nor desc.
func (o *QueryOptions) DefaultSortOrder() SortOrder {
	if o.SortOrder == SortAsc || o.SortOrder == SortDesc {
		return o.SortOrder
	}
	return SortDesc
}

// ParseOptions bounds how much filter input a single request may carry.
type ParseOptions struct {
	MaxFilters  int // default 20
	MaxInValues int // default 100
	MaxCharLen  int // default 1000
}

// withDefaults resolves the effective limits for a parse run.
func (o *ParseOptions) withDefaults() ParseOptions {
	out := ParseOptions{MaxFilters: 20, MaxInValues: 100, MaxCharLen: 1000}
	if o == nil {
		return out
	}
	if o.MaxFilters > 0 {
		out.MaxFilters = o.MaxFilters
	}
	if o.MaxInValues > 0 {
		out.MaxInValues = o.MaxInValues
	}
	if o.MaxCharLen > 0 {
		out.MaxCharLen = o.MaxCharLen
	}
	return out
}

// ParseError reports one query param the parser had to reject, in a
// shape handlers can return to the client verbatim.
type ParseError struct {
	Param   string
	Message string
}

type ParseResult struct {
	Filters *QueryFilterSet
	Errors  []ParseError
}

// BuildResult is the SQL fragment set produced from a validated filter
// set. Conditions are ANDed onto the caller's WHERE clause; OrderBy is
// the clause body without the ORDER BY keyword.
type BuildResult struct {
	Conditions []string
	Args       []interface{}
	NextArgPos int
	OrderBy    string
}
