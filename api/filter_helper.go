/*
Copyright 2025 Vendahub Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/vendahub/tesouro/internal/filter"
)

// ParseFiltersFromContext parses query parameters into a QueryFilterSet.
// Filter parameters use the format field_operator=value:
//
//   - eq: Equal (e.g., status_eq=pending)
//   - ne: Not equal (e.g., status_ne=failed)
//   - gt: Greater than (e.g., amount_gt=1000)
//   - gte: Greater than or equal (e.g., risk_score_gte=70)
//   - lt: Less than (e.g., amount_lt=5000)
//   - lte: Less than or equal (e.g., amount_lte=5000)
//   - in: In set (e.g., status_in=pending,processing)
//   - between: Range (e.g., created_at_between=2026-01-01|2026-12-31)
//   - like: Pattern match (e.g., failure_reason_like=%timeout%)
//   - ilike: Case-insensitive pattern match
//   - isnull: Is null (e.g., provider_transaction_id_isnull=true)
//   - isnotnull: Is not null
//
// Returns the parsed filters and any parse errors. Validation against a
// table's allowlist happens later, in filter.Build.
func ParseFiltersFromContext(c *gin.Context, opts *filter.ParseOptions) (*filter.QueryFilterSet, []filter.ParseError) {
	result := filter.ParseFromQuery(c.Request.URL.Query(), opts)
	return result.Filters, result.Errors
}

// HasFilters reports whether the request carries any filter parameters.
func HasFilters(c *gin.Context) bool {
	result := filter.ParseFromQuery(c.Request.URL.Query(), nil)
	return result.Filters != nil && len(result.Filters.Filters) > 0
}

// ParseQueryOptions extracts sorting options from query parameters.
func ParseQueryOptions(c *gin.Context) *filter.QueryOptions {
	return &filter.QueryOptions{
		SortBy:       c.DefaultQuery("sort_by", ""),
		SortOrder:    filter.SortOrder(c.DefaultQuery("sort_order", "desc")),
		IncludeCount: c.DefaultQuery("include_count", "") == "true",
	}
}
