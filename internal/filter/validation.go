package filter

import (
	"fmt"
	"regexp"
	"strings"
)

var jsonKeyRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

func Validate(filters *QueryFilterSet, table string) error {
	if filters == nil {
		return nil
	}

	validFields := GetValidFieldsForTable(table)
	if len(validFields) == 0 {
		return fmt.Errorf("unsupported table for advanced filtering: %s", table)
	}

	for _, f := range filters.Filters {
		if strings.HasPrefix(f.Field, "meta_data.") && validFields["meta_data"] {
			jsonKey := strings.TrimPrefix(f.Field, "meta_data.")
			if !jsonKeyRegex.MatchString(jsonKey) {
				return fmt.Errorf("invalid JSON key '%s' in field '%s': must match pattern ^[a-zA-Z][a-zA-Z0-9_]*$", jsonKey, f.Field)
			}
			continue
		}

		if !validFields[f.Field] {
			return fmt.Errorf("invalid field '%s' for table '%s'", f.Field, table)
		}
	}

	return nil
}

// GetValidFieldsForTable returns the filterable fields per table. The
// allowlist is what keeps user-supplied field names out of generated
// SQL; anything not listed here is rejected before a query is built.
func GetValidFieldsForTable(table string) map[string]bool {
	switch table {
	case "withdrawals":
		return map[string]bool{
			"withdrawal_id":           true,
			"amount":                  true,
			"fee":                     true,
			"net_amount":              true,
			"currency":                true,
			"bank_account_id":         true,
			"status":                  true,
			"provider_transaction_id": true,
			"failure_reason":          true,
			"risk_score":              true,
			"ip_address":              true,
			"created_at":              true,
			"updated_at":              true,
			"meta_data":               true,
			// reference is virtual: it matches the withdrawal id or the
			// provider transaction id, whichever side the caller holds.
			"reference": true,
		}
	case "ledger_entries":
		return map[string]bool{
			"entry_id":        true,
			"seq":             true,
			"entry_type":      true,
			"source":          true,
			"reference_id":    true,
			"amount":          true,
			"running_balance": true,
			"currency":        true,
			"created_at":      true,
			"meta_data":       true,
		}
	case "security_audits":
		return map[string]bool{
			"audit_id":   true,
			"operation":  true,
			"decision":   true,
			"score":      true,
			"ip_address": true,
			"user_agent": true,
			"success":    true,
			"created_at": true,
			"meta_data":  true,
		}
	case "settled_sales":
		return map[string]bool{
			"sale_id":    true,
			"reference":  true,
			"total":      true,
			"net_credit": true,
			"currency":   true,
			"settled_at": true,
			"created_at": true,
			"meta_data":  true,
		}
	case "merchant_balances":
		return map[string]bool{
			"balance_id":       true,
			"available_amount": true,
			"pending_amount":   true,
			"currency":         true,
			"created_at":       true,
			"updated_at":       true,
			"meta_data":        true,
		}
	default:
		return map[string]bool{}
	}
}

// GetSortableFieldsForTable returns fields that can be sorted. All
// filterable fields are sortable except virtual fields, which have no
// single column to order on.
func GetSortableFieldsForTable(table string) map[string]bool {
	fields := GetValidFieldsForTable(table)
	if table == "withdrawals" {
		sortable := make(map[string]bool, len(fields))
		for field := range fields {
			if field != "reference" {
				sortable[field] = true
			}
		}
		return sortable
	}
	return fields
}

// ValidateSortField validates that the sort field is allowed for the table.
func ValidateSortField(sortBy, table string) error {
	if sortBy == "" {
		return nil
	}

	sortableFields := GetSortableFieldsForTable(table)
	if len(sortableFields) == 0 {
		return fmt.Errorf("sorting not supported for table: %s", table)
	}

	if !sortableFields[sortBy] {
		return fmt.Errorf("cannot sort by '%s' for table '%s': field is not sortable", sortBy, table)
	}

	return nil
}

// ValidateSortByForTable validates the sorting half of QueryOptions. It
// lets handlers reject a bad sort before any SQL is built.
func ValidateSortByForTable(opts *QueryOptions, table string) error {
	if opts == nil {
		return nil
	}
	if opts.SortOrder != "" && opts.SortOrder != SortAsc && opts.SortOrder != SortDesc {
		return fmt.Errorf("invalid sort order '%s': must be 'asc' or 'desc'", opts.SortOrder)
	}
	return ValidateSortField(opts.SortBy, table)
}

// GetDefaultSortField returns the default sort field for a table.
func GetDefaultSortField(table string) string {
	if table == "ledger_entries" {
		return "seq"
	}
	return "created_at"
}
