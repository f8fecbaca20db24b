package filter

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Build validates the filters against the table's allowlist and turns
// them into SQL conditions with positional args starting at startArgPos.
// Callers AND the conditions onto their own WHERE clause; tenancy is
// never part of a filter set, the caller pins it separately.
func Build(filters *QueryFilterSet, table string, alias string, startArgPos int) (*BuildResult, error) {
	result := &BuildResult{
		Conditions: []string{},
		Args:       []interface{}{},
		NextArgPos: startArgPos,
	}
	if filters == nil || len(filters.Filters) == 0 {
		return result, nil
	}

	if err := Validate(filters, table); err != nil {
		return nil, err
	}

	argPos := startArgPos
	for _, f := range filters.Filters {
		cond, args, next := conditionFor(f, table, alias, argPos)
		if cond == "" {
			continue
		}
		result.Conditions = append(result.Conditions, cond)
		result.Args = append(result.Args, args...)
		argPos = next
	}
	result.NextArgPos = argPos

	return result, nil
}

// conditionFor routes one filter to the builder that understands its
// field: jsonb path fields, the virtual reference field on
// withdrawals, or a plain column.
func conditionFor(f QueryFilter, table, alias string, argPos int) (string, []interface{}, int) {
	if strings.HasPrefix(f.Field, "meta_data.") {
		return jsonPathCondition(f, alias, argPos)
	}
	if f.Field == "reference" && table == "withdrawals" {
		return referenceCondition(f, alias, argPos)
	}
	return columnCondition(f, table, alias, argPos)
}

// columnOps covers every operator whose SQL is just "column SYMBOL $n".
var columnOps = map[Operator]string{
	OpEqual:              "=",
	OpNotEqual:           "!=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpLike:               "LIKE",
	OpILike:              "ILIKE",
}

func columnCondition(f QueryFilter, table string, tableAlias string, argPosition int) (condition string, args []interface{}, newArgPosition int) {
	// Column names are interpolated into the SQL text, so the field
	// has to resolve through the per-table literal map first.
	fieldName := safeColumnForTableAndField(table, f.Field)
	if fieldName == "" {
		return "", nil, argPosition
	}
	if tableAlias != "" {
		fieldName = tableAlias + "." + fieldName
	}

	// Equality on a timestamp matches the window its precision
	// implies, not the exact instant.
	if f.Operator == OpEqual {
		if floor, ceiling, ok := timestampRangeFor(f.Value); ok {
			condition = fmt.Sprintf("%s >= $%d AND %s < $%d", fieldName, argPosition, fieldName, argPosition+1)
			return condition, []interface{}{floor, ceiling}, argPosition + 2
		}
	}

	if sym, ok := columnOps[f.Operator]; ok {
		condition = fmt.Sprintf("%s %s $%d", fieldName, sym, argPosition)
		return condition, []interface{}{sqlValue(f.Value)}, argPosition + 1
	}

	switch f.Operator {
	case OpIn:
		if len(f.Values) == 0 {
			return "", nil, argPosition
		}
		// A homogeneous string list binds as one text[] arg; mixed
		// lists fall back to one placeholder per member.
		if allStrings(f.Values) {
			condition = fmt.Sprintf("%s = ANY($%d)", fieldName, argPosition)
			return condition, []interface{}{pq.Array(stringSlice(f.Values))}, argPosition + 1
		}
		placeholders := make([]string, len(f.Values))
		args = make([]interface{}, len(f.Values))
		for i, val := range f.Values {
			placeholders[i] = fmt.Sprintf("$%d", argPosition+i)
			args[i] = sqlValue(val)
		}
		condition = fmt.Sprintf("%s IN (%s)", fieldName, strings.Join(placeholders, ", "))
		return condition, args, argPosition + len(f.Values)

	case OpBetween:
		if len(f.Values) != 2 {
			return "", nil, argPosition
		}
		condition = fmt.Sprintf("%s BETWEEN $%d AND $%d", fieldName, argPosition, argPosition+1)
		return condition, []interface{}{sqlValue(f.Values[0]), sqlValue(f.Values[1])}, argPosition + 2

	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", fieldName), []interface{}{}, argPosition

	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", fieldName), []interface{}{}, argPosition
	}

	return "", nil, argPosition
}

// BuildWithOptions builds filter conditions and resolves the sort into
// an ORDER BY body. A sort field outside the table's sortable set is
// an error rather than a silent fallback.
func BuildWithOptions(filters *QueryFilterSet, table string, alias string, startArgPos int, opts *QueryOptions) (*BuildResult, error) {
	result, err := Build(filters, table, alias, startArgPos)
	if err != nil {
		return nil, err
	}

	order := SortDesc
	sortBy := ""
	if opts != nil {
		order = opts.DefaultSortOrder()
		sortBy = opts.SortBy
		if sortBy != "" {
			if err := ValidateSortField(sortBy, table); err != nil {
				return nil, err
			}
		}
	}
	result.OrderBy = BuildOrderBy(sortBy, order, table, alias)

	return result, nil
}

// ResolveSortField maps a requested sort field onto a column literal,
// falling back to the table default for anything unknown. User input
// only ever selects which literal comes back.
func ResolveSortField(table, sortBy string) string {
	normalized := strings.ToLower(strings.TrimSpace(sortBy))
	if normalized == "" {
		return GetDefaultSortField(table)
	}
	allowed := GetSortableFieldsForTable(table)
	if allowed == nil || !allowed[normalized] {
		return GetDefaultSortField(table)
	}
	return safeColumnForSort(table, normalized)
}

// safeColumnForTableAndField maps a field name to a column literal,
// empty for anything not on the table's allowlist.
func safeColumnForTableAndField(table, logicalName string) string {
	switch table {
	case "withdrawals":
		switch logicalName {
		case "withdrawal_id":
			return "withdrawal_id"
		case "amount":
			return "amount"
		case "fee":
			return "fee"
		case "net_amount":
			return "net_amount"
		case "currency":
			return "currency"
		case "bank_account_id":
			return "bank_account_id"
		case "status":
			return "status"
		case "provider_transaction_id":
			return "provider_transaction_id"
		case "failure_reason":
			return "failure_reason"
		case "risk_score":
			return "risk_score"
		case "ip_address":
			return "ip_address"
		case "created_at":
			return "created_at"
		case "updated_at":
			return "updated_at"
		case "meta_data":
			return "meta_data"
		}
	case "ledger_entries":
		switch logicalName {
		case "entry_id":
			return "entry_id"
		case "seq":
			return "seq"
		case "entry_type":
			return "entry_type"
		case "source":
			return "source"
		case "reference_id":
			return "reference_id"
		case "amount":
			return "amount"
		case "running_balance":
			return "running_balance"
		case "currency":
			return "currency"
		case "created_at":
			return "created_at"
		case "meta_data":
			return "meta_data"
		}
	case "security_audits":
		switch logicalName {
		case "audit_id":
			return "audit_id"
		case "operation":
			return "operation"
		case "decision":
			return "decision"
		case "score":
			return "score"
		case "ip_address":
			return "ip_address"
		case "user_agent":
			return "user_agent"
		case "success":
			return "success"
		case "created_at":
			return "created_at"
		case "meta_data":
			return "meta_data"
		}
	case "settled_sales":
		switch logicalName {
		case "sale_id":
			return "sale_id"
		case "reference":
			return "reference"
		case "total":
			return "total"
		case "net_credit":
			return "net_credit"
		case "currency":
			return "currency"
		case "settled_at":
			return "settled_at"
		case "created_at":
			return "created_at"
		case "meta_data":
			return "meta_data"
		}
	case "merchant_balances":
		switch logicalName {
		case "balance_id":
			return "balance_id"
		case "available_amount":
			return "available_amount"
		case "pending_amount":
			return "pending_amount"
		case "currency":
			return "currency"
		case "created_at":
			return "created_at"
		case "updated_at":
			return "updated_at"
		case "meta_data":
			return "meta_data"
		}
	}
	return ""
}

// safeColumnForSort resolves a sort column with the table default as
// the fallback.
func safeColumnForSort(table, logicalName string) string {
	if col := safeColumnForTableAndField(table, logicalName); col != "" {
		return col
	}
	return GetDefaultSortField(table)
}

// BuildOrderBy constructs an ORDER BY body from literal column names
// only; a hostile sortBy degrades to the table's default order.
func BuildOrderBy(sortBy string, sortOrder SortOrder, table string, alias string) string {
	fieldName := ResolveSortField(table, sortBy)
	if alias != "" {
		fieldName = alias + "." + fieldName
	}

	direction := "DESC"
	if sortOrder == SortAsc {
		direction = "ASC"
	}

	return fieldName + " " + direction
}
