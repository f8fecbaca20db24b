package filter

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// referenceCondition expands the virtual "reference" field on
// withdrawals. Operators and support teams hold either the withdrawal
// id or the settlement provider's transaction id depending on which
// system paged them, so the filter matches both columns.
//
// Only equality-shaped operators are supported; range or pattern
// operators make no sense across two id columns.
func referenceCondition(f QueryFilter, tableAlias string, argPosition int) (condition string, args []interface{}, newArgPosition int) {
	withdrawalID := "withdrawal_id"
	providerID := "provider_transaction_id"
	if tableAlias != "" {
		withdrawalID = tableAlias + ".withdrawal_id"
		providerID = tableAlias + ".provider_transaction_id"
	}

	switch f.Operator {
	case OpEqual:
		condition = fmt.Sprintf("(%s = $%d OR %s = $%d)", withdrawalID, argPosition, providerID, argPosition)
		args = []interface{}{sqlValue(f.Value)}
		newArgPosition = argPosition + 1

	case OpNotEqual:
		condition = fmt.Sprintf("(%s != $%d AND %s != $%d)", withdrawalID, argPosition, providerID, argPosition)
		args = []interface{}{sqlValue(f.Value)}
		newArgPosition = argPosition + 1

	case OpIn:
		if len(f.Values) == 0 {
			return "", nil, argPosition
		}
		condition = fmt.Sprintf("(%s = ANY($%d) OR %s = ANY($%d))", withdrawalID, argPosition, providerID, argPosition)
		args = []interface{}{pq.Array(stringSlice(f.Values))}
		newArgPosition = argPosition + 1

	default:
		return "", nil, argPosition
	}

	return condition, args, newArgPosition
}

// JoinConditions glues built conditions onto a base WHERE clause.
func JoinConditions(base string, conditions []string) string {
	if len(conditions) == 0 {
		return base
	}
	return base + " AND " + strings.Join(conditions, " AND ")
}
