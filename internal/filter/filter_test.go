package filter

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestResolveOperator(t *testing.T) {
	tests := []struct {
		input    string
		expected Operator
	}{
		{"eq", OpEqual},
		{"EQ", OpEqual},
		{"ne", OpNotEqual},
		{"neq", OpNotEqual},
		{"gt", OpGreaterThan},
		{"gte", OpGreaterThanOrEqual},
		{"gteq", OpGreaterThanOrEqual},
		{"lt", OpLessThan},
		{"lte", OpLessThanOrEqual},
		{"lteq", OpLessThanOrEqual},
		{"in", OpIn},
		{"between", OpBetween},
		{"like", OpLike},
		{"ilike", OpILike},
		{"isnull", OpIsNull},
		{"isnotnull", OpIsNotNull},
		{"invalid", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ResolveOperator(tt.input)
			if result != tt.expected {
				t.Errorf("ResolveOperator(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseFromQuery(t *testing.T) {
	t.Run("parses basic equality filter", func(t *testing.T) {
		params := url.Values{"status_eq": {"pending"}}
		result := ParseFromQuery(params, nil)

		if len(result.Errors) > 0 {
			t.Fatalf("unexpected errors: %v", result.Errors)
		}
		if len(result.Filters.Filters) != 1 {
			t.Fatalf("expected 1 filter, got %d", len(result.Filters.Filters))
		}

		f := result.Filters.Filters[0]
		if f.Field != "status" || f.Operator != OpEqual || f.Value != "pending" {
			t.Errorf("unexpected filter: %+v", f)
		}
	})

	t.Run("parses multi-underscore field names", func(t *testing.T) {
		params := url.Values{"risk_score_gte": {"70"}}
		result := ParseFromQuery(params, nil)

		if len(result.Filters.Filters) != 1 {
			t.Fatalf("expected 1 filter, got %d", len(result.Filters.Filters))
		}

		f := result.Filters.Filters[0]
		if f.Field != "risk_score" || f.Operator != OpGreaterThanOrEqual {
			t.Errorf("unexpected filter: %+v", f)
		}
		if f.Value != int64(70) {
			t.Errorf("expected int64 value, got %T %v", f.Value, f.Value)
		}
	})

	t.Run("parses between with pipe separator", func(t *testing.T) {
		params := url.Values{"created_at_between": {"2026-08-01|2026-08-31"}}
		result := ParseFromQuery(params, nil)

		if len(result.Errors) > 0 {
			t.Fatalf("unexpected errors: %v", result.Errors)
		}
		f := result.Filters.Filters[0]
		if f.Operator != OpBetween || len(f.Values) != 2 {
			t.Fatalf("unexpected filter: %+v", f)
		}
		if _, ok := f.Values[0].(TimestampValue); !ok {
			t.Errorf("expected timestamp value, got %T", f.Values[0])
		}
	})

	t.Run("rejects between without two values", func(t *testing.T) {
		params := url.Values{"created_at_between": {"2026-08-01"}}
		result := ParseFromQuery(params, nil)

		if len(result.Errors) != 1 {
			t.Fatalf("expected 1 error, got %d", len(result.Errors))
		}
		if len(result.Filters.Filters) != 0 {
			t.Errorf("expected no filters, got %d", len(result.Filters.Filters))
		}
	})

	t.Run("parses in with comma-separated values", func(t *testing.T) {
		params := url.Values{"status_in": {"pending,processing"}}
		result := ParseFromQuery(params, nil)

		f := result.Filters.Filters[0]
		if f.Operator != OpIn || len(f.Values) != 2 {
			t.Fatalf("unexpected filter: %+v", f)
		}
		if f.Values[0] != "pending" || f.Values[1] != "processing" {
			t.Errorf("unexpected values: %v", f.Values)
		}
	})

	t.Run("skips reserved and plain params", func(t *testing.T) {
		params := url.Values{
			"limit":      {"10"},
			"offset":     {"0"},
			"sort_by":    {"created_at"},
			"sort_order": {"asc"},
			"tenantId":   {"tnt_1"},
			"status":     {"pending"},
			"status_eq":  {"pending"},
		}
		result := ParseFromQuery(params, nil)

		if len(result.Filters.Filters) != 1 {
			t.Fatalf("expected only status_eq parsed, got %d filters", len(result.Filters.Filters))
		}
		if result.Filters.Filters[0].Field != "status" {
			t.Errorf("unexpected filter: %+v", result.Filters.Filters[0])
		}
	})

	t.Run("enforces max filters", func(t *testing.T) {
		params := url.Values{}
		for i := 0; i < 4; i++ {
			params.Set(fmt.Sprintf("field%d_eq", i), "v")
		}
		result := ParseFromQuery(params, &ParseOptions{MaxFilters: 2})

		if len(result.Filters.Filters) != 2 {
			t.Errorf("expected 2 filters, got %d", len(result.Filters.Filters))
		}
		if len(result.Errors) != 2 {
			t.Errorf("expected 2 errors, got %d", len(result.Errors))
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts known withdrawal fields", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "status", Operator: OpEqual, Value: "pending"},
			{Field: "risk_score", Operator: OpGreaterThanOrEqual, Value: int64(70)},
			{Field: "reference", Operator: OpEqual, Value: "wdl_1"},
		}}
		if err := Validate(filters, "withdrawals"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejects unknown field", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "tenant_id", Operator: OpEqual, Value: "tnt_2"},
		}}
		if err := Validate(filters, "withdrawals"); err == nil {
			t.Error("expected error: tenancy is pinned by the caller, never filterable")
		}
	})

	t.Run("accepts meta_data JSON path", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "meta_data.channel", Operator: OpEqual, Value: "pos"},
		}}
		if err := Validate(filters, "withdrawals"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejects malformed JSON key", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "meta_data.bad-key;drop", Operator: OpEqual, Value: "x"},
		}}
		if err := Validate(filters, "withdrawals"); err == nil {
			t.Error("expected error for malformed JSON key")
		}
	})

	t.Run("rejects unsupported table", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "status", Operator: OpEqual, Value: "pending"},
		}}
		if err := Validate(filters, "api_keys"); err == nil {
			t.Error("expected error for unsupported table")
		}
	})

	t.Run("nil filters pass", func(t *testing.T) {
		if err := Validate(nil, "withdrawals"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestValidateSortField(t *testing.T) {
	for _, field := range []string{"created_at", "amount", "risk_score", "status"} {
		t.Run(field, func(t *testing.T) {
			if err := ValidateSortField(field, "withdrawals"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("rejects unknown field", func(t *testing.T) {
		if err := ValidateSortField("nonexistent_field", "withdrawals"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("rejects virtual reference field", func(t *testing.T) {
		if err := ValidateSortField("reference", "withdrawals"); err == nil {
			t.Error("expected error: reference has no single column to sort on")
		}
	})

	t.Run("empty field passes", func(t *testing.T) {
		if err := ValidateSortField("", "withdrawals"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestValidateSortByForTable(t *testing.T) {
	t.Run("nil options pass", func(t *testing.T) {
		if err := ValidateSortByForTable(nil, "ledger_entries"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("valid sort passes", func(t *testing.T) {
		opts := &QueryOptions{SortBy: "seq", SortOrder: SortAsc}
		if err := ValidateSortByForTable(opts, "ledger_entries"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("bad order rejected", func(t *testing.T) {
		opts := &QueryOptions{SortBy: "seq", SortOrder: "sideways"}
		if err := ValidateSortByForTable(opts, "ledger_entries"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bad field rejected", func(t *testing.T) {
		opts := &QueryOptions{SortBy: "password"}
		if err := ValidateSortByForTable(opts, "ledger_entries"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestGetValidFieldsForTable(t *testing.T) {
	tests := []struct {
		table  string
		fields []string
	}{
		{"withdrawals", []string{"withdrawal_id", "amount", "status", "risk_score", "bank_account_id", "reference"}},
		{"ledger_entries", []string{"entry_id", "seq", "entry_type", "running_balance"}},
		{"security_audits", []string{"audit_id", "operation", "decision", "score", "success"}},
		{"settled_sales", []string{"sale_id", "reference", "total", "net_credit", "settled_at"}},
		{"merchant_balances", []string{"balance_id", "available_amount", "pending_amount"}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			fields := GetValidFieldsForTable(tt.table)
			for _, f := range tt.fields {
				if !fields[f] {
					t.Errorf("expected %s to be filterable on %s", f, tt.table)
				}
			}
			if fields["tenant_id"] {
				t.Errorf("tenant_id must not be filterable on %s", tt.table)
			}
		})
	}

	t.Run("unknown table has no fields", func(t *testing.T) {
		if fields := GetValidFieldsForTable("api_keys"); len(fields) != 0 {
			t.Errorf("expected empty allowlist, got %v", fields)
		}
	})
}

func TestBuild(t *testing.T) {
	t.Run("builds equality condition", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "status", Operator: OpEqual, Value: "pending"},
		}}

		result, err := Build(filters, "withdrawals", "w", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Conditions) != 1 {
			t.Fatalf("expected 1 condition, got %d", len(result.Conditions))
		}
		if result.Conditions[0] != "w.status = $1" {
			t.Errorf("unexpected condition: %s", result.Conditions[0])
		}
		if len(result.Args) != 1 || result.Args[0] != "pending" {
			t.Errorf("unexpected args: %v", result.Args)
		}
	})

	t.Run("builds multiple conditions with running arg positions", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "status", Operator: OpEqual, Value: "completed"},
			{Field: "amount", Operator: OpGreaterThan, Value: int64(1000)},
		}}

		result, err := Build(filters, "withdrawals", "", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Conditions) != 2 {
			t.Fatalf("expected 2 conditions, got %d", len(result.Conditions))
		}
		if result.Conditions[0] != "status = $2" {
			t.Errorf("unexpected condition: %s", result.Conditions[0])
		}
		if result.Conditions[1] != "amount > $3" {
			t.Errorf("unexpected condition: %s", result.Conditions[1])
		}
		if result.NextArgPos != 4 {
			t.Errorf("expected NextArgPos=4, got %d", result.NextArgPos)
		}
	})

	t.Run("expands date-only equality to a range", func(t *testing.T) {
		day, err := time.Parse("2006-01-02", "2026-08-25")
		if err != nil {
			t.Fatal(err)
		}
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "created_at", Operator: OpEqual, Value: TimestampValue{Time: day, Original: "2026-08-25", Precision: "day"}},
		}}

		result, err := Build(filters, "withdrawals", "", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Conditions[0] != "created_at >= $1 AND created_at < $2" {
			t.Errorf("unexpected condition: %s", result.Conditions[0])
		}
		if len(result.Args) != 2 {
			t.Fatalf("expected floor and ceiling args, got %d", len(result.Args))
		}
		if result.NextArgPos != 3 {
			t.Errorf("expected NextArgPos=3, got %d", result.NextArgPos)
		}
	})

	t.Run("builds IN over a string array as ANY", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "status", Operator: OpIn, Values: []interface{}{"pending", "processing"}},
		}}

		result, err := Build(filters, "withdrawals", "", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Conditions[0] != "status = ANY($1)" {
			t.Errorf("unexpected condition: %s", result.Conditions[0])
		}
		if len(result.Args) != 1 {
			t.Fatalf("expected a single array arg, got %d", len(result.Args))
		}
		if result.NextArgPos != 2 {
			t.Errorf("expected NextArgPos=2, got %d", result.NextArgPos)
		}
	})

	t.Run("builds reference over both id columns", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "reference", Operator: OpEqual, Value: "prov_tx_9"},
		}}

		result, err := Build(filters, "withdrawals", "", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.Conditions[0] != "(withdrawal_id = $1 OR provider_transaction_id = $1)" {
			t.Errorf("unexpected condition: %s", result.Conditions[0])
		}
		if len(result.Args) != 1 {
			t.Fatalf("expected 1 arg, got %d", len(result.Args))
		}
		if result.NextArgPos != 2 {
			t.Errorf("expected NextArgPos=2, got %d", result.NextArgPos)
		}
	})

	t.Run("builds meta_data JSON path condition", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "meta_data.channel", Operator: OpEqual, Value: "pos"},
		}}

		result, err := Build(filters, "withdrawals", "", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(result.Conditions[0], "meta_data @> $1::jsonb") {
			t.Errorf("unexpected condition: %s", result.Conditions[0])
		}
	})

	t.Run("nil filters build empty result", func(t *testing.T) {
		result, err := Build(nil, "withdrawals", "", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Conditions) != 0 || result.NextArgPos != 5 {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("invalid field fails the build", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "password", Operator: OpEqual, Value: "x"},
		}}
		if _, err := Build(filters, "withdrawals", "", 1); err == nil {
			t.Error("expected error")
		}
	})
}

func TestBuildWithOptions(t *testing.T) {
	t.Run("includes order by", func(t *testing.T) {
		filters := &QueryFilterSet{Filters: []QueryFilter{
			{Field: "status", Operator: OpEqual, Value: "completed"},
		}}
		opts := &QueryOptions{SortBy: "amount", SortOrder: SortAsc}

		result, err := BuildWithOptions(filters, "withdrawals", "w", 1, opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.OrderBy != "w.amount ASC" {
			t.Errorf("unexpected order by: %s", result.OrderBy)
		}
	})

	t.Run("defaults to created_at desc", func(t *testing.T) {
		result, err := BuildWithOptions(nil, "withdrawals", "", 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.OrderBy != "created_at DESC" {
			t.Errorf("unexpected order by: %s", result.OrderBy)
		}
	})

	t.Run("ledger entries default to seq order", func(t *testing.T) {
		result, err := BuildWithOptions(nil, "ledger_entries", "", 1, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.OrderBy != "seq DESC" {
			t.Errorf("unexpected order by: %s", result.OrderBy)
		}
	})

	t.Run("invalid sort field errors", func(t *testing.T) {
		opts := &QueryOptions{SortBy: "nonexistent_field"}
		if _, err := BuildWithOptions(nil, "withdrawals", "", 1, opts); err == nil {
			t.Error("expected error")
		}
	})
}

func TestBuildOrderBy(t *testing.T) {
	tests := []struct {
		sortBy    string
		sortOrder SortOrder
		table     string
		alias     string
		expected  string
	}{
		{"created_at", SortDesc, "withdrawals", "w", "w.created_at DESC"},
		{"amount", SortAsc, "withdrawals", "w", "w.amount ASC"},
		{"status", SortDesc, "withdrawals", "", "status DESC"},
		{"seq", SortAsc, "ledger_entries", "", "seq ASC"},
		{"", SortDesc, "withdrawals", "", "created_at DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := BuildOrderBy(tt.sortBy, tt.sortOrder, tt.table, tt.alias)
			if result != tt.expected {
				t.Errorf("BuildOrderBy(%q, %q, %q, %q) = %q, want %q",
					tt.sortBy, tt.sortOrder, tt.table, tt.alias, result, tt.expected)
			}
		})
	}

	t.Run("injection attempt falls back to default", func(t *testing.T) {
		result := BuildOrderBy("'; DROP TABLE withdrawals;--", SortDesc, "withdrawals", "")
		if result != "created_at DESC" {
			t.Errorf("expected fallback to created_at DESC, got %q", result)
		}
	})
}

func TestQueryOptionsDefaultSortOrder(t *testing.T) {
	tests := []struct {
		input    SortOrder
		expected SortOrder
	}{
		{"", SortDesc},
		{"invalid", SortDesc},
		{SortAsc, SortAsc},
		{SortDesc, SortDesc},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			opts := &QueryOptions{SortOrder: tt.input}
			result := opts.DefaultSortOrder()
			if result != tt.expected {
				t.Errorf("DefaultSortOrder() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestParseDateTime(t *testing.T) {
	valid := []string{
		"2026-08-25T14:30:05Z",
		"2026-08-25T14:30:05",
		"2026-08-25 14:30:05",
		"2026-08-25",
		"2026/08/25",
	}
	for _, v := range valid {
		t.Run(v, func(t *testing.T) {
			if _, err := ParseDateTime(v); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		if _, err := ParseDateTime("not-a-date"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestJoinConditions(t *testing.T) {
	base := "WHERE tenant_id = $1"

	if got := JoinConditions(base, nil); got != base {
		t.Errorf("unexpected clause: %s", got)
	}

	got := JoinConditions(base, []string{"status = $2", "amount > $3"})
	want := "WHERE tenant_id = $1 AND status = $2 AND amount > $3"
	if got != want {
		t.Errorf("JoinConditions = %q, want %q", got, want)
	}
}
