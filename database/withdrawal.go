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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/internal/filter"
	"github.com/vendahub/tesouro/model"
)

// withdrawalColumns is the column list shared by every withdrawal read.
const withdrawalColumns = `withdrawal_id, tenant_id, amount, fee, net_amount, currency, bank_account_id, status,
		COALESCE(provider_transaction_id, '') as provider_transaction_id, error_message, failure_reason,
		risk_score, ip_address, created_at, updated_at, meta_data`

const withdrawalSelect = `
	SELECT ` + withdrawalColumns + `
	FROM tesouro.withdrawals
`

// RecordWithdrawal accepts a withdrawal in a single transaction: it locks the
// tenant's balance row, reserves the amount with an atomic conditional
// decrement, appends the debit ledger entry and inserts the withdrawal row.
// The reservation moves the amount from available to pending; the ledger
// entry is what keeps the fold of the ledger equal to the available balance.
//
// Parameters:
// - ctx: The context for managing the operation's lifecycle.
// - withdrawal: The pending withdrawal to persist.
// - entry: The withdrawal_debit ledger entry; seq and running balance are assigned here.
//
// Returns:
// - *model.Withdrawal: The persisted withdrawal.
// - error: An APIError. Insufficient funds map to BAD_REQUEST, a duplicate id to CONFLICT.
func (d Datasource) RecordWithdrawal(ctx context.Context, withdrawal *model.Withdrawal, entry *model.LedgerEntry) (*model.Withdrawal, error) {
	ctx, span := otel.Tracer("Withdrawal datasource").Start(ctx, "Recording withdrawal acceptance")
	defer span.End()

	metaDataJSON, err := json.Marshal(withdrawal.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	// The row lock serializes every ledger writer for this tenant, which is
	// what makes the seq assignment in insertLedgerEntry race-free.
	if _, err := lockMerchantBalance(ctx, tx, withdrawal.TenantID); err != nil {
		return nil, err
	}

	// The WHERE clause repeats the funds check so the reservation is one
	// atomic conditional decrement, never a read followed by a write.
	result, err := tx.ExecContext(ctx, `
		UPDATE tesouro.merchant_balances
		SET available_amount = available_amount - $2, pending_amount = pending_amount + $2, updated_at = NOW()
		WHERE tenant_id = $1 AND available_amount >= $2
	`, withdrawal.TenantID, withdrawal.Amount.String())
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reserve withdrawal amount", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Saldo insuficiente para realizar o saque", nil)
	}

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tesouro.withdrawals (withdrawal_id, tenant_id, amount, fee, net_amount, currency, bank_account_id, status, error_message, failure_reason, risk_score, ip_address, created_at, updated_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, withdrawal.WithdrawalID, withdrawal.TenantID, withdrawal.Amount.String(), withdrawal.Fee.String(), withdrawal.NetAmount.String(), withdrawal.Currency, withdrawal.BankAccountID, withdrawal.Status, withdrawal.ErrorMessage, withdrawal.FailureReason, withdrawal.RiskScore, withdrawal.IPAddress, withdrawal.CreatedAt, withdrawal.UpdatedAt, metaDataJSON)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Withdrawal with ID '%s' already exists", withdrawal.WithdrawalID), err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record withdrawal", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return withdrawal, nil
}

// MarkWithdrawalProcessing moves a withdrawal from pending to processing and
// attaches the provider transaction id. The status guard in the WHERE clause
// keeps the transition forward-only under concurrent submitters.
func (d Datasource) MarkWithdrawalProcessing(ctx context.Context, id, providerTransactionID string) error {
	ctx, span := otel.Tracer("Withdrawal datasource").Start(ctx, "Marking withdrawal processing")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tesouro.withdrawals
		SET status = $2, provider_transaction_id = $3, updated_at = NOW()
		WHERE withdrawal_id = $1 AND status = $4
	`, id, model.StatusProcessing, providerTransactionID, model.StatusPending)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Provider transaction '%s' is already attached to another withdrawal", providerTransactionID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark withdrawal processing", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Withdrawal with ID '%s' is not pending", id), nil)
	}

	return nil
}

// CompleteWithdrawal moves a withdrawal from processing to completed and
// clears the pending reservation. No ledger entry is written: the debit was
// recorded at acceptance, so completion only confirms that the money left.
func (d Datasource) CompleteWithdrawal(ctx context.Context, withdrawal *model.Withdrawal) error {
	ctx, span := otel.Tracer("Withdrawal datasource").Start(ctx, "Completing withdrawal")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err := lockMerchantBalance(ctx, tx, withdrawal.TenantID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE tesouro.withdrawals
		SET status = $2, updated_at = NOW()
		WHERE withdrawal_id = $1 AND status = $3
	`, withdrawal.WithdrawalID, model.StatusCompleted, model.StatusProcessing)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete withdrawal", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Withdrawal with ID '%s' is not processing", withdrawal.WithdrawalID), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tesouro.merchant_balances
		SET pending_amount = pending_amount - $2, updated_at = NOW()
		WHERE tenant_id = $1
	`, withdrawal.TenantID, withdrawal.Amount.String())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear withdrawal reservation", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return nil
}

// FailWithdrawal moves a withdrawal to failed, releases the reserved amount
// back to available and appends the withdrawal_reversal credit entry. Both
// pending and processing withdrawals may fail; terminal ones may not.
func (d Datasource) FailWithdrawal(ctx context.Context, withdrawal *model.Withdrawal, reason, message string, reversal *model.LedgerEntry) error {
	ctx, span := otel.Tracer("Withdrawal datasource").Start(ctx, "Failing withdrawal")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err := lockMerchantBalance(ctx, tx, withdrawal.TenantID); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE tesouro.withdrawals
		SET status = $2, failure_reason = $3, error_message = $4, updated_at = NOW()
		WHERE withdrawal_id = $1 AND status IN ('pending', 'processing')
	`, withdrawal.WithdrawalID, model.StatusFailed, reason, message)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fail withdrawal", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Withdrawal with ID '%s' is already terminal", withdrawal.WithdrawalID), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tesouro.merchant_balances
		SET available_amount = available_amount + $2, pending_amount = pending_amount - $2, updated_at = NOW()
		WHERE tenant_id = $1
	`, withdrawal.TenantID, withdrawal.Amount.String())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release withdrawal reservation", err)
	}

	if err := insertLedgerEntry(ctx, tx, reversal); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return nil
}

// GetWithdrawal retrieves a single withdrawal by its id.
func (d Datasource) GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	row := d.Conn.QueryRowContext(ctx, withdrawalSelect+`
		WHERE withdrawal_id = $1
	`, id)

	withdrawal, err := scanWithdrawalRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Withdrawal with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve withdrawal", err)
	}

	return withdrawal, nil
}

// GetWithdrawalByProviderTransactionID retrieves the withdrawal a settlement
// webhook refers to. Unknown provider transaction ids are NOT_FOUND, which the
// webhook handler surfaces as a 404 rather than acknowledging blindly.
func (d Datasource) GetWithdrawalByProviderTransactionID(ctx context.Context, providerTransactionID string) (*model.Withdrawal, error) {
	row := d.Conn.QueryRowContext(ctx, withdrawalSelect+`
		WHERE provider_transaction_id = $1
	`, providerTransactionID)

	withdrawal, err := scanWithdrawalRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Withdrawal for provider transaction '%s' not found", providerTransactionID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve withdrawal", err)
	}

	return withdrawal, nil
}

// GetWithdrawals retrieves withdrawals matching the filter, newest first.
func (d Datasource) GetWithdrawals(ctx context.Context, f model.WithdrawalFilter) ([]*model.Withdrawal, error) {
	query := withdrawalSelect + `
		WHERE tenant_id = $1
	`
	args := []interface{}{f.TenantID}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve withdrawals", err)
	}
	defer rows.Close()

	return scanWithdrawalRows(rows)
}

// GetWithdrawalsFiltered retrieves withdrawals matching an advanced filter
// set, built from field_operator query parameters. Tenancy is pinned as the
// first condition; filter conditions are ANDed onto it and can never widen
// the result beyond the tenant.
//
// Parameters:
// - ctx: The context for managing the operation's lifecycle.
// - tenantID: The tenant whose withdrawals are listed.
// - filters: Parsed filter conditions, validated against the withdrawals allowlist.
// - opts: Sorting and count options.
// - limit: Page size, clamped to (0, 100] with a default of 20.
// - offset: Pagination offset.
//
// Returns:
// - []*model.Withdrawal: The matching withdrawals.
// - *int64: Total matching count when opts.IncludeCount is set, nil otherwise.
// - error: An APIError. Invalid filters and sorts map to BAD_REQUEST.
func (d Datasource) GetWithdrawalsFiltered(ctx context.Context, tenantID string, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.Withdrawal, *int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	if err := filter.ValidateSortByForTable(opts, "withdrawals"); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrBadRequest, err.Error(), err)
	}

	// Tenancy takes $1, so filter args start at $2.
	result, err := filter.BuildWithOptions(filters, "withdrawals", "", 2, opts)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrBadRequest, fmt.Sprintf("Invalid filter: %s", err.Error()), err)
	}

	selectFields := withdrawalColumns
	includeCount := opts != nil && opts.IncludeCount
	if includeCount {
		selectFields += ", COUNT(*) OVER() AS total_count"
	}

	query := fmt.Sprintf("SELECT %s FROM tesouro.withdrawals ", selectFields)
	query += filter.JoinConditions("WHERE tenant_id = $1", result.Conditions)
	query += " ORDER BY " + result.OrderBy
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", result.NextArgPos, result.NextArgPos+1)

	args := make([]interface{}, 0, len(result.Args)+3)
	args = append(args, tenantID)
	args = append(args, result.Args...)
	args = append(args, limit, offset)

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve withdrawals", err)
	}
	defer rows.Close()

	if !includeCount {
		withdrawals, err := scanWithdrawalRows(rows)
		return withdrawals, nil, err
	}

	withdrawals := []*model.Withdrawal{}
	var totalCount *int64

	for rows.Next() {
		withdrawal := model.Withdrawal{}
		var metaDataJSON []byte
		var count int64

		err := rows.Scan(&withdrawal.WithdrawalID, &withdrawal.TenantID, &withdrawal.Amount, &withdrawal.Fee,
			&withdrawal.NetAmount, &withdrawal.Currency, &withdrawal.BankAccountID, &withdrawal.Status,
			&withdrawal.ProviderTransactionID, &withdrawal.ErrorMessage, &withdrawal.FailureReason,
			&withdrawal.RiskScore, &withdrawal.IPAddress, &withdrawal.CreatedAt, &withdrawal.UpdatedAt, &metaDataJSON,
			&count)
		if err != nil {
			return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan withdrawal data", err)
		}

		if err := json.Unmarshal(metaDataJSON, &withdrawal.MetaData); err != nil {
			return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}

		if totalCount == nil {
			totalCount = &count
		}
		withdrawals = append(withdrawals, &withdrawal)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over withdrawals", err)
	}

	return withdrawals, totalCount, nil
}

// GetAllWithdrawals retrieves withdrawals in stable id order for batch
// consumers such as the search reindexer.
func (d Datasource) GetAllWithdrawals(ctx context.Context, limit, offset int) ([]*model.Withdrawal, error) {
	rows, err := d.Conn.QueryContext(ctx, withdrawalSelect+`
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve withdrawals", err)
	}
	defer rows.Close()

	return scanWithdrawalRows(rows)
}

// GetStaleProcessingWithdrawals retrieves withdrawals that have sat in
// processing since before olderThan. These are reported to operators, never
// auto-transitioned: the money may already have moved at the provider.
func (d Datasource) GetStaleProcessingWithdrawals(ctx context.Context, olderThan time.Time) ([]*model.Withdrawal, error) {
	rows, err := d.Conn.QueryContext(ctx, withdrawalSelect+`
		WHERE status = 'processing' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT 100
	`, olderThan)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stale withdrawals", err)
	}
	defer rows.Close()

	return scanWithdrawalRows(rows)
}

// GetStuckPendingWithdrawals retrieves withdrawals still pending since
// before olderThan, oldest first. The recovery processor re-enqueues
// their submission tasks.
func (d Datasource) GetStuckPendingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]*model.Withdrawal, error) {
	rows, err := d.Conn.QueryContext(ctx, withdrawalSelect+`
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve stuck withdrawals", err)
	}
	defer rows.Close()

	return scanWithdrawalRows(rows)
}

// SumWithdrawalsSince sums withdrawal amounts created since a point in time,
// excluding failed ones. Pending and processing count: the daily limit covers
// money already on its way out, not just money that has arrived.
func (d Datasource) SumWithdrawalsSince(ctx context.Context, tenantID string, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM tesouro.withdrawals
		WHERE tenant_id = $1 AND created_at >= $2 AND status != 'failed'
	`, tenantID, since).Scan(&total)
	if err != nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to sum withdrawals", err)
	}

	return total, nil
}

func scanWithdrawalRow(row *sql.Row) (*model.Withdrawal, error) {
	withdrawal := model.Withdrawal{}
	var metaDataJSON []byte

	err := row.Scan(&withdrawal.WithdrawalID, &withdrawal.TenantID, &withdrawal.Amount, &withdrawal.Fee,
		&withdrawal.NetAmount, &withdrawal.Currency, &withdrawal.BankAccountID, &withdrawal.Status,
		&withdrawal.ProviderTransactionID, &withdrawal.ErrorMessage, &withdrawal.FailureReason,
		&withdrawal.RiskScore, &withdrawal.IPAddress, &withdrawal.CreatedAt, &withdrawal.UpdatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metaDataJSON, &withdrawal.MetaData); err != nil {
		return nil, err
	}

	return &withdrawal, nil
}

func scanWithdrawalRows(rows *sql.Rows) ([]*model.Withdrawal, error) {
	withdrawals := []*model.Withdrawal{}

	for rows.Next() {
		withdrawal := model.Withdrawal{}
		var metaDataJSON []byte

		err := rows.Scan(&withdrawal.WithdrawalID, &withdrawal.TenantID, &withdrawal.Amount, &withdrawal.Fee,
			&withdrawal.NetAmount, &withdrawal.Currency, &withdrawal.BankAccountID, &withdrawal.Status,
			&withdrawal.ProviderTransactionID, &withdrawal.ErrorMessage, &withdrawal.FailureReason,
			&withdrawal.RiskScore, &withdrawal.IPAddress, &withdrawal.CreatedAt, &withdrawal.UpdatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan withdrawal data", err)
		}

		if err := json.Unmarshal(metaDataJSON, &withdrawal.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}

		withdrawals = append(withdrawals, &withdrawal)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over withdrawals", err)
	}

	return withdrawals, nil
}
