package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/model"
)

// ledgerEntrySelect is the column list shared by every ledger-entry read.
const ledgerEntrySelect = `
	SELECT entry_id, tenant_id, seq, entry_type, source, reference_id, amount, running_balance,
		currency, description, created_at, meta_data
	FROM tesouro.ledger_entries
`

// RecordLedgerEntry appends a standalone entry (adjustments, opening
// balances, processing fees) and moves the available balance by the signed
// amount, so the fold of the ledger and the balance row stay equal. Entries
// tied to a withdrawal or a sale are written by those transactions instead.
func (d Datasource) RecordLedgerEntry(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, error) {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err := lockMerchantBalance(ctx, tx, entry.TenantID); err != nil {
		return nil, err
	}

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	// Fee debits may push the balance negative; that is the operator's
	// signal to collect, not a condition the sweep guards against.
	_, err = tx.ExecContext(ctx, `
		UPDATE tesouro.merchant_balances
		SET available_amount = available_amount + $2, updated_at = NOW()
		WHERE tenant_id = $1
	`, entry.TenantID, entry.SignedAmount().String())
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to apply entry to balance", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return entry, nil
}

// GetLedgerEntries retrieves entries matching the filter in seq order. Seq
// order is the fold order, so a summary computed over the returned slice is
// exact for the window it covers.
func (d Datasource) GetLedgerEntries(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerEntry, error) {
	query := ledgerEntrySelect + `
		WHERE tenant_id = $1
	`
	args := []interface{}{filter.TenantID}

	if filter.EntryType != "" {
		args = append(args, filter.EntryType)
		query += fmt.Sprintf(" AND entry_type = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY seq ASC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer rows.Close()

	return scanLedgerEntryRows(rows)
}

// GetAllLedgerEntries retrieves entries in stable id order for batch
// consumers such as the search reindexer.
func (d Datasource) GetAllLedgerEntries(limit, offset int) ([]*model.LedgerEntry, error) {
	rows, err := d.Conn.Query(ledgerEntrySelect+`
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer rows.Close()

	return scanLedgerEntryRows(rows)
}

// GetLastProcessingFeeTime returns the creation time of the tenant's most
// recent processing_fee entry, or the zero time if the tenant has never
// been swept.
func (d Datasource) GetLastProcessingFeeTime(ctx context.Context, tenantID string) (time.Time, error) {
	var last sql.NullTime
	err := d.Conn.QueryRowContext(ctx, `
		SELECT MAX(created_at)
		FROM tesouro.ledger_entries
		WHERE tenant_id = $1 AND source = $2
	`, tenantID, model.EntrySourceProcessingFee).Scan(&last)
	if err != nil {
		return time.Time{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve last fee sweep time", err)
	}

	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}

// insertLedgerEntry appends one entry inside tx, assigning the next seq and
// the running balance from the tenant's latest entry. Callers must already
// hold the tenant's balance row lock; the UNIQUE (tenant_id, seq) constraint
// turns any violation of that rule into a conflict instead of a gap.
func insertLedgerEntry(ctx context.Context, tx *sql.Tx, entry *model.LedgerEntry) error {
	metaDataJSON, err := json.Marshal(entry.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	var lastSeq int64
	var lastRunning decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT seq, running_balance
		FROM tesouro.ledger_entries
		WHERE tenant_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, entry.TenantID).Scan(&lastSeq, &lastRunning)
	if err != nil && err != sql.ErrNoRows {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read ledger position", err)
	}

	entry.Seq = lastSeq + 1
	entry.RunningBalance = lastRunning.Add(entry.SignedAmount())

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tesouro.ledger_entries (entry_id, tenant_id, seq, entry_type, source, reference_id, amount, running_balance, currency, description, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, entry.EntryID, entry.TenantID, entry.Seq, entry.EntryType, entry.Source, entry.ReferenceID,
		entry.Amount.String(), entry.RunningBalance.String(), entry.Currency, entry.Description, entry.CreatedAt, metaDataJSON)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Ledger entry with ID '%s' or seq %d already exists", entry.EntryID, entry.Seq), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record ledger entry", err)
	}

	return nil
}

func scanLedgerEntryRows(rows *sql.Rows) ([]*model.LedgerEntry, error) {
	entries := []*model.LedgerEntry{}

	for rows.Next() {
		entry := model.LedgerEntry{}
		var metaDataJSON []byte

		err := rows.Scan(&entry.EntryID, &entry.TenantID, &entry.Seq, &entry.EntryType, &entry.Source,
			&entry.ReferenceID, &entry.Amount, &entry.RunningBalance, &entry.Currency, &entry.Description,
			&entry.CreatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger entry data", err)
		}

		if err := json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ledger entries", err)
	}

	return entries, nil
}
