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
	"github.com/vendahub/tesouro/model"
)

// RecordSaleSettlement records a settled sale and its ledger credit in one
// transaction: the sale row, the sale_settlement entry and the balance
// credit all land together or not at all. A repeated reference for the same
// tenant is a conflict, which is what makes settlement ingestion idempotent.
func (d Datasource) RecordSaleSettlement(ctx context.Context, sale *model.SettledSale, entry *model.LedgerEntry) error {
	ctx, span := otel.Tracer("Sale datasource").Start(ctx, "Recording sale settlement")
	defer span.End()

	metaDataJSON, err := json.Marshal(sale.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err := lockMerchantBalance(ctx, tx, sale.TenantID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tesouro.settled_sales (sale_id, tenant_id, reference, total, net_credit, currency, settled_at, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, sale.SaleID, sale.TenantID, sale.Reference, sale.Total.String(), sale.NetCredit.String(), sale.Currency, sale.SettledAt, sale.CreatedAt, metaDataJSON)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Sale with reference '%s' is already settled", sale.Reference), err)
			default:
				return apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record settled sale", err)
	}

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tesouro.merchant_balances
		SET available_amount = available_amount + $2, updated_at = NOW()
		WHERE tenant_id = $1
	`, sale.TenantID, sale.NetCredit.String())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to credit merchant balance", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return nil
}

// SaleExistsByReference reports whether a settlement with this reference was
// already recorded for the tenant.
func (d Datasource) SaleExistsByReference(ctx context.Context, tenantID, reference string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM tesouro.settled_sales WHERE tenant_id = $1 AND reference = $2
		)
	`, tenantID, reference).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check sale reference", err)
	}

	return exists, nil
}

// GetSalesTotals returns the gross settled total and the net credited
// revenue for a tenant across all time.
func (d Datasource) GetSalesTotals(ctx context.Context, tenantID string) (decimal.Decimal, decimal.Decimal, error) {
	var gross, net decimal.Decimal
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0), COALESCE(SUM(net_credit), 0)
		FROM tesouro.settled_sales
		WHERE tenant_id = $1
	`, tenantID).Scan(&gross, &net)
	if err != nil {
		return decimal.Zero, decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to sum settled sales", err)
	}

	return gross, net, nil
}

// SumSettledSalesBetween sums sale totals settled in [from, to). The fee
// sweep uses it to charge the processing-fee rate over the volume the tenant
// moved since the last sweep.
func (d Datasource) SumSettledSalesBetween(ctx context.Context, tenantID string, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0)
		FROM tesouro.settled_sales
		WHERE tenant_id = $1 AND settled_at >= $2 AND settled_at < $3
	`, tenantID, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to sum settled sales", err)
	}

	return total, nil
}
