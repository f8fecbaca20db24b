package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vendahub/tesouro/internal/apierror"
)

// UpdateWithdrawalMetadata replaces the stored metadata of a withdrawal with
// the given map. Merging with existing metadata is the caller's job; this
// method persists exactly what it is handed.
func (d Datasource) UpdateWithdrawalMetadata(ctx context.Context, id string, metadata map[string]interface{}) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tesouro.withdrawals
		SET meta_data = $2, updated_at = NOW()
		WHERE withdrawal_id = $1
	`, id, metadataJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update withdrawal metadata", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Withdrawal with ID '%s' not found", id), nil)
	}

	return nil
}
