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

	"github.com/lib/pq"

	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/model"
)

// CreateMerchantBalance inserts a new custodial balance for a tenant. One
// balance row exists per tenant; a second insert for the same tenant is a
// conflict, not an upsert.
func (d Datasource) CreateMerchantBalance(ctx context.Context, balance *model.MerchantBalance) (*model.MerchantBalance, error) {
	metaDataJSON, err := json.Marshal(balance.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO tesouro.merchant_balances (balance_id, tenant_id, available_amount, pending_amount, currency, created_at, updated_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, balance.BalanceID, balance.TenantID, balance.AvailableAmount.String(), balance.PendingAmount.String(), balance.Currency, balance.CreatedAt, balance.UpdatedAt, metaDataJSON)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok {
			switch pqErr.Code.Name() {
			case "unique_violation":
				return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Merchant balance for tenant '%s' already exists", balance.TenantID), err)
			default:
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Database error occurred", err)
			}
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create merchant balance", err)
	}

	return balance, nil
}

// GetMerchantBalance retrieves a tenant's balance without locking it. Reads
// that precede a write must go through lockMerchantBalance inside a
// transaction instead.
func (d Datasource) GetMerchantBalance(ctx context.Context, tenantID string) (*model.MerchantBalance, error) {
	balance := model.MerchantBalance{}
	var metaDataJSON []byte

	err := d.Conn.QueryRowContext(ctx, `
		SELECT balance_id, tenant_id, available_amount, pending_amount, currency, created_at, updated_at, meta_data
		FROM tesouro.merchant_balances
		WHERE tenant_id = $1
	`, tenantID).Scan(&balance.BalanceID, &balance.TenantID, &balance.AvailableAmount, &balance.PendingAmount,
		&balance.Currency, &balance.CreatedAt, &balance.UpdatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Merchant balance for tenant '%s' not found", tenantID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve merchant balance", err)
	}

	if err := json.Unmarshal(metaDataJSON, &balance.MetaData); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
	}

	return &balance, nil
}

// GetAllMerchantBalances retrieves balances in a paginated manner, ordered
// by insertion. The search reindexer pages through this.
func (d Datasource) GetAllMerchantBalances(ctx context.Context, limit, offset int) ([]*model.MerchantBalance, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT balance_id, tenant_id, available_amount, pending_amount, currency, created_at, updated_at, meta_data
		FROM tesouro.merchant_balances
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve merchant balances", err)
	}
	defer rows.Close()

	balances := []*model.MerchantBalance{}
	for rows.Next() {
		balance := model.MerchantBalance{}
		var metaDataJSON []byte

		if err := rows.Scan(&balance.BalanceID, &balance.TenantID, &balance.AvailableAmount, &balance.PendingAmount,
			&balance.Currency, &balance.CreatedAt, &balance.UpdatedAt, &metaDataJSON); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan merchant balance data", err)
		}

		if err := json.Unmarshal(metaDataJSON, &balance.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}

		balances = append(balances, &balance)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over merchant balances", err)
	}

	return balances, nil
}

// GetActiveTenants lists every tenant that holds a balance. The fee sweep
// iterates this to know whom to charge.
func (d Datasource) GetActiveTenants(ctx context.Context) ([]string, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT tenant_id
		FROM tesouro.merchant_balances
		ORDER BY tenant_id ASC
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve tenants", err)
	}
	defer rows.Close()

	tenants := []string{}
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan tenant data", err)
		}
		tenants = append(tenants, tenantID)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over tenants", err)
	}

	return tenants, nil
}

// lockMerchantBalance reads a tenant's balance row FOR UPDATE inside tx.
// Every transaction that appends a ledger entry or moves balance amounts
// takes this lock first, which gives all balance writers for one tenant a
// single serialization point and a consistent lock order.
func lockMerchantBalance(ctx context.Context, tx *sql.Tx, tenantID string) (*model.MerchantBalance, error) {
	balance := model.MerchantBalance{}
	var metaDataJSON []byte

	err := tx.QueryRowContext(ctx, `
		SELECT balance_id, tenant_id, available_amount, pending_amount, currency, created_at, updated_at, meta_data
		FROM tesouro.merchant_balances
		WHERE tenant_id = $1
		FOR UPDATE
	`, tenantID).Scan(&balance.BalanceID, &balance.TenantID, &balance.AvailableAmount, &balance.PendingAmount,
		&balance.Currency, &balance.CreatedAt, &balance.UpdatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Merchant balance for tenant '%s' not found", tenantID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock merchant balance", err)
	}

	if err := json.Unmarshal(metaDataJSON, &balance.MetaData); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
	}

	return &balance, nil
}
