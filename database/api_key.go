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
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/model"
)

// CreateAPIKey generates a key for a tenant and stores it.
func (d Datasource) CreateAPIKey(ctx context.Context, name, tenantID string, scopes []string, expiresAt time.Time) (*model.APIKey, error) {
	apiKey, err := model.NewAPIKey(name, tenantID, scopes, expiresAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to generate API key", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO tesouro.api_keys (api_key_id, key, name, tenant_id, scopes, expires_at, created_at, last_used_at, is_revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, apiKey.APIKeyID, apiKey.Key, apiKey.Name, apiKey.TenantID, pq.StringArray(apiKey.Scopes),
		apiKey.ExpiresAt, apiKey.CreatedAt, apiKey.LastUsedAt, apiKey.IsRevoked)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create API key", err)
	}

	return apiKey, nil
}

// GetAPIKey looks up an API key by its key string. Used on every
// authenticated request, so the key column carries a unique index.
func (d Datasource) GetAPIKey(ctx context.Context, key string) (*model.APIKey, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT api_key_id, key, name, tenant_id, scopes, expires_at, created_at, last_used_at, is_revoked, revoked_at
		FROM tesouro.api_keys
		WHERE key = $1
	`, key)

	apiKey, err := scanAPIKeyRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "API key not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve API key", err)
	}

	return apiKey, nil
}

// RevokeAPIKey marks a tenant's key as revoked. Only the owning tenant
// can revoke it.
func (d Datasource) RevokeAPIKey(ctx context.Context, id, tenantID string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tesouro.api_keys
		SET is_revoked = true, revoked_at = $1
		WHERE api_key_id = $2 AND tenant_id = $3
	`, time.Now(), id, tenantID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to revoke API key", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rows == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("API key with ID '%s' not found", id), nil)
	}

	return nil
}

// UpdateLastUsed stamps the key's last use. Called in the background on
// authentication, so failures are logged and never block the request.
func (d Datasource) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE tesouro.api_keys
		SET last_used_at = $1
		WHERE api_key_id = $2
	`, time.Now(), id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update API key last use", err)
	}
	return nil
}

// ListAPIKeys retrieves a tenant's keys, newest first.
func (d Datasource) ListAPIKeys(ctx context.Context, tenantID string) ([]*model.APIKey, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT api_key_id, key, name, tenant_id, scopes, expires_at, created_at, last_used_at, is_revoked, revoked_at
		FROM tesouro.api_keys
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve API keys", err)
	}
	defer rows.Close()

	return scanAPIKeyRows(rows)
}

func scanAPIKeyRow(row *sql.Row) (*model.APIKey, error) {
	apiKey := model.APIKey{}
	var scopes pq.StringArray

	err := row.Scan(&apiKey.APIKeyID, &apiKey.Key, &apiKey.Name, &apiKey.TenantID, &scopes,
		&apiKey.ExpiresAt, &apiKey.CreatedAt, &apiKey.LastUsedAt, &apiKey.IsRevoked, &apiKey.RevokedAt)
	if err != nil {
		return nil, err
	}

	apiKey.Scopes = []string(scopes)
	return &apiKey, nil
}

func scanAPIKeyRows(rows *sql.Rows) ([]*model.APIKey, error) {
	apiKeys := []*model.APIKey{}

	for rows.Next() {
		apiKey := model.APIKey{}
		var scopes pq.StringArray

		err := rows.Scan(&apiKey.APIKeyID, &apiKey.Key, &apiKey.Name, &apiKey.TenantID, &scopes,
			&apiKey.ExpiresAt, &apiKey.CreatedAt, &apiKey.LastUsedAt, &apiKey.IsRevoked, &apiKey.RevokedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan API key row", err)
		}

		apiKey.Scopes = []string(scopes)
		apiKeys = append(apiKeys, &apiKey)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over API keys", err)
	}

	return apiKeys, nil
}
