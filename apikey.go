package tesouro

import (
	"context"
	"time"

	"github.com/vendahub/tesouro/model"
)

// API key management is a thin passthrough to the datasource. Scope
// enforcement happens in the API middleware, not here.

// CreateAPIKey issues a new scoped key for a tenant's integration.
func (l *Tesouro) CreateAPIKey(ctx context.Context, name, tenantID string, scopes []string, expiresAt time.Time) (*model.APIKey, error) {
	return l.datasource.CreateAPIKey(ctx, name, tenantID, scopes, expiresAt)
}

// ListAPIKeys retrieves all API keys for a tenant.
func (l *Tesouro) ListAPIKeys(ctx context.Context, tenantID string) ([]*model.APIKey, error) {
	return l.datasource.ListAPIKeys(ctx, tenantID)
}

// RevokeAPIKey revokes an API key if it belongs to the tenant.
func (l *Tesouro) RevokeAPIKey(ctx context.Context, id, tenantID string) error {
	return l.datasource.RevokeAPIKey(ctx, id, tenantID)
}

// GetAPIKeyByKey retrieves an API key by its key string.
func (l *Tesouro) GetAPIKeyByKey(ctx context.Context, key string) (*model.APIKey, error) {
	return l.datasource.GetAPIKey(ctx, key)
}

// UpdateLastUsed stamps an API key's last use time.
func (l *Tesouro) UpdateLastUsed(ctx context.Context, id string) error {
	return l.datasource.UpdateLastUsed(ctx, id)
}
