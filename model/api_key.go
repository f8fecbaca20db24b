package model

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// APIKey grants a tenant's integration scoped access to the API. The
// key string is generated once and never rotated in place; expiry and
// revocation are the only lifecycle transitions.
type APIKey struct {
	APIKeyID   string     `json:"api_key_id" db:"api_key_id"`
	Key        string     `json:"key" db:"key"`
	Name       string     `json:"name" db:"name"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	Scopes     []string   `json:"scopes" db:"scopes"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt time.Time  `json:"last_used_at" db:"last_used_at"`
	IsRevoked  bool       `json:"is_revoked" db:"is_revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// NewAPIKey mints a scoped key for a tenant.
func NewAPIKey(name, tenantID string, scopes []string, expiresAt time.Time) (*APIKey, error) {
	secret, err := randomKey()
	if err != nil {
		return nil, err
	}

	return &APIKey{
		APIKeyID:  GenerateUUIDWithSuffix("api_key"),
		Key:       secret,
		Name:      name,
		TenantID:  tenantID,
		Scopes:    scopes,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// randomKey draws 32 bytes of entropy and encodes them URL-safe.
func randomKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// IsValid reports whether the key is neither revoked nor expired.
func (k *APIKey) IsValid() bool {
	return !k.IsRevoked && time.Now().Before(k.ExpiresAt)
}
