package model

import (
	"time"

	"github.com/vendahub/tesouro/model"
)

// CreateAPIKey is the JSON body of POST /api-keys.
type CreateAPIKey struct {
	Name      string    `json:"name"`
	TenantID  string    `json:"tenantId"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// APIKeyResponse is the wire shape of an API key. The key string is
// returned on creation and on list for the owning tenant.
type APIKeyResponse struct {
	APIKeyID   string     `json:"apiKeyId"`
	Key        string     `json:"key"`
	Name       string     `json:"name"`
	TenantID   string     `json:"tenantId"`
	Scopes     []string   `json:"scopes"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt time.Time  `json:"lastUsedAt"`
	IsRevoked  bool       `json:"isRevoked"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
}

// ToAPIKeyResponse converts an engine API key to its wire shape.
func ToAPIKeyResponse(apiKey *model.APIKey) APIKeyResponse {
	return APIKeyResponse{
		APIKeyID:   apiKey.APIKeyID,
		Key:        apiKey.Key,
		Name:       apiKey.Name,
		TenantID:   apiKey.TenantID,
		Scopes:     apiKey.Scopes,
		ExpiresAt:  apiKey.ExpiresAt,
		CreatedAt:  apiKey.CreatedAt,
		LastUsedAt: apiKey.LastUsedAt,
		IsRevoked:  apiKey.IsRevoked,
		RevokedAt:  apiKey.RevokedAt,
	}
}

// ToAPIKeyResponses converts a list of API keys.
func ToAPIKeyResponses(apiKeys []*model.APIKey) []APIKeyResponse {
	responses := make([]APIKeyResponse, 0, len(apiKeys))
	for _, apiKey := range apiKeys {
		responses = append(responses, ToAPIKeyResponse(apiKey))
	}
	return responses
}
