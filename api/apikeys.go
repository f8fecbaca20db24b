package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/vendahub/tesouro/api/model"
)

// CreateAPIKey issues a new scoped key for a tenant's integration.
//
// Parameters:
// - c: The Gin context containing the request and response
//
// Responses:
// - 400 Bad Request: If there's an error with the request body
// - 201 Created: The created key, including the key string
func (a Api) CreateAPIKey(c *gin.Context) {
	var newKey model2.CreateAPIKey
	if err := c.ShouldBindJSON(&newKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}
	if err := newKey.ValidateCreateAPIKey(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	apiKey, err := a.tesouro.CreateAPIKey(c.Request.Context(), newKey.Name, newKey.TenantID, newKey.Scopes, newKey.ExpiresAt)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model2.ToAPIKeyResponse(apiKey))
}

// ListAPIKeys lists a tenant's API keys, newest first.
//
// Query parameters:
// - tenantId (required).
//
// Responses:
// - 400 Bad Request: If tenantId is missing.
// - 200 OK: The tenant's keys.
func (a Api) ListAPIKeys(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	apiKeys, err := a.tesouro.ListAPIKeys(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.ToAPIKeyResponses(apiKeys))
}

// RevokeAPIKey revokes a tenant's API key. The key stops authenticating
// immediately; the row is kept for audit.
//
// Responses:
// - 400 Bad Request: If tenantId is missing.
// - 404 Not Found: If the key does not exist or belongs to another tenant.
// - 204 No Content: If the key was revoked.
func (a Api) RevokeAPIKey(c *gin.Context) {
	id := c.Param("id")
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	if err := a.tesouro.RevokeAPIKey(c.Request.Context(), id, tenantID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
