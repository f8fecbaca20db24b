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

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	tesouro "github.com/vendahub/tesouro"
	"github.com/vendahub/tesouro/config"
)

// KeyHeader carries both the master secret and tenant API keys.
const KeyHeader = "X-Tesouro-Key"

// pathToResource maps the first path segment of a route to the
// resource its scope must name. Aliases point shared views at the
// resource that owns them: financial stats read balances, multi-search
// is still search, submission recovery re-enqueues withdrawals.
// Segments absent from the map, hooks and reindex among them, stay
// master-key only.
var pathToResource = map[string]Resource{
	"withdrawals":         ResourceWithdrawals,
	"recover-submissions": ResourceWithdrawals,
	"balances":            ResourceBalances,
	"financial-stats":     ResourceBalances,
	"ledger":              ResourceLedger,
	"sales":               ResourceSales,
	"fiscal-keys":         ResourceFiscalKeys,
	"security-audits":     ResourceSecurityAudits,
	"api-keys":            ResourceAPIKeys,
	"search":              ResourceSearch,
	"multi-search":        ResourceSearch,
	"backup":              ResourceBackup,
	"backup-s3":           ResourceBackup,
}

// AuthMiddleware authenticates requests against the master secret or a
// stored tenant API key, both presented in KeyHeader.
type AuthMiddleware struct {
	service *tesouro.Tesouro
}

func NewAuthMiddleware(engine *tesouro.Tesouro) *AuthMiddleware {
	return &AuthMiddleware{service: engine}
}

func getResourceFromPath(path string) Resource {
	segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return pathToResource[segment]
}

// authExempt covers the paths that never carry a key: the banner, the
// health probe, and provider webhooks, which authenticate with an HMAC
// signature over the body instead.
func authExempt(path string) bool {
	return path == "/" || path == "/health" || strings.HasPrefix(path, "/webhooks/")
}

// Authenticate enforces key auth on every non-exempt route when secure
// mode is on. The master key passes everything; API keys must be live
// and hold a scope covering the resource and method. Missing and bad
// keys answer 401, a live key without the scope answers 403.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if authExempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		conf, err := config.Fetch()
		if err == nil && !conf.Server.Secure {
			c.Next()
			return
		}

		key := c.GetHeader(KeyHeader)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required. Use X-Tesouro-Key header"})
			return
		}

		if err == nil && conf.Server.SecretKey == key {
			c.Set("isMasterKey", true)
			c.Next()
			return
		}

		m.authenticateAPIKey(c, key)
	}
}

// authenticateAPIKey resolves key to a stored API key and enforces its
// scopes against the request path and method.
func (m *AuthMiddleware) authenticateAPIKey(c *gin.Context, key string) {
	apiKey, err := m.service.GetAPIKeyByKey(c.Request.Context(), key)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return
	}
	if !apiKey.IsValid() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key is expired or revoked"})
		return
	}

	resource := getResourceFromPath(c.Request.URL.Path)
	if resource == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unknown resource type"})
		return
	}

	if !HasPermission(apiKey.Scopes, resource, c.Request.Method) {
		action := methodToAction[c.Request.Method]
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions for " + BuildScope(resource, action)})
		return
	}

	// Last-used tracking is bookkeeping; it must not hold the request
	// or die with the request context.
	keyID := apiKey.APIKeyID
	go func() {
		_ = m.service.UpdateLastUsed(context.Background(), keyID)
	}()

	c.Set("apiKey", apiKey)
	c.Set("tenant", apiKey.TenantID)
	c.Next()
}
