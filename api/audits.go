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
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	model2 "github.com/vendahub/tesouro/api/model"
	"github.com/vendahub/tesouro/model"
)

// GetSecurityAudits lists security audit entries, newest first.
// Decision and operation narrow the listing.
//
// Query parameters:
// - tenantId (required), decision, operation, limit, offset.
//
// Responses:
// - 400 Bad Request: If tenantId is missing.
// - 200 OK: The matching audit entries.
func (a Api) GetSecurityAudits(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resp, err := a.tesouro.GetSecurityAudits(c.Request.Context(), model.SecurityAuditFilter{
		TenantID:  tenantID,
		Decision:  c.Query("decision"),
		Operation: c.Query("operation"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.ToSecurityAuditResponses(resp))
}
