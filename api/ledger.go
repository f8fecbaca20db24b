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
	"time"

	"github.com/gin-gonic/gin"

	model2 "github.com/vendahub/tesouro/api/model"
	"github.com/vendahub/tesouro/model"
)

// GetLedger lists a window of a tenant's ledger in sequence order. The
// summary in the response is folded from exactly the entries listed.
//
// Query parameters:
// - tenantId (required), type, from, to (RFC 3339), limit, offset.
//
// Responses:
// - 400 Bad Request: If tenantId is missing or a date fails to parse.
// - 200 OK: The entries and their summary.
func (a Api) GetLedger(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	filter := model.LedgerFilter{
		TenantID:  tenantID,
		EntryType: c.Query("type"),
	}

	if from := c.Query("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": "from must be RFC 3339"})
			return
		}
		filter.From = parsed
	}
	if to := c.Query("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": "to must be RFC 3339"})
			return
		}
		filter.To = parsed
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, summary, err := a.tesouro.GetLedger(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.ToLedgerResponse(entries, summary))
}

// VerifyLedger replays a tenant's full ledger and reports sequence gaps
// and running-balance drift against the stored balance.
func (a Api) VerifyLedger(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	report, err := a.tesouro.VerifyLedger(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.ToLedgerIntegrityResponse(report))
}
