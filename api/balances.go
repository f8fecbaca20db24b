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
	"time"

	"github.com/gin-gonic/gin"

	model2 "github.com/vendahub/tesouro/api/model"
)

// CreateBalance provisions a merchant balance for a tenant. Creating a
// balance twice conflicts; every tenant carries exactly one row.
//
// Responses:
// - 400 Bad Request: If there's an error in binding JSON or validating the request.
// - 409 Conflict: If the tenant already has a balance.
// - 201 Created: If the balance is created.
func (a Api) CreateBalance(c *gin.Context) {
	var newBalance model2.CreateBalance
	if err := c.ShouldBindJSON(&newBalance); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	if err := newBalance.ValidateCreateBalance(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	resp, err := a.tesouro.CreateMerchantBalance(c.Request.Context(), newBalance.TenantID, newBalance.Currency)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model2.ToBalanceResponse(resp))
}

// GetBalance returns a tenant's raw balance row.
func (a Api) GetBalance(c *gin.Context) {
	tenantID, passed := c.Params.Get("tenant_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant id is required. pass id in the route /:tenant_id"})
		return
	}

	resp, err := a.tesouro.GetMerchantBalance(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.ToBalanceResponse(resp))
}

// GetBalanceSnapshot returns the live balance together with the daily
// and monthly withdrawal totals, bypassing the stats cache.
func (a Api) GetBalanceSnapshot(c *gin.Context) {
	tenantID, passed := c.Params.Get("tenant_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant id is required. pass id in the route /:tenant_id"})
		return
	}

	snapshot, err := a.tesouro.GetBalanceSnapshot(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tenantId":         snapshot.TenantID,
		"availableBalance": snapshot.AvailableBalance,
		"pendingBalance":   snapshot.PendingBalance,
		"dailyWithdrawn":   snapshot.DailyWithdrawn,
		"monthlyWithdrawn": snapshot.MonthlyWithdrawn,
		"currency":         snapshot.Currency,
		"asOf":             snapshot.AsOf.Format(time.RFC3339),
	})
}

// GetFinancialStats serves the cached per-tenant dashboard aggregate.
//
// Responses:
// - 400 Bad Request: If tenantId is missing.
// - 200 OK: The stats, at most 30 seconds old.
func (a Api) GetFinancialStats(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	stats, err := a.tesouro.GetFinancialStats(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.ToFinancialStatsResponse(stats))
}
