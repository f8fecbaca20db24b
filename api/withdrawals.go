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
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	model2 "github.com/vendahub/tesouro/api/model"
	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/model"

	"github.com/gin-gonic/gin"
)

// respondError translates an engine error into the wire contract.
// Forbidden responses carry the risk score, rate-limited responses the
// retry delay in seconds, everything else an optional detail field.
func respondError(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	apiErr, ok := err.(apierror.APIError)
	if !ok {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	body := gin.H{"error": apiErr.Message}
	details, _ := apiErr.Details.(map[string]interface{})
	switch apiErr.Code {
	case apierror.ErrForbidden:
		if score, found := details["risk_score"]; found {
			body["riskScore"] = score
		}
	case apierror.ErrRateLimited:
		if retryAfter, found := details["retry_after"]; found {
			body["retryAfter"] = retryAfter
		}
	default:
		if apiErr.Details != nil {
			body["detail"] = apiErr.Details
		}
	}
	c.JSON(status, body)
}

// RequestWithdrawal handles the acceptance of a new withdrawal request.
// It binds the incoming JSON request to a RequestWithdrawal object, validates it,
// and runs the request through the rate gate, the risk scorer and the
// balance reservation. If any step rejects, it responds with the
// contract error for that step.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If there's an error in binding JSON or validating the request.
// - 403 Forbidden: If the risk scorer blocks the request.
// - 429 Too Many Requests: If the rate gate rejects the request.
// - 201 Created: If the withdrawal is accepted and queued for settlement.
func (a Api) RequestWithdrawal(c *gin.Context) {
	var newWithdrawal model2.RequestWithdrawal
	if err := c.ShouldBindJSON(&newWithdrawal); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	if err := newWithdrawal.ValidateRequestWithdrawal(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	riskCtx := newWithdrawal.ToRiskContext(c.ClientIP(), c.Request.UserAgent())
	resp, err := a.tesouro.RequestWithdrawal(c.Request.Context(), riskCtx, newWithdrawal.BankAccountID, newWithdrawal.MetaData)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model2.ToWithdrawalResponse(resp))
}

// GetWithdrawal retrieves a withdrawal by its ID.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If the ID is missing.
// - 404 Not Found: If no withdrawal matches the ID.
// - 200 OK: If the withdrawal is successfully retrieved.
func (a Api) GetWithdrawal(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.tesouro.GetWithdrawal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.ToWithdrawalResponse(resp))
}

// GetWithdrawals lists a tenant's withdrawals, newest first. Status,
// limit and offset narrow the listing. Requests carrying field_operator
// parameters (status_eq=pending, amount_gte=1000, ...) go through the
// advanced filter path instead.
//
// Parameters:
// - c: The Gin context containing the request and response.
//
// Responses:
// - 400 Bad Request: If tenantId is missing or a filter is invalid.
// - 200 OK: The matching withdrawals.
func (a Api) GetWithdrawals(c *gin.Context) {
	tenantID := c.Query("tenantId")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenantId is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	if HasFilters(c) {
		a.getWithdrawalsFiltered(c, tenantID, limit, offset)
		return
	}

	resp, err := a.tesouro.GetWithdrawals(c.Request.Context(), model.WithdrawalFilter{
		TenantID: tenantID,
		Status:   c.Query("status"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.ToWithdrawalResponses(resp))
}

// getWithdrawalsFiltered serves listings with advanced filters. The
// response stays a bare array unless include_count=true was asked for,
// in which case it is wrapped with the total match count.
func (a Api) getWithdrawalsFiltered(c *gin.Context, tenantID string, limit, offset int) {
	filters, parseErrors := ParseFiltersFromContext(c, nil)
	if len(parseErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid input",
			"detail": fmt.Sprintf("%s: %s", parseErrors[0].Param, parseErrors[0].Message),
		})
		return
	}

	resp, totalCount, err := a.tesouro.GetWithdrawalsFiltered(c.Request.Context(), tenantID, filters, ParseQueryOptions(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	if totalCount != nil {
		c.JSON(http.StatusOK, gin.H{
			"data":       model2.ToWithdrawalResponses(resp),
			"totalCount": totalCount,
		})
		return
	}

	c.JSON(http.StatusOK, model2.ToWithdrawalResponses(resp))
}
