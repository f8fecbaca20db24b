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
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/vendahub/tesouro/api/model"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Settlement-Signature"

// SettlementWebhook reconciles a withdrawal against a settlement
// provider notification. The signature is verified over the raw body
// before anything is parsed; an unsigned or tampered request never
// reaches the engine.
//
// Responses:
// - 401 Unauthorized: If the signature is missing or wrong.
// - 400 Bad Request: If the body is malformed or the status unknown.
// - 404 Not Found: If no withdrawal matches the provider transaction.
// - 409 Conflict: If the notification contradicts a terminal state.
// - 200 OK: The withdrawal after reconciliation.
func (a Api) SettlementWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": "unreadable body"})
		return
	}

	if !a.tesouro.VerifySettlementSignature(body, c.GetHeader(SignatureHeader)) {
		logrus.Warnf("settlement webhook rejected: bad signature from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
		return
	}

	var notification model2.SettlementWebhook
	if err := json.Unmarshal(body, &notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	if err := notification.ValidateSettlementWebhook(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	resp, err := a.tesouro.ReconcileWithdrawal(c.Request.Context(),
		notification.ProviderTransactionID, notification.Status, notification.ErrorMessage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model2.ToWithdrawalResponse(resp))
}
