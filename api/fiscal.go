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

	"github.com/gin-gonic/gin"

	model2 "github.com/vendahub/tesouro/api/model"
)

// GenerateFiscalKey issues a 44-digit fiscal document access key for
// the given issuer registration, series and document number.
//
// Responses:
// - 400 Bad Request: If there's an error in binding JSON or validating the request.
// - 201 Created: The generated key, self-verifying by construction.
func (a Api) GenerateFiscalKey(c *gin.Context) {
	var req model2.GenerateFiscalKey
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	if err := req.ValidateGenerateFiscalKey(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	key, err := a.tesouro.GenerateFiscalKey(req.TaxID, req.Series, req.Number)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model2.FiscalKeyResponse{AccessKey: key, Valid: true})
}

// ValidateFiscalKey recomputes the check digit of an access key.
//
// Responses:
// - 400 Bad Request: If the key fails structural or check-digit validation.
// - 200 OK: If the key verifies.
func (a Api) ValidateFiscalKey(c *gin.Context) {
	key, passed := c.Params.Get("key")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required. pass key in the route /:key"})
		return
	}

	if err := a.tesouro.ValidateFiscalKey(key); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "accessKey": key, "valid": false})
		return
	}

	c.JSON(http.StatusOK, model2.FiscalKeyResponse{AccessKey: key, Valid: true})
}
