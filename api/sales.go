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
	"github.com/shopspring/decimal"

	model2 "github.com/vendahub/tesouro/api/model"
)

// RecordSettledSale ingests one settled sale from the payment pipeline.
// The ledger credit of total minus the platform fee lands atomically
// with the sale. Re-posting the same reference conflicts and moves no
// money, so event sources can treat 409 as success.
//
// Responses:
// - 400 Bad Request: If there's an error in binding JSON or validating the sale.
// - 409 Conflict: If the reference was already settled.
// - 201 Created: If the sale and its ledger credit are recorded.
func (a Api) RecordSettledSale(c *gin.Context) {
	var newSale model2.RecordSale
	if err := c.ShouldBindJSON(&newSale); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	if err := newSale.ValidateRecordSale(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	resp, err := a.tesouro.RecordSettledSale(c.Request.Context(), newSale.TenantID, newSale.Reference,
		newSale.Currency, decimal.NewFromFloat(newSale.Total), newSale.ParsedSettledAt(), newSale.MetaData)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model2.ToSaleResponse(resp))
}
