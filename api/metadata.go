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

// UpdateWithdrawalMetadata merges caller-supplied metadata keys into a
// withdrawal's existing metadata. Keys already present keep their value
// unless the body overwrites them; nothing is ever removed.
//
// Responses:
// - 400 Bad Request: If the ID is missing or the body is invalid.
// - 404 Not Found: If no withdrawal matches the ID.
// - 200 OK: The merged metadata.
func (a Api) UpdateWithdrawalMetadata(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id/metadata"})
		return
	}

	var req model2.UpdateMetadata
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	if err := req.ValidateUpdateMetadata(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	merged, err := a.tesouro.UpdateWithdrawalMetadata(c.Request.Context(), id, req.MetaData)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"metadata": merged})
}
