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

	"github.com/vendahub/tesouro/internal/hooks"
)

// RegisterHook registers a callback endpoint on the withdrawal
// pipeline. PRE_SUBMISSION hooks fire before a payout is handed to the
// settlement provider, POST_SETTLEMENT hooks once it is terminal.
func (a Api) RegisterHook(c *gin.Context) {
	var hook hooks.Hook
	if err := c.ShouldBindJSON(&hook); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	if err := a.tesouro.Hooks.RegisterHook(c.Request.Context(), &hook); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, hook)
}

// UpdateHook replaces the configuration of an existing hook.
func (a Api) UpdateHook(c *gin.Context) {
	hookID := c.Param("id")
	var hook hooks.Hook
	if err := c.ShouldBindJSON(&hook); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
		return
	}

	if err := a.tesouro.Hooks.UpdateHook(c.Request.Context(), hookID, &hook); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, hook)
}

// GetHook retrieves one hook by ID.
func (a Api) GetHook(c *gin.Context) {
	hook, err := a.tesouro.Hooks.GetHook(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, hook)
}

// ListHooks lists hooks of the type given in ?type=.
func (a Api) ListHooks(c *gin.Context) {
	hookType := hooks.HookType(c.Query("type"))
	registered, err := a.tesouro.Hooks.ListHooks(c.Request.Context(), hookType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, registered)
}

// DeleteHook removes a hook.
func (a Api) DeleteHook(c *gin.Context) {
	if err := a.tesouro.Hooks.DeleteHook(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "hook deleted successfully"})
}
