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
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/vendahub/tesouro/internal/search"
)

// ReindexRequest carries the optional batch size for a rebuild.
type ReindexRequest struct {
	BatchSize int `json:"batch_size"`
}

const defaultReindexBatch = 1000

// reindexRuns tracks the single in-flight rebuild per process.
var reindexRuns struct {
	sync.RWMutex
	current *search.ReindexService
}

// StartReindex rebuilds every search collection from the database. The
// rebuild runs in the background so the request returns immediately.
//
// Responses:
// - 202 Accepted: Rebuild started, returns initial progress.
// - 409 Conflict: A rebuild is already in progress.
func (a Api) StartReindex(c *gin.Context) {
	var req ReindexRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BatchSize <= 0 {
		req.BatchSize = defaultReindexBatch
	}

	reindexRuns.Lock()
	if svc := reindexRuns.current; svc != nil {
		if progress := svc.GetProgress(); progress.Status == "in_progress" {
			reindexRuns.Unlock()
			c.JSON(http.StatusConflict, gin.H{
				"error":    "A reindex operation is already in progress",
				"progress": progress,
			})
			return
		}
	}

	svc := search.NewReindexService(
		a.tesouro.GetSearchClient(),
		a.tesouro.GetDataSource(),
		search.ReindexConfig{BatchSize: req.BatchSize},
	)
	reindexRuns.current = svc
	reindexRuns.Unlock()

	go func() {
		_, _ = svc.StartReindex(context.Background())
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message":  "Reindex operation started",
		"progress": svc.GetProgress(),
	})
}

// GetReindexProgress reports how far the current rebuild has gotten.
//
// Responses:
// - 200 OK: Returns current progress.
// - 404 Not Found: No rebuild has been started.
func (a Api) GetReindexProgress(c *gin.Context) {
	reindexRuns.RLock()
	svc := reindexRuns.current
	reindexRuns.RUnlock()

	if svc == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No reindex operation has been started",
		})
		return
	}

	c.JSON(http.StatusOK, svc.GetProgress())
}
