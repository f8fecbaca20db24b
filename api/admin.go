package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	backups "github.com/vendahub/tesouro/internal/pg-backups"
)

func (a Api) BackupDB(c *gin.Context) {
	manager, err := backups.NewBackupManager()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	path, err := manager.BackupToDisk(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "backup successful", "path": path})
}

func (a Api) BackupDBS3(c *gin.Context) {
	manager, err := backups.NewBackupManager()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := manager.BackupToS3(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "backup successful"})
}

// RecoverSubmissions re-enqueues pending withdrawals whose submission
// task went missing. thresholdMinutes bounds how fresh a pending
// withdrawal may be and floors at one minute.
func (a Api) RecoverSubmissions(c *gin.Context) {
	var req struct {
		ThresholdMinutes int `json:"thresholdMinutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		req.ThresholdMinutes = 5
	}
	if req.ThresholdMinutes <= 0 {
		req.ThresholdMinutes = 5
	}

	recovered, err := a.tesouro.RecoverPendingSubmissions(c.Request.Context(), time.Duration(req.ThresholdMinutes)*time.Minute)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recovered": recovered})
}
