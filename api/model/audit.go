package model

import (
	"time"

	"github.com/vendahub/tesouro/model"
)

// SecurityAuditResponse is the wire shape of one security audit line.
type SecurityAuditResponse struct {
	AuditID   string             `json:"auditId"`
	TenantID  string             `json:"tenantId"`
	Operation string             `json:"operation"`
	Decision  string             `json:"decision"`
	Score     int                `json:"score"`
	Factors   []model.RiskFactor `json:"factors,omitempty"`
	IPAddress string             `json:"ipAddress"`
	UserAgent string             `json:"userAgent,omitempty"`
	Success   bool               `json:"success"`
	CreatedAt time.Time          `json:"createdAt"`
}

// ToSecurityAuditResponses converts an audit listing.
func ToSecurityAuditResponses(entries []*model.SecurityAuditEntry) []SecurityAuditResponse {
	responses := make([]SecurityAuditResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, SecurityAuditResponse{
			AuditID:   entry.AuditID,
			TenantID:  entry.TenantID,
			Operation: entry.Operation,
			Decision:  entry.Decision,
			Score:     entry.Score,
			Factors:   entry.Factors,
			IPAddress: entry.IPAddress,
			UserAgent: entry.UserAgent,
			Success:   entry.Success,
			CreatedAt: entry.CreatedAt,
		})
	}
	return responses
}
