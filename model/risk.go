package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation classes used by both the risk scorer and the rate gate.
const (
	OperationWithdrawal = "withdrawal"
	OperationTransfer   = "transfer"
	OperationPayment    = "payment"
)

// Risk decisions. Block rejects the request outright, flag lets it
// through marked for step-up, allow passes silently.
const (
	RiskDecisionAllow = "allow"
	RiskDecisionFlag  = "flag"
	RiskDecisionBlock = "block"
)

// RiskContext is everything the scorer looks at for one request. Geo
// and device classification happen inside the scorer through injected
// classifiers; the context carries only raw request facts.
type RiskContext struct {
	TenantID    string          `json:"tenant_id"`
	Operation   string          `json:"operation"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	IPAddress   string          `json:"ip_address"`
	UserAgent   string          `json:"user_agent"`
	RequestedAt time.Time       `json:"requested_at"`
}

// RiskFactor is one signal that contributed to a score.
type RiskFactor struct {
	Factor      string `json:"factor"`
	Description string `json:"description"`
	Score       int    `json:"score"`
}

// RiskAssessment is the scorer's verdict: the capped additive score,
// the factors behind it, and the resulting decision.
type RiskAssessment struct {
	Score    int          `json:"score"`
	Decision string       `json:"decision"`
	Factors  []RiskFactor `json:"factors"`
}

// Blocked reports whether the request must be rejected.
func (assessment *RiskAssessment) Blocked() bool {
	return assessment.Decision == RiskDecisionBlock
}

// Flagged reports whether the request passes but needs step-up review.
func (assessment *RiskAssessment) Flagged() bool {
	return assessment.Decision == RiskDecisionFlag
}

// SecurityAuditEntry is one immutable line in the security audit log.
// Entries are written for blocks, flags and rate-limit rejections,
// never updated afterwards.
type SecurityAuditEntry struct {
	ID        int64                  `json:"-"`
	AuditID   string                 `json:"audit_id"`
	TenantID  string                 `json:"tenant_id"`
	Operation string                 `json:"operation"`
	Decision  string                 `json:"decision"`
	Score     int                    `json:"score"`
	Factors   []RiskFactor           `json:"factors,omitempty"`
	IPAddress string                 `json:"ip_address"`
	UserAgent string                 `json:"user_agent,omitempty"`
	Success   bool                   `json:"success"`
	CreatedAt time.Time              `json:"created_at"`
	MetaData  map[string]interface{} `json:"meta_data,omitempty"`
}

type SecurityAuditFilter struct {
	TenantID  string    `json:"tenant_id"`
	Decision  string    `json:"decision"`
	Operation string    `json:"operation"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
}

// NewSecurityAuditEntry records the outcome of a gated request.
// Success is false only for blocks; flags proceed, so they audit as
// successful with their factors attached.
func NewSecurityAuditEntry(context *RiskContext, assessment *RiskAssessment) *SecurityAuditEntry {
	return &SecurityAuditEntry{
		AuditID:   GenerateUUIDWithSuffix("aud"),
		TenantID:  context.TenantID,
		Operation: context.Operation,
		Decision:  assessment.Decision,
		Score:     assessment.Score,
		Factors:   assessment.Factors,
		IPAddress: context.IPAddress,
		UserAgent: context.UserAgent,
		Success:   !assessment.Blocked(),
		CreatedAt: time.Now(),
	}
}
