package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal statuses. Transitions are forward-only: pending may move to
// processing or failed, processing may move to completed or failed, and
// the terminal statuses never change again.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Failure reasons recorded on withdrawals that never reached the
// provider or were declined by it. provider_timeout is distinct from
// provider_error so timed-out payouts can be escalated deliberately.
const (
	FailureReasonProviderError   = "provider_error"
	FailureReasonProviderTimeout = "provider_timeout"
	FailureReasonProviderReject  = "provider_reject"
)

type Withdrawal struct {
	ID                    int64                  `json:"-"`
	WithdrawalID          string                 `json:"withdrawal_id"`
	TenantID              string                 `json:"tenant_id"`
	Amount                decimal.Decimal        `json:"amount"`
	Fee                   decimal.Decimal        `json:"fee"`
	NetAmount             decimal.Decimal        `json:"net_amount"`
	Currency              string                 `json:"currency"`
	BankAccountID         string                 `json:"bank_account_id"`
	Status                string                 `json:"status"`
	ProviderTransactionID string                 `json:"provider_transaction_id,omitempty"`
	ErrorMessage          string                 `json:"error_message,omitempty"`
	FailureReason         string                 `json:"failure_reason,omitempty"`
	RiskScore             int                    `json:"risk_score"`
	IPAddress             string                 `json:"-"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
	MetaData              map[string]interface{} `json:"meta_data,omitempty"`
}

type WithdrawalFilter struct {
	TenantID string    `json:"tenant_id"`
	Status   string    `json:"status"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// NewWithdrawal builds a pending withdrawal. NetAmount is derived from
// amount and fee here and nowhere else, so the two can never drift.
func NewWithdrawal(tenantID, bankAccountID, currency string, amount, fee decimal.Decimal) *Withdrawal {
	now := time.Now()
	return &Withdrawal{
		WithdrawalID:  GenerateUUIDWithSuffix("wdl"),
		TenantID:      tenantID,
		Amount:        amount,
		Fee:           fee,
		NetAmount:     amount.Sub(fee),
		Currency:      currency,
		BankAccountID: bankAccountID,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// forwardTransitions encodes the allowed state machine edges.
var forwardTransitions = map[string][]string{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransitionTo reports whether moving the withdrawal to next is a
// legal forward transition.
func (withdrawal *Withdrawal) CanTransitionTo(next string) bool {
	for _, allowed := range forwardTransitions[withdrawal.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the withdrawal has reached a final status.
func (withdrawal *Withdrawal) IsTerminal() bool {
	return withdrawal.Status == StatusCompleted || withdrawal.Status == StatusFailed
}

// IdempotencyKey returns the correlation key sent to the settlement
// provider. Deriving it from the withdrawal id means a retried submission
// of the same withdrawal can never produce a second payout.
func (withdrawal *Withdrawal) IdempotencyKey() string {
	return "idem_" + withdrawal.WithdrawalID
}

func (withdrawal *Withdrawal) ToJSON() ([]byte, error) {
	return json.Marshal(withdrawal)
}
