package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendahub/tesouro/model"
)

// RequestWithdrawal is the JSON body of POST /withdrawals. The caller
// identifies the tenant and the payout target; IP address and user
// agent are taken from the request itself, never from the body.
type RequestWithdrawal struct {
	TenantID      string                 `json:"tenantId"`
	Amount        float64                `json:"amount"`
	Currency      string                 `json:"currency"`
	BankAccountID string                 `json:"bankAccountId"`
	MetaData      map[string]interface{} `json:"metadata"`
}

// UpdateMetadata is the JSON body of POST /withdrawals/:id/metadata.
// Keys are merged into the withdrawal's existing metadata.
type UpdateMetadata struct {
	MetaData map[string]interface{} `json:"metadata"`
}

// SettlementWebhook is the JSON body the settlement provider posts to
// /webhooks/settlement once a payout reaches a terminal state.
type SettlementWebhook struct {
	ProviderTransactionID string `json:"providerTransactionId"`
	Status                string `json:"status"`
	ErrorMessage          string `json:"errorMessage"`
}

// WithdrawalResponse is the wire shape of a withdrawal. Internal fields
// such as the originating IP never appear here.
type WithdrawalResponse struct {
	WithdrawalID          string                 `json:"withdrawalId"`
	TenantID              string                 `json:"tenantId"`
	Amount                decimal.Decimal        `json:"amount"`
	Fee                   decimal.Decimal        `json:"fee"`
	NetAmount             decimal.Decimal        `json:"netAmount"`
	Currency              string                 `json:"currency"`
	BankAccountID         string                 `json:"bankAccountId"`
	Status                string                 `json:"status"`
	ProviderTransactionID string                 `json:"providerTransactionId,omitempty"`
	ErrorMessage          string                 `json:"errorMessage,omitempty"`
	FailureReason         string                 `json:"failureReason,omitempty"`
	RiskScore             int                    `json:"riskScore"`
	CreatedAt             time.Time              `json:"createdAt"`
	UpdatedAt             time.Time              `json:"updatedAt"`
	MetaData              map[string]interface{} `json:"metadata,omitempty"`
}

// ToWithdrawalResponse converts an engine withdrawal to its wire shape.
func ToWithdrawalResponse(withdrawal *model.Withdrawal) WithdrawalResponse {
	return WithdrawalResponse{
		WithdrawalID:          withdrawal.WithdrawalID,
		TenantID:              withdrawal.TenantID,
		Amount:                withdrawal.Amount,
		Fee:                   withdrawal.Fee,
		NetAmount:             withdrawal.NetAmount,
		Currency:              withdrawal.Currency,
		BankAccountID:         withdrawal.BankAccountID,
		Status:                withdrawal.Status,
		ProviderTransactionID: withdrawal.ProviderTransactionID,
		ErrorMessage:          withdrawal.ErrorMessage,
		FailureReason:         withdrawal.FailureReason,
		RiskScore:             withdrawal.RiskScore,
		CreatedAt:             withdrawal.CreatedAt,
		UpdatedAt:             withdrawal.UpdatedAt,
		MetaData:              withdrawal.MetaData,
	}
}

// ToWithdrawalResponses converts a listing.
func ToWithdrawalResponses(withdrawals []*model.Withdrawal) []WithdrawalResponse {
	responses := make([]WithdrawalResponse, 0, len(withdrawals))
	for _, withdrawal := range withdrawals {
		responses = append(responses, ToWithdrawalResponse(withdrawal))
	}
	return responses
}
