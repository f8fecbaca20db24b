package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MerchantBalance is the custodial balance held for one tenant.
// AvailableAmount is what the tenant can withdraw right now;
// PendingAmount is reserved by withdrawals that have not settled.
type MerchantBalance struct {
	ID              int64                  `json:"-"`
	BalanceID       string                 `json:"balance_id"`
	TenantID        string                 `json:"tenant_id"`
	AvailableAmount decimal.Decimal        `json:"available_amount"`
	PendingAmount   decimal.Decimal        `json:"pending_amount"`
	Currency        string                 `json:"currency"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
}

// BalanceSnapshot is the read view handed to the withdrawal validator
// and the stats endpoint. Daily and monthly totals cover completed and
// in-flight withdrawals, so limits count money already on its way out.
type BalanceSnapshot struct {
	TenantID         string          `json:"tenant_id"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	DailyWithdrawn   decimal.Decimal `json:"daily_withdrawn"`
	MonthlyWithdrawn decimal.Decimal `json:"monthly_withdrawn"`
	Currency         string          `json:"currency"`
	AsOf             time.Time       `json:"as_of"`
}

func NewMerchantBalance(tenantID, currency string) *MerchantBalance {
	now := time.Now()
	return &MerchantBalance{
		BalanceID:       GenerateUUIDWithSuffix("bln"),
		TenantID:        tenantID,
		AvailableAmount: decimal.Zero,
		PendingAmount:   decimal.Zero,
		Currency:        currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CanDebit reports whether the available balance covers amount.
func (balance *MerchantBalance) CanDebit(amount decimal.Decimal) bool {
	return balance.AvailableAmount.Cmp(amount) >= 0
}
