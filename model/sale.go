package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettledSale is a sale the payment processor has settled for a tenant.
// Settlement is what turns a sale into custodial money: the ledger
// credits total * (1 - platformFeeRate) and the balance grows by the
// same net amount.
type SettledSale struct {
	ID        int64                  `json:"-"`
	SaleID    string                 `json:"sale_id"`
	TenantID  string                 `json:"tenant_id"`
	Reference string                 `json:"reference"`
	Total     decimal.Decimal        `json:"total"`
	NetCredit decimal.Decimal        `json:"net_credit"`
	Currency  string                 `json:"currency"`
	SettledAt time.Time              `json:"settled_at"`
	CreatedAt time.Time              `json:"created_at"`
	MetaData  map[string]interface{} `json:"meta_data,omitempty"`
}

// NewSettledSale derives the net ledger credit from the sale total and
// the platform fee rate. The derivation lives here and nowhere else.
func NewSettledSale(tenantID, reference, currency string, total, platformFeeRate decimal.Decimal, settledAt time.Time) *SettledSale {
	net := total.Mul(decimal.NewFromInt(1).Sub(platformFeeRate))
	return &SettledSale{
		SaleID:    GenerateUUIDWithSuffix("sal"),
		TenantID:  tenantID,
		Reference: reference,
		Total:     total,
		NetCredit: net,
		Currency:  currency,
		SettledAt: settledAt,
		CreatedAt: time.Now(),
	}
}
