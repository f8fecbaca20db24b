package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendahub/tesouro/model"
)

// RecordSale is the JSON body of POST /sales/settled, one settlement
// event from the payment pipeline. Reference is the caller's idempotency
// handle for the sale.
type RecordSale struct {
	TenantID  string                 `json:"tenantId"`
	Reference string                 `json:"reference"`
	Total     float64                `json:"total"`
	Currency  string                 `json:"currency"`
	SettledAt string                 `json:"settledAt"`
	MetaData  map[string]interface{} `json:"metadata"`
}

// SaleResponse is the wire shape of a settled sale.
type SaleResponse struct {
	SaleID    string                 `json:"saleId"`
	TenantID  string                 `json:"tenantId"`
	Reference string                 `json:"reference"`
	Total     decimal.Decimal        `json:"total"`
	NetCredit decimal.Decimal        `json:"netCredit"`
	Currency  string                 `json:"currency"`
	SettledAt time.Time              `json:"settledAt"`
	CreatedAt time.Time              `json:"createdAt"`
	MetaData  map[string]interface{} `json:"metadata,omitempty"`
}

// ToSaleResponse converts an engine sale to its wire shape.
func ToSaleResponse(sale *model.SettledSale) SaleResponse {
	return SaleResponse{
		SaleID:    sale.SaleID,
		TenantID:  sale.TenantID,
		Reference: sale.Reference,
		Total:     sale.Total,
		NetCredit: sale.NetCredit,
		Currency:  sale.Currency,
		SettledAt: sale.SettledAt,
		CreatedAt: sale.CreatedAt,
		MetaData:  sale.MetaData,
	}
}
