package model

import (
	"time"

	"github.com/shopspring/decimal"

	tesouro "github.com/vendahub/tesouro"
	"github.com/vendahub/tesouro/model"
)

// CreateBalance is the JSON body of POST /balances. Currency defaults
// to the configured withdrawal currency when omitted.
type CreateBalance struct {
	TenantID string `json:"tenantId"`
	Currency string `json:"currency"`
}

// BalanceResponse is the wire shape of a merchant balance row.
type BalanceResponse struct {
	BalanceID       string          `json:"balanceId"`
	TenantID        string          `json:"tenantId"`
	AvailableAmount decimal.Decimal `json:"availableAmount"`
	PendingAmount   decimal.Decimal `json:"pendingAmount"`
	Currency        string          `json:"currency"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// FinancialStatsResponse is the body of GET /financial-stats.
type FinancialStatsResponse struct {
	TenantID           string          `json:"tenantId"`
	AvailableBalance   decimal.Decimal `json:"availableBalance"`
	PendingBalance     decimal.Decimal `json:"pendingBalance"`
	DailyWithdrawals   decimal.Decimal `json:"dailyWithdrawals"`
	MonthlyWithdrawals decimal.Decimal `json:"monthlyWithdrawals"`
	GrossSales         decimal.Decimal `json:"grossSales"`
	NetRevenue         decimal.Decimal `json:"netRevenue"`
	AsOf               time.Time       `json:"asOf"`
}

// ToBalanceResponse converts an engine balance to its wire shape.
func ToBalanceResponse(balance *model.MerchantBalance) BalanceResponse {
	return BalanceResponse{
		BalanceID:       balance.BalanceID,
		TenantID:        balance.TenantID,
		AvailableAmount: balance.AvailableAmount,
		PendingAmount:   balance.PendingAmount,
		Currency:        balance.Currency,
		CreatedAt:       balance.CreatedAt,
		UpdatedAt:       balance.UpdatedAt,
	}
}

// ToFinancialStatsResponse converts the engine aggregate.
func ToFinancialStatsResponse(stats *tesouro.FinancialStats) FinancialStatsResponse {
	return FinancialStatsResponse{
		TenantID:           stats.TenantID,
		AvailableBalance:   stats.AvailableBalance,
		PendingBalance:     stats.PendingBalance,
		DailyWithdrawals:   stats.DailyWithdrawals,
		MonthlyWithdrawals: stats.MonthlyWithdrawals,
		GrossSales:         stats.GrossSales,
		NetRevenue:         stats.NetRevenue,
		AsOf:               stats.AsOf,
	}
}
