package tesouro

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// statsTTL bounds how stale the stats endpoint may serve. The figures
// move on every settlement and withdrawal, so the cache only absorbs
// dashboard refresh storms.
const statsTTL = 30 * time.Second

// FinancialStats is the per-tenant overview served to dashboards.
type FinancialStats struct {
	TenantID           string          `json:"tenant_id"`
	AvailableBalance   decimal.Decimal `json:"available_balance"`
	PendingBalance     decimal.Decimal `json:"pending_balance"`
	DailyWithdrawals   decimal.Decimal `json:"daily_withdrawals"`
	MonthlyWithdrawals decimal.Decimal `json:"monthly_withdrawals"`
	GrossSales         decimal.Decimal `json:"gross_sales"`
	NetRevenue         decimal.Decimal `json:"net_revenue"`
	AsOf               time.Time       `json:"as_of"`
}

// GetFinancialStats aggregates a tenant's balance, withdrawal totals
// and lifetime sales figures. Results are cached briefly; callers that
// need the live value go through GetBalanceSnapshot instead.
func (l *Tesouro) GetFinancialStats(ctx context.Context, tenantID string) (*FinancialStats, error) {
	cacheKey := "stats:" + tenantID
	var cached FinancialStats
	if err := l.cache.Get(ctx, cacheKey, &cached); err == nil && cached.TenantID == tenantID {
		return &cached, nil
	}

	snapshot, err := l.GetBalanceSnapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	gross, net, err := l.datasource.GetSalesTotals(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	stats := &FinancialStats{
		TenantID:           tenantID,
		AvailableBalance:   snapshot.AvailableBalance,
		PendingBalance:     snapshot.PendingBalance,
		DailyWithdrawals:   snapshot.DailyWithdrawn,
		MonthlyWithdrawals: snapshot.MonthlyWithdrawn,
		GrossSales:         gross,
		NetRevenue:         net,
		AsOf:               snapshot.AsOf,
	}
	if err := l.cache.Set(ctx, cacheKey, stats, statsTTL); err != nil {
		logrus.Warnf("caching stats for %s: %v", tenantID, err)
	}
	return stats, nil
}
