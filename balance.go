package tesouro

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/vendahub/tesouro/internal/notification"
	"github.com/vendahub/tesouro/model"
)

var balanceTracer = otel.Tracer("Balance engine")

// snapshotTTL bounds staleness of cached balance snapshots between
// invalidations; money movements drop the cache entry eagerly.
const snapshotTTL = 10 * time.Second

func snapshotCacheKey(tenantID string) string {
	return "balance:snapshot:" + tenantID
}

// invalidateBalanceCaches drops the cached snapshot and stats for a
// tenant after anything moved its money.
func (l *Tesouro) invalidateBalanceCaches(ctx context.Context, tenantID string) {
	for _, key := range []string{snapshotCacheKey(tenantID), "stats:" + tenantID} {
		if err := l.cache.Delete(ctx, key); err != nil {
			logrus.Warnf("dropping cache key %s: %v", key, err)
		}
	}
}

func (l *Tesouro) postBalanceActions(_ context.Context, balance *model.MerchantBalance) {
	go func() {
		if err := l.queue.queueIndexData(balance.BalanceID, "merchant_balances", balance); err != nil {
			notification.NotifyError(err)
		}
		if err := SendWebhook(NewWebhook{
			Event:   "balance.created",
			Payload: balance,
		}); err != nil {
			notification.NotifyError(err)
		}
	}()
}

// CreateMerchantBalance opens the custodial balance for a tenant. Every
// tenant has exactly one; creating a second is a conflict.
func (l *Tesouro) CreateMerchantBalance(ctx context.Context, tenantID, currency string) (*model.MerchantBalance, error) {
	ctx, span := balanceTracer.Start(ctx, "Creating merchant balance")
	defer span.End()

	balance := model.NewMerchantBalance(tenantID, currency)
	balance, err := l.datasource.CreateMerchantBalance(ctx, balance)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	l.postBalanceActions(ctx, balance)
	return balance, nil
}

// GetMerchantBalance fetches a tenant's balance row.
func (l *Tesouro) GetMerchantBalance(ctx context.Context, tenantID string) (*model.MerchantBalance, error) {
	return l.datasource.GetMerchantBalance(ctx, tenantID)
}

// GetBalanceSnapshot composes the read view used by withdrawal
// validation: the stored balance plus the day's and month's withdrawal
// totals, which include in-flight amounts. Snapshots are cached for a
// few seconds and dropped eagerly whenever money moves.
func (l *Tesouro) GetBalanceSnapshot(ctx context.Context, tenantID string) (*model.BalanceSnapshot, error) {
	ctx, span := balanceTracer.Start(ctx, "Composing balance snapshot")
	defer span.End()

	var cached model.BalanceSnapshot
	if err := l.cache.Get(ctx, snapshotCacheKey(tenantID), &cached); err == nil && cached.TenantID == tenantID {
		return &cached, nil
	}

	balance, err := l.datasource.GetMerchantBalance(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	daily, err := l.datasource.SumWithdrawalsSince(ctx, tenantID, startOfDay(now))
	if err != nil {
		return nil, err
	}
	monthly, err := l.datasource.SumWithdrawalsSince(ctx, tenantID, startOfMonth(now))
	if err != nil {
		return nil, err
	}

	snapshot := &model.BalanceSnapshot{
		TenantID:         tenantID,
		AvailableBalance: balance.AvailableAmount,
		PendingBalance:   balance.PendingAmount,
		DailyWithdrawn:   daily,
		MonthlyWithdrawn: monthly,
		Currency:         balance.Currency,
		AsOf:             now,
	}
	if err := l.cache.Set(ctx, snapshotCacheKey(tenantID), snapshot, snapshotTTL); err != nil {
		logrus.Warnf("caching balance snapshot for %s: %v", tenantID, err)
	}
	return snapshot, nil
}
