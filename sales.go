package tesouro

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/internal/notification"
	"github.com/vendahub/tesouro/model"
)

// RecordSettledSale ingests one settled sale from the payment pipeline:
// the sale row, its ledger credit of total minus the platform fee, and
// the balance increase land atomically. Reference is the idempotency
// handle; re-delivering a settlement event returns a conflict and moves
// no money, so the event source can treat conflicts as success.
func (l *Tesouro) RecordSettledSale(ctx context.Context, tenantID, reference, currency string, total decimal.Decimal, settledAt time.Time, metaData map[string]interface{}) (*model.SettledSale, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if !total.IsPositive() {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Valor da venda deve ser positivo", nil)
	}

	exists, err := l.datasource.SaleExistsByReference(ctx, tenantID, reference)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Sale with reference '%s' is already settled", reference), nil)
	}

	if currency == "" {
		currency = cnf.Withdrawal.Currency
	}
	if settledAt.IsZero() {
		settledAt = time.Now()
	}

	rate := decimal.NewFromFloat(cnf.Ledger.PlatformFeeRate)
	sale := model.NewSettledSale(tenantID, reference, currency, total, rate, settledAt)
	sale.MetaData = metaData

	entry := model.NewLedgerEntry(tenantID, model.EntryTypeCredit, model.EntrySourceSaleSettlement,
		sale.SaleID, currency, sale.NetCredit, fmt.Sprintf("Venda %s liquidada", reference))

	if err := l.datasource.RecordSaleSettlement(ctx, sale, entry); err != nil {
		return nil, err
	}

	go func() {
		l.invalidateBalanceCaches(context.Background(), tenantID)
		if err := l.queue.queueIndexData(entry.EntryID, "ledger_entries", entry); err != nil {
			notification.NotifyError(err)
		}
		if err := SendWebhook(NewWebhook{
			Event:   "sale.settled",
			Payload: sale,
		}); err != nil {
			notification.NotifyError(err)
		}
	}()
	return sale, nil
}
