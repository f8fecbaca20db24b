/*
Copyright 2025 Vendahub Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tesouro

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/internal/notification"
	"github.com/vendahub/tesouro/model"
)

func (l *Tesouro) postLedgerEntryActions(_ context.Context, entry *model.LedgerEntry) {
	go func() {
		l.invalidateBalanceCaches(context.Background(), entry.TenantID)
		if err := l.queue.queueIndexData(entry.EntryID, "ledger_entries", entry); err != nil {
			notification.NotifyError(err)
		}
		if err := SendWebhook(NewWebhook{
			Event:   "ledger.entry",
			Payload: entry,
		}); err != nil {
			notification.NotifyError(err)
		}
	}()
}

// RecordLedgerEntry appends a standalone entry (adjustment, opening
// balance, fee) and applies it to the tenant's balance. Withdrawal and
// sale entries never come through here; they are written inside the
// same transaction as their source records.
func (l *Tesouro) RecordLedgerEntry(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, error) {
	entry, err := l.datasource.RecordLedgerEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	l.postLedgerEntryActions(ctx, entry)
	return entry, nil
}

// GetLedger lists a window of a tenant's ledger in seq order together
// with the summary folded from exactly the entries returned. Both come
// from the same slice, so they can never disagree.
func (l *Tesouro) GetLedger(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerEntry, model.LedgerSummary, error) {
	entries, err := l.datasource.GetLedgerEntries(ctx, filter)
	if err != nil {
		return nil, model.LedgerSummary{}, err
	}
	return entries, model.SummarizeEntries(entries), nil
}

// LedgerIntegrityReport is the outcome of replaying a tenant's full
// ledger against the stored balance.
type LedgerIntegrityReport struct {
	TenantID      string          `json:"tenant_id"`
	Entries       int             `json:"entries"`
	FoldedBalance decimal.Decimal `json:"folded_balance"`
	StoredBalance decimal.Decimal `json:"stored_balance"`
	Consistent    bool            `json:"consistent"`
	SeqGaps       []int64         `json:"seq_gaps,omitempty"`
	RunningDrift  []string        `json:"running_drift,omitempty"`
	CheckedAt     time.Time       `json:"checked_at"`
}

// VerifyLedger replays every entry of a tenant and compares the fold to
// the stored available balance. Reservations do not disturb the fold:
// the debit is written when funds move to pending and completion writes
// nothing, so fold and available agree at every point in time.
func (l *Tesouro) VerifyLedger(ctx context.Context, tenantID string) (*LedgerIntegrityReport, error) {
	balance, err := l.datasource.GetMerchantBalance(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	report := &LedgerIntegrityReport{TenantID: tenantID, CheckedAt: time.Now()}
	running := decimal.Zero
	lastSeq := int64(0)
	const page = 500
	for offset := 0; ; offset += page {
		entries, err := l.datasource.GetLedgerEntries(ctx, model.LedgerFilter{
			TenantID: tenantID,
			Limit:    page,
			Offset:   offset,
		})
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Seq != lastSeq+1 {
				report.SeqGaps = append(report.SeqGaps, entry.Seq)
			}
			lastSeq = entry.Seq
			running = running.Add(entry.SignedAmount())
			if !running.Equal(entry.RunningBalance) {
				report.RunningDrift = append(report.RunningDrift,
					fmt.Sprintf("seq %d: stored %s, replayed %s", entry.Seq, entry.RunningBalance.String(), running.String()))
			}
			report.Entries++
		}
		if len(entries) < page {
			break
		}
	}

	report.FoldedBalance = running
	report.StoredBalance = balance.AvailableAmount
	report.Consistent = running.Equal(balance.AvailableAmount) &&
		len(report.SeqGaps) == 0 && len(report.RunningDrift) == 0
	if !report.Consistent {
		notification.NotifyError(fmt.Errorf("ledger drift for %s: folded %s, stored %s, %d gaps, %d drifts",
			tenantID, running.String(), balance.AvailableAmount.String(), len(report.SeqGaps), len(report.RunningDrift)))
	}
	return report, nil
}

// SweepProcessingFees debits each tenant's accrued processing fees. The
// fee is the configured rate over the sale volume settled since the
// tenant's previous sweep; tenants with no new volume are skipped. A
// sweep may push a balance negative, which is the operator's signal to
// collect.
func (l *Tesouro) SweepProcessingFees(ctx context.Context) error {
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	rate := decimal.NewFromFloat(cnf.Ledger.ProcessingFeeRate)

	tenants, err := l.datasource.GetActiveTenants(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, tenantID := range tenants {
		if err := l.sweepTenant(ctx, tenantID, rate, now); err != nil {
			notification.NotifyError(fmt.Errorf("fee sweep for %s: %w", tenantID, err))
		}
	}
	return nil
}

func (l *Tesouro) sweepTenant(ctx context.Context, tenantID string, rate decimal.Decimal, now time.Time) error {
	since, err := l.datasource.GetLastProcessingFeeTime(ctx, tenantID)
	if err != nil {
		return err
	}

	volume, err := l.datasource.SumSettledSalesBetween(ctx, tenantID, since, now)
	if err != nil {
		return err
	}
	if volume.IsZero() {
		return nil
	}

	fee := volume.Mul(rate).Round(2)
	if fee.IsZero() {
		return nil
	}

	entry := model.NewLedgerEntry(tenantID, model.EntryTypeDebit, model.EntrySourceProcessingFee,
		"", "BRL", fee, fmt.Sprintf("Tarifa de processamento sobre %s", model.FormatBRL(volume)))
	if _, err := l.RecordLedgerEntry(ctx, entry); err != nil {
		return err
	}
	logrus.Infof("swept processing fee %s for %s over volume %s", fee.String(), tenantID, volume.String())
	return nil
}
