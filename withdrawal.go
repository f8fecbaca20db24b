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
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/internal/apierror"
	qfilter "github.com/vendahub/tesouro/internal/filter"
	redlock "github.com/vendahub/tesouro/internal/lock"
	"github.com/vendahub/tesouro/internal/notification"
	"github.com/vendahub/tesouro/model"
)

var tracer = otel.Tracer("Withdrawal engine")

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// acquireLock serializes withdrawal acceptance per tenant. The database
// reservation is atomic on its own; the lock additionally closes the
// window where two concurrent requests both read yesterday's daily
// total and both pass the limit check.
func (l *Tesouro) acquireLock(ctx context.Context, tenantID string) (*redlock.Locker, error) {
	locker := redlock.NewLocker(l.redis, "withdrawal:"+tenantID, model.GenerateUUIDWithSuffix("loc"))
	err := locker.WaitLock(ctx, time.Minute, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return locker, nil
}

// validateWithdrawalAmount rejects in a fixed order: below minimum,
// then insufficient funds, then daily limit, so a request failing more
// than one check always reports the same reason. All rejections carry
// Portuguese messages formatted for merchants.
func (l *Tesouro) validateWithdrawalAmount(ctx context.Context, cnf *config.Configuration, riskCtx *model.RiskContext) error {
	minimum := decimal.NewFromFloat(cnf.Withdrawal.MinimumAmount)
	if riskCtx.Amount.Cmp(minimum) < 0 {
		return apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Valor mínimo para saque é %s", model.FormatBRL(minimum)), nil)
	}

	// Advisory read; the conditional decrement in RecordWithdrawal stays
	// the authoritative funds guard.
	balance, err := l.datasource.GetMerchantBalance(ctx, riskCtx.TenantID)
	if err != nil {
		return err
	}
	if riskCtx.Amount.Cmp(balance.AvailableAmount) > 0 {
		return apierror.NewAPIError(apierror.ErrBadRequest,
			"Saldo insuficiente para realizar o saque", nil)
	}

	dailyLimit := decimal.NewFromFloat(cnf.Withdrawal.DailyLimit)
	usedToday, err := l.datasource.SumWithdrawalsSince(ctx, riskCtx.TenantID, startOfDay(time.Now()))
	if err != nil {
		return err
	}
	remaining := dailyLimit.Sub(usedToday)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	if riskCtx.Amount.Cmp(remaining) > 0 {
		return apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Limite diário de saque excedido. Disponível: %s", model.FormatBRL(remaining)), nil)
	}
	return nil
}

// RequestWithdrawal runs the full acceptance pipeline: rate gate, risk
// scorer, amount validation, then the atomic reservation that debits the
// ledger and moves funds from available to pending. The returned
// withdrawal is pending; settlement submission happens on the worker.
func (l *Tesouro) RequestWithdrawal(ctx context.Context, riskCtx *model.RiskContext, bankAccountID string, metaData map[string]interface{}) (*model.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "Requesting withdrawal")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if err := l.CheckRateLimit(ctx, riskCtx); err != nil {
		return nil, err
	}

	assessment, err := l.scorer.Assess(ctx, riskCtx)
	if err != nil {
		return nil, logAndRecordError(span, "risk assessment error: ", err)
	}
	if assessment.Blocked() {
		return nil, apierror.NewAPIError(apierror.ErrForbidden,
			"Operação bloqueada por análise de risco", map[string]interface{}{
				"risk_score": assessment.Score,
			})
	}

	locker, err := l.acquireLock(ctx, riskCtx.TenantID)
	if err != nil {
		return nil, logAndRecordError(span, "lock error: ", err)
	}
	defer func(locker *redlock.Locker, ctx context.Context) {
		if err := locker.Unlock(ctx); err != nil {
			logrus.Error("lock error", err)
		}
	}(locker, ctx)

	if err := l.validateWithdrawalAmount(ctx, cnf, riskCtx); err != nil {
		return nil, err
	}

	currency := riskCtx.Currency
	if currency == "" {
		currency = cnf.Withdrawal.Currency
	}
	fee := decimal.NewFromFloat(cnf.Withdrawal.FixedFee)
	withdrawal := model.NewWithdrawal(riskCtx.TenantID, bankAccountID, currency, riskCtx.Amount, fee)
	withdrawal.RiskScore = assessment.Score
	withdrawal.IPAddress = riskCtx.IPAddress
	withdrawal.MetaData = metaData
	if assessment.Flagged() {
		if withdrawal.MetaData == nil {
			withdrawal.MetaData = make(map[string]interface{})
		}
		withdrawal.MetaData["step_up_required"] = true
	}

	entry := model.NewLedgerEntry(riskCtx.TenantID, model.EntryTypeDebit, model.EntrySourceWithdrawalDebit,
		withdrawal.WithdrawalID, currency, withdrawal.Amount, "Saque solicitado")

	withdrawal, err = l.datasource.RecordWithdrawal(ctx, withdrawal, entry)
	if err != nil {
		return nil, err
	}

	// The reservation is committed. A failed enqueue must not fail the
	// request; the recovery job re-enqueues pending withdrawals.
	if err := l.queue.EnqueueSubmission(ctx, withdrawal); err != nil {
		notification.NotifyError(err)
	}

	l.postWithdrawalActions(ctx, withdrawal)
	return withdrawal, nil
}

// SubmitWithdrawal hands a pending withdrawal to the settlement
// provider. It runs on the worker, once per queued task, and is safe to
// replay: anything past pending is skipped.
func (l *Tesouro) SubmitWithdrawal(ctx context.Context, withdrawalID string) error {
	ctx, span := tracer.Start(ctx, "Submitting withdrawal to settlement provider")
	defer span.End()

	withdrawal, err := l.datasource.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrNotFound {
			logrus.Warnf("withdrawal %s queued but not found, dropping task", withdrawalID)
			return nil
		}
		return err
	}
	if withdrawal.Status != model.StatusPending {
		logrus.Infof("withdrawal %s already %s, skipping submission", withdrawalID, withdrawal.Status)
		return nil
	}

	// Pre-submission hooks observe the payout before it leaves. Their
	// failures never hold the submission back.
	if err := l.Hooks.ExecutePreHooks(ctx, withdrawal.WithdrawalID, withdrawal); err != nil {
		notification.NotifyError(err)
	}

	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	submitCtx, cancel := context.WithTimeout(ctx, time.Duration(cnf.Settlement.TimeoutSec)*time.Second)
	defer cancel()

	providerTransactionID, err := l.settlement.Submit(submitCtx, withdrawal)
	switch {
	case err == nil:
		// fallthrough to the processing transition below
	case errors.Is(err, context.DeadlineExceeded):
		// A timed-out submission may or may not have reached the
		// provider. The idempotency key makes failing here safe: a
		// duplicate payout cannot happen, and a late success webhook
		// for an unknown provider transaction id is rejected.
		notification.NotifyError(fmt.Errorf("settlement submission for %s timed out after %ds", withdrawalID, cnf.Settlement.TimeoutSec))
		return l.failWithdrawal(ctx, withdrawal, model.FailureReasonProviderTimeout, "settlement submission timed out")
	case errors.Is(err, ErrSettlementRejected):
		return l.failWithdrawal(ctx, withdrawal, model.FailureReasonProviderReject, "settlement provider rejected the payout")
	default:
		// Transport-level failure: leave the withdrawal pending and let
		// the queue retry the task.
		return logAndRecordError(span, "settlement submission error: ", err)
	}

	if err := l.datasource.MarkWithdrawalProcessing(ctx, withdrawalID, providerTransactionID); err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict {
			logrus.Infof("withdrawal %s moved past pending concurrently", withdrawalID)
			return nil
		}
		return err
	}
	withdrawal.Status = model.StatusProcessing
	withdrawal.ProviderTransactionID = providerTransactionID
	withdrawal.UpdatedAt = time.Now()
	l.postWithdrawalActions(ctx, withdrawal)
	return nil
}

// ReconcileWithdrawal applies a settlement provider webhook to the
// matching withdrawal. Replays of a terminal status the withdrawal
// already holds are acknowledged without touching anything; a webhook
// contradicting the recorded terminal status is a conflict and pages an
// operator.
func (l *Tesouro) ReconcileWithdrawal(ctx context.Context, providerTransactionID, status, errorMessage string) (*model.Withdrawal, error) {
	ctx, span := tracer.Start(ctx, "Reconciling withdrawal from provider webhook")
	defer span.End()

	withdrawal, err := l.datasource.GetWithdrawalByProviderTransactionID(ctx, providerTransactionID)
	if err != nil {
		return nil, err
	}

	switch status {
	case model.StatusCompleted:
		if withdrawal.Status == model.StatusCompleted {
			return withdrawal, nil
		}
		if withdrawal.Status == model.StatusFailed {
			notification.NotifyError(fmt.Errorf("provider reports %s completed but withdrawal %s is failed", providerTransactionID, withdrawal.WithdrawalID))
			return nil, apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Withdrawal '%s' is already failed", withdrawal.WithdrawalID), nil)
		}
		if err := l.datasource.CompleteWithdrawal(ctx, withdrawal); err != nil {
			return nil, err
		}
		withdrawal.Status = model.StatusCompleted
		withdrawal.UpdatedAt = time.Now()
		l.postWithdrawalActions(ctx, withdrawal)
		return withdrawal, nil
	case model.StatusFailed:
		if withdrawal.Status == model.StatusFailed {
			return withdrawal, nil
		}
		if withdrawal.Status == model.StatusCompleted {
			notification.NotifyError(fmt.Errorf("provider reports %s failed but withdrawal %s is completed", providerTransactionID, withdrawal.WithdrawalID))
			return nil, apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Withdrawal '%s' is already completed", withdrawal.WithdrawalID), nil)
		}
		if err := l.failWithdrawal(ctx, withdrawal, model.FailureReasonProviderError, errorMessage); err != nil {
			return nil, err
		}
		return withdrawal, nil
	default:
		return nil, apierror.NewAPIError(apierror.ErrBadRequest,
			fmt.Sprintf("Unknown settlement status '%s'", status), nil)
	}
}

// failWithdrawal moves a withdrawal to failed and releases its
// reservation through a reversal credit.
func (l *Tesouro) failWithdrawal(ctx context.Context, withdrawal *model.Withdrawal, reason, message string) error {
	reversal := model.NewLedgerEntry(withdrawal.TenantID, model.EntryTypeCredit, model.EntrySourceWithdrawalReversal,
		withdrawal.WithdrawalID, withdrawal.Currency, withdrawal.Amount, "Estorno de saque")
	if err := l.datasource.FailWithdrawal(ctx, withdrawal, reason, message, reversal); err != nil {
		return err
	}
	withdrawal.Status = model.StatusFailed
	withdrawal.FailureReason = reason
	withdrawal.ErrorMessage = message
	withdrawal.UpdatedAt = time.Now()
	l.postWithdrawalActions(ctx, withdrawal)
	return nil
}

// postWithdrawalActions indexes the withdrawal, emits the status
// webhook and, on terminal states, fires the post-settlement hooks.
// Everything here is best-effort and runs off the request path.
func (l *Tesouro) postWithdrawalActions(_ context.Context, withdrawal *model.Withdrawal) {
	go func() {
		l.invalidateBalanceCaches(context.Background(), withdrawal.TenantID)
		if err := l.queue.queueIndexData(withdrawal.WithdrawalID, "withdrawals", withdrawal); err != nil {
			notification.NotifyError(err)
		}
		if err := SendWebhook(NewWebhook{
			Event:   getEventFromStatus(withdrawal.Status),
			Payload: withdrawal,
		}); err != nil {
			notification.NotifyError(err)
		}
		if withdrawal.Status == model.StatusCompleted || withdrawal.Status == model.StatusFailed {
			if err := l.Hooks.ExecutePostHooks(context.Background(), withdrawal.WithdrawalID, withdrawal); err != nil {
				notification.NotifyError(err)
			}
		}
	}()
}

// GetWithdrawal fetches a single withdrawal by id.
func (l *Tesouro) GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	return l.datasource.GetWithdrawal(ctx, id)
}

// GetWithdrawals lists a tenant's withdrawals, newest first.
func (l *Tesouro) GetWithdrawals(ctx context.Context, filter model.WithdrawalFilter) ([]*model.Withdrawal, error) {
	return l.datasource.GetWithdrawals(ctx, filter)
}

// GetWithdrawalsFiltered lists a tenant's withdrawals matching an advanced
// filter set parsed from field_operator query parameters.
func (l *Tesouro) GetWithdrawalsFiltered(ctx context.Context, tenantID string, filters *qfilter.QueryFilterSet, opts *qfilter.QueryOptions, limit, offset int) ([]*model.Withdrawal, *int64, error) {
	return l.datasource.GetWithdrawalsFiltered(ctx, tenantID, filters, opts, limit, offset)
}

// CheckStaleWithdrawals reports withdrawals stuck in processing longer
// than the configured threshold. They are never auto-failed: the
// provider may still settle them, so an operator decides.
func (l *Tesouro) CheckStaleWithdrawals(ctx context.Context) ([]*model.Withdrawal, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	olderThan := time.Now().Add(-time.Duration(cnf.Withdrawal.StaleAfterMin) * time.Minute)
	stale, err := l.datasource.GetStaleProcessingWithdrawals(ctx, olderThan)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		ids := make([]string, 0, len(stale))
		for _, withdrawal := range stale {
			ids = append(ids, withdrawal.WithdrawalID)
		}
		notification.NotifyError(fmt.Errorf("%d withdrawals stuck in processing for over %dm: %v", len(stale), cnf.Withdrawal.StaleAfterMin, ids))
	}
	return stale, nil
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func startOfMonth(t time.Time) time.Time {
	year, month, _ := t.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
}
