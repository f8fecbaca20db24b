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
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/model"
)

const (
	testSettlementURL    = "http://settlement.test"
	testSettlementSecret = "whsec_test"
)

func testSettlementConfig() *config.Configuration {
	return &config.Configuration{
		Settlement: config.SettlementConfig{
			Url:    testSettlementURL,
			Secret: testSettlementSecret,
		},
	}
}

func testSettlementClient() *SettlementClient {
	cnf := testSettlementConfig()
	config.MockConfig(cnf)
	return NewSettlementClient(cnf)
}

func pendingWithdrawalRows(id, tenantID string) *sqlmock.Rows {
	return sqlmock.NewRows(withdrawalColumns()).
		AddRow(id, tenantID, "50", "2.5", "47.5", "BRL", "bank_001", "pending", "", "", "", 25, "187.44.10.8", time.Now(), time.Now(), []byte("{}"))
}

func withdrawalColumns() []string {
	return []string{"withdrawal_id", "tenant_id", "amount", "fee", "net_amount", "currency", "bank_account_id", "status",
		"provider_transaction_id", "error_message", "failure_reason", "risk_score", "ip_address", "created_at", "updated_at", "meta_data"}
}

func TestSettlementSubmit(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := testSettlementClient()
	withdrawal := model.NewWithdrawal("tnt_1", "bank_001", "BRL", decimal.NewFromFloat(50), decimal.NewFromFloat(2.5))

	httpmock.RegisterResponder("POST", testSettlementURL+"/payouts",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer "+testSettlementSecret, req.Header.Get("Authorization"))
			assert.Equal(t, withdrawal.IdempotencyKey(), req.Header.Get("X-Idempotency-Key"))

			var submission map[string]interface{}
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&submission))
			assert.Equal(t, "47.50", submission["amount"])
			assert.Equal(t, "BRL", submission["currency"])
			assert.Equal(t, withdrawal.WithdrawalID, submission["withdrawalId"])

			return httpmock.NewStringResponse(200, `{"transactionId":"prov_txn_1","status":"processing"}`), nil
		})

	transactionID, err := client.Submit(context.Background(), withdrawal)
	assert.NoError(t, err)
	assert.Equal(t, "prov_txn_1", transactionID)
}

func TestSettlementSubmitRejectedKeepsProviderBodyOut(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := testSettlementClient()
	withdrawal := model.NewWithdrawal("tnt_1", "bank_001", "BRL", decimal.NewFromFloat(50), decimal.NewFromFloat(2.5))

	httpmock.RegisterResponder("POST", testSettlementURL+"/payouts",
		httpmock.NewStringResponder(422, `{"error":"conta bancária bloqueada"}`))

	_, err := client.Submit(context.Background(), withdrawal)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrSettlementRejected))
	assert.False(t, strings.Contains(err.Error(), "conta"), "provider text must not leak into errors")
}

func TestSettlementSubmitServerError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := testSettlementClient()
	withdrawal := model.NewWithdrawal("tnt_1", "bank_001", "BRL", decimal.NewFromFloat(50), decimal.NewFromFloat(2.5))

	httpmock.RegisterResponder("POST", testSettlementURL+"/payouts",
		httpmock.NewStringResponder(503, `upstream unavailable`))

	_, err := client.Submit(context.Background(), withdrawal)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSettlementRejected))
	assert.Contains(t, err.Error(), "503")
}

func TestSettlementSignatureRoundTrip(t *testing.T) {
	client := testSettlementClient()
	payload := []byte(`{"providerTransactionId":"prov_txn_1","status":"completed"}`)

	signature := client.Sign(payload)
	assert.Len(t, signature, 64)
	assert.True(t, client.VerifySignature(payload, signature))
	assert.False(t, client.VerifySignature(payload, signature[:63]+"0"))
	assert.False(t, client.VerifySignature([]byte(`{"tampered":true}`), signature))
}

func TestSubmitWithdrawalMarksProcessing(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	engine, mock, mr, err := newTestEngineWith(testSettlementConfig())
	assert.NoError(t, err)
	defer mr.Close()

	httpmock.RegisterResponder("POST", testSettlementURL+"/payouts",
		httpmock.NewStringResponder(200, `{"transactionId":"prov_txn_1","status":"processing"}`))

	mock.ExpectQuery("WHERE withdrawal_id = \\$1").
		WithArgs("wdl_1").
		WillReturnRows(pendingWithdrawalRows("wdl_1", "tnt_1"))
	mock.ExpectExec("UPDATE tesouro.withdrawals").
		WithArgs("wdl_1", model.StatusProcessing, "prov_txn_1", model.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = engine.SubmitWithdrawal(context.Background(), "wdl_1")
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSubmitWithdrawalProviderReject(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	engine, mock, mr, err := newTestEngineWith(testSettlementConfig())
	assert.NoError(t, err)
	defer mr.Close()

	httpmock.RegisterResponder("POST", testSettlementURL+"/payouts",
		httpmock.NewStringResponder(422, `{"error":"dados bancários inválidos"}`))

	mock.ExpectQuery("WHERE withdrawal_id = \\$1").
		WithArgs("wdl_1").
		WillReturnRows(pendingWithdrawalRows("wdl_1", "tnt_1"))

	mock.ExpectBegin()
	mock.ExpectQuery("FROM tesouro.merchant_balances WHERE tenant_id = \\$1 FOR UPDATE").
		WithArgs("tnt_1").
		WillReturnRows(merchantBalanceRows("tnt_1", "950", "50"))
	mock.ExpectExec("UPDATE tesouro.withdrawals").
		WithArgs("wdl_1", model.StatusFailed, model.FailureReasonProviderReject, "settlement provider rejected the payout").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tesouro.merchant_balances SET available_amount = available_amount \\+ \\$2").
		WithArgs("tnt_1", "50").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT seq, running_balance FROM tesouro.ledger_entries").
		WithArgs("tnt_1").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "running_balance"}).AddRow(int64(5), "950"))
	mock.ExpectExec("INSERT INTO tesouro.ledger_entries").
		WithArgs(sqlmock.AnyArg(), "tnt_1", int64(6), model.EntryTypeCredit, model.EntrySourceWithdrawalReversal,
			"wdl_1", "50", "1000", "BRL", "Estorno de saque", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = engine.SubmitWithdrawal(context.Background(), "wdl_1")
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSubmitWithdrawalTimeout(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	engine, mock, mr, err := newTestEngineWith(testSettlementConfig())
	assert.NoError(t, err)
	defer mr.Close()

	httpmock.RegisterResponder("POST", testSettlementURL+"/payouts",
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	mock.ExpectQuery("WHERE withdrawal_id = \\$1").
		WithArgs("wdl_1").
		WillReturnRows(pendingWithdrawalRows("wdl_1", "tnt_1"))

	mock.ExpectBegin()
	mock.ExpectQuery("FROM tesouro.merchant_balances WHERE tenant_id = \\$1 FOR UPDATE").
		WithArgs("tnt_1").
		WillReturnRows(merchantBalanceRows("tnt_1", "950", "50"))
	mock.ExpectExec("UPDATE tesouro.withdrawals").
		WithArgs("wdl_1", model.StatusFailed, model.FailureReasonProviderTimeout, "settlement submission timed out").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tesouro.merchant_balances SET available_amount = available_amount \\+ \\$2").
		WithArgs("tnt_1", "50").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT seq, running_balance FROM tesouro.ledger_entries").
		WithArgs("tnt_1").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "running_balance"}).AddRow(int64(5), "950"))
	mock.ExpectExec("INSERT INTO tesouro.ledger_entries").
		WithArgs(sqlmock.AnyArg(), "tnt_1", int64(6), model.EntryTypeCredit, model.EntrySourceWithdrawalReversal,
			"wdl_1", "50", "1000", "BRL", "Estorno de saque", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = engine.SubmitWithdrawal(context.Background(), "wdl_1")
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSubmitWithdrawalTransportErrorLeavesPending(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	engine, mock, mr, err := newTestEngineWith(testSettlementConfig())
	assert.NoError(t, err)
	defer mr.Close()

	httpmock.RegisterResponder("POST", testSettlementURL+"/payouts",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	mock.ExpectQuery("WHERE withdrawal_id = \\$1").
		WithArgs("wdl_1").
		WillReturnRows(pendingWithdrawalRows("wdl_1", "tnt_1"))

	// The task must surface the error so the queue retries it.
	err = engine.SubmitWithdrawal(context.Background(), "wdl_1")
	assert.Error(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSubmitWithdrawalSkipsNonPending(t *testing.T) {
	engine, mock, mr, err := newTestEngineWith(testSettlementConfig())
	assert.NoError(t, err)
	defer mr.Close()

	rows := sqlmock.NewRows(withdrawalColumns()).
		AddRow("wdl_1", "tnt_1", "50", "2.5", "47.5", "BRL", "bank_001", "processing", "prov_txn_1", "", "", 25, "", time.Now(), time.Now(), []byte("{}"))
	mock.ExpectQuery("WHERE withdrawal_id = \\$1").
		WithArgs("wdl_1").
		WillReturnRows(rows)

	err = engine.SubmitWithdrawal(context.Background(), "wdl_1")
	assert.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestReconcileWithdrawalCompleted(t *testing.T) {
	engine, mock, mr, err := newTestEngine()
	assert.NoError(t, err)
	defer mr.Close()

	rows := sqlmock.NewRows(withdrawalColumns()).
		AddRow("wdl_1", "tnt_1", "50", "2.5", "47.5", "BRL", "bank_001", "processing", "prov_txn_9", "", "", 25, "", time.Now(), time.Now(), []byte("{}"))
	mock.ExpectQuery("WHERE provider_transaction_id = \\$1").
		WithArgs("prov_txn_9").
		WillReturnRows(rows)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM tesouro.merchant_balances WHERE tenant_id = \\$1 FOR UPDATE").
		WithArgs("tnt_1").
		WillReturnRows(merchantBalanceRows("tnt_1", "950", "50"))
	mock.ExpectExec("UPDATE tesouro.withdrawals").
		WithArgs("wdl_1", model.StatusCompleted, model.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tesouro.merchant_balances SET pending_amount = pending_amount - \\$2").
		WithArgs("tnt_1", "50").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	withdrawal, err := engine.ReconcileWithdrawal(context.Background(), "prov_txn_9", model.StatusCompleted, "")
	assert.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, withdrawal.Status)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestReconcileWithdrawalCompletedReplay(t *testing.T) {
	engine, mock, mr, err := newTestEngine()
	assert.NoError(t, err)
	defer mr.Close()

	rows := sqlmock.NewRows(withdrawalColumns()).
		AddRow("wdl_1", "tnt_1", "50", "2.5", "47.5", "BRL", "bank_001", "completed", "prov_txn_9", "", "", 25, "", time.Now(), time.Now(), []byte("{}"))
	mock.ExpectQuery("WHERE provider_transaction_id = \\$1").
		WithArgs("prov_txn_9").
		WillReturnRows(rows)

	withdrawal, err := engine.ReconcileWithdrawal(context.Background(), "prov_txn_9", model.StatusCompleted, "")
	assert.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, withdrawal.Status)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestReconcileWithdrawalContradictionConflicts(t *testing.T) {
	engine, mock, mr, err := newTestEngine()
	assert.NoError(t, err)
	defer mr.Close()

	rows := sqlmock.NewRows(withdrawalColumns()).
		AddRow("wdl_1", "tnt_1", "50", "2.5", "47.5", "BRL", "bank_001", "failed", "prov_txn_9", "declined", "provider_error", 25, "", time.Now(), time.Now(), []byte("{}"))
	mock.ExpectQuery("WHERE provider_transaction_id = \\$1").
		WithArgs("prov_txn_9").
		WillReturnRows(rows)

	_, err = engine.ReconcileWithdrawal(context.Background(), "prov_txn_9", model.StatusCompleted, "")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestReconcileWithdrawalFailed(t *testing.T) {
	engine, mock, mr, err := newTestEngine()
	assert.NoError(t, err)
	defer mr.Close()

	rows := sqlmock.NewRows(withdrawalColumns()).
		AddRow("wdl_1", "tnt_1", "50", "2.5", "47.5", "BRL", "bank_001", "processing", "prov_txn_9", "", "", 25, "", time.Now(), time.Now(), []byte("{}"))
	mock.ExpectQuery("WHERE provider_transaction_id = \\$1").
		WithArgs("prov_txn_9").
		WillReturnRows(rows)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM tesouro.merchant_balances WHERE tenant_id = \\$1 FOR UPDATE").
		WithArgs("tnt_1").
		WillReturnRows(merchantBalanceRows("tnt_1", "950", "50"))
	mock.ExpectExec("UPDATE tesouro.withdrawals").
		WithArgs("wdl_1", model.StatusFailed, model.FailureReasonProviderError, "saldo insuficiente na conta de liquidação").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE tesouro.merchant_balances SET available_amount = available_amount \\+ \\$2").
		WithArgs("tnt_1", "50").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT seq, running_balance FROM tesouro.ledger_entries").
		WithArgs("tnt_1").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "running_balance"}).AddRow(int64(5), "950"))
	mock.ExpectExec("INSERT INTO tesouro.ledger_entries").
		WithArgs(sqlmock.AnyArg(), "tnt_1", int64(6), model.EntryTypeCredit, model.EntrySourceWithdrawalReversal,
			"wdl_1", "50", "1000", "BRL", "Estorno de saque", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	withdrawal, err := engine.ReconcileWithdrawal(context.Background(), "prov_txn_9", model.StatusFailed, "saldo insuficiente na conta de liquidação")
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, withdrawal.Status)
	assert.Equal(t, model.FailureReasonProviderError, withdrawal.FailureReason)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestReconcileWithdrawalUnknownStatus(t *testing.T) {
	engine, mock, mr, err := newTestEngine()
	assert.NoError(t, err)
	defer mr.Close()

	rows := sqlmock.NewRows(withdrawalColumns()).
		AddRow("wdl_1", "tnt_1", "50", "2.5", "47.5", "BRL", "bank_001", "processing", "prov_txn_9", "", "", 25, "", time.Now(), time.Now(), []byte("{}"))
	mock.ExpectQuery("WHERE provider_transaction_id = \\$1").
		WithArgs("prov_txn_9").
		WillReturnRows(rows)

	_, err = engine.ReconcileWithdrawal(context.Background(), "prov_txn_9", "reversed", "")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrBadRequest, apiErr.Code)
}

func TestVerifySettlementSignature(t *testing.T) {
	engine, _, mr, err := newTestEngineWith(testSettlementConfig())
	assert.NoError(t, err)
	defer mr.Close()

	payload := []byte(`{"providerTransactionId":"prov_txn_1","status":"completed"}`)
	signature := engine.settlement.Sign(payload)

	assert.True(t, engine.VerifySettlementSignature(payload, signature))
	assert.False(t, engine.VerifySettlementSignature(payload, "deadbeef"))
}
