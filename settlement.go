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
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/model"
)

// ErrSettlementRejected marks a payout the provider refused outright.
// Rejections are terminal; retrying the same submission cannot succeed.
var ErrSettlementRejected = errors.New("settlement provider rejected the payout")

// SettlementClient talks to the payout provider. Submissions carry an
// idempotency key derived from the withdrawal id, so a retried or
// duplicated submission can never produce a second payout.
type SettlementClient struct {
	url    string
	secret string
	client *http.Client
}

func NewSettlementClient(cnf *config.Configuration) *SettlementClient {
	return &SettlementClient{
		url:    cnf.Settlement.Url,
		secret: cnf.Settlement.Secret,
		client: &http.Client{},
	}
}

type settlementSubmission struct {
	IdempotencyKey string `json:"idempotencyKey"`
	WithdrawalID   string `json:"withdrawalId"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	BankAccountID  string `json:"bankAccountId"`
}

type settlementAccepted struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// Submit sends a payout for the withdrawal's net amount and returns the
// provider's transaction id. The deadline comes from ctx. Provider
// response bodies stay inside this method: errors carry the status
// class only, never provider text.
func (s *SettlementClient) Submit(ctx context.Context, withdrawal *model.Withdrawal) (string, error) {
	submission := settlementSubmission{
		IdempotencyKey: withdrawal.IdempotencyKey(),
		WithdrawalID:   withdrawal.WithdrawalID,
		Amount:         withdrawal.NetAmount.StringFixed(2),
		Currency:       withdrawal.Currency,
		BankAccountID:  withdrawal.BankAccountID,
	}
	body, err := json.Marshal(submission)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/payouts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.secret)
	req.Header.Set("X-Idempotency-Key", submission.IdempotencyKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var accepted settlementAccepted
		if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
			return "", errors.Wrap(err, "decoding settlement acceptance")
		}
		if accepted.TransactionID == "" {
			return "", errors.New("settlement acceptance carries no transaction id")
		}
		return accepted.TransactionID, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		s.logProviderResponse(withdrawal.WithdrawalID, resp)
		return "", errors.Wrapf(ErrSettlementRejected, "status %d", resp.StatusCode)
	default:
		s.logProviderResponse(withdrawal.WithdrawalID, resp)
		return "", errors.Errorf("settlement provider returned status %d", resp.StatusCode)
	}
}

// logProviderResponse records a truncated provider body for operators.
// It is deliberately the only place that reads error bodies; nothing
// from here reaches an API response.
func (s *SettlementClient) logProviderResponse(withdrawalID string, resp *http.Response) {
	snippet, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil {
		logrus.Debugf("settlement response for %s: status %d, body unreadable", withdrawalID, resp.StatusCode)
		return
	}
	logrus.Debugf("settlement response for %s: status %d, body %q", withdrawalID, resp.StatusCode, snippet)
}

// Sign computes the hex HMAC-SHA256 of payload under the shared secret.
func (s *SettlementClient) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time.
func (s *SettlementClient) VerifySignature(payload []byte, signature string) bool {
	expected := s.Sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifySettlementSignature exposes webhook verification to the HTTP
// layer without handing out the client.
func (l *Tesouro) VerifySettlementSignature(payload []byte, signature string) bool {
	return l.settlement.VerifySignature(payload, signature)
}
