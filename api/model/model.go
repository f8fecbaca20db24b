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
package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vendahub/tesouro/model"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func validateDateFormat(format, value string) error {
	_, err := time.Parse(format, value)
	if err != nil {
		return errors.New("please format the date as 'YYYY-MM-DDTHH:MM:SS+00:00' (e.g., 2026-04-22T15:28:03+00:00)")
	}
	return nil
}

func (w *RequestWithdrawal) ValidateRequestWithdrawal() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.TenantID, validation.Required),
		validation.Field(&w.Amount, validation.Required),
		validation.Field(&w.BankAccountID, validation.Required),
	)
}

func (m *UpdateMetadata) ValidateUpdateMetadata() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.MetaData, validation.Required),
	)
}

func (s *SettlementWebhook) ValidateSettlementWebhook() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.ProviderTransactionID, validation.Required),
		validation.Field(&s.Status, validation.Required),
	)
}

func (s *RecordSale) ValidateRecordSale() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.TenantID, validation.Required),
		validation.Field(&s.Reference, validation.Required),
		validation.Field(&s.Total, validation.Required),
		validation.Field(&s.SettledAt, validation.When(s.SettledAt != "", validation.By(func(value interface{}) error {
			dateStr, ok := value.(string)
			if !ok {
				return errors.New("invalid type for settledAt")
			}
			return validateDateFormat("2006-01-02T15:04:05Z07:00", dateStr)
		})),
		),
	)
}

func (b *CreateBalance) ValidateCreateBalance() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.TenantID, validation.Required),
	)
}

func (f *GenerateFiscalKey) ValidateGenerateFiscalKey() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.TaxID, validation.Required),
		validation.Field(&f.Series, validation.Min(0)),
		validation.Field(&f.Number, validation.Required, validation.Min(int64(1))),
	)
}

func (a *CreateAPIKey) ValidateCreateAPIKey() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.TenantID, validation.Required),
		validation.Field(&a.ExpiresAt, validation.Required),
	)
}

// ToRiskContext assembles the scorer input for a withdrawal request.
// IP and user agent come from the HTTP request, not the body, so a
// client cannot spoof its own risk signals.
func (w *RequestWithdrawal) ToRiskContext(clientIP, userAgent string) *model.RiskContext {
	return &model.RiskContext{
		TenantID:    w.TenantID,
		Operation:   model.OperationWithdrawal,
		Amount:      decimal.NewFromFloat(w.Amount),
		Currency:    w.Currency,
		IPAddress:   clientIP,
		UserAgent:   userAgent,
		RequestedAt: time.Now(),
	}
}

// ParsedSettledAt returns the settlement time, zero when absent. The
// format was already checked during validation; a parse failure here is
// logged and treated as absent.
func (s *RecordSale) ParsedSettledAt() time.Time {
	if s.SettledAt == "" {
		return time.Time{}
	}
	settledAt, err := time.Parse("2006-01-02T15:04:05Z07:00", s.SettledAt)
	if err != nil {
		logrus.Error(err)
		return time.Time{}
	}
	return settledAt
}
