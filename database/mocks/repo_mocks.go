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
package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/vendahub/tesouro/internal/filter"
	"github.com/vendahub/tesouro/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Withdrawal methods

func (m *MockDataSource) RecordWithdrawal(ctx context.Context, withdrawal *model.Withdrawal, entry *model.LedgerEntry) (*model.Withdrawal, error) {
	args := m.Called(ctx, withdrawal, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Withdrawal), args.Error(1)
}

func (m *MockDataSource) GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Withdrawal), args.Error(1)
}

func (m *MockDataSource) GetWithdrawalByProviderTransactionID(ctx context.Context, providerTransactionID string) (*model.Withdrawal, error) {
	args := m.Called(ctx, providerTransactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Withdrawal), args.Error(1)
}

func (m *MockDataSource) MarkWithdrawalProcessing(ctx context.Context, id, providerTransactionID string) error {
	args := m.Called(ctx, id, providerTransactionID)
	return args.Error(0)
}

func (m *MockDataSource) CompleteWithdrawal(ctx context.Context, withdrawal *model.Withdrawal) error {
	args := m.Called(ctx, withdrawal)
	return args.Error(0)
}

func (m *MockDataSource) FailWithdrawal(ctx context.Context, withdrawal *model.Withdrawal, reason, message string, reversal *model.LedgerEntry) error {
	args := m.Called(ctx, withdrawal, reason, message, reversal)
	return args.Error(0)
}

func (m *MockDataSource) UpdateWithdrawalMetadata(ctx context.Context, id string, metadata map[string]interface{}) error {
	args := m.Called(ctx, id, metadata)
	return args.Error(0)
}

func (m *MockDataSource) GetWithdrawals(ctx context.Context, filter model.WithdrawalFilter) ([]*model.Withdrawal, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Withdrawal), args.Error(1)
}

func (m *MockDataSource) GetWithdrawalsFiltered(ctx context.Context, tenantID string, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.Withdrawal, *int64, error) {
	args := m.Called(ctx, tenantID, filters, opts, limit, offset)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	var count *int64
	if args.Get(1) != nil {
		count = args.Get(1).(*int64)
	}
	return args.Get(0).([]*model.Withdrawal), count, args.Error(2)
}

func (m *MockDataSource) GetAllWithdrawals(ctx context.Context, limit, offset int) ([]*model.Withdrawal, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Withdrawal), args.Error(1)
}

func (m *MockDataSource) GetStaleProcessingWithdrawals(ctx context.Context, olderThan time.Time) ([]*model.Withdrawal, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Withdrawal), args.Error(1)
}

func (m *MockDataSource) GetStuckPendingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]*model.Withdrawal, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Withdrawal), args.Error(1)
}

func (m *MockDataSource) SumWithdrawalsSince(ctx context.Context, tenantID string, since time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, since)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// Ledger methods

func (m *MockDataSource) RecordLedgerEntry(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

func (m *MockDataSource) GetLedgerEntries(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LedgerEntry), args.Error(1)
}

func (m *MockDataSource) GetAllLedgerEntries(limit, offset int) ([]*model.LedgerEntry, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LedgerEntry), args.Error(1)
}

func (m *MockDataSource) GetLastProcessingFeeTime(ctx context.Context, tenantID string) (time.Time, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(time.Time), args.Error(1)
}

// Balance methods

func (m *MockDataSource) CreateMerchantBalance(ctx context.Context, balance *model.MerchantBalance) (*model.MerchantBalance, error) {
	args := m.Called(ctx, balance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MerchantBalance), args.Error(1)
}

func (m *MockDataSource) GetMerchantBalance(ctx context.Context, tenantID string) (*model.MerchantBalance, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MerchantBalance), args.Error(1)
}

func (m *MockDataSource) GetAllMerchantBalances(ctx context.Context, limit, offset int) ([]*model.MerchantBalance, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MerchantBalance), args.Error(1)
}

func (m *MockDataSource) GetActiveTenants(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// Sale methods

func (m *MockDataSource) RecordSaleSettlement(ctx context.Context, sale *model.SettledSale, entry *model.LedgerEntry) error {
	args := m.Called(ctx, sale, entry)
	return args.Error(0)
}

func (m *MockDataSource) SaleExistsByReference(ctx context.Context, tenantID, reference string) (bool, error) {
	args := m.Called(ctx, tenantID, reference)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetSalesTotals(ctx context.Context, tenantID string) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *MockDataSource) SumSettledSalesBetween(ctx context.Context, tenantID string, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// Audit methods

func (m *MockDataSource) RecordSecurityAudit(ctx context.Context, entry *model.SecurityAuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockDataSource) GetSecurityAudits(ctx context.Context, filter model.SecurityAuditFilter) ([]*model.SecurityAuditEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SecurityAuditEntry), args.Error(1)
}

func (m *MockDataSource) GetAllSecurityAudits(limit, offset int) ([]*model.SecurityAuditEntry, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SecurityAuditEntry), args.Error(1)
}

// API-key methods

func (m *MockDataSource) CreateAPIKey(ctx context.Context, name, tenantID string, scopes []string, expiresAt time.Time) (*model.APIKey, error) {
	args := m.Called(ctx, name, tenantID, scopes, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

func (m *MockDataSource) GetAPIKey(ctx context.Context, key string) (*model.APIKey, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.APIKey), args.Error(1)
}

func (m *MockDataSource) RevokeAPIKey(ctx context.Context, id, tenantID string) error {
	args := m.Called(ctx, id, tenantID)
	return args.Error(0)
}

func (m *MockDataSource) UpdateLastUsed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) ListAPIKeys(ctx context.Context, tenantID string) ([]*model.APIKey, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.APIKey), args.Error(1)
}

// System methods

func (m *MockDataSource) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
