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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/database/mocks"
	"github.com/vendahub/tesouro/internal/cache"
	"github.com/vendahub/tesouro/model"
)

func TestCreateMerchantBalance(t *testing.T) {
	engine, mock, mr, err := newTestEngine()
	assert.NoError(t, err)
	defer mr.Close()

	mock.ExpectExec("INSERT INTO tesouro.merchant_balances").
		WithArgs(sqlmock.AnyArg(), "tnt_1", "0", "0", "BRL", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	balance, err := engine.CreateMerchantBalance(context.Background(), "tnt_1", "BRL")
	assert.NoError(t, err)
	assert.Contains(t, balance.BalanceID, "bln_")
	assert.Equal(t, "tnt_1", balance.TenantID)
	assert.True(t, balance.AvailableAmount.IsZero())
	assert.WithinDuration(t, time.Now(), balance.CreatedAt, time.Second)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

// newSnapshotTestEngine pairs a mocked datasource with a miniredis
// backed cache, which GetBalanceSnapshot needs for its read-through.
func newSnapshotTestEngine(t *testing.T, mockDS *mocks.MockDataSource) *Tesouro {
	t.Helper()
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	t.Cleanup(mr.Close)
	config.MockConfig(&config.Configuration{Redis: config.RedisConfig{Dns: mr.Addr()}})
	newCache, err := cache.NewCache()
	assert.NoError(t, err)
	return &Tesouro{datasource: mockDS, cache: newCache}
}

func TestGetBalanceSnapshot(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newSnapshotTestEngine(t, mockDS)

	balance := &model.MerchantBalance{
		BalanceID:       "bln_1",
		TenantID:        "tnt_1",
		AvailableAmount: decimal.RequireFromString("8230.50"),
		PendingAmount:   decimal.RequireFromString("150"),
		Currency:        "BRL",
	}
	mockDS.On("GetMerchantBalance", mock.Anything, "tnt_1").Return(balance, nil)
	mockDS.On("SumWithdrawalsSince", mock.Anything, "tnt_1", mock.Anything).
		Return(decimal.RequireFromString("1200"), nil).Once()
	mockDS.On("SumWithdrawalsSince", mock.Anything, "tnt_1", mock.Anything).
		Return(decimal.RequireFromString("5400"), nil).Once()

	snapshot, err := engine.GetBalanceSnapshot(context.Background(), "tnt_1")
	assert.NoError(t, err)
	assert.Equal(t, "8230.5", snapshot.AvailableBalance.String())
	assert.Equal(t, "150", snapshot.PendingBalance.String())
	assert.Equal(t, "1200", snapshot.DailyWithdrawn.String())
	assert.Equal(t, "5400", snapshot.MonthlyWithdrawn.String())
	assert.Equal(t, "BRL", snapshot.Currency)
	assert.WithinDuration(t, time.Now(), snapshot.AsOf, time.Second)
	mockDS.AssertExpectations(t)
}

func TestGetBalanceSnapshotServedFromCache(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newSnapshotTestEngine(t, mockDS)

	balance := &model.MerchantBalance{
		BalanceID:       "bln_1",
		TenantID:        "tnt_1",
		AvailableAmount: decimal.RequireFromString("500"),
		Currency:        "BRL",
	}
	mockDS.On("GetMerchantBalance", mock.Anything, "tnt_1").Return(balance, nil).Once()
	mockDS.On("SumWithdrawalsSince", mock.Anything, "tnt_1", mock.Anything).
		Return(decimal.Zero, nil).Twice()

	first, err := engine.GetBalanceSnapshot(context.Background(), "tnt_1")
	assert.NoError(t, err)

	// Second read lands on the cache; the mock would fail on a second
	// datasource hit because of the Once/Twice bounds above.
	second, err := engine.GetBalanceSnapshot(context.Background(), "tnt_1")
	assert.NoError(t, err)
	assert.True(t, first.AvailableBalance.Equal(second.AvailableBalance))
	mockDS.AssertExpectations(t)
}

func TestGetBalanceSnapshotMissingTenant(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newSnapshotTestEngine(t, mockDS)

	mockDS.On("GetMerchantBalance", mock.Anything, "tnt_missing").Return(nil, assert.AnError)

	_, err := engine.GetBalanceSnapshot(context.Background(), "tnt_missing")
	assert.Error(t, err)
	mockDS.AssertNotCalled(t, "SumWithdrawalsSince", mock.Anything, mock.Anything, mock.Anything)
}
