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

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/database/mocks"
	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/model"
)

func TestRecordSettledSale(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newSnapshotTestEngine(t, mockDS)

	settledAt := time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)
	mockDS.On("SaleExistsByReference", mock.Anything, "tnt_1", "order_551").Return(false, nil)
	mockDS.On("RecordSaleSettlement", mock.Anything,
		mock.MatchedBy(func(sale *model.SettledSale) bool {
			return sale.TenantID == "tnt_1" &&
				sale.Total.Equal(decimal.NewFromInt(100)) &&
				sale.NetCredit.Equal(decimal.NewFromInt(95)) &&
				sale.Currency == "BRL" &&
				sale.SettledAt.Equal(settledAt)
		}),
		mock.MatchedBy(func(entry *model.LedgerEntry) bool {
			return entry.EntryType == model.EntryTypeCredit &&
				entry.Source == model.EntrySourceSaleSettlement &&
				entry.Amount.Equal(decimal.NewFromInt(95)) &&
				entry.Description == "Venda order_551 liquidada"
		}),
	).Return(nil)

	sale, err := engine.RecordSettledSale(context.Background(), "tnt_1", "order_551", "",
		decimal.NewFromInt(100), settledAt, map[string]interface{}{"channel": "pix"})
	assert.NoError(t, err)
	assert.Contains(t, sale.SaleID, "sal_")
	assert.Equal(t, "95", sale.NetCredit.String())
	assert.Equal(t, "BRL", sale.Currency)
	mockDS.AssertExpectations(t)
}

func TestRecordSettledSaleRejectsNonPositiveTotal(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	mockDS := new(mocks.MockDataSource)
	engine := &Tesouro{datasource: mockDS}

	for _, total := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-25)} {
		_, err := engine.RecordSettledSale(context.Background(), "tnt_1", "order_1", "BRL",
			total, time.Now(), nil)
		assert.Error(t, err)
		apiErr, ok := err.(apierror.APIError)
		assert.True(t, ok)
		assert.Equal(t, apierror.ErrBadRequest, apiErr.Code)
		assert.Equal(t, "Valor da venda deve ser positivo", apiErr.Message)
	}
	mockDS.AssertNotCalled(t, "RecordSaleSettlement", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordSettledSaleDuplicateReference(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	mockDS := new(mocks.MockDataSource)
	engine := &Tesouro{datasource: mockDS}

	mockDS.On("SaleExistsByReference", mock.Anything, "tnt_1", "order_551").Return(true, nil)

	_, err := engine.RecordSettledSale(context.Background(), "tnt_1", "order_551", "BRL",
		decimal.NewFromInt(100), time.Now(), nil)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.Contains(t, apiErr.Message, "order_551")
	mockDS.AssertNotCalled(t, "RecordSaleSettlement", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordSettledSaleDefaultsSettlementTime(t *testing.T) {
	mockDS := new(mocks.MockDataSource)
	engine := newSnapshotTestEngine(t, mockDS)

	mockDS.On("SaleExistsByReference", mock.Anything, "tnt_1", "order_9").Return(false, nil)
	mockDS.On("RecordSaleSettlement", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	sale, err := engine.RecordSettledSale(context.Background(), "tnt_1", "order_9", "BRL",
		decimal.NewFromFloat(49.90), time.Time{}, nil)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), sale.SettledAt, time.Second)
	assert.Equal(t, "47.405", sale.NetCredit.String())
}
