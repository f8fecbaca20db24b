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

package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/model"
)

func TestCreateMerchantBalance_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	balance := model.NewMerchantBalance("tnt_1", "BRL")

	mock.ExpectExec("INSERT INTO tesouro.merchant_balances").
		WithArgs(balance.BalanceID, "tnt_1", "0", "0", "BRL", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := ds.CreateMerchantBalance(context.Background(), balance)
	assert.NoError(t, err)
	assert.Equal(t, "tnt_1", created.TenantID)
	assert.True(t, created.AvailableAmount.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMerchantBalance_AlreadyExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	balance := model.NewMerchantBalance("tnt_1", "BRL")

	mock.ExpectExec("INSERT INTO tesouro.merchant_balances").
		WithArgs(balance.BalanceID, "tnt_1", "0", "0", "BRL", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})

	_, err = ds.CreateMerchantBalance(context.Background(), balance)
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}

func TestGetMerchantBalance_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("FROM tesouro.merchant_balances WHERE tenant_id = \\$1").
		WithArgs("tnt_1").
		WillReturnRows(merchantBalanceRows("tnt_1", "1234.56", "50"))

	balance, err := ds.GetMerchantBalance(context.Background(), "tnt_1")
	assert.NoError(t, err)
	assert.Equal(t, "1234.56", balance.AvailableAmount.String())
	assert.Equal(t, "50", balance.PendingAmount.String())
	assert.Equal(t, "BRL", balance.Currency)
}

func TestGetMerchantBalance_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("FROM tesouro.merchant_balances WHERE tenant_id = \\$1").
		WithArgs("tnt_missing").
		WillReturnError(sql.ErrNoRows)

	_, err = ds.GetMerchantBalance(context.Background(), "tnt_missing")
	assert.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	assert.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestGetActiveTenants(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"tenant_id"}).
		AddRow("tnt_1").
		AddRow("tnt_2")

	mock.ExpectQuery("SELECT tenant_id FROM tesouro.merchant_balances").
		WillReturnRows(rows)

	tenants, err := ds.GetActiveTenants(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"tnt_1", "tnt_2"}, tenants)
}

func TestGetActiveTenants_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT tenant_id FROM tesouro.merchant_balances").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id"}))

	tenants, err := ds.GetActiveTenants(context.Background())
	assert.NoError(t, err)
	assert.Len(t, tenants, 0)
}

func TestLockMerchantBalance_ReadsUnderLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("tnt_1").
		WillReturnRows(merchantBalanceRows("tnt_1", "300", "20"))
	mock.ExpectRollback()

	tx, err := db.BeginTx(context.Background(), &sql.TxOptions{Isolation: sql.LevelDefault})
	assert.NoError(t, err)

	balance, err := lockMerchantBalance(context.Background(), tx, "tnt_1")
	assert.NoError(t, err)
	assert.Equal(t, "300", balance.AvailableAmount.String())
	assert.True(t, balance.CanDebit(decimal.RequireFromString("300")))
	assert.False(t, balance.CanDebit(decimal.RequireFromString("300.01")))

	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
