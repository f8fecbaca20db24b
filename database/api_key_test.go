package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/vendahub/tesouro/internal/apierror"
)

func apiKeyColumns() []string {
	return []string{
		"api_key_id", "key", "name", "tenant_id", "scopes", "expires_at",
		"created_at", "last_used_at", "is_revoked", "revoked_at",
	}
}

func TestCreateAPIKey_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	scopes := []string{"withdrawals:write", "ledger:read"}
	expiresAt := time.Now().Add(24 * time.Hour)

	mock.ExpectExec("INSERT INTO tesouro.api_keys").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "checkout integration", "tnt_1",
			pq.StringArray(scopes), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	apiKey, err := ds.CreateAPIKey(context.Background(), "checkout integration", "tnt_1", scopes, expiresAt)
	assert.NoError(t, err)
	assert.Equal(t, "tnt_1", apiKey.TenantID)
	assert.Equal(t, scopes, apiKey.Scopes)
	assert.NotEmpty(t, apiKey.APIKeyID)
	assert.NotEmpty(t, apiKey.Key)
	assert.False(t, apiKey.IsRevoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAPIKey_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	rows := sqlmock.NewRows(apiKeyColumns()).
		AddRow("api_key_1", "k-abc", "checkout integration", "tnt_1",
			pq.StringArray{"withdrawals:write"}, now.Add(24*time.Hour), now, now, false, nil)

	mock.ExpectQuery("FROM tesouro.api_keys").
		WithArgs("k-abc").
		WillReturnRows(rows)

	apiKey, err := ds.GetAPIKey(context.Background(), "k-abc")
	assert.NoError(t, err)
	assert.Equal(t, "api_key_1", apiKey.APIKeyID)
	assert.Equal(t, "tnt_1", apiKey.TenantID)
	assert.Equal(t, []string{"withdrawals:write"}, apiKey.Scopes)
	assert.Nil(t, apiKey.RevokedAt)
	assert.True(t, apiKey.IsValid())
}

func TestGetAPIKey_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("FROM tesouro.api_keys").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(apiKeyColumns()))

	apiKey, err := ds.GetAPIKey(context.Background(), "missing")
	assert.Error(t, err)
	assert.Nil(t, apiKey)
	assert.Equal(t, apierror.ErrNotFound, err.(apierror.APIError).Code)
}

func TestRevokeAPIKey_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE tesouro.api_keys").
		WithArgs(sqlmock.AnyArg(), "api_key_1", "tnt_1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.RevokeAPIKey(context.Background(), "api_key_1", "tnt_1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAPIKey_WrongTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE tesouro.api_keys").
		WithArgs(sqlmock.AnyArg(), "api_key_1", "tnt_other").
		WillReturnResult(sqlmock.NewResult(1, 0))

	err = ds.RevokeAPIKey(context.Background(), "api_key_1", "tnt_other")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrNotFound, err.(apierror.APIError).Code)
}

func TestUpdateLastUsed_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE tesouro.api_keys").
		WithArgs(sqlmock.AnyArg(), "api_key_1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.UpdateLastUsed(context.Background(), "api_key_1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAPIKeys_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	now := time.Now()
	revokedAt := now.Add(-time.Hour)
	rows := sqlmock.NewRows(apiKeyColumns()).
		AddRow("api_key_2", "k-new", "rotated key", "tnt_1",
			pq.StringArray{"*:*"}, now.Add(24*time.Hour), now, now, false, nil).
		AddRow("api_key_1", "k-old", "checkout integration", "tnt_1",
			pq.StringArray{"withdrawals:write"}, now.Add(24*time.Hour), now.Add(-48*time.Hour), now, true, revokedAt)

	mock.ExpectQuery("FROM tesouro.api_keys").
		WithArgs("tnt_1").
		WillReturnRows(rows)

	apiKeys, err := ds.ListAPIKeys(context.Background(), "tnt_1")
	assert.NoError(t, err)
	assert.Len(t, apiKeys, 2)
	assert.Equal(t, "api_key_2", apiKeys[0].APIKeyID)
	assert.True(t, apiKeys[1].IsRevoked)
	assert.NotNil(t, apiKeys[1].RevokedAt)
}
