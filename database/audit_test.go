package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vendahub/tesouro/model"
)

func securityAuditColumns() []string {
	return []string{
		"audit_id", "tenant_id", "operation", "decision", "score", "factors",
		"ip_address", "user_agent", "success", "created_at", "meta_data",
	}
}

func TestRecordSecurityAudit_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	riskCtx := &model.RiskContext{
		TenantID:    "tnt_1",
		Operation:   model.OperationWithdrawal,
		Amount:      decimal.RequireFromString("60000"),
		Currency:    "BRL",
		IPAddress:   "203.0.113.7",
		UserAgent:   "curl/8.4",
		RequestedAt: time.Now(),
	}
	assessment := &model.RiskAssessment{
		Score:    95,
		Decision: model.RiskDecisionBlock,
		Factors: []model.RiskFactor{
			{Factor: "high_amount", Description: "amount above threshold", Score: 40},
		},
	}
	entry := model.NewSecurityAuditEntry(riskCtx, assessment)

	mock.ExpectExec("INSERT INTO tesouro.security_audits").
		WithArgs(entry.AuditID, "tnt_1", model.OperationWithdrawal, model.RiskDecisionBlock, 95,
			sqlmock.AnyArg(), "203.0.113.7", "curl/8.4", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ds.RecordSecurityAudit(context.Background(), entry)
	assert.NoError(t, err)
	assert.False(t, entry.Success)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSecurityAudits_FilterByDecision(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows(securityAuditColumns()).
		AddRow("aud_1", "tnt_1", model.OperationWithdrawal, model.RiskDecisionBlock, 95,
			[]byte(`[{"factor":"high_amount","description":"amount above threshold","score":40}]`),
			"203.0.113.7", "curl/8.4", false, time.Now(), []byte("{}"))

	mock.ExpectQuery("FROM tesouro.security_audits WHERE tenant_id = \\$1").
		WithArgs("tnt_1", model.RiskDecisionBlock, 50, 0).
		WillReturnRows(rows)

	audits, err := ds.GetSecurityAudits(context.Background(), model.SecurityAuditFilter{
		TenantID: "tnt_1",
		Decision: model.RiskDecisionBlock,
	})
	assert.NoError(t, err)
	assert.Len(t, audits, 1)
	assert.Equal(t, model.RiskDecisionBlock, audits[0].Decision)
	assert.False(t, audits[0].Success)
	assert.Len(t, audits[0].Factors, 1)
	assert.Equal(t, "high_amount", audits[0].Factors[0].Factor)
	assert.Equal(t, 40, audits[0].Factors[0].Score)
}

func TestGetAllSecurityAudits_Paginated(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows(securityAuditColumns()).
		AddRow("aud_1", "tnt_1", model.OperationWithdrawal, model.RiskDecisionFlag, 75,
			[]byte(`[]`), "198.51.100.2", "", true, time.Now(), []byte("{}")).
		AddRow("aud_2", "tnt_2", model.OperationTransfer, model.RiskDecisionBlock, 92,
			[]byte(`[]`), "198.51.100.3", "", false, time.Now(), []byte("{}"))

	mock.ExpectQuery("ORDER BY id ASC").
		WithArgs(2, 0).
		WillReturnRows(rows)

	audits, err := ds.GetAllSecurityAudits(2, 0)
	assert.NoError(t, err)
	assert.Len(t, audits, 2)
	assert.Equal(t, "aud_1", audits[0].AuditID)
	assert.True(t, audits[0].Success)
	assert.Equal(t, "aud_2", audits[1].AuditID)
}
