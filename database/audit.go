package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/model"
)

// securityAuditSelect is the column list shared by every audit read.
const securityAuditSelect = `
	SELECT audit_id, tenant_id, operation, decision, score, factors, ip_address, user_agent,
		success, created_at, meta_data
	FROM tesouro.security_audits
`

// RecordSecurityAudit appends one audit entry. The table is insert-only, so
// concurrent writers need no coordination beyond the insert itself.
func (d Datasource) RecordSecurityAudit(ctx context.Context, entry *model.SecurityAuditEntry) error {
	factorsJSON, err := json.Marshal(entry.Factors)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal risk factors", err)
	}

	metaDataJSON, err := json.Marshal(entry.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO tesouro.security_audits (audit_id, tenant_id, operation, decision, score, factors, ip_address, user_agent, success, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.AuditID, entry.TenantID, entry.Operation, entry.Decision, entry.Score, factorsJSON,
		entry.IPAddress, entry.UserAgent, entry.Success, entry.CreatedAt, metaDataJSON)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Security audit with ID '%s' already exists", entry.AuditID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record security audit", err)
	}

	return nil
}

// GetSecurityAudits retrieves audit entries matching the filter, newest
// first.
func (d Datasource) GetSecurityAudits(ctx context.Context, filter model.SecurityAuditFilter) ([]*model.SecurityAuditEntry, error) {
	query := securityAuditSelect + `
		WHERE tenant_id = $1
	`
	args := []interface{}{filter.TenantID}

	if filter.Decision != "" {
		args = append(args, filter.Decision)
		query += fmt.Sprintf(" AND decision = $%d", len(args))
	}
	if filter.Operation != "" {
		args = append(args, filter.Operation)
		query += fmt.Sprintf(" AND operation = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve security audits", err)
	}
	defer rows.Close()

	return scanSecurityAuditRows(rows)
}

// GetAllSecurityAudits retrieves audit entries in stable id order for batch
// consumers such as the search reindexer.
func (d Datasource) GetAllSecurityAudits(limit, offset int) ([]*model.SecurityAuditEntry, error) {
	rows, err := d.Conn.Query(securityAuditSelect+`
		ORDER BY id ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve security audits", err)
	}
	defer rows.Close()

	return scanSecurityAuditRows(rows)
}

func scanSecurityAuditRows(rows *sql.Rows) ([]*model.SecurityAuditEntry, error) {
	entries := []*model.SecurityAuditEntry{}

	for rows.Next() {
		entry := model.SecurityAuditEntry{}
		var factorsJSON []byte
		var metaDataJSON []byte

		err := rows.Scan(&entry.AuditID, &entry.TenantID, &entry.Operation, &entry.Decision, &entry.Score,
			&factorsJSON, &entry.IPAddress, &entry.UserAgent, &entry.Success, &entry.CreatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan security audit data", err)
		}

		if err := json.Unmarshal(factorsJSON, &entry.Factors); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal risk factors", err)
		}

		if err := json.Unmarshal(metaDataJSON, &entry.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over security audits", err)
	}

	return entries, nil
}
