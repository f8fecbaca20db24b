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
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/internal/apierror"
	"github.com/vendahub/tesouro/internal/notification"
	"github.com/vendahub/tesouro/model"
)

// RateLimitGate enforces per-operation sliding windows over Redis
// sorted sets. Withdrawal windows key on tenant and client IP together,
// so one tenant cannot drain the allowance of another and one address
// cannot spray requests across tenants.
type RateLimitGate struct {
	redis redis.UniversalClient
}

func NewRateLimitGate(client redis.UniversalClient) *RateLimitGate {
	return &RateLimitGate{redis: client}
}

// gateKey scopes a window. Only withdrawal windows include the IP.
func gateKey(operation, tenantID, ip string, window config.GateWindow) string {
	if operation == model.OperationWithdrawal {
		return fmt.Sprintf("gate:%s:%s:%s:%d", operation, tenantID, ip, window.WindowSec)
	}
	return fmt.Sprintf("gate:%s:%s:%d", operation, tenantID, window.WindowSec)
}

// windowsFor picks the configured windows for an operation class.
// Unknown operations get the default windows.
func windowsFor(cnf *config.Configuration, operation string) []config.GateWindow {
	switch operation {
	case model.OperationWithdrawal:
		return cnf.Gate.Withdrawal
	case model.OperationTransfer:
		return cnf.Gate.Transfer
	default:
		return cnf.Gate.Default
	}
}

// admitScript trims every window to its cutoff, counts it, and records
// the admission in all of them only when all have room. Running as one
// script keeps concurrent callers from reading the same pre-record
// count and overshooting a cap. Returns 0 on admission, otherwise the
// longest wait in milliseconds until an exhausted window frees a slot;
// rejections write nothing, so they never extend a lockout.
const admitScript = `
local now = tonumber(ARGV[1])
local worst = 0
for i, key in ipairs(KEYS) do
	local max = tonumber(ARGV[2*i+1])
	local window = tonumber(ARGV[2*i+2])
	redis.call('zremrangebyscore', key, 0, now - window)
	if redis.call('zcard', key) >= max then
		local wait = window
		local oldest = redis.call('zrange', key, 0, 0, 'WITHSCORES')
		if oldest[2] then
			wait = tonumber(oldest[2]) + window - now
		end
		if wait > worst then
			worst = wait
		end
	end
end
if worst > 0 then
	return worst
end
for i, key in ipairs(KEYS) do
	local window = tonumber(ARGV[2*i+2])
	redis.call('zadd', key, now, ARGV[2])
	redis.call('pexpire', key, window + 60000)
end
return 0
`

// Check admits or rejects one request. Every window of the operation
// class must have room; a rejection reports the longest wait among the
// exhausted windows and consumes no allowance. Check-and-record is a
// single Eval, so the caps hold under concurrent callers.
func (g *RateLimitGate) Check(ctx context.Context, riskCtx *model.RiskContext) error {
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	windows := windowsFor(cnf, riskCtx.Operation)
	if len(windows) == 0 {
		return nil
	}

	keys := make([]string, 0, len(windows))
	args := make([]interface{}, 0, 2+2*len(windows))
	args = append(args, time.Now().UnixMilli(), model.GenerateUUIDWithSuffix("req"))
	for _, window := range windows {
		keys = append(keys, gateKey(riskCtx.Operation, riskCtx.TenantID, riskCtx.IPAddress, window))
		args = append(args, window.MaxRequests, int64(window.WindowSec)*1000)
	}

	waitMs, err := g.redis.Eval(ctx, admitScript, keys, args...).Int64()
	if err != nil {
		return err
	}
	if waitMs <= 0 {
		return nil
	}

	seconds := int((waitMs + 999) / 1000)
	if seconds < 1 {
		seconds = 1
	}
	return apierror.NewAPIError(apierror.ErrRateLimited,
		"Limite de requisições excedido", map[string]interface{}{
			"retry_after": seconds,
		})
}

// CheckRateLimit runs the gate and audits rejections. The audit line
// carries a zero score with a rate_limited factor, so gate rejections
// and risk blocks stay distinguishable in the same log.
func (l *Tesouro) CheckRateLimit(ctx context.Context, riskCtx *model.RiskContext) error {
	err := l.gate.Check(ctx, riskCtx)
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrRateLimited {
		assessment := &model.RiskAssessment{
			Score:    0,
			Decision: model.RiskDecisionBlock,
			Factors: []model.RiskFactor{
				{Factor: "rate_limited", Description: "sliding window exhausted", Score: 0},
			},
		}
		entry := model.NewSecurityAuditEntry(riskCtx, assessment)
		if auditErr := l.datasource.RecordSecurityAudit(ctx, entry); auditErr != nil {
			notification.NotifyError(fmt.Errorf("recording rate limit audit for %s: %w", riskCtx.TenantID, auditErr))
		}
	}
	return err
}
