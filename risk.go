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
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/database"
	"github.com/vendahub/tesouro/internal/notification"
	"github.com/vendahub/tesouro/model"
)

var riskTracer = otel.Tracer("Risk scorer")

// GeoSignal is what a geo classifier knows about an IP address.
type GeoSignal struct {
	HighRisk bool
	VPN      bool
}

// GeoClassifier resolves location-derived risk facts for an IP address.
// Implementations may call out to a geo provider; the scorer treats a
// zero signal as "nothing suspicious".
type GeoClassifier interface {
	ClassifyIP(ctx context.Context, ip string) GeoSignal
}

// DeviceSignal is what a device classifier knows about a client.
type DeviceSignal struct {
	Bot bool
}

// DeviceClassifier resolves client-derived risk facts from a user agent.
type DeviceClassifier interface {
	ClassifyAgent(userAgent string) DeviceSignal
}

// PassiveGeoClassifier never raises a signal. It is the default until a
// real geo provider is plugged in.
type PassiveGeoClassifier struct{}

func (PassiveGeoClassifier) ClassifyIP(_ context.Context, _ string) GeoSignal {
	return GeoSignal{}
}

// botAgentMarkers are substrings that mark a user agent as automated.
var botAgentMarkers = []string{"bot", "crawler", "spider", "curl", "wget", "python"}

// HeuristicDeviceClassifier flags obviously automated user agents by
// substring match. Good enough to score scripted payout attempts.
type HeuristicDeviceClassifier struct{}

func (HeuristicDeviceClassifier) ClassifyAgent(userAgent string) DeviceSignal {
	lowered := strings.ToLower(userAgent)
	for _, marker := range botAgentMarkers {
		if strings.Contains(lowered, marker) {
			return DeviceSignal{Bot: true}
		}
	}
	return DeviceSignal{}
}

// RiskScorer computes an additive 0-100 score for a request from the
// weight table in configuration and the injected classifiers, and
// writes a security audit line for every flag and block.
type RiskScorer struct {
	datasource database.IDataSource
	geo        GeoClassifier
	device     DeviceClassifier
}

func NewRiskScorer(datasource database.IDataSource, geo GeoClassifier, device DeviceClassifier) *RiskScorer {
	return &RiskScorer{datasource: datasource, geo: geo, device: device}
}

// Assess scores one request. Factors are additive and capped at 100;
// the decision falls out of the configured block and flag thresholds.
// Scoring never fails the request: classifier problems surface as
// operator notifications, not as errors to the caller.
func (s *RiskScorer) Assess(ctx context.Context, riskCtx *model.RiskContext) (*model.RiskAssessment, error) {
	ctx, span := riskTracer.Start(ctx, "Assessing request risk")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if riskCtx.RequestedAt.IsZero() {
		riskCtx.RequestedAt = time.Now()
	}

	var factors []model.RiskFactor

	if factor, ok := amountFactor(cnf, riskCtx.Amount); ok {
		factors = append(factors, factor)
	}
	if score, ok := cnf.Risk.OperationScores[riskCtx.Operation]; ok && score > 0 {
		factors = append(factors, model.RiskFactor{
			Factor:      "operation",
			Description: fmt.Sprintf("operation class %s", riskCtx.Operation),
			Score:       score,
		})
	}
	if factor, ok := hourFactor(cnf, riskCtx); ok {
		factors = append(factors, factor)
	}

	geoSignal := s.geo.ClassifyIP(ctx, riskCtx.IPAddress)
	if geoSignal.HighRisk {
		factors = append(factors, model.RiskFactor{
			Factor:      "high_risk_geo",
			Description: "request origin classified high risk",
			Score:       cnf.Risk.HighRiskGeo,
		})
	}
	if geoSignal.VPN {
		factors = append(factors, model.RiskFactor{
			Factor:      "vpn",
			Description: "request origin classified as VPN or proxy",
			Score:       cnf.Risk.VpnScore,
		})
	}
	if s.device.ClassifyAgent(riskCtx.UserAgent).Bot {
		factors = append(factors, model.RiskFactor{
			Factor:      "bot_agent",
			Description: "automated user agent",
			Score:       cnf.Risk.BotAgentScore,
		})
	}

	total := 0
	for _, factor := range factors {
		total += factor.Score
	}
	if total > 100 {
		total = 100
	}

	assessment := &model.RiskAssessment{
		Score:    total,
		Factors:  factors,
		Decision: model.RiskDecisionAllow,
	}
	switch {
	case total >= cnf.Risk.BlockThreshold:
		assessment.Decision = model.RiskDecisionBlock
	case total >= cnf.Risk.FlagThreshold:
		assessment.Decision = model.RiskDecisionFlag
	}

	if assessment.Decision != model.RiskDecisionAllow {
		s.audit(ctx, riskCtx, assessment)
	}
	return assessment, nil
}

// audit persists the security audit line. Losing an audit line must not
// turn into losing the block, so failures only notify.
func (s *RiskScorer) audit(ctx context.Context, riskCtx *model.RiskContext, assessment *model.RiskAssessment) {
	entry := model.NewSecurityAuditEntry(riskCtx, assessment)
	if err := s.datasource.RecordSecurityAudit(ctx, entry); err != nil {
		notification.NotifyError(fmt.Errorf("recording security audit for %s: %w", riskCtx.TenantID, err))
	}
}

// amountFactor returns the score of the highest tier the amount strictly
// exceeds. Tiers below the matching one do not stack.
func amountFactor(cnf *config.Configuration, amount decimal.Decimal) (model.RiskFactor, bool) {
	best := config.RiskAmountTier{}
	found := false
	for _, tier := range cnf.Risk.AmountTiers {
		if amount.Cmp(decimal.NewFromFloat(tier.Threshold)) > 0 {
			if !found || tier.Threshold > best.Threshold {
				best = tier
				found = true
			}
		}
	}
	if !found {
		return model.RiskFactor{}, false
	}
	return model.RiskFactor{
		Factor:      "high_amount",
		Description: fmt.Sprintf("amount above %s", model.FormatBRL(decimal.NewFromFloat(best.Threshold))),
		Score:       best.Score,
	}, true
}

// hourFactor scores the local hour of the request: deep night is worth
// more than the evening and early-morning edges.
func hourFactor(cnf *config.Configuration, riskCtx *model.RiskContext) (model.RiskFactor, bool) {
	hour := riskCtx.RequestedAt.Hour()
	switch {
	case hour >= 23 || hour <= 5:
		return model.RiskFactor{
			Factor:      "late_night",
			Description: fmt.Sprintf("requested at %02dh", hour),
			Score:       cnf.Risk.LateNightScore,
		}, true
	case hour == 22 || hour == 6:
		return model.RiskFactor{
			Factor:      "edge_hours",
			Description: fmt.Sprintf("requested at %02dh", hour),
			Score:       cnf.Risk.EdgeNightScore,
		}, true
	}
	return model.RiskFactor{}, false
}

// GetSecurityAudits lists audit lines for a tenant, newest first.
func (l *Tesouro) GetSecurityAudits(ctx context.Context, filter model.SecurityAuditFilter) ([]*model.SecurityAuditEntry, error) {
	return l.datasource.GetSecurityAudits(ctx, filter)
}
