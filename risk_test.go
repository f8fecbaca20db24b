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
	"github.com/vendahub/tesouro/model"
)

func riskContextAt(amount float64, hour int) *model.RiskContext {
	return &model.RiskContext{
		TenantID:    "tnt_1",
		Operation:   model.OperationWithdrawal,
		Amount:      decimal.NewFromFloat(amount),
		Currency:    "BRL",
		IPAddress:   "187.44.10.8",
		UserAgent:   "Mozilla/5.0",
		RequestedAt: time.Date(2026, 8, 25, hour, 10, 0, 0, time.Local),
	}
}

func TestAssessBlocksHighRiskCombination(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	mockDS := new(mocks.MockDataSource)
	scorer := NewRiskScorer(mockDS, stubGeoClassifier{signal: GeoSignal{HighRisk: true}}, HeuristicDeviceClassifier{})

	mockDS.On("RecordSecurityAudit", mock.Anything, mock.MatchedBy(func(entry *model.SecurityAuditEntry) bool {
		return entry.Decision == model.RiskDecisionBlock && entry.Score == 90 && !entry.Success
	})).Return(nil)

	// 30 for the amount, 25 for withdrawals, 15 for the hour, 20 for geo.
	assessment, err := scorer.Assess(context.Background(), riskContextAt(60000, 2))
	assert.NoError(t, err)
	assert.Equal(t, 90, assessment.Score)
	assert.True(t, assessment.Blocked())
	mockDS.AssertExpectations(t)
}

func TestAssessFlagsMediumRisk(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	mockDS := new(mocks.MockDataSource)
	scorer := NewRiskScorer(mockDS, stubGeoClassifier{signal: GeoSignal{VPN: true}}, HeuristicDeviceClassifier{})

	mockDS.On("RecordSecurityAudit", mock.Anything, mock.MatchedBy(func(entry *model.SecurityAuditEntry) bool {
		return entry.Decision == model.RiskDecisionFlag && entry.Score == 70 && entry.Success
	})).Return(nil)

	assessment, err := scorer.Assess(context.Background(), riskContextAt(6000, 2))
	assert.NoError(t, err)
	assert.Equal(t, 70, assessment.Score)
	assert.True(t, assessment.Flagged())
	assert.False(t, assessment.Blocked())
	mockDS.AssertExpectations(t)
}

func TestAssessAllowsCleanRequest(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	mockDS := new(mocks.MockDataSource)
	scorer := NewRiskScorer(mockDS, PassiveGeoClassifier{}, HeuristicDeviceClassifier{})

	assessment, err := scorer.Assess(context.Background(), riskContextAt(50, 14))
	assert.NoError(t, err)
	assert.Equal(t, 25, assessment.Score)
	assert.Equal(t, model.RiskDecisionAllow, assessment.Decision)
	mockDS.AssertNotCalled(t, "RecordSecurityAudit", mock.Anything, mock.Anything)
}

func TestAssessCapsScoreAtHundred(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	mockDS := new(mocks.MockDataSource)
	scorer := NewRiskScorer(mockDS, stubGeoClassifier{signal: GeoSignal{HighRisk: true, VPN: true}}, HeuristicDeviceClassifier{})

	mockDS.On("RecordSecurityAudit", mock.Anything, mock.Anything).Return(nil)

	riskCtx := riskContextAt(60000, 2)
	riskCtx.UserAgent = "curl/8.4"

	// Every factor fires: 30 + 25 + 15 + 20 + 15 + 10 is past the cap.
	assessment, err := scorer.Assess(context.Background(), riskCtx)
	assert.NoError(t, err)
	assert.Equal(t, 100, assessment.Score)
	assert.True(t, assessment.Blocked())
}

func TestAssessAmountTiersDoNotStack(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	mockDS := new(mocks.MockDataSource)
	scorer := NewRiskScorer(mockDS, PassiveGeoClassifier{}, HeuristicDeviceClassifier{})

	assessment, err := scorer.Assess(context.Background(), riskContextAt(12000, 14))
	assert.NoError(t, err)
	assert.Equal(t, 45, assessment.Score)

	amountFactors := 0
	for _, factor := range assessment.Factors {
		if factor.Factor == "high_amount" {
			amountFactors++
			assert.Equal(t, 20, factor.Score)
		}
	}
	assert.Equal(t, 1, amountFactors)
}

func TestAssessScoreGrowsWithAmount(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	mockDS := new(mocks.MockDataSource)
	scorer := NewRiskScorer(mockDS, PassiveGeoClassifier{}, HeuristicDeviceClassifier{})
	mockDS.On("RecordSecurityAudit", mock.Anything, mock.Anything).Return(nil)

	// Identical contexts apart from the amount: a larger amount can never
	// score below a smaller one.
	small, err := scorer.Assess(context.Background(), riskContextAt(500, 14))
	assert.NoError(t, err)
	large, err := scorer.Assess(context.Background(), riskContextAt(60000, 14))
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, large.Score, small.Score)
}

func TestAssessAuditFailureDoesNotBreakDecision(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	mockDS := new(mocks.MockDataSource)
	scorer := NewRiskScorer(mockDS, stubGeoClassifier{signal: GeoSignal{HighRisk: true}}, HeuristicDeviceClassifier{})

	mockDS.On("RecordSecurityAudit", mock.Anything, mock.Anything).Return(assert.AnError)

	assessment, err := scorer.Assess(context.Background(), riskContextAt(60000, 2))
	assert.NoError(t, err)
	assert.True(t, assessment.Blocked())
}

func TestHourFactorBands(t *testing.T) {
	config.MockConfig(&config.Configuration{})
	cnf, err := config.Fetch()
	assert.NoError(t, err)

	tests := []struct {
		hour   int
		factor string
		score  int
	}{
		{0, "late_night", 15},
		{2, "late_night", 15},
		{5, "late_night", 15},
		{23, "late_night", 15},
		{6, "edge_hours", 10},
		{22, "edge_hours", 10},
		{7, "", 0},
		{14, "", 0},
		{21, "", 0},
	}
	for _, tt := range tests {
		factor, ok := hourFactor(cnf, riskContextAt(100, tt.hour))
		if tt.factor == "" {
			assert.False(t, ok, "hour %d should not score", tt.hour)
			continue
		}
		assert.True(t, ok, "hour %d should score", tt.hour)
		assert.Equal(t, tt.factor, factor.Factor)
		assert.Equal(t, tt.score, factor.Score)
	}
}

func TestHeuristicDeviceClassifier(t *testing.T) {
	classifier := HeuristicDeviceClassifier{}

	assert.True(t, classifier.ClassifyAgent("curl/8.4").Bot)
	assert.True(t, classifier.ClassifyAgent("python-requests/2.31").Bot)
	assert.True(t, classifier.ClassifyAgent("Googlebot/2.1").Bot)
	assert.False(t, classifier.ClassifyAgent("Mozilla/5.0 (X11; Linux x86_64)").Bot)
	assert.False(t, classifier.ClassifyAgent("").Bot)
}
