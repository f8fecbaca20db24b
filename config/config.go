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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5401"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"TESOURO_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"TESOURO_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"TESOURO_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"TESOURO_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"TESOURO_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"TESOURO_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"TESOURO_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"TESOURO_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"TESOURO_REDIS_SKIP_TLS_VERIFY"`
}

type TypeSenseConfig struct {
	Dns string `json:"dns" envconfig:"TESOURO_TYPESENSE_DNS"`
}

// QueueConfig names the asynq queues. Withdrawal settlement tasks are
// spread over NumberOfQueues partitions keyed by tenant so submissions
// for one tenant never race each other.
type QueueConfig struct {
	WebhookQueue    string `json:"webhook_queue" envconfig:"TESOURO_QUEUE_WEBHOOK"`
	IndexQueue      string `json:"index_queue" envconfig:"TESOURO_QUEUE_INDEX"`
	WithdrawalQueue string `json:"withdrawal_queue" envconfig:"TESOURO_QUEUE_WITHDRAWAL"`
	FeeSweepQueue   string `json:"fee_sweep_queue" envconfig:"TESOURO_QUEUE_FEE_SWEEP"`
	StaleCheckQueue string `json:"stale_check_queue" envconfig:"TESOURO_QUEUE_STALE_CHECK"`
	HookQueue       string `json:"hook_queue" envconfig:"TESOURO_QUEUE_HOOK"`
	NumberOfQueues  int    `json:"number_of_queues" envconfig:"TESOURO_NUMBER_OF_QUEUES"`
	MonitoringPort  string `json:"monitoring_port" envconfig:"TESOURO_QUEUE_MONITORING_PORT"`
}

// WithdrawalConfig carries the payout rules. Amounts are plain floats in
// the config file and converted to decimals at the boundary.
type WithdrawalConfig struct {
	MinimumAmount float64 `json:"minimum_amount" envconfig:"TESOURO_WITHDRAWAL_MINIMUM_AMOUNT"`
	DailyLimit    float64 `json:"daily_limit" envconfig:"TESOURO_WITHDRAWAL_DAILY_LIMIT"`
	FixedFee      float64 `json:"fixed_fee" envconfig:"TESOURO_WITHDRAWAL_FIXED_FEE"`
	Currency      string  `json:"currency" envconfig:"TESOURO_WITHDRAWAL_CURRENCY"`
	StaleAfterMin int     `json:"stale_after_min" envconfig:"TESOURO_WITHDRAWAL_STALE_AFTER_MIN"`
}

// SettlementConfig points at the payout provider. Secret signs inbound
// webhooks and authenticates outbound submissions; TimeoutSec bounds the
// synchronous submission call.
type SettlementConfig struct {
	Url        string `json:"url" envconfig:"TESOURO_SETTLEMENT_URL"`
	Secret     string `json:"secret" envconfig:"TESOURO_SETTLEMENT_SECRET"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"TESOURO_SETTLEMENT_TIMEOUT_SEC"`
}

// RiskAmountTier adds Score to the risk total once the request amount
// strictly exceeds Threshold. Tiers are evaluated highest first and only
// the first matching tier scores.
type RiskAmountTier struct {
	Threshold float64 `json:"threshold"`
	Score     int     `json:"score"`
}

// RiskConfig externalizes the scoring weight table so weights can be
// audited and changed without a redeploy.
type RiskConfig struct {
	BlockThreshold  int              `json:"block_threshold" envconfig:"TESOURO_RISK_BLOCK_THRESHOLD"`
	FlagThreshold   int              `json:"flag_threshold" envconfig:"TESOURO_RISK_FLAG_THRESHOLD"`
	AmountTiers     []RiskAmountTier `json:"amount_tiers"`
	OperationScores map[string]int   `json:"operation_scores"`
	LateNightScore  int              `json:"late_night_score"`
	EdgeNightScore  int              `json:"edge_night_score"`
	HighRiskGeo     int              `json:"high_risk_geo"`
	VpnScore        int              `json:"vpn_score"`
	BotAgentScore   int              `json:"bot_agent_score"`
}

// GateWindow is one sliding window: at most MaxRequests inside any span
// of WindowSec seconds.
type GateWindow struct {
	MaxRequests int `json:"max_requests"`
	WindowSec   int `json:"window_sec"`
}

// GateConfig holds the sliding windows per operation class. Every window
// of a class must pass for a request to go through.
type GateConfig struct {
	Withdrawal []GateWindow `json:"withdrawal"`
	Transfer   []GateWindow `json:"transfer"`
	Default    []GateWindow `json:"default"`
}

// LedgerConfig drives entry derivation: PlatformFeeRate nets down sale
// credits, ProcessingFeeRate accrues acquirer costs that the periodic
// sweep debits per tenant.
type LedgerConfig struct {
	PlatformFeeRate   float64 `json:"platform_fee_rate" envconfig:"TESOURO_LEDGER_PLATFORM_FEE_RATE"`
	ProcessingFeeRate float64 `json:"processing_fee_rate" envconfig:"TESOURO_LEDGER_PROCESSING_FEE_RATE"`
	SweepIntervalHrs  int     `json:"sweep_interval_hrs" envconfig:"TESOURO_LEDGER_SWEEP_INTERVAL_HRS"`
}

// FiscalConfig holds the issuer-side constants encoded into access keys.
type FiscalConfig struct {
	UF           int `json:"uf" envconfig:"TESOURO_FISCAL_UF"`
	DocModel     int `json:"doc_model" envconfig:"TESOURO_FISCAL_DOC_MODEL"`
	EmissionType int `json:"emission_type" envconfig:"TESOURO_FISCAL_EMISSION_TYPE"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"TESOURO_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"TESOURO_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"TESOURO_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

// OtelGrafanaCloud mirrors the OTLP exporter environment variables so a
// Grafana Cloud (or any OTLP) endpoint can be configured from the same
// json file as everything else.
type OtelGrafanaCloud struct {
	OtelExporterOtlpProtocol string `json:"otel_exporter_otlp_protocol" envconfig:"OTEL_EXPORTER_OTLP_PROTOCOL"`
	OtelExporterOtlpEndpoint string `json:"otel_exporter_otlp_endpoint" envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpHeaders  string `json:"otel_exporter_otlp_headers" envconfig:"OTEL_EXPORTER_OTLP_HEADERS"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName        string           `json:"project_name" envconfig:"TESOURO_PROJECT_NAME"`
	BackupDir          string           `json:"backup_dir" envconfig:"TESOURO_BACKUP_DIR"`
	AwsAccessKeyId     string           `json:"aws_access_key_id"`
	S3Endpoint         string           `json:"s3_endpoint"`
	AwsSecretAccessKey string           `json:"aws_secret_access_key"`
	S3BucketName       string           `json:"s3_bucket_name"`
	S3Region           string           `json:"s3_region"`
	Server             ServerConfig     `json:"server"`
	DataSource         DataSourceConfig `json:"data_source"`
	Redis              RedisConfig      `json:"redis"`
	TypeSense          TypeSenseConfig  `json:"typesense"`
	TypeSenseKey       string           `json:"type_sense_key"`
	Queue              QueueConfig      `json:"queue"`
	Withdrawal         WithdrawalConfig `json:"withdrawal"`
	Settlement         SettlementConfig `json:"settlement"`
	Risk               RiskConfig       `json:"risk"`
	Gate               GateConfig       `json:"gate"`
	Ledger             LedgerConfig     `json:"ledger"`
	Fiscal             FiscalConfig     `json:"fiscal"`
	Notification       Notification     `json:"notification"`
	RateLimit          RateLimitConfig  `json:"rate_limit"`
	EnableTelemetry    bool             `json:"enable_telemetry" envconfig:"TESOURO_ENABLE_TELEMETRY"`
	OtelGrafanaCloud   OtelGrafanaCloud `json:"otel_grafana_cloud"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("tesouro", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called tesouro.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Tesouro Server"
	}

	if cnf.TypeSense.Dns == "" {
		cnf.TypeSense.Dns = "http://typesense:8108"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.applyQueueDefaults()
	cnf.applyWithdrawalDefaults()
	cnf.applySettlementDefaults()
	cnf.applyRiskDefaults()
	cnf.applyGateDefaults()
	cnf.applyLedgerDefaults()
	cnf.applyFiscalDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
		log.Printf("Warning: Rate limit cleanup interval not specified. Setting default value: %d seconds", defaultCleanup)
	}

	return nil
}

func (cnf *Configuration) applyQueueDefaults() {
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.IndexQueue == "" {
		cnf.Queue.IndexQueue = "new:index"
	}
	if cnf.Queue.WithdrawalQueue == "" {
		cnf.Queue.WithdrawalQueue = "new:withdrawal"
	}
	if cnf.Queue.FeeSweepQueue == "" {
		cnf.Queue.FeeSweepQueue = "new:fee-sweep"
	}
	if cnf.Queue.StaleCheckQueue == "" {
		cnf.Queue.StaleCheckQueue = "new:stale-check"
	}
	if cnf.Queue.HookQueue == "" {
		cnf.Queue.HookQueue = "new:hook"
	}
	if cnf.Queue.NumberOfQueues <= 0 {
		cnf.Queue.NumberOfQueues = 20
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5001"
	}
}

func (cnf *Configuration) applyWithdrawalDefaults() {
	if cnf.Withdrawal.MinimumAmount <= 0 {
		cnf.Withdrawal.MinimumAmount = 10.00
	}
	if cnf.Withdrawal.DailyLimit <= 0 {
		cnf.Withdrawal.DailyLimit = 10000.00
	}
	if cnf.Withdrawal.FixedFee <= 0 {
		cnf.Withdrawal.FixedFee = 2.50
	}
	if cnf.Withdrawal.Currency == "" {
		cnf.Withdrawal.Currency = "BRL"
	}
	if cnf.Withdrawal.StaleAfterMin <= 0 {
		cnf.Withdrawal.StaleAfterMin = 60
	}
}

func (cnf *Configuration) applySettlementDefaults() {
	if cnf.Settlement.TimeoutSec <= 0 {
		cnf.Settlement.TimeoutSec = 15
	}
}

func (cnf *Configuration) applyRiskDefaults() {
	if cnf.Risk.BlockThreshold <= 0 {
		cnf.Risk.BlockThreshold = 90
	}
	if cnf.Risk.FlagThreshold <= 0 {
		cnf.Risk.FlagThreshold = 70
	}
	if len(cnf.Risk.AmountTiers) == 0 {
		cnf.Risk.AmountTiers = []RiskAmountTier{
			{Threshold: 50000, Score: 30},
			{Threshold: 10000, Score: 20},
			{Threshold: 5000, Score: 15},
			{Threshold: 1000, Score: 10},
		}
	}
	if len(cnf.Risk.OperationScores) == 0 {
		cnf.Risk.OperationScores = map[string]int{
			"withdrawal": 25,
			"transfer":   20,
			"payment":    10,
		}
	}
	if cnf.Risk.LateNightScore <= 0 {
		cnf.Risk.LateNightScore = 15
	}
	if cnf.Risk.EdgeNightScore <= 0 {
		cnf.Risk.EdgeNightScore = 10
	}
	if cnf.Risk.HighRiskGeo <= 0 {
		cnf.Risk.HighRiskGeo = 20
	}
	if cnf.Risk.VpnScore <= 0 {
		cnf.Risk.VpnScore = 15
	}
	if cnf.Risk.BotAgentScore <= 0 {
		cnf.Risk.BotAgentScore = 10
	}
}

func (cnf *Configuration) applyGateDefaults() {
	if len(cnf.Gate.Withdrawal) == 0 {
		cnf.Gate.Withdrawal = []GateWindow{
			{MaxRequests: 5, WindowSec: 900},
			{MaxRequests: 10, WindowSec: 86400},
		}
	}
	if len(cnf.Gate.Transfer) == 0 {
		cnf.Gate.Transfer = []GateWindow{
			{MaxRequests: 20, WindowSec: 900},
		}
	}
	if len(cnf.Gate.Default) == 0 {
		cnf.Gate.Default = []GateWindow{
			{MaxRequests: 50, WindowSec: 900},
		}
	}
}

func (cnf *Configuration) applyLedgerDefaults() {
	if cnf.Ledger.PlatformFeeRate <= 0 {
		cnf.Ledger.PlatformFeeRate = 0.05
	}
	if cnf.Ledger.ProcessingFeeRate <= 0 {
		cnf.Ledger.ProcessingFeeRate = 0.0099
	}
	if cnf.Ledger.SweepIntervalHrs <= 0 {
		cnf.Ledger.SweepIntervalHrs = 24
	}
}

func (cnf *Configuration) applyFiscalDefaults() {
	if cnf.Fiscal.UF <= 0 {
		cnf.Fiscal.UF = 35
	}
	if cnf.Fiscal.DocModel <= 0 {
		cnf.Fiscal.DocModel = 55
	}
	if cnf.Fiscal.EmissionType <= 0 {
		cnf.Fiscal.EmissionType = 1
	}
}

// SetGrafanaExporterEnvs exports the configured OTLP settings as the
// environment variables the OTel exporter reads at setup time.
func SetGrafanaExporterEnvs() error {
	cnf, err := Fetch()
	if err != nil {
		return err
	}
	envs := map[string]string{
		"OTEL_EXPORTER_OTLP_PROTOCOL": cnf.OtelGrafanaCloud.OtelExporterOtlpProtocol,
		"OTEL_EXPORTER_OTLP_ENDPOINT": cnf.OtelGrafanaCloud.OtelExporterOtlpEndpoint,
		"OTEL_EXPORTER_OTLP_HEADERS":  cnf.OtelGrafanaCloud.OtelExporterOtlpHeaders,
	}
	for key, value := range envs {
		if value == "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	mockConfig.applyQueueDefaults()
	mockConfig.applyWithdrawalDefaults()
	mockConfig.applySettlementDefaults()
	mockConfig.applyRiskDefaults()
	mockConfig.applyGateDefaults()
	mockConfig.applyLedgerDefaults()
	mockConfig.applyFiscalDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
