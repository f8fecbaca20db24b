package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, cnf Configuration) string {
	t.Helper()
	data, err := json.Marshal(cnf)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tesouro.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		cnf     Configuration
		wantErr string
	}{
		{
			name:    "missing data source DNS",
			cnf:     Configuration{Redis: RedisConfig{Dns: "localhost:6379"}},
			wantErr: "data source DNS is required",
		},
		{
			name:    "missing redis DNS",
			cnf:     Configuration{DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/tesouro"}},
			wantErr: "redis DNS is required",
		},
		{
			name: "both present",
			cnf: Configuration{
				DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/tesouro"},
				Redis:      RedisConfig{Dns: "localhost:6379"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cnf.validateAndAddDefaults()
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateServerDefaults(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "  postgres://localhost:5432/tesouro  "},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, "Tesouro Server", cnf.ProjectName)
	assert.Equal(t, "http://typesense:8108", cnf.TypeSense.Dns)
	assert.Equal(t, "postgres://localhost:5432/tesouro", cnf.DataSource.Dns, "DNS should be trimmed")
}

func TestValidateFinancialDefaults(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/tesouro"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, 10.00, cnf.Withdrawal.MinimumAmount)
	assert.Equal(t, 10000.00, cnf.Withdrawal.DailyLimit)
	assert.Equal(t, 2.50, cnf.Withdrawal.FixedFee)
	assert.Equal(t, "BRL", cnf.Withdrawal.Currency)
	assert.Equal(t, 60, cnf.Withdrawal.StaleAfterMin)

	assert.Equal(t, 15, cnf.Settlement.TimeoutSec)

	assert.Equal(t, 90, cnf.Risk.BlockThreshold)
	assert.Equal(t, 70, cnf.Risk.FlagThreshold)
	assert.Len(t, cnf.Risk.AmountTiers, 4)
	assert.Equal(t, 25, cnf.Risk.OperationScores["withdrawal"])

	require.Len(t, cnf.Gate.Withdrawal, 2)
	assert.Equal(t, GateWindow{MaxRequests: 5, WindowSec: 900}, cnf.Gate.Withdrawal[0])
	assert.Equal(t, GateWindow{MaxRequests: 10, WindowSec: 86400}, cnf.Gate.Withdrawal[1])

	assert.Equal(t, 0.05, cnf.Ledger.PlatformFeeRate)
	assert.Equal(t, 0.0099, cnf.Ledger.ProcessingFeeRate)
	assert.Equal(t, 24, cnf.Ledger.SweepIntervalHrs)

	assert.Equal(t, 35, cnf.Fiscal.UF)
	assert.Equal(t, 55, cnf.Fiscal.DocModel)
	assert.Equal(t, 1, cnf.Fiscal.EmissionType)

	assert.Equal(t, "new:withdrawal", cnf.Queue.WithdrawalQueue)
	assert.Equal(t, 20, cnf.Queue.NumberOfQueues)
}

func TestValidateRateLimitPairing(t *testing.T) {
	base := Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432/tesouro"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}

	t.Run("disabled when unset", func(t *testing.T) {
		cnf := base
		require.NoError(t, cnf.validateAndAddDefaults())
		assert.Nil(t, cnf.RateLimit.RequestsPerSecond)
		assert.Nil(t, cnf.RateLimit.Burst)
		require.NotNil(t, cnf.RateLimit.CleanupIntervalSec)
		assert.Equal(t, 10800, *cnf.RateLimit.CleanupIntervalSec)
	})

	t.Run("burst derived from rps", func(t *testing.T) {
		cnf := base
		rps := 10.0
		cnf.RateLimit.RequestsPerSecond = &rps
		require.NoError(t, cnf.validateAndAddDefaults())
		require.NotNil(t, cnf.RateLimit.Burst)
		assert.Equal(t, 20, *cnf.RateLimit.Burst)
	})

	t.Run("rps derived from burst", func(t *testing.T) {
		cnf := base
		burst := 30
		cnf.RateLimit.Burst = &burst
		require.NoError(t, cnf.validateAndAddDefaults())
		require.NotNil(t, cnf.RateLimit.RequestsPerSecond)
		assert.Equal(t, 15.0, *cnf.RateLimit.RequestsPerSecond)
	})
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, Configuration{
		ProjectName: "File Project",
		DataSource:  DataSourceConfig{Dns: "postgres://file:5432/tesouro"},
		Redis:       RedisConfig{Dns: "localhost:6379"},
	})

	t.Setenv("TESOURO_PROJECT_NAME", "Env Project")

	require.NoError(t, loadConfigFromFile(path))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Env Project", cnf.ProjectName, "environment should win over the file")
	assert.Equal(t, "postgres://file:5432/tesouro", cnf.DataSource.Dns)
}

func TestLoadConfigMissingFileUsesEnv(t *testing.T) {
	t.Setenv("TESOURO_DATA_SOURCE_DNS", "postgres://env:5432/tesouro")
	t.Setenv("TESOURO_REDIS_DNS", "localhost:6379")

	require.NoError(t, loadConfigFromFile(filepath.Join(t.TempDir(), "absent.json")))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "postgres://env:5432/tesouro", cnf.DataSource.Dns)
}

func TestInitConfig(t *testing.T) {
	path := writeConfigFile(t, Configuration{
		ProjectName: "Init Project",
		DataSource:  DataSourceConfig{Dns: "postgres://init:5432/tesouro"},
		Redis:       RedisConfig{Dns: "localhost:6379"},
	})

	require.NoError(t, InitConfig(path))

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Init Project", cnf.ProjectName)
	assert.Equal(t, "postgres://init:5432/tesouro", cnf.DataSource.Dns)
}

func TestMockConfigAppliesDefaults(t *testing.T) {
	MockConfig(&Configuration{
		Redis: RedisConfig{Dns: "localhost:6379"},
	})

	cnf, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "BRL", cnf.Withdrawal.Currency)
	assert.Equal(t, "new:webhook", cnf.Queue.WebhookQueue)
	assert.Equal(t, 24, cnf.Ledger.SweepIntervalHrs)
}

func TestSetGrafanaExporterEnvs(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	ConfigStore.Store(&Configuration{
		OtelGrafanaCloud: OtelGrafanaCloud{
			OtelExporterOtlpProtocol: "http/protobuf",
			OtelExporterOtlpEndpoint: "https://otlp-gateway.grafana.net/otlp",
			OtelExporterOtlpHeaders:  "Authorization=Basic dGVzb3Vybw==",
		},
	})

	require.NoError(t, SetGrafanaExporterEnvs())

	assert.Equal(t, "http/protobuf", os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"))
	assert.Equal(t, "https://otlp-gateway.grafana.net/otlp", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	assert.Equal(t, "Authorization=Basic dGVzb3Vybw==", os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
}
