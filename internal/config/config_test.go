package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "persona_db", cfg.Database.Database)
				assert.Equal(t, "persona_events", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "fanout", cfg.RabbitMQ.Exchange.Type)
				assert.Equal(t, 30*time.Second, cfg.Worker.PollInterval)
				assert.Equal(t, 300*time.Second, cfg.Worker.OrphanTimeout)
				assert.Equal(t, 500, cfg.Worker.BatchSize)
				assert.Equal(t, 6*time.Hour, cfg.Metrics.SnapshotInterval)
				assert.Equal(t, 90, cfg.Metrics.RetentionDays)
				assert.Equal(t, 8081, cfg.Health.Port)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "persona_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "persona_events", Type: "fanout"},
		},
		Worker: WorkerConfig{
			PollInterval:  30 * time.Second,
			OrphanTimeout: 300 * time.Second,
			BatchSize:     500,
		},
		Metrics: MetricsConfig{
			SnapshotInterval: 6 * time.Hour,
			RetentionDays:    90,
		},
		Health: HealthConfig{Port: 8081},
	}
}

func TestValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			errString: "database host is required",
		},
		{
			name:      "missing database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			errString: "database name is required",
		},
		{
			name:      "missing rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			errString: "rabbitmq host is required",
		},
		{
			name:      "missing exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			errString: "rabbitmq exchange name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			}
		})
	}
}

func TestValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "zero poll interval",
			mutate:    func(c *Config) { c.Worker.PollInterval = 0 },
			errString: "poll_interval must be greater than 0",
		},
		{
			name:      "orphan timeout not above poll interval",
			mutate:    func(c *Config) { c.Worker.OrphanTimeout = 10 * time.Second },
			errString: "orphan_timeout must exceed poll_interval",
		},
		{
			name:      "zero batch size",
			mutate:    func(c *Config) { c.Worker.BatchSize = 0 },
			errString: "batch_size must be greater than 0",
		},
		{
			name:      "zero snapshot interval",
			mutate:    func(c *Config) { c.Metrics.SnapshotInterval = 0 },
			errString: "snapshot_interval must be greater than 0",
		},
		{
			name:      "negative retention",
			mutate:    func(c *Config) { c.Metrics.RetentionDays = -1 },
			errString: "retention_days must not be negative",
		},
		{
			name:      "invalid health port",
			mutate:    func(c *Config) { c.Health.Port = 0 },
			errString: "invalid health port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			}
		})
	}
}

func TestMetricsRetention(t *testing.T) {
	m := MetricsConfig{RetentionDays: 90}
	assert.Equal(t, 90*24*time.Hour, m.Retention())
}
