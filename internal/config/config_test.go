package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicequeue/internal/config"
)

// clearEnv blanks every key Load reads. Empty values are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"QUEUE_ENV", "BATCH_SIZE", "MAX_RECEIVE_COUNT",
		"AWS_REGION", "AWS_ENDPOINT_URL",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.QueueEnv)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxReceiveCount)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Empty(t, cfg.AWSEndpointURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "stderr", cfg.LogOutput)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUEUE_ENV", "production")
	t.Setenv("BATCH_SIZE", "4")
	t.Setenv("MAX_RECEIVE_COUNT", "12")
	t.Setenv("AWS_REGION", "ap-southeast-2")
	t.Setenv("AWS_ENDPOINT_URL", "http://localhost:4566")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.QueueEnv)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 12, cfg.MaxReceiveCount)
	assert.Equal(t, "ap-southeast-2", cfg.AWSRegion)
	assert.Equal(t, "http://localhost:4566", cfg.AWSEndpointURL)

	logCfg := cfg.GetLoggerConfig()
	assert.Equal(t, "json", logCfg.Format)
	assert.Equal(t, "info", logCfg.Level)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown environment", key: "QUEUE_ENV", value: "staging"},
		{name: "batch size above SQS limit", key: "BATCH_SIZE", value: "11"},
		{name: "zero max receive count", key: "MAX_RECEIVE_COUNT", value: "0"},
		{name: "unknown log format", key: "LOG_FORMAT", value: "xml"},
		{name: "malformed endpoint", key: "AWS_ENDPOINT_URL", value: "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := config.Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestNewSQSClient(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_ENDPOINT_URL", "http://localhost:4566")

	cfg, err := config.Load()
	require.NoError(t, err)

	client, err := config.NewSQSClient(context.Background(), cfg)
	require.NoError(t, err)

	opts := client.Options()
	assert.Equal(t, "us-east-1", opts.Region)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *opts.BaseEndpoint)
}
