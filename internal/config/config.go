package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"invoicequeue/internal/logger"
)

// Defaults
const (
	DefaultQueueEnv        = "test"
	DefaultAWSRegion       = "us-east-1"
	DefaultBatchSize       = 10
	DefaultMaxReceiveCount = 5
)

type Config struct {
	// Queue Configuration
	QueueEnv        string `mapstructure:"queue_env" validate:"required,oneof=test production"`
	BatchSize       int    `mapstructure:"batch_size" validate:"min=1,max=10"`
	MaxReceiveCount int    `mapstructure:"max_receive_count" validate:"min=1,max=1000"`

	// AWS Configuration
	AWSRegion      string `mapstructure:"aws_region" validate:"required"`
	AWSEndpointURL string `mapstructure:"aws_endpoint_url" validate:"omitempty,url"` // e.g. localstack

	// Logging Configuration
	LogLevel      string `mapstructure:"log_level" validate:"required,oneof=trace debug info warn error fatal panic"`
	LogFormat     string `mapstructure:"log_format" validate:"required,oneof=console json"`
	LogTimeFormat string `mapstructure:"log_time_format"`
	LogOutput     string `mapstructure:"log_output" validate:"required"`
}

// Load reads the configuration from the environment and an optional invoicequeue.yaml in the
// working directory. Environment variables take precedence over the file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("invoicequeue")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Every key needs a default so that AutomaticEnv can see it during Unmarshal
	v.SetDefault("queue_env", DefaultQueueEnv)
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("max_receive_count", DefaultMaxReceiveCount)
	v.SetDefault("aws_region", DefaultAWSRegion)
	v.SetDefault("aws_endpoint_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("log_time_format", "2006-01-02T15:04:05Z07:00")
	v.SetDefault("log_output", "stderr")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "decode configuration")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &config, nil
}

// Validate checks every field against its validation tag
func (c Config) Validate() error {
	return validator.New().Struct(c)
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}
