package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicequeue/internal/logger"
)

func TestSetupWritesJSONToFile(t *testing.T) {
	previous := log.Logger
	previousLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = previous
		zerolog.SetGlobalLevel(previousLevel)
	})

	path := filepath.Join(t.TempDir(), "invoicequeue.log")
	closer, err := logger.Setup(logger.LogConfig{
		Level:  "debug",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	l := logger.WithComponent("sqs-queue")
	l.Debug().Str("invoice_id", "INV-1").Msg("queued")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "sqs-queue", entry["component"])
	assert.Equal(t, "INV-1", entry["invoice_id"])
	assert.Equal(t, "queued", entry["message"])
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, err := logger.Setup(logger.LogConfig{Level: "verbose", Format: "json", Output: "stderr"})
	assert.Error(t, err)
}

func TestNewConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, logger.LogConfig{Format: "console"})

	l.Info().Str("queue_name", "InvoiceData-test.fifo").Msg("Created SQS queue")

	assert.Contains(t, buf.String(), "Created SQS queue")
	assert.Contains(t, buf.String(), "queue_name=")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	attached := zerolog.New(&buf).With().Str("command", "invoicequeue queue url").Logger()

	l := logger.WithContext(attached.WithContext(context.Background()))
	l.Info().Msg("Resolved queue URLs")
	assert.Contains(t, buf.String(), `"command":"invoicequeue queue url"`)

	// Without an attached logger the global logger is used
	assert.Equal(t, logger.GetLogger(), logger.WithContext(context.Background()))
}
