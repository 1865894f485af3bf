package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"invoicequeue/internal/config"
	"invoicequeue/internal/logger"
	"invoicequeue/pkg/queue"
	"invoicequeue/pkg/schema"
)

// closeTimeout bounds the final flush when a command shuts down
const closeTimeout = 30 * time.Second

// commandLogger returns the logger attached to the command context with a component field
func commandLogger(cmd *cobra.Command, component string) zerolog.Logger {
	return logger.WithContext(cmd.Context()).With().Str("component", component).Logger()
}

// closeContext returns a context for the final flush that survives cancellation of ctx
func closeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
}

// createCommandContext creates a context with timeout and signal handling
func createCommandContext(cmd *cobra.Command, log zerolog.Logger) (context.Context, context.CancelFunc) {
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(timeoutSecs)*time.Second)

	// Handle interrupt signals; pending batches are flushed with closeContext
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// newQueueClient creates a queue client for the configured environment
func newQueueClient(ctx context.Context, cfg *config.Config, validator *schema.Validator) (*queue.Client, error) {
	sqsClient, err := config.NewSQSClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return queue.New(sqsClient, queue.Config{
		Env:             cfg.QueueEnv,
		BatchSize:       cfg.BatchSize,
		MaxReceiveCount: cfg.MaxReceiveCount,
		Logger:          queue.NewZerologLogger(logger.WithQueue(cfg.QueueEnv, queue.QueueName(cfg.QueueEnv))),
		Validator:       validator,
	})
}

// readInput reads a file, or stdin when path is "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return data, errors.Wrap(err, "read stdin")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}
