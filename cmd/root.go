package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoicequeue/internal/config"
	"invoicequeue/internal/logger"
)

var version = "1.0.0"

// appConfig is the configuration loaded by main
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "invoicequeue",
	Short: "Validate invoices and deliver them to the invoice SQS FIFO queue",
	Long: `invoicequeue validates invoice records against the invoice JSON schema and
sends them to the AWS SQS FIFO queue of the selected environment.

The queue pair for an environment is created on first use:
  InvoiceData-{env}.fifo             primary queue
  InvoiceData-{env}-DeadLetter.fifo  dead letter queue

Configuration is read from the environment, an optional .env file and an
optional invoicequeue.yaml in the working directory:
  QUEUE_ENV          test or production (default test)
  AWS_REGION         AWS region (default us-east-1)
  AWS_ENDPOINT_URL   Override the SQS endpoint, e.g. for localstack
  BATCH_SIZE         Invoices per batch send, 1-10 (default 10)
  MAX_RECEIVE_COUNT  Receives before a message is dead-lettered (default 5)`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appConfig == nil {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			appConfig = cfg
		}

		if env, _ := cmd.Flags().GetString("env"); env != "" {
			appConfig.QueueEnv = env
		}

		l := logger.GetLogger().With().Str("command", cmd.CommandPath()).Logger()
		cmd.SetContext(l.WithContext(cmd.Context()))
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command with the loaded configuration. cfg may be nil, in which case the
// configuration is loaded when a command runs. The error is logged and printed before it is returned.
func Execute(cfg *config.Config) error {
	log := logger.WithComponent("cmd")
	appConfig = cfg

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error executing command: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("env", "", "Queue environment, test or production (overrides QUEUE_ENV)")
	rootCmd.PersistentFlags().Int("timeout", 60, "Timeout in seconds for AWS calls")
}
