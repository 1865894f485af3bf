package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the invoice queues",
}

var queueURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the primary and dead letter queue URLs, creating the queues if needed",
	Example: `  # Provision the test queues against localstack
  AWS_ENDPOINT_URL=http://localhost:4566 invoicequeue queue url`,
	Args: cobra.NoArgs,
	RunE: runQueueURL,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueURLCmd)
}

func runQueueURL(cmd *cobra.Command, args []string) error {
	log := commandLogger(cmd, "queue-url")

	ctx, cancel := createCommandContext(cmd, log)
	defer cancel()

	client, err := newQueueClient(ctx, appConfig, nil)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	queueURL, err := client.QueueURL(ctx)
	if err != nil {
		return err
	}
	deadLetterURL, err := client.DeadLetterQueueURL(ctx)
	if err != nil {
		return err
	}

	log.Debug().
		Str("queue_url", queueURL).
		Str("dead_letter_queue_url", deadLetterURL).
		Msg("Resolved queue URLs")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\t%s\n", client.QueueName(), queueURL)
	fmt.Fprintf(out, "%s\t%s\n", client.DeadLetterQueueName(), deadLetterURL)
	return nil
}
