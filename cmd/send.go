package cmd

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"invoicequeue/pkg/models"
	"invoicequeue/pkg/queue"
	"invoicequeue/pkg/schema"
)

var sendCmd = &cobra.Command{
	Use:   "send FILE...",
	Short: "Validate invoice files and send them to the invoice queue",
	Long: `Load each file as an invoice JSON document, validate it and send it to the
invoice FIFO queue of the configured environment.

Without --batch every invoice is sent as its own message and the SQS message id
is printed. With --batch invoices are grouped into SendMessageBatch calls of up
to BATCH_SIZE entries and a per-invoice report is printed for every batch.

Files that fail validation are reported and skipped; the command exits with an
error if any invoice could not be loaded or delivered.`,
	Example: `  # Send a single invoice to the test queue
  invoicequeue send invoice.json

  # Send a directory of invoices to production in batches
  invoicequeue send --env production --batch invoices/*.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().Bool("batch", false, "Send invoices with SendMessageBatch")
}

func runSend(cmd *cobra.Command, args []string) (err error) {
	log := commandLogger(cmd, "send")
	batch, _ := cmd.Flags().GetBool("batch")

	ctx, cancel := createCommandContext(cmd, log)
	defer cancel()

	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}

	client, err := newQueueClient(ctx, appConfig, validator)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report := &sendReport{}
	client.SetOnSendMessageBatchCallback(report.batchCallback(out))

	// Close flushes the final partial batch, even after an interrupt canceled ctx
	defer func() {
		closeCtx, closeCancel := closeContext(ctx)
		defer closeCancel()

		if closeErr := client.Close(closeCtx); closeErr != nil && err == nil {
			err = closeErr
		}
		if err == nil && report.failed > 0 {
			err = errors.Newf("%d of %d invoices were not delivered", report.failed, len(args))
		}
	}()

	log.Info().
		Str("queue", client.QueueName()).
		Int("files", len(args)).
		Bool("batch", batch).
		Msg("Sending invoices")

	for _, path := range args {
		invoice, loadErr := loadInvoiceFile(cmd, path, validator)
		if loadErr != nil {
			report.failed++
			fmt.Fprintf(out, "%s: %v\n", path, loadErr)
			continue
		}

		if batch {
			if _, sendErr := client.SendInvoiceToBatch(ctx, invoice, nil); sendErr != nil {
				return sendErr
			}
			continue
		}

		messageID, sendErr := client.SendInvoice(ctx, invoice, nil)
		if sendErr != nil {
			return sendErr
		}
		fmt.Fprintf(out, "%s: sent invoice %s as message %s\n", path, invoice.GetInvoiceID(), messageID)
	}

	return nil
}

func loadInvoiceFile(cmd *cobra.Command, path string, validator *schema.Validator) (*models.Invoice, error) {
	text, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return models.LoadInvoiceJSON(text, validator)
}

// sendReport counts invoices SQS rejected across batches
type sendReport struct {
	failed int
}

func (r *sendReport) batchCallback(out io.Writer) queue.BatchCallback {
	return func(successful, failed []*models.Invoice) {
		for _, invoice := range successful {
			fmt.Fprintf(out, "invoice %s: sent\n", invoice.GetInvoiceID())
		}
		for _, invoice := range failed {
			fmt.Fprintf(out, "invoice %s: rejected by SQS\n", invoice.GetInvoiceID())
		}
		r.failed += len(failed)
	}
}
