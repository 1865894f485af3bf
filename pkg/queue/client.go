// Package queue delivers invoices to an AWS SQS FIFO queue.
//
// Each environment has a primary queue and a dead letter queue:
//   - InvoiceData-{env}.fifo
//   - InvoiceData-{env}-DeadLetter.fifo
//
// Both are created on first use if the primary queue does not exist. Messages that are received
// more than MaxReceiveCount times without being deleted are moved to the dead letter queue.
//
// Invoices are validated against the invoice schema before anything is sent. They can be sent one
// at a time with SendInvoice, or accumulated with SendInvoiceToBatch and delivered with a single
// SendMessageBatch call once the batch is full. Close flushes any pending batch and must be called
// on every exit path:
//
//	client, err := queue.New(sqsClient, queue.Config{Env: queue.EnvTest})
//	if err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
// Every send outcome is logged with the invoice id, the queue name and a numeric result code.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"invoicequeue/internal/logger"
	"invoicequeue/pkg/models"
	"invoicequeue/pkg/schema"
)

// Queue environments
const (
	EnvTest       = "test"
	EnvProduction = "production"
)

// Result codes included in send log entries.
const (
	ResultCodeSendSuccess        = 1000
	ResultCodeSendException      = 1001
	ResultCodeSendBatchSuccess   = 1002
	ResultCodeSendBatchFailed    = 1003
	ResultCodeSendBatchException = 1004
)

const (
	// MaxBatchSize is the SQS limit on entries per SendMessageBatch call.
	MaxBatchSize = 10

	// DefaultMaxReceiveCount is the number of receives after which a message is moved to the dead
	// letter queue.
	DefaultMaxReceiveCount = 5
)

// Queue attributes, in seconds.
const (
	mainRetentionPeriod       = 345600  // 4 days
	mainVisibilityTimeout     = 60
	deadLetterRetentionPeriod = 1209600 // 14 days, the SQS maximum
	deadLetterVisibility      = 180
	receiveWaitTime           = 20 // long polling
)

// Message attribute names
const (
	AttributeInvoiceSource = "InvoiceSource"
	AttributeInvoiceID     = "InvoiceId"
)

// nonExistentQueueCode is the error code returned by the SQS query protocol for a missing queue.
const nonExistentQueueCode = "AWS.SimpleQueueService.NonExistentQueue"

// SQSAPI is the subset of the SQS client used by Client.
type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
}

// Compile-time check that the SDK client satisfies SQSAPI
var _ SQSAPI = (*sqs.Client)(nil)

// BatchCallback receives the outcome of a SendMessageBatch call: the invoices SQS accepted and the
// invoices it rejected. It is called once per batch call, even when both slices are empty. It must
// not call back into the Client.
type BatchCallback func(successful, failed []*models.Invoice)

// Config holds queue client configuration.
type Config struct {
	// Env selects the queue pair. Must be EnvTest or EnvProduction.
	Env string

	// BatchSize is the number of invoices accumulated before a batch is sent. Values above
	// MaxBatchSize are clamped.
	BatchSize int

	// MaxReceiveCount is the redrive threshold used when creating the primary queue.
	MaxReceiveCount int

	// Logger receives one entry per send outcome. Defaults to the global zerolog logger.
	Logger Logger

	// Validator is used when a send is given no validator. Defaults to the embedded invoice schema.
	Validator *schema.Validator
}

// ConfigDefaults returns the default queue client configuration.
func ConfigDefaults() Config {
	return Config{
		Env:             EnvTest,
		BatchSize:       MaxBatchSize,
		MaxReceiveCount: DefaultMaxReceiveCount,
	}
}

// Client sends invoices to the invoice FIFO queue for one environment.
type Client struct {
	api                 SQSAPI
	cfg                 Config
	logger              Logger
	validator           *schema.Validator
	queueName           string
	deadLetterQueueName string

	urlMu              sync.Mutex
	queueURL           string
	deadLetterQueueURL string

	batchMu sync.Mutex
	batch   *messageBatch
	onBatch BatchCallback
	closed  bool
}

// QueueName returns the primary queue name for env. FIFO queue names must end in ".fifo".
func QueueName(env string) string {
	return "InvoiceData-" + env + ".fifo"
}

// DeadLetterQueueName returns the dead letter queue name for env.
func DeadLetterQueueName(env string) string {
	return "InvoiceData-" + env + "-DeadLetter.fifo"
}

// New creates a queue client. No SQS calls are made until a queue URL is needed.
func New(api SQSAPI, cfg Config) (*Client, error) {
	if api == nil {
		return nil, errors.New("sqs client is required")
	}
	if cfg.Env != EnvTest && cfg.Env != EnvProduction {
		return nil, errors.Wrapf(ErrInvalidEnvironment,
			"'%s'. Valid values are '%s' or '%s'", cfg.Env, EnvTest, EnvProduction)
	}

	// Apply defaults for unset values
	defaults := ConfigDefaults()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.MaxReceiveCount <= 0 {
		cfg.MaxReceiveCount = defaults.MaxReceiveCount
	}
	if cfg.Logger == nil {
		cfg.Logger = NewZerologLogger(logger.WithComponent("sqs-queue"))
	}

	validator := cfg.Validator
	if validator == nil {
		var err error
		if validator, err = schema.NewValidator(); err != nil {
			return nil, err
		}
	}

	return &Client{
		api:                 api,
		cfg:                 cfg,
		logger:              cfg.Logger,
		validator:           validator,
		queueName:           QueueName(cfg.Env),
		deadLetterQueueName: DeadLetterQueueName(cfg.Env),
		batch:               newMessageBatch(cfg.BatchSize),
	}, nil
}

// QueueName returns the name of the primary queue.
func (c *Client) QueueName() string {
	return c.queueName
}

// DeadLetterQueueName returns the name of the dead letter queue.
func (c *Client) DeadLetterQueueName() string {
	return c.deadLetterQueueName
}

// SetOnSendMessageBatchCallback registers fn to receive the outcome of every batch send.
func (c *Client) SetOnSendMessageBatchCallback(fn BatchCallback) *Client {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	c.onBatch = fn
	return c
}

// QueueURL returns the primary queue URL, creating the dead letter queue and the primary queue if
// the primary queue does not exist. The URL is cached; once resolved no further SQS calls are made.
// Errors other than "queue does not exist" are returned unchanged.
func (c *Client) QueueURL(ctx context.Context) (string, error) {
	c.urlMu.Lock()
	defer c.urlMu.Unlock()

	if c.queueURL != "" {
		return c.queueURL, nil
	}

	out, err := c.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(c.queueName),
	})
	if err == nil {
		c.queueURL = aws.ToString(out.QueueUrl)
		return c.queueURL, nil
	}
	if !isNonExistentQueue(err) {
		return "", err
	}

	// The dead letter queue must exist before the primary queue's redrive policy can reference it.
	deadLetterURL, err := c.createQueue(ctx, c.deadLetterQueueName, deadLetterQueueAttributes())
	if err != nil {
		return "", err
	}
	c.deadLetterQueueURL = deadLetterURL

	arn, err := c.queueARN(ctx, deadLetterURL)
	if err != nil {
		return "", err
	}

	attributes, err := mainQueueAttributes(arn, c.cfg.MaxReceiveCount)
	if err != nil {
		return "", err
	}

	queueURL, err := c.createQueue(ctx, c.queueName, attributes)
	if err != nil {
		return "", err
	}
	c.queueURL = queueURL
	return c.queueURL, nil
}

// DeadLetterQueueURL returns the dead letter queue URL, creating the queue if it does not exist.
func (c *Client) DeadLetterQueueURL(ctx context.Context) (string, error) {
	c.urlMu.Lock()
	defer c.urlMu.Unlock()

	if c.deadLetterQueueURL != "" {
		return c.deadLetterQueueURL, nil
	}

	out, err := c.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(c.deadLetterQueueName),
	})
	if err == nil {
		c.deadLetterQueueURL = aws.ToString(out.QueueUrl)
		return c.deadLetterQueueURL, nil
	}
	if !isNonExistentQueue(err) {
		return "", err
	}

	url, err := c.createQueue(ctx, c.deadLetterQueueName, deadLetterQueueAttributes())
	if err != nil {
		return "", err
	}
	c.deadLetterQueueURL = url
	return c.deadLetterQueueURL, nil
}

// SendInvoice validates invoice and sends it as a single message, returning the SQS message id.
// A nil checker uses the client's validator. Validation failures return a *schema.InvalidDataError
// before any SQS call; transport failures are logged and returned as a *SendError.
func (c *Client) SendInvoice(ctx context.Context, invoice *models.Invoice, checker models.Checker) (string, error) {
	if c.isClosed() {
		return "", ErrClosed
	}
	if err := c.check(invoice, checker); err != nil {
		return "", err
	}

	body, err := messageBody(invoice)
	if err != nil {
		return "", err
	}

	var out *sqs.SendMessageOutput
	queueURL, err := c.QueueURL(ctx)
	if err == nil {
		out, err = c.api.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:               aws.String(queueURL),
			MessageBody:            aws.String(body),
			MessageAttributes:      messageAttributes(invoice),
			MessageDeduplicationId: aws.String(invoice.GetInvoiceID()),
			MessageGroupId:         aws.String(invoice.GetSource()),
		})
	}
	if err != nil {
		c.logSendResult(LevelAlert, ResultCodeSendException, invoice, "Send failure", map[string]any{
			"caller":    "SendInvoice",
			"aws_error": errorDetail(err),
		})
		return "", NewSendError(c.queueName, err)
	}

	messageID := aws.ToString(out.MessageId)
	c.logSendResult(LevelInfo, ResultCodeSendSuccess, invoice, "Send success", map[string]any{
		"caller":         "SendInvoice",
		"sqs_message_id": messageID,
	})
	return messageID, nil
}

// SendInvoiceToBatch validates invoice and adds it to the pending batch. If the batch is already
// full it is sent first; if that send fails the invoice is not added and the error is returned.
// A nil checker uses the client's validator.
func (c *Client) SendInvoiceToBatch(ctx context.Context, invoice *models.Invoice, checker models.Checker) (*Client, error) {
	if err := c.check(invoice, checker); err != nil {
		return c, err
	}

	invoiceID := invoice.GetInvoiceID()
	if invoiceID == "" {
		return c, ErrMissingInvoiceID
	}

	body, err := messageBody(invoice)
	if err != nil {
		return c, err
	}
	entry := types.SendMessageBatchRequestEntry{
		Id:                     aws.String(invoiceID),
		MessageBody:            aws.String(body),
		MessageAttributes:      messageAttributes(invoice),
		MessageDeduplicationId: aws.String(invoiceID),
		MessageGroupId:         aws.String(invoice.GetSource()),
	}

	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	if c.closed {
		return c, ErrClosed
	}
	if c.batch.contains(invoiceID) {
		return c, errors.Wrapf(ErrDuplicateBatchEntry, "invoice id %q", invoiceID)
	}
	if c.batch.full() {
		if err := c.flushLocked(ctx); err != nil {
			return c, err
		}
	}

	c.batch.add(invoice, entry)
	return c, nil
}

// Flush sends the pending batch now. It is a no-op if the batch is empty.
func (c *Client) Flush(ctx context.Context) error {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	return c.flushLocked(ctx)
}

// PendingCount returns the number of invoices waiting in the batch.
func (c *Client) PendingCount() int {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	return c.batch.len()
}

// Close sends any pending batch and closes the client. Subsequent sends return ErrClosed and
// subsequent calls to Close do nothing.
func (c *Client) Close(ctx context.Context) error {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.flushLocked(ctx)
}

func (c *Client) isClosed() bool {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()

	return c.closed
}

// flushLocked sends the batch with a single SendMessageBatch call. The batch is replaced before the
// call so that it is empty afterwards whatever the outcome; a failed batch is never resent.
func (c *Client) flushLocked(ctx context.Context) error {
	if c.batch.len() == 0 {
		return nil
	}
	batch := c.batch
	c.batch = newMessageBatch(c.cfg.BatchSize)

	var out *sqs.SendMessageBatchOutput
	queueURL, err := c.QueueURL(ctx)
	if err == nil {
		out, err = c.api.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(queueURL),
			Entries:  batch.entries,
		})
	}
	if err != nil {
		// The entire batch failed
		detail := errorDetail(err)
		for _, invoice := range batch.ordered() {
			c.logSendResult(LevelAlert, ResultCodeSendBatchException, invoice, "Batch send failure", map[string]any{
				"caller":    "Flush",
				"aws_error": detail,
			})
		}
		return NewSendError(c.queueName, err)
	}

	successful := make([]*models.Invoice, 0, len(out.Successful))
	for _, result := range out.Successful {
		invoice, ok := batch.invoice(aws.ToString(result.Id))
		if !ok {
			c.logUnknownEntry(aws.ToString(result.Id))
			continue
		}
		successful = append(successful, invoice)
		c.logSendResult(LevelInfo, ResultCodeSendBatchSuccess, invoice, "Batch send success", map[string]any{
			"caller":         "Flush",
			"sqs_message_id": aws.ToString(result.MessageId),
		})
	}

	failed := make([]*models.Invoice, 0, len(out.Failed))
	for _, result := range out.Failed {
		invoice, ok := batch.invoice(aws.ToString(result.Id))
		if !ok {
			c.logUnknownEntry(aws.ToString(result.Id))
			continue
		}
		failed = append(failed, invoice)
		c.logSendResult(LevelAlert, ResultCodeSendBatchFailed, invoice, "Batch send failure", map[string]any{
			"caller": "Flush",
			"aws_failed_result": map[string]any{
				"id":           aws.ToString(result.Id),
				"code":         aws.ToString(result.Code),
				"message":      aws.ToString(result.Message),
				"sender_fault": result.SenderFault,
			},
		})
	}

	if c.onBatch != nil {
		c.onBatch(successful, failed)
	}
	return nil
}

func (c *Client) check(invoice *models.Invoice, checker models.Checker) error {
	if invoice == nil {
		return errors.New("invoice is required")
	}
	if checker == nil {
		checker = c.validator
	}
	return checker.Check(invoice.Data(), schema.DefinitionRoot)
}

func (c *Client) createQueue(ctx context.Context, name string, attributes map[string]string) (string, error) {
	out, err := c.api.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName:  aws.String(name),
		Attributes: attributes,
	})
	if err != nil {
		return "", err
	}

	url := aws.ToString(out.QueueUrl)
	c.logger.Log(LevelInfo, "Created SQS queue", map[string]any{
		"queue_name":   c.queueName,
		"created_name": name,
		"queue_url":    url,
	})
	return url, nil
}

func (c *Client) queueARN(ctx context.Context, queueURL string) (string, error) {
	out, err := c.api.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", err
	}

	arn := out.Attributes[string(types.QueueAttributeNameQueueArn)]
	if arn == "" {
		return "", errors.Newf("queue %s returned no QueueArn attribute", queueURL)
	}
	return arn, nil
}

func (c *Client) logSendResult(level Level, resultCode int, invoice *models.Invoice, msg string, fields map[string]any) {
	invoiceID := invoice.GetInvoiceID()
	c.logger.Log(level, fmt.Sprintf("[%s] - SQS message - %s", invoiceID, msg), lo.Assign(
		map[string]any{
			"result_code": resultCode,
			"invoice_id":  invoiceID,
		},
		fields,
		map[string]any{"queue_name": c.queueName},
	))
}

func (c *Client) logUnknownEntry(id string) {
	c.logger.Log(LevelWarning, "SQS batch result references an unknown entry id", map[string]any{
		"queue_name": c.queueName,
		"entry_id":   id,
	})
}

func messageBody(invoice *models.Invoice) (string, error) {
	body, err := json.Marshal(invoice.Data())
	if err != nil {
		return "", errors.Wrap(err, "encode invoice message body")
	}
	return string(body), nil
}

func messageAttributes(invoice *models.Invoice) map[string]types.MessageAttributeValue {
	return map[string]types.MessageAttributeValue{
		AttributeInvoiceSource: {
			DataType:    aws.String("String"),
			StringValue: aws.String(invoice.GetSource()),
		},
		AttributeInvoiceID: {
			DataType:    aws.String("String"),
			StringValue: aws.String(invoice.GetInvoiceID()),
		},
	}
}

func deadLetterQueueAttributes() map[string]string {
	return map[string]string{
		string(types.QueueAttributeNameMessageRetentionPeriod):        strconv.Itoa(deadLetterRetentionPeriod),
		string(types.QueueAttributeNameVisibilityTimeout):             strconv.Itoa(deadLetterVisibility),
		string(types.QueueAttributeNameReceiveMessageWaitTimeSeconds): strconv.Itoa(receiveWaitTime),
		string(types.QueueAttributeNameFifoQueue):                     "true",
	}
}

// redrivePolicy is the JSON value of the RedrivePolicy queue attribute.
type redrivePolicy struct {
	DeadLetterTargetArn string `json:"deadLetterTargetArn"`
	MaxReceiveCount     int    `json:"maxReceiveCount"`
}

func mainQueueAttributes(deadLetterARN string, maxReceiveCount int) (map[string]string, error) {
	policy, err := json.Marshal(redrivePolicy{
		DeadLetterTargetArn: deadLetterARN,
		MaxReceiveCount:     maxReceiveCount,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode redrive policy")
	}

	return map[string]string{
		string(types.QueueAttributeNameMessageRetentionPeriod):        strconv.Itoa(mainRetentionPeriod),
		string(types.QueueAttributeNameVisibilityTimeout):             strconv.Itoa(mainVisibilityTimeout),
		string(types.QueueAttributeNameReceiveMessageWaitTimeSeconds): strconv.Itoa(receiveWaitTime),
		string(types.QueueAttributeNameFifoQueue):                     "true",
		string(types.QueueAttributeNameContentBasedDeduplication):     "true",
		string(types.QueueAttributeNameRedrivePolicy):                 string(policy),
	}, nil
}

func isNonExistentQueue(err error) bool {
	var notFound *types.QueueDoesNotExist
	if errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case nonExistentQueueCode, "QueueDoesNotExist":
			return true
		}
	}
	return false
}
