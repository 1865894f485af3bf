package queue

import (
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
)

// Common queue errors
var (
	// ErrSend is matched by every SendError.
	ErrSend = errors.New("error sending message to SQS queue")

	// ErrInvalidEnvironment is returned by New when the queue environment is not "test" or "production".
	ErrInvalidEnvironment = errors.New("invalid queue environment")

	// ErrClosed is returned when sending through a Client after Close.
	ErrClosed = errors.New("queue client is closed")

	// ErrDuplicateBatchEntry is returned when an invoice id is already present in the pending batch.
	ErrDuplicateBatchEntry = errors.New("invoice already in batch")

	// ErrMissingInvoiceID is returned when an invoice without an id is queued.
	ErrMissingInvoiceID = errors.New("invoice has no invoice id")
)

// SendError wraps a transport failure from a single or batch send.
type SendError struct {
	// QueueName is the name of the queue the message was sent to.
	QueueName string

	// Err is the error returned by the SQS client.
	Err error
}

// Error implements the error interface. The message lists the Go error type, its message and, for
// AWS API errors, the error message, code and fault.
func (e *SendError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error sending message to SQS queue `%s`.\n", e.QueueName)
	b.WriteString("The AWS SDK returned an error with the following details:\n")
	fmt.Fprintf(&b, "Error type: %T\n", e.Err)
	fmt.Fprintf(&b, "Error message: %v", e.Err)

	var apiErr smithy.APIError
	if errors.As(e.Err, &apiErr) {
		if msg := apiErr.ErrorMessage(); msg != "" {
			fmt.Fprintf(&b, "\nAWS error message: %s", msg)
		}
		if fault := apiErr.ErrorFault(); fault != smithy.FaultUnknown {
			fmt.Fprintf(&b, "\nAWS error fault: %s", fault)
		}
		if code := apiErr.ErrorCode(); code != "" {
			fmt.Fprintf(&b, "\nAWS error code: %s", code)
		}
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSend.
func (e *SendError) Is(target error) bool {
	return target == ErrSend
}

// NewSendError creates a SendError.
func NewSendError(queueName string, err error) *SendError {
	return &SendError{QueueName: queueName, Err: err}
}

// errorDetail is the structured form of a transport error included in log entries.
func errorDetail(err error) map[string]any {
	extra := map[string]any{
		"type": fmt.Sprintf("%T", err),
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		extra["code"] = apiErr.ErrorCode()
		extra["message"] = apiErr.ErrorMessage()
		extra["fault"] = apiErr.ErrorFault().String()
	}

	return map[string]any{
		"message": err.Error(),
		"extra":   extra,
	}
}
