package testutil

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	fakeAccountURL = "https://sqs.us-east-1.amazonaws.com/000000000000/"
	fakeARNPrefix  = "arn:aws:sqs:us-east-1:000000000000:"
)

// FakeSQS is an in-memory SQS API that records every call. Queues that have not been created or
// registered with WithQueue do not exist.
type FakeSQS struct {
	mu     sync.Mutex
	queues map[string]string
	nextID int

	// Calls lists operations in call order as "Operation queue-name".
	Calls []string

	CreatedQueues []*sqs.CreateQueueInput
	Messages      []*sqs.SendMessageInput
	Batches       []*sqs.SendMessageBatchInput

	// Injected failures
	GetQueueURLErr      error
	CreateQueueErr      error
	SendMessageErr      error
	SendMessageBatchErr error

	// FailEntryIDs lists batch entry ids that are reported in SendMessageBatchOutput.Failed.
	FailEntryIDs map[string]bool
}

// NewFakeSQS returns a FakeSQS with no queues.
func NewFakeSQS() *FakeSQS {
	return &FakeSQS{
		queues:       make(map[string]string),
		FailEntryIDs: make(map[string]bool),
	}
}

// WithQueue registers an existing queue.
func (f *FakeSQS) WithQueue(name string) *FakeSQS {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queues[name] = QueueURL(name)
	return f
}

// QueueURL returns the URL FakeSQS assigns to a queue name.
func QueueURL(name string) string {
	return fakeAccountURL + name
}

// QueueARN returns the ARN FakeSQS reports for a queue name.
func QueueARN(name string) string {
	return fakeARNPrefix + name
}

// CallCount returns the number of calls made so far.
func (f *FakeSQS) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.Calls)
}

// BatchCount returns the number of SendMessageBatch calls made so far.
func (f *FakeSQS) BatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.Batches)
}

func (f *FakeSQS) record(op, queue string) {
	f.Calls = append(f.Calls, op+" "+queue)
}

func (f *FakeSQS) GetQueueUrl(_ context.Context, params *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.QueueName)
	f.record("GetQueueUrl", name)

	if f.GetQueueURLErr != nil {
		return nil, f.GetQueueURLErr
	}
	url, ok := f.queues[name]
	if !ok {
		return nil, &types.QueueDoesNotExist{Message: aws.String("The specified queue does not exist.")}
	}
	return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(url)}, nil
}

func (f *FakeSQS) CreateQueue(_ context.Context, params *sqs.CreateQueueInput, _ ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.QueueName)
	f.record("CreateQueue", name)

	if f.CreateQueueErr != nil {
		return nil, f.CreateQueueErr
	}
	f.CreatedQueues = append(f.CreatedQueues, params)
	f.queues[name] = QueueURL(name)
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(f.queues[name])}, nil
}

func (f *FakeSQS) GetQueueAttributes(_ context.Context, params *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := path.Base(aws.ToString(params.QueueUrl))
	f.record("GetQueueAttributes", name)

	return &sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			string(types.QueueAttributeNameQueueArn): QueueARN(name),
		},
	}, nil
}

func (f *FakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("SendMessage", path.Base(aws.ToString(params.QueueUrl)))
	f.Messages = append(f.Messages, params)

	if f.SendMessageErr != nil {
		return nil, f.SendMessageErr
	}
	f.nextID++
	return &sqs.SendMessageOutput{MessageId: aws.String(fmt.Sprintf("msg-%d", f.nextID))}, nil
}

func (f *FakeSQS) SendMessageBatch(_ context.Context, params *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("SendMessageBatch", path.Base(aws.ToString(params.QueueUrl)))
	f.Batches = append(f.Batches, params)

	if f.SendMessageBatchErr != nil {
		return nil, f.SendMessageBatchErr
	}

	out := &sqs.SendMessageBatchOutput{}
	for _, entry := range params.Entries {
		if f.FailEntryIDs[aws.ToString(entry.Id)] {
			out.Failed = append(out.Failed, types.BatchResultErrorEntry{
				Id:          entry.Id,
				Code:        aws.String("InvalidParameterValue"),
				Message:     aws.String("Message rejected"),
				SenderFault: true,
			})
			continue
		}
		f.nextID++
		out.Successful = append(out.Successful, types.SendMessageBatchResultEntry{
			Id:        entry.Id,
			MessageId: aws.String(fmt.Sprintf("msg-%d", f.nextID)),
		})
	}
	return out, nil
}
