package queue

import (
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"invoicequeue/pkg/models"
)

// messageBatch accumulates invoices for a single SendMessageBatch call. Entries keep the order in
// which they were added; invoices are indexed by invoice id, which is also the batch entry id.
type messageBatch struct {
	size     int
	invoices map[string]*models.Invoice
	order    []string
	entries  []types.SendMessageBatchRequestEntry
}

func newMessageBatch(size int) *messageBatch {
	return &messageBatch{
		size:     size,
		invoices: make(map[string]*models.Invoice, size),
	}
}

func (b *messageBatch) add(invoice *models.Invoice, entry types.SendMessageBatchRequestEntry) {
	id := invoice.GetInvoiceID()
	b.invoices[id] = invoice
	b.order = append(b.order, id)
	b.entries = append(b.entries, entry)
}

func (b *messageBatch) contains(invoiceID string) bool {
	_, ok := b.invoices[invoiceID]
	return ok
}

func (b *messageBatch) invoice(id string) (*models.Invoice, bool) {
	inv, ok := b.invoices[id]
	return inv, ok
}

// ordered returns the batched invoices in the order they were added.
func (b *messageBatch) ordered() []*models.Invoice {
	out := make([]*models.Invoice, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.invoices[id])
	}
	return out
}

func (b *messageBatch) len() int {
	return len(b.entries)
}

func (b *messageBatch) full() bool {
	return len(b.entries) >= b.size
}
