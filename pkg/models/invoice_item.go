package models

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"invoicequeue/pkg/schema"
)

// InvoiceItem field names accepted by Get and Set.
const (
	FieldSku         = "sku"
	FieldQuantity    = "quantity"
	FieldAmountGross = "amount_gross"
	FieldAmountTax   = "amount_tax"
	FieldAmountNet   = "amount_net"
	FieldUnitPrice   = "unit_price"
	FieldTaxCode     = "tax_code"
)

// InvoiceItem is a single line item of an Invoice. Amounts are in minor currency units:
//   - AmountGross: (unit price + unit tax) * quantity
//   - AmountTax: unit tax * quantity
//   - AmountNet: unit price * quantity
type InvoiceItem struct {
	Sku         *string `json:"sku,omitempty"`
	Quantity    *int64  `json:"quantity,omitempty"`
	AmountGross *int64  `json:"amount_gross,omitempty"`
	AmountTax   *int64  `json:"amount_tax,omitempty"`
	AmountNet   *int64  `json:"amount_net,omitempty"`
	UnitPrice   *int64  `json:"unit_price,omitempty"`
	TaxCode     *string `json:"tax_code,omitempty"`
}

func itemString(name string, ref func(*InvoiceItem) **string) field[InvoiceItem] {
	return field[InvoiceItem]{name: name, kind: FieldTypeString, ref: func(it *InvoiceItem, _ bool) any { return ref(it) }}
}

func itemInteger(name string, ref func(*InvoiceItem) **int64) field[InvoiceItem] {
	return field[InvoiceItem]{name: name, kind: FieldTypeInteger, ref: func(it *InvoiceItem, _ bool) any { return ref(it) }}
}

var invoiceItemFields = []field[InvoiceItem]{
	itemString(FieldSku, func(it *InvoiceItem) **string { return &it.Sku }),
	itemInteger(FieldQuantity, func(it *InvoiceItem) **int64 { return &it.Quantity }),
	itemInteger(FieldAmountGross, func(it *InvoiceItem) **int64 { return &it.AmountGross }),
	itemInteger(FieldAmountTax, func(it *InvoiceItem) **int64 { return &it.AmountTax }),
	itemInteger(FieldAmountNet, func(it *InvoiceItem) **int64 { return &it.AmountNet }),
	itemInteger(FieldUnitPrice, func(it *InvoiceItem) **int64 { return &it.UnitPrice }),
	itemString(FieldTaxCode, func(it *InvoiceItem) **string { return &it.TaxCode }),
}

// NewInvoiceItem returns an empty InvoiceItem with every field unset.
func NewInvoiceItem() *InvoiceItem {
	return &InvoiceItem{}
}

// LoadInvoiceItem validates data against the "line_item" schema definition and returns a populated
// InvoiceItem. No InvoiceItem is returned if validation fails.
func LoadInvoiceItem(data map[string]any, checker Checker) (*InvoiceItem, error) {
	if err := checker.Check(data, schema.DefinitionLineItem); err != nil {
		return nil, err
	}
	text, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "load invoice item")
	}
	return decodeInvoiceItem(text)
}

// LoadInvoiceItemJSON is the JSON text form of LoadInvoiceItem.
func LoadInvoiceItemJSON(text []byte, checker Checker) (*InvoiceItem, error) {
	if err := checker.CheckText(text, schema.DefinitionLineItem); err != nil {
		return nil, err
	}
	return decodeInvoiceItem(text)
}

func decodeInvoiceItem(text []byte) (*InvoiceItem, error) {
	item := NewInvoiceItem()
	if err := decodeRecord(text, item); err != nil {
		return nil, errors.Wrap(err, "decode invoice item")
	}
	return item, nil
}

// InvoiceItemFieldTypes returns the declared type of every InvoiceItem field.
func InvoiceItemFieldTypes() map[string]FieldType {
	return fieldTypes(invoiceItemFields)
}

// Get returns the value of the named field. ok is false if the field has never been set.
func (it *InvoiceItem) Get(name string) (value any, ok bool, err error) {
	return getField(it, invoiceItemFields, name)
}

// Set sets the named field. The value's type must match the declared field type.
func (it *InvoiceItem) Set(name string, value any) error {
	return setField(it, invoiceItemFields, name, value)
}

// Data returns the line item as a structured value conforming to the "line_item" definition.
func (it *InvoiceItem) Data() map[string]any {
	data := make(map[string]any, len(invoiceItemFields))
	collect(it, invoiceItemFields, data)
	return data
}

// MarshalJSON encodes the line item as its Data.
func (it *InvoiceItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(it.Data())
}
