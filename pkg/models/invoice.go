package models

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"invoicequeue/pkg/schema"
)

// Invoice sources
const (
	SourceSwsEc  = "SwsEc"
	SourceSwsSub = "SwsSub"
)

// Payment gateways
const (
	PaymentGatewayBraintree = "braintree"
	PaymentGatewayPayPal    = "paypal"
)

// Payment instruments
const (
	PaymentInstrumentCreditCard    = "creditcard"
	PaymentInstrumentPayPalAccount = "paypal_account"
)

// Accounting debtor codes
const (
	DebtorCodeWEBC001 = "WEBC001"
	DebtorCodeWEBC002 = "WEBC002"
	DebtorCodeWEBC003 = "WEBC003"
)

// Currencies
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
	CurrencyAUD = "AUD"
	CurrencyNZD = "NZD"
)

// Tax codes
const (
	TaxCodeTaxed     = "V" // any rate of tax is added
	TaxCodeZeroRated = "Z" // no tax is added
)

// Invoice field names accepted by Get and Set.
const (
	FieldSource                                = "source"
	FieldInvoiceID                             = "invoice_id"
	FieldInvoiceDate                           = "invoice_date"
	FieldOrderID                               = "order_id"
	FieldUserID                                = "user_id"
	FieldTransactionReference                  = "transaction_reference"
	FieldPaymentGateway                        = "payment_gateway"
	FieldPaymentInstrument                     = "payment_instrument"
	FieldPaymentInstrumentTransactionReference = "payment_instrument_transaction_reference"
	FieldMoneyworksDebtorCode                  = "moneyworks_debtor_code"
	FieldSubscriptionID                        = "subscription_id"
	FieldCurrency                              = "currency"
	FieldGrossAmount                           = "gross_amount"
	FieldBillingAddressCompanyName             = "billing_address_company_name"
	FieldBillingAddressPersonName              = "billing_address_person_name"
	FieldBillingAddress1                       = "billing_address_1"
	FieldBillingAddress2                       = "billing_address_2"
	FieldBillingAddress3                       = "billing_address_3"
	FieldBillingAddressCity                    = "billing_address_city"
	FieldBillingAddressRegion                  = "billing_address_region"
	FieldBillingAddressPostCode                = "billing_address_post_code"
	FieldBillingAddressCountryISO              = "billing_address_country_iso"
)

// Invoice is a single billable transaction: header fields, a billing address and one or more line
// items. Amounts are expressed in minor currency units (cents). A nil field is unset.
type Invoice struct {
	Source                                *string `json:"source,omitempty"`
	InvoiceID                             *string `json:"invoice_id,omitempty"`
	InvoiceDate                           *string `json:"invoice_date,omitempty"` // RFC 3339
	OrderID                               *string `json:"order_id,omitempty"`
	UserID                                *string `json:"user_id,omitempty"`
	TransactionReference                  *string `json:"transaction_reference,omitempty"`
	PaymentGateway                        *string `json:"payment_gateway,omitempty"`
	PaymentInstrument                     *string `json:"payment_instrument,omitempty"`
	PaymentInstrumentTransactionReference *string `json:"payment_instrument_transaction_reference,omitempty"`
	MoneyworksDebtorCode                  *string `json:"moneyworks_debtor_code,omitempty"`
	SubscriptionID                        *string `json:"subscription_id,omitempty"`
	Currency                              *string `json:"currency,omitempty"`
	GrossAmount                           *int64  `json:"gross_amount,omitempty"`

	BillingAddress *BillingAddress `json:"billing_address,omitempty"`
	Items          []*InvoiceItem  `json:"items,omitempty"`
}

// BillingAddress is the billing address of an Invoice.
type BillingAddress struct {
	CompanyName *string `json:"company_name,omitempty"`
	PersonName  *string `json:"person_name,omitempty"`
	Address1    *string `json:"address_1,omitempty"`
	Address2    *string `json:"address_2,omitempty"`
	Address3    *string `json:"address_3,omitempty"`
	City        *string `json:"city,omitempty"`
	Region      *string `json:"region,omitempty"`
	PostCode    *string `json:"post_code,omitempty"`
	CountryISO  *string `json:"country_iso,omitempty"`
}

func invoiceString(name string, ref func(*Invoice) **string) field[Invoice] {
	return field[Invoice]{name: name, kind: FieldTypeString, ref: func(i *Invoice, _ bool) any { return ref(i) }}
}

func addressString(name string, ref func(*BillingAddress) **string) field[Invoice] {
	return field[Invoice]{name: name, kind: FieldTypeString, ref: func(i *Invoice, alloc bool) any {
		if i.BillingAddress == nil {
			if !alloc {
				return (**string)(nil)
			}
			i.BillingAddress = &BillingAddress{}
		}
		return ref(i.BillingAddress)
	}}
}

var invoiceFields = []field[Invoice]{
	invoiceString(FieldSource, func(i *Invoice) **string { return &i.Source }),
	invoiceString(FieldInvoiceID, func(i *Invoice) **string { return &i.InvoiceID }),
	invoiceString(FieldInvoiceDate, func(i *Invoice) **string { return &i.InvoiceDate }),
	invoiceString(FieldOrderID, func(i *Invoice) **string { return &i.OrderID }),
	invoiceString(FieldUserID, func(i *Invoice) **string { return &i.UserID }),
	invoiceString(FieldTransactionReference, func(i *Invoice) **string { return &i.TransactionReference }),
	invoiceString(FieldPaymentGateway, func(i *Invoice) **string { return &i.PaymentGateway }),
	invoiceString(FieldPaymentInstrument, func(i *Invoice) **string { return &i.PaymentInstrument }),
	invoiceString(FieldPaymentInstrumentTransactionReference, func(i *Invoice) **string { return &i.PaymentInstrumentTransactionReference }),
	invoiceString(FieldMoneyworksDebtorCode, func(i *Invoice) **string { return &i.MoneyworksDebtorCode }),
	invoiceString(FieldSubscriptionID, func(i *Invoice) **string { return &i.SubscriptionID }),
	invoiceString(FieldCurrency, func(i *Invoice) **string { return &i.Currency }),
	{name: FieldGrossAmount, kind: FieldTypeInteger, ref: func(i *Invoice, _ bool) any { return &i.GrossAmount }},
	addressString(FieldBillingAddressCompanyName, func(a *BillingAddress) **string { return &a.CompanyName }),
	addressString(FieldBillingAddressPersonName, func(a *BillingAddress) **string { return &a.PersonName }),
	addressString(FieldBillingAddress1, func(a *BillingAddress) **string { return &a.Address1 }),
	addressString(FieldBillingAddress2, func(a *BillingAddress) **string { return &a.Address2 }),
	addressString(FieldBillingAddress3, func(a *BillingAddress) **string { return &a.Address3 }),
	addressString(FieldBillingAddressCity, func(a *BillingAddress) **string { return &a.City }),
	addressString(FieldBillingAddressRegion, func(a *BillingAddress) **string { return &a.Region }),
	addressString(FieldBillingAddressPostCode, func(a *BillingAddress) **string { return &a.PostCode }),
	addressString(FieldBillingAddressCountryISO, func(a *BillingAddress) **string { return &a.CountryISO }),
}

// headerFieldCount is the number of leading invoiceFields that live directly on the invoice.
const headerFieldCount = 13

// NewInvoice returns an empty Invoice with every field unset.
func NewInvoice() *Invoice {
	return &Invoice{}
}

// LoadInvoice validates data against the root invoice schema and returns a populated Invoice.
// No Invoice is returned if validation fails.
func LoadInvoice(data map[string]any, checker Checker) (*Invoice, error) {
	if err := checker.Check(data, schema.DefinitionRoot); err != nil {
		return nil, err
	}
	text, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "load invoice")
	}
	return decodeInvoice(text)
}

// LoadInvoiceJSON is the JSON text form of LoadInvoice.
func LoadInvoiceJSON(text []byte, checker Checker) (*Invoice, error) {
	if err := checker.CheckText(text, schema.DefinitionRoot); err != nil {
		return nil, err
	}
	return decodeInvoice(text)
}

func decodeInvoice(text []byte) (*Invoice, error) {
	inv := NewInvoice()
	if err := decodeRecord(text, inv); err != nil {
		return nil, errors.Wrap(err, "decode invoice")
	}
	return inv, nil
}

// InvoiceFieldTypes returns the declared type of every field accepted by Invoice.Get and Invoice.Set.
func InvoiceFieldTypes() map[string]FieldType {
	return fieldTypes(invoiceFields)
}

// Get returns the value of the named field. ok is false if the field has never been set.
func (i *Invoice) Get(name string) (value any, ok bool, err error) {
	return getField(i, invoiceFields, name)
}

// Set sets the named field. The value's type must match the declared field type.
func (i *Invoice) Set(name string, value any) error {
	return setField(i, invoiceFields, name, value)
}

// AddItem attaches a line item to the invoice. A nil item is ignored.
func (i *Invoice) AddItem(item *InvoiceItem) *Invoice {
	if item != nil {
		i.Items = append(i.Items, item)
	}
	return i
}

// GetItems returns the attached line items in the order they were added.
func (i *Invoice) GetItems() []*InvoiceItem {
	return i.Items
}

// GetInvoiceID returns the invoice id, or "" if unset.
func (i *Invoice) GetInvoiceID() string {
	return lo.FromPtr(i.InvoiceID)
}

// GetSource returns the invoice source, or "" if unset.
func (i *Invoice) GetSource() string {
	return lo.FromPtr(i.Source)
}

// GetGrossAmount returns the gross amount in minor units, or 0 if unset.
func (i *Invoice) GetGrossAmount() int64 {
	return lo.FromPtr(i.GrossAmount)
}

// Data returns the complete invoice as a structured value conforming to the invoice schema.
// Unset fields are omitted and integers are int64.
func (i *Invoice) Data() map[string]any {
	data := make(map[string]any)
	collect(i, invoiceFields[:headerFieldCount], data)

	if i.BillingAddress != nil {
		address := make(map[string]any)
		collect(i, invoiceFields[headerFieldCount:], address)
		// Billing fields are keyed by their nested property names.
		nested := make(map[string]any, len(address))
		for name, v := range address {
			nested[billingPropertyName(name)] = v
		}
		data["billing_address"] = nested
	}

	if items := lo.Compact(i.Items); len(items) > 0 {
		data["items"] = lo.Map(items, func(item *InvoiceItem, _ int) any {
			return item.Data()
		})
	}
	return data
}

// MarshalJSON encodes the invoice as its Data.
func (i *Invoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Data())
}

// billingPropertyName maps a flat billing field name to its property within billing_address.
func billingPropertyName(name string) string {
	switch name {
	case FieldBillingAddress1:
		return "address_1"
	case FieldBillingAddress2:
		return "address_2"
	case FieldBillingAddress3:
		return "address_3"
	}
	return name[len("billing_address_"):]
}
