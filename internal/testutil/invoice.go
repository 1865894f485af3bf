// Package testutil provides fixtures and fakes shared by package tests.
package testutil

import (
	"invoicequeue/pkg/models"
	"invoicequeue/pkg/schema"
)

// ValidBillingAddressData returns a billing address conforming to the "billing_address" definition.
func ValidBillingAddressData() map[string]any {
	return map[string]any{
		"company_name": "Acme Widgets Ltd",
		"person_name":  "Jane Doe",
		"address_1":    "Level 3",
		"address_2":    "12 Queen Street",
		"address_3":    "",
		"city":         "Auckland",
		"region":       "Auckland",
		"post_code":    "1010",
		"country_iso":  "NZ",
	}
}

// ValidLineItemData returns a line item conforming to the "line_item" definition.
func ValidLineItemData() map[string]any {
	return map[string]any{
		"sku":          "SWS-PRO-12M",
		"quantity":     2,
		"amount_gross": 2300,
		"amount_tax":   300,
		"amount_net":   2000,
		"unit_price":   1000,
		"tax_code":     models.TaxCodeTaxed,
	}
}

// ValidInvoiceData returns a complete invoice conforming to the root schema.
func ValidInvoiceData() map[string]any {
	return map[string]any{
		"source":                                   models.SourceSwsEc,
		"invoice_id":                               "INV-0001",
		"invoice_date":                             "2024-05-01T10:15:00Z",
		"order_id":                                 "ORD-0001",
		"user_id":                                  "USR-0001",
		"transaction_reference":                    "TXN-0001",
		"payment_gateway":                          models.PaymentGatewayBraintree,
		"payment_instrument":                       models.PaymentInstrumentCreditCard,
		"payment_instrument_transaction_reference": "PI-TXN-0001",
		"moneyworks_debtor_code":                   models.DebtorCodeWEBC001,
		"subscription_id":                          "SUB-0001",
		"currency":                                 models.CurrencyNZD,
		"gross_amount":                             2300,
		"billing_address":                          ValidBillingAddressData(),
		"items":                                    []any{ValidLineItemData()},
	}
}

// ValidInvoice returns a loaded invoice with the given id. It panics if the fixture is invalid.
func ValidInvoice(invoiceID string) *models.Invoice {
	data := ValidInvoiceData()
	data["invoice_id"] = invoiceID

	invoice, err := models.LoadInvoice(data, schema.MustNewValidator())
	if err != nil {
		panic(err)
	}
	return invoice
}
