package models_test

import (
	"errors"
	"fmt"

	"invoicequeue/pkg/models"
	"invoicequeue/pkg/schema"
)

// ExampleInvoice_Set demonstrates type-checked field access by name
func ExampleInvoice_Set() {
	inv := models.NewInvoice()

	if err := inv.Set(models.FieldGrossAmount, 4599); err != nil {
		fmt.Println(err)
	}
	if err := inv.Set(models.FieldGrossAmount, "45.99"); errors.Is(err, models.ErrTypeMismatch) {
		fmt.Println("rejected string amount")
	}

	amount, ok, _ := inv.Get(models.FieldGrossAmount)
	fmt.Println(amount, ok)

	_, ok, _ = inv.Get(models.FieldCurrency)
	fmt.Println(ok)

	// Output:
	// rejected string amount
	// 4599 true
	// false
}

// ExampleLoadInvoiceItemJSON shows that a record is only returned for valid data
func ExampleLoadInvoiceItemJSON() {
	validator := schema.MustNewValidator()

	_, err := models.LoadInvoiceItemJSON([]byte(`{
		"sku": "SWS-PRO-12M",
		"quantity": 0,
		"amount_gross": 0,
		"amount_tax": 0,
		"amount_net": 0,
		"unit_price": 1000,
		"tax_code": "V"
	}`), validator)

	errs, _ := schema.ValidationErrors(err)
	for _, ve := range errs {
		fmt.Printf("%s: %s\n", ve.Field, ve.Constraint)
	}

	// Output:
	// quantity: number_gte
}
