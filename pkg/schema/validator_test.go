package schema_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicequeue/internal/testutil"
	"invoicequeue/pkg/schema"
)

func fields(errs []schema.ValidationError) []string {
	return lo.Map(errs, func(ve schema.ValidationError, _ int) string { return ve.Field })
}

func TestValidateFixtures(t *testing.T) {
	v := schema.MustNewValidator()

	tests := []struct {
		name       string
		definition string
		value      any
		want       bool
	}{
		{"complete invoice", schema.DefinitionRoot, testutil.ValidInvoiceData(), true},
		{"billing address", schema.DefinitionBillingAddress, testutil.ValidBillingAddressData(), true},
		{"line item", schema.DefinitionLineItem, testutil.ValidLineItemData(), true},
		{"empty invoice", schema.DefinitionRoot, map[string]any{}, false},
		{"line item as invoice", schema.DefinitionRoot, testutil.ValidLineItemData(), false},
		{"invoice as line item", schema.DefinitionLineItem, testutil.ValidInvoiceData(), false},
		{"string instead of object", schema.DefinitionBillingAddress, "Auckland", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := v.Validate(tt.value, tt.definition)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			if tt.want {
				assert.Empty(t, v.Errors(tt.definition))
			} else {
				assert.NotEmpty(t, v.Errors(tt.definition))
			}
		})
	}
}

func TestValidateLineItemConstraints(t *testing.T) {
	v := schema.MustNewValidator()

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"zero quantity", func(d map[string]any) { d["quantity"] = 0 }, "quantity"},
		{"fractional amount", func(d map[string]any) { d["amount_net"] = 19.99 }, "amount_net"},
		{"unknown tax code", func(d map[string]any) { d["tax_code"] = "X" }, "tax_code"},
		{"missing sku", func(d map[string]any) { delete(d, "sku") }, "sku"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testutil.ValidLineItemData()
			tt.mutate(data)

			ok, err := v.Validate(data, schema.DefinitionLineItem)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Contains(t, fields(v.Errors(schema.DefinitionLineItem)), tt.field)
		})
	}
}

func TestRequiredErrorsReferenceMissingProperty(t *testing.T) {
	v := schema.MustNewValidator()

	data := testutil.ValidInvoiceData()
	delete(data, "currency")
	delete(data["billing_address"].(map[string]any), "city")

	ok, err := v.Validate(data, schema.DefinitionRoot)
	require.NoError(t, err)
	require.False(t, ok)

	errs := v.Errors(schema.DefinitionRoot)
	assert.ElementsMatch(t, []string{"currency", "billing_address.city"}, fields(errs))
	for _, ve := range errs {
		assert.Equal(t, "required", ve.Constraint)
		assert.NotEmpty(t, ve.Message)
	}
}

func TestValidateInvoiceConstraints(t *testing.T) {
	v := schema.MustNewValidator()

	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{"unknown source", func(d map[string]any) { d["source"] = "Shop" }, "source"},
		{"unknown currency", func(d map[string]any) { d["currency"] = "GBP" }, "currency"},
		{"malformed date", func(d map[string]any) { d["invoice_date"] = "yesterday" }, "invoice_date"},
		{"string amount", func(d map[string]any) { d["gross_amount"] = "23.00" }, "gross_amount"},
		{"no items", func(d map[string]any) { d["items"] = []any{} }, "items"},
		{"three letter country", func(d map[string]any) {
			d["billing_address"].(map[string]any)["country_iso"] = "NZL"
		}, "billing_address.country_iso"},
		{"invalid nested item", func(d map[string]any) {
			item := testutil.ValidLineItemData()
			item["quantity"] = 0
			d["items"] = []any{testutil.ValidLineItemData(), item}
		}, "items.1.quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := testutil.ValidInvoiceData()
			tt.mutate(data)

			ok, err := v.Validate(data, schema.DefinitionRoot)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Contains(t, fields(v.Errors(schema.DefinitionRoot)), tt.field)
		})
	}
}

func TestErrorsAreScopedPerDefinition(t *testing.T) {
	v := schema.MustNewValidator()

	assert.Nil(t, v.Errors(schema.DefinitionLineItem), "never validated")

	ok, err := v.Validate(map[string]any{}, schema.DefinitionLineItem)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = v.Validate(testutil.ValidInvoiceData(), schema.DefinitionRoot)
	require.NoError(t, err)
	require.True(t, ok)

	assert.NotEmpty(t, v.Errors(schema.DefinitionLineItem))
	assert.Empty(t, v.Errors(schema.DefinitionRoot))

	// A later passing validation clears the errors for that definition
	ok, err = v.Validate(testutil.ValidLineItemData(), schema.DefinitionLineItem)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, v.Errors(schema.DefinitionLineItem))
}

func TestValidateText(t *testing.T) {
	v := schema.MustNewValidator()

	ok, err := v.ValidateText([]byte(`{"company_name": "Acme"}`), schema.DefinitionBillingAddress)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, v.Errors(schema.DefinitionBillingAddress), 8)

	_, err = v.ValidateText([]byte(`{"company_name": `), schema.DefinitionBillingAddress)
	assert.ErrorIs(t, err, schema.ErrDecode)
}

func TestValidateUnencodableValue(t *testing.T) {
	v := schema.MustNewValidator()

	_, err := v.Validate(map[string]any{"quantity": make(chan int)}, schema.DefinitionLineItem)
	assert.ErrorIs(t, err, schema.ErrEncode)
}

func TestUnknownDefinition(t *testing.T) {
	v := schema.MustNewValidator()

	_, err := v.Validate(map[string]any{}, "shipping_address")
	assert.ErrorIs(t, err, schema.ErrUnknownDefinition)
	assert.Nil(t, v.Errors("shipping_address"))
}

func TestCheck(t *testing.T) {
	v := schema.MustNewValidator()

	require.NoError(t, v.Check(testutil.ValidLineItemData(), schema.DefinitionLineItem))

	data := testutil.ValidLineItemData()
	data["quantity"] = 0
	err := v.Check(data, schema.DefinitionLineItem)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrValidation)

	var invalid *schema.InvalidDataError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, schema.DefinitionLineItem, invalid.Definition)
	assert.Equal(t, []string{"quantity"}, fields(invalid.Errors))
	assert.Contains(t, err.Error(), "definition 'line_item'")
	assert.Contains(t, err.Error(), " * Property: quantity")

	errs, ok := schema.ValidationErrors(err)
	assert.True(t, ok)
	assert.Equal(t, invalid.Errors, errs)

	err = v.CheckText([]byte(`not json`), schema.DefinitionRoot)
	assert.ErrorIs(t, err, schema.ErrDecode)
}

func TestNewValidatorFromJSON(t *testing.T) {
	_, err := schema.NewValidatorFromJSON([]byte(`{`))
	assert.ErrorIs(t, err, schema.ErrInvalidSchema)

	v, err := schema.NewValidatorFromJSON([]byte(`{
		"type": "object",
		"properties": {"name": {"type": "string"}},
		"required": ["name"]
	}`))
	require.NoError(t, err)

	ok, err := v.Validate(map[string]any{"name": "x"}, schema.DefinitionRoot)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = v.Validate(map[string]any{}, schema.DefinitionLineItem)
	assert.ErrorIs(t, err, schema.ErrUnknownDefinition)
}

func TestEveryMissingRequiredFieldIsReported(t *testing.T) {
	v := schema.MustNewValidator()

	for key := range testutil.ValidInvoiceData() {
		t.Run(key, func(t *testing.T) {
			data := testutil.ValidInvoiceData()
			delete(data, key)

			ok, err := v.Validate(data, schema.DefinitionRoot)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Contains(t, fields(v.Errors(schema.DefinitionRoot)), key)
		})
	}

	for key := range testutil.ValidBillingAddressData() {
		t.Run("billing_address."+key, func(t *testing.T) {
			data := testutil.ValidInvoiceData()
			delete(data["billing_address"].(map[string]any), key)

			ok, err := v.Validate(data, schema.DefinitionRoot)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Contains(t, fields(v.Errors(schema.DefinitionRoot)), "billing_address."+key)
		})
	}

	for key := range testutil.ValidLineItemData() {
		t.Run("line_item."+key, func(t *testing.T) {
			data := testutil.ValidLineItemData()
			delete(data, key)

			ok, err := v.Validate(data, schema.DefinitionLineItem)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Contains(t, fields(v.Errors(schema.DefinitionLineItem)), key)
		})
	}
}

func TestUndeclaredPropertiesAreRejected(t *testing.T) {
	v := schema.MustNewValidator()

	item := testutil.ValidLineItemData()
	item["discount_code"] = "SPRING"

	address := testutil.ValidBillingAddressData()
	address["vat_number"] = "NZ123"

	invoice := testutil.ValidInvoiceData()
	invoice["notes"] = "leave at door"

	nested := testutil.ValidInvoiceData()
	nested["items"] = []any{item}

	tests := []struct {
		name       string
		definition string
		value      map[string]any
		field      string
	}{
		{"line item", schema.DefinitionLineItem, item, "discount_code"},
		{"billing address", schema.DefinitionBillingAddress, address, "vat_number"},
		{"invoice", schema.DefinitionRoot, invoice, "notes"},
		{"item inside invoice", schema.DefinitionRoot, nested, "items.0.discount_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := v.Validate(tt.value, tt.definition)
			require.NoError(t, err)
			assert.False(t, ok)

			errs := v.Errors(tt.definition)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, "additional_property_not_allowed", errs[0].Constraint)
		})
	}
}
