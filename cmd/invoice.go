package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"invoicequeue/pkg/models"
	"invoicequeue/pkg/schema"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Validate and generate invoice documents",
}

var invoiceValidateCmd = &cobra.Command{
	Use:   "validate [file|-]",
	Short: "Validate an invoice JSON document against the invoice schema",
	Long: `Validate a JSON document against the invoice schema and print every violation.

By default the document is validated as a complete invoice. Use --definition
to validate a fragment against one of the named definitions:
  billing_address  a billing address object
  line_item        a single invoice line item`,
	Example: `  # Validate an invoice file
  invoicequeue invoice validate invoice.json

  # Validate a line item read from stdin
  cat item.json | invoicequeue invoice validate - --definition line_item`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInvoiceValidate,
}

var invoiceSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print a valid sample invoice",
	Long: `Print a sample invoice with a single line item. Prices are given in major units
and converted to minor units (cents) exactly; the invoice id is a random UUID.`,
	Example: `  # Sample invoice in euros
  invoicequeue invoice sample --currency EUR --unit-price 49.90 --quantity 3

  # Zero-rated sample piped straight into the queue
  invoicequeue invoice sample --tax-rate 0 > invoice.json && invoicequeue send invoice.json`,
	Args: cobra.NoArgs,
	RunE: runInvoiceSample,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceValidateCmd)
	invoiceCmd.AddCommand(invoiceSampleCmd)

	invoiceValidateCmd.Flags().StringP("definition", "d", "", "Schema definition to validate against (default: complete invoice)")

	invoiceSampleCmd.Flags().String("source", models.SourceSwsEc, "Invoice source")
	invoiceSampleCmd.Flags().String("currency", models.CurrencyUSD, "Invoice currency")
	invoiceSampleCmd.Flags().String("unit-price", "19.99", "Net unit price in major units")
	invoiceSampleCmd.Flags().String("tax-rate", "0.10", "Tax rate applied to the unit price")
	invoiceSampleCmd.Flags().Int("quantity", 2, "Line item quantity")
}

func runInvoiceValidate(cmd *cobra.Command, args []string) error {
	log := commandLogger(cmd, "invoice-validate")

	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	definition, _ := cmd.Flags().GetString("definition")

	text, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}

	valid, err := validator.ValidateText(text, definition)
	if err != nil {
		return err
	}

	log.Debug().
		Str("file", path).
		Str("definition", definition).
		Bool("valid", valid).
		Msg("Validated document")

	out := cmd.OutOrStdout()
	if valid {
		fmt.Fprintf(out, "%s: valid\n", path)
		return nil
	}

	violations := validator.Errors(definition)
	fmt.Fprintf(out, "%s: invalid (%d errors)\n", path, len(violations))
	for _, ve := range violations {
		fmt.Fprintf(out, "  %s: %s (%s)\n", ve.Field, ve.Message, ve.Constraint)
	}
	return schema.NewInvalidDataError(definition, violations)
}

func runInvoiceSample(cmd *cobra.Command, args []string) error {
	var opts sampleOptions
	opts.source, _ = cmd.Flags().GetString("source")
	opts.currency, _ = cmd.Flags().GetString("currency")
	opts.unitPrice, _ = cmd.Flags().GetString("unit-price")
	opts.taxRate, _ = cmd.Flags().GetString("tax-rate")
	opts.quantity, _ = cmd.Flags().GetInt("quantity")

	invoice, err := buildSampleInvoice(opts, time.Now())
	if err != nil {
		return err
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return err
	}
	if err := validator.Check(invoice.Data(), schema.DefinitionRoot); err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(invoice.Data(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode sample invoice")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

type sampleOptions struct {
	source    string
	currency  string
	unitPrice string
	taxRate   string
	quantity  int
}

// buildSampleInvoice builds a single-item invoice. Amounts are computed in decimal and rounded to
// minor units once per unit, so gross == net + tax always holds.
func buildSampleInvoice(opts sampleOptions, now time.Time) (*models.Invoice, error) {
	unitPrice, err := decimal.NewFromString(opts.unitPrice)
	if err != nil {
		return nil, errors.Wrapf(err, "parse unit price %q", opts.unitPrice)
	}
	taxRate, err := decimal.NewFromString(opts.taxRate)
	if err != nil {
		return nil, errors.Wrapf(err, "parse tax rate %q", opts.taxRate)
	}
	if unitPrice.IsNegative() || taxRate.IsNegative() {
		return nil, errors.New("unit price and tax rate must not be negative")
	}

	unitNet := toMinorUnits(unitPrice)
	unitTax := toMinorUnits(unitPrice.Mul(taxRate))
	quantity := int64(opts.quantity)

	taxCode := models.TaxCodeTaxed
	if unitTax == 0 {
		taxCode = models.TaxCodeZeroRated
	}

	item := &models.InvoiceItem{
		Sku:         lo.ToPtr("SAMPLE-SKU-001"),
		Quantity:    lo.ToPtr(quantity),
		AmountGross: lo.ToPtr((unitNet + unitTax) * quantity),
		AmountTax:   lo.ToPtr(unitTax * quantity),
		AmountNet:   lo.ToPtr(unitNet * quantity),
		UnitPrice:   lo.ToPtr(unitNet),
		TaxCode:     lo.ToPtr(taxCode),
	}

	paymentReference := uuid.NewString()
	invoice := &models.Invoice{
		Source:                                lo.ToPtr(opts.source),
		InvoiceID:                             lo.ToPtr(uuid.NewString()),
		InvoiceDate:                           lo.ToPtr(now.UTC().Format(time.RFC3339)),
		OrderID:                               lo.ToPtr(uuid.NewString()),
		UserID:                                lo.ToPtr("sample-user"),
		TransactionReference:                  lo.ToPtr(paymentReference),
		PaymentGateway:                        lo.ToPtr(models.PaymentGatewayBraintree),
		PaymentInstrument:                     lo.ToPtr(models.PaymentInstrumentCreditCard),
		PaymentInstrumentTransactionReference: lo.ToPtr(paymentReference),
		MoneyworksDebtorCode:                  lo.ToPtr(models.DebtorCodeWEBC001),
		SubscriptionID:                        lo.ToPtr(""),
		Currency:                              lo.ToPtr(opts.currency),
		GrossAmount:                           lo.ToPtr(lo.FromPtr(item.AmountGross)),
		BillingAddress: &models.BillingAddress{
			CompanyName: lo.ToPtr("Example Pty Ltd"),
			PersonName:  lo.ToPtr("Sam Sample"),
			Address1:    lo.ToPtr("1 Sample Street"),
			Address2:    lo.ToPtr(""),
			Address3:    lo.ToPtr(""),
			City:        lo.ToPtr("Sydney"),
			Region:      lo.ToPtr("NSW"),
			PostCode:    lo.ToPtr("2000"),
			CountryISO:  lo.ToPtr("AU"),
		},
	}
	invoice.AddItem(item)

	return invoice, nil
}

// toMinorUnits converts a major-unit amount to cents, rounding half away from zero.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
