package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"invoicedesk/internal/invoice"
	"invoicedesk/internal/prefill"
	"invoicedesk/pkg/models"
)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Compute GST, total, deductions, net payable and balance",
	Long: `Compute the derived amounts of an invoice without contacting the backend.

Deductions are given as key=value pairs using the backend field names:
  ` + deductionKeys(),
	Example: `  invoicedesk calc --basic 100000 --gst 18% --deduction tds=2000 --paid 50000
  invoicedesk calc --from-draft draft.json --status "Credit Note Issued"`,
	Args: cobra.NoArgs,
	RunE: runCalc,
}

func init() {
	rootCmd.AddCommand(calcCmd)

	f := calcCmd.Flags()
	f.String("basic", "", "Invoice basic amount")
	f.String("gst", "", "GST percentage ("+strings.Join(models.GSTRates, ", ")+")")
	f.String("status", string(models.DefaultStatus), "Invoice status")
	f.String("paid", "", "Amount paid by client")
	f.String("passed", "", "Amount passed by client")
	f.StringArray("deduction", nil, "Deduction as key=value (repeatable)")
	f.String("from-draft", "", "Start from a prefill draft JSON file")
}

func deductionKeys() string {
	keys := make([]string, len(models.DeductionFields))
	for i, d := range models.DeductionFields {
		keys[i] = d.Key
	}
	return strings.Join(keys, ", ")
}

// parseAmountFlag accepts plain numbers as well as formatted amounts like
// "1,20,000.50" or "Rs. 500/-".
func parseAmountFlag(name, raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := prefill.ParseAmount(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// parseDeductions applies key=value pairs to ded. Keys match either the
// field name or its label.
func parseDeductions(pairs []string, ded *models.Deductions) error {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --deduction %q: expected key=value", pair)
		}
		field, found := deductionField(key)
		if !found {
			return fmt.Errorf("unknown deduction %q (one of: %s)", key, deductionKeys())
		}
		amt, err := parseAmountFlag("deduction", value)
		if err != nil {
			return err
		}
		ded.Set(field, amt.Decimal)
	}
	return nil
}

func deductionField(key string) (string, bool) {
	key = strings.TrimSpace(key)
	for _, d := range models.DeductionFields {
		if strings.EqualFold(d.Key, key) || strings.EqualFold(d.Label, key) {
			return d.Key, true
		}
	}
	return "", false
}

func loadDraft(path string) (*prefill.Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read draft: %w", err)
	}
	var d prefill.Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse draft %s: %w", path, err)
	}
	return &d, nil
}

func runCalc(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	form := invoice.NewForm()

	if path, _ := flags.GetString("from-draft"); path != "" {
		d, err := loadDraft(path)
		if err != nil {
			return err
		}
		d.ApplyTo(&form)
	}

	var err error
	if raw, _ := flags.GetString("basic"); raw != "" {
		if form.BasicAmount, err = parseAmountFlag("basic", raw); err != nil {
			return err
		}
	}
	if gst, _ := flags.GetString("gst"); gst != "" {
		if !models.IsGSTRate(gst) {
			return fmt.Errorf("invalid --gst %q (one of: %s)", gst, strings.Join(models.GSTRates, ", "))
		}
		form.GSTPercentage = gst
	}
	if raw, _ := flags.GetString("status"); raw != "" {
		status, ok := models.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("invalid --status %q", raw)
		}
		form.Status = status
	}
	if raw, _ := flags.GetString("paid"); raw != "" {
		if form.AmountPaid, err = parseAmountFlag("paid", raw); err != nil {
			return err
		}
	}
	if raw, _ := flags.GetString("passed"); raw != "" {
		if form.PassedAmount, err = parseAmountFlag("passed", raw); err != nil {
			return err
		}
	}
	pairs, _ := flags.GetStringArray("deduction")
	if err := parseDeductions(pairs, &form.Deductions); err != nil {
		return err
	}

	b := form.Calculate()
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, struct {
			Calculated invoice.Breakdown `json:"calculated"`
			Display    invoice.Breakdown `json:"display"`
		}{b, b.Display()})
	}

	shown := b.Display()
	tw := newTable(os.Stdout)
	row(tw, "Basic amount", amount(form.BasicAmount.Decimal))
	row(tw, "GST ("+orNone(form.GSTPercentage)+")", amount(shown.GSTAmount))
	row(tw, "Total amount", amount(shown.TotalAmount))
	row(tw, "Total deduction", amount(shown.TotalDeduction))
	row(tw, "Net payable", amount(shown.NetPayable))
	row(tw, "Amount paid", amount(shown.EffectiveAmountPaid))
	row(tw, "Balance", amount(shown.Balance))
	if b.Terminal {
		row(tw, "Status", string(form.Status)+" (nothing payable)")
	}
	return tw.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
