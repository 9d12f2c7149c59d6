package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"invoicedesk/pkg/models"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSONFile writes v to path, or to stdout when path is empty.
func writeJSONFile(path string, v interface{}) error {
	if path == "" {
		return printJSON(os.Stdout, v)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := printJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output: %w", err)
	}
	return f.Close()
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func row(w io.Writer, cols ...string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func invoiceTable(w io.Writer, list []models.Invoice) error {
	tw := newTable(w)
	row(tw, "ID", "NUMBER", "PROJECT", "DATE", "TOTAL", "NET PAYABLE", "PAID", "BALANCE", "STATUS")
	for _, inv := range list {
		row(tw,
			inv.ID.String(),
			inv.InvoiceNumber,
			inv.Project.String(),
			inv.InvoiceDate.String(),
			amount(inv.TotalAmount.Decimal),
			amount(inv.NetPayable.Decimal),
			amount(inv.AmountPaidByClient.Decimal),
			amount(inv.Balance.Decimal),
			string(inv.Status),
		)
	}
	return tw.Flush()
}
