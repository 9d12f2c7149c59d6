// Package export writes the filtered invoice list as a workbook, optionally
// mirroring it to Google Sheets and archiving it in Cloud Storage.
package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"invoicedesk/pkg/models"
)

// SheetName is the worksheet holding the exported invoices.
const SheetName = "Invoices"

// Column is one exported column.
type Column struct {
	Header string
	Value  func(inv *models.Invoice) interface{}
}

func text(f func(inv *models.Invoice) string) func(*models.Invoice) interface{} {
	return func(inv *models.Invoice) interface{} { return f(inv) }
}

func money(f func(inv *models.Invoice) decimal.Decimal) func(*models.Invoice) interface{} {
	return func(inv *models.Invoice) interface{} { return f(inv).InexactFloat64() }
}

func longDate(f func(inv *models.Invoice) models.Date) func(*models.Invoice) interface{} {
	return func(inv *models.Invoice) interface{} {
		if d := f(inv); d.Valid() {
			return d.Long()
		}
		return ""
	}
}

func deduction(key string) func(*models.Invoice) interface{} {
	return money(func(inv *models.Invoice) decimal.Decimal { return inv.Deductions.Get(key) })
}

// Columns is the export layout. Headers normalize back to the import field
// names, so an exported workbook can be re-imported.
var Columns = []Column{
	{"Project", text(func(inv *models.Invoice) string { return inv.Project.String() })},
	{"Mode of Project", text(func(inv *models.Invoice) string { return inv.ModeOfProject })},
	{"State", text(func(inv *models.Invoice) string { return inv.State })},
	{"MyBill Category", text(func(inv *models.Invoice) string { return inv.BillCategory })},
	{"Milestone", text(func(inv *models.Invoice) string { return inv.Milestone })},
	{"Invoice Number", text(func(inv *models.Invoice) string { return inv.InvoiceNumber })},
	{"Invoice Date", longDate(func(inv *models.Invoice) models.Date { return inv.InvoiceDate })},
	{"Submission Date", longDate(func(inv *models.Invoice) models.Date { return inv.SubmissionDate })},
	{"Invoice Basic Amount", money(func(inv *models.Invoice) decimal.Decimal { return inv.BasicAmount.Decimal })},
	{"GST Percentage", text(func(inv *models.Invoice) string { return inv.GSTPercentage })},
	{"Invoice GST Amount", money(func(inv *models.Invoice) decimal.Decimal { return inv.GSTAmount.Decimal })},
	{"Total Amount", money(func(inv *models.Invoice) decimal.Decimal { return inv.TotalAmount.Decimal })},
	{"Passed Amount By Client", money(func(inv *models.Invoice) decimal.Decimal { return inv.PassedAmountByClient.Decimal })},
	{"Retention", deduction("retention")},
	{"GST Withheld", deduction("gstWithheld")},
	{"TDS", deduction("tds")},
	{"GST TDS", deduction("gstTds")},
	{"BOCW", deduction("bocw")},
	{"Low Depth Deduction", deduction("lowDepthDeduction")},
	{"LD", deduction("ld")},
	{"SLA Penalty", deduction("slaPenalty")},
	{"Penalty", deduction("penalty")},
	{"Other Deduction", deduction("otherDeduction")},
	{"Total Deduction", money(func(inv *models.Invoice) decimal.Decimal { return inv.TotalDeduction.Decimal })},
	{"Net Payable", money(func(inv *models.Invoice) decimal.Decimal { return inv.NetPayable.Decimal })},
	{"Status", text(func(inv *models.Invoice) string { return string(inv.Status) })},
	{"Amount Paid By Client", money(func(inv *models.Invoice) decimal.Decimal { return inv.AmountPaidByClient.Decimal })},
	{"Payment Date", longDate(func(inv *models.Invoice) models.Date { return inv.PaymentDate })},
	{"Balance", money(func(inv *models.Invoice) decimal.Decimal { return inv.Balance.Decimal })},
	{"Remarks", text(func(inv *models.Invoice) string { return inv.Remarks })},
	{"Invoice Copy Path", text(func(inv *models.Invoice) string { return inv.InvoiceCopyPath })},
	{"Proof Of Submission Path", text(func(inv *models.Invoice) string { return inv.ProofOfSubmissionPath })},
	{"Supporting Docs Path", text(func(inv *models.Invoice) string { return inv.SupportingDocsPath })},
}

// Headers returns the column headers in order.
func Headers() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Header
	}
	return out
}

// Rows renders list as a header row followed by one row per invoice.
func Rows(list []models.Invoice) [][]interface{} {
	rows := make([][]interface{}, 0, len(list)+1)
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c.Header
	}
	rows = append(rows, header)
	for i := range list {
		row := make([]interface{}, len(Columns))
		for j, c := range Columns {
			row[j] = c.Value(&list[i])
		}
		rows = append(rows, row)
	}
	return rows
}

// DefaultFileName is the workbook name for an export made at t.
func DefaultFileName(t time.Time) string {
	return fmt.Sprintf("invoices_full_%s.xlsx", t.UTC().Format(models.DateLayout))
}

// WriteXLSX writes list as a single sheet workbook to w.
func WriteXLSX(w io.Writer, list []models.Invoice) error {
	f, err := buildWorkbook(list)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook to path.
func SaveXLSX(path string, list []models.Invoice) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteXLSX(out, list); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func buildWorkbook(list []models.Invoice) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	for i, row := range Rows(list) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.ColumnNumberToName(len(Columns))
		_ = f.SetCellStyle(SheetName, "A1", last+"1", bold)
		_ = f.SetColWidth(SheetName, "A", last, 18)
		_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}
	return f, nil
}
