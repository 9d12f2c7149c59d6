// Package preview renders a single invoice as a one-page PDF.
package preview

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"invoicedesk/pkg/models"
)

const (
	labelWidth = 60.0
	valueWidth = 120.0
	lineHeight = 7.0
)

// Render writes the preview of inv to w.
func Render(w io.Writer, inv *models.Invoice) error {
	pdf := build(inv)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	return nil
}

// SaveFile writes the preview of inv to path.
func SaveFile(path string, inv *models.Invoice) error {
	pdf := build(inv)
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write preview %s: %w", path, err)
	}
	return nil
}

// FileName is the default preview file name for inv.
func FileName(inv *models.Invoice) string {
	number := sanitize(inv.InvoiceNumber)
	if number == "" {
		number = "draft"
	}
	return fmt.Sprintf("invoice_%s.pdf", number)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func amount(d decimal.Decimal) string {
	return "Rs. " + models.FormatMoney(d)
}

func build(inv *models.Invoice) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %s", inv.InvoiceNumber), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("Invoice - %s", orDash(inv.InvoiceNumber)))
	pdf.Ln(12)

	section := func(title string) {
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 12)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(labelWidth+valueWidth, 8, title, "", 1, "L", true, 0, "")
		pdf.SetFont("Arial", "", 10)
	}
	row := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelWidth, lineHeight, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(valueWidth, lineHeight, orDash(value), "", 1, "L", false, 0, "")
	}
	money := func(label string, d decimal.Decimal) {
		pdf.CellFormat(labelWidth, lineHeight, label, "B", 0, "L", false, 0, "")
		pdf.CellFormat(valueWidth, lineHeight, amount(d), "B", 1, "R", false, 0, "")
	}

	section("Project Details")
	row("Project", inv.Project.String())
	row("Mode of Project", inv.ModeOfProject)
	row("State", inv.State)
	row("Bill Category", inv.BillCategory)
	row("Milestone", inv.Milestone)
	row("Invoice Date", inv.InvoiceDate.Long())
	row("Submission Date", inv.SubmissionDate.Long())

	section("Amounts")
	money("Basic Amount", inv.BasicAmount.Decimal)
	money(fmt.Sprintf("GST (%s)", orDash(inv.GSTPercentage)), inv.GSTAmount.Decimal)
	money("Total Amount", inv.TotalAmount.Decimal)
	money("Passed Amount By Client", inv.PassedAmountByClient.Decimal)

	section("Deductions")
	listed := 0
	for _, f := range models.DeductionFields {
		v := inv.Deductions.Get(f.Key)
		if v.IsZero() {
			continue
		}
		money(f.Label, v)
		listed++
	}
	if listed == 0 {
		row("Deductions", "None")
	}
	pdf.SetFont("Arial", "B", 10)
	money("Total Deduction", inv.TotalDeduction.Decimal)

	section("Status")
	row("Status", string(inv.Status))
	pdf.SetFont("Arial", "B", 11)
	money("Net Payable", inv.NetPayable.Decimal)
	pdf.SetFont("Arial", "", 10)
	money("Amount Paid By Client", inv.AmountPaidByClient.Decimal)
	row("Payment Date", inv.PaymentDate.Long())
	money("Balance", inv.Balance.Decimal)
	if strings.TrimSpace(inv.Remarks) != "" {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelWidth, lineHeight, "Remarks", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(labelWidth+valueWidth, 6, inv.Remarks, "", "L", false)
	}

	section("Attachments")
	for _, kind := range models.FileKinds {
		name := "-"
		if p := inv.AttachmentPath(kind); p != "" {
			name = filepath.Base(strings.ReplaceAll(p, "\\", "/"))
		}
		row(attachmentLabel(kind), name)
	}

	return pdf
}

func attachmentLabel(kind models.FileKind) string {
	switch kind {
	case models.FileInvoiceCopy:
		return "Invoice Copy"
	case models.FileProofOfSubmission:
		return "Proof of Submission"
	case models.FileSupportingDocs:
		return "Supporting Documents"
	}
	return string(kind)
}
