// Package prefill extracts a draft invoice from a PDF so the form can start
// filled in. Document AI reads the structured fields; when some are still
// missing, Vision OCR text is handed to a chat model for the rest.
package prefill

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"invoicedesk/internal/invoice"
	"invoicedesk/pkg/models"
)

// MaxDocumentSizeBytes is the largest PDF processed synchronously (20MB).
const MaxDocumentSizeBytes = 20 * 1024 * 1024

// Draft field names, matching the form fields they prefill.
const (
	FieldInvoiceNumber = "invoiceNumber"
	FieldInvoiceDate   = "invoiceDate"
	FieldBasicAmount   = "invoiceBasicAmount"
	FieldGSTPercentage = "gstPercentage"
)

// DraftFields lists the fields a draft tries to fill.
var DraftFields = []string{FieldInvoiceNumber, FieldInvoiceDate, FieldBasicAmount, FieldGSTPercentage}

// Draft is what could be read off an invoice PDF.
type Draft struct {
	InvoiceNumber string              `json:"invoiceNumber,omitempty"`
	InvoiceDate   models.Date         `json:"invoiceDate"`
	BasicAmount   decimal.NullDecimal `json:"invoiceBasicAmount"`
	GSTAmount     decimal.NullDecimal `json:"invoiceGstAmount"`
	TotalAmount   decimal.NullDecimal `json:"totalAmount"`
	GSTPercentage string              `json:"gstPercentage,omitempty"`

	// Confidence holds per-entity scores reported by the extractor.
	Confidence map[string]float32 `json:"confidence,omitempty"`
	// Completed names the fields filled by the completion step.
	Completed []string `json:"completed,omitempty"`
}

// Extractor reads a draft from a PDF.
type Extractor interface {
	Extract(ctx context.Context, pdf io.Reader) (*Draft, error)
}

// Missing returns the draft fields still empty.
func (d *Draft) Missing() []string {
	var out []string
	if strings.TrimSpace(d.InvoiceNumber) == "" {
		out = append(out, FieldInvoiceNumber)
	}
	if !d.InvoiceDate.Valid() {
		out = append(out, FieldInvoiceDate)
	}
	if !d.BasicAmount.Valid {
		out = append(out, FieldBasicAmount)
	}
	if d.GSTPercentage == "" {
		out = append(out, FieldGSTPercentage)
	}
	return out
}

// fillDerived completes whichever of net, tax and gross can be computed from
// the other two, then infers the GST rate.
func (d *Draft) fillDerived() {
	switch {
	case d.BasicAmount.Valid && d.GSTAmount.Valid && !d.TotalAmount.Valid:
		d.TotalAmount = decimal.NewNullDecimal(d.BasicAmount.Decimal.Add(d.GSTAmount.Decimal))
	case d.TotalAmount.Valid && d.GSTAmount.Valid && !d.BasicAmount.Valid:
		d.BasicAmount = decimal.NewNullDecimal(d.TotalAmount.Decimal.Sub(d.GSTAmount.Decimal))
	case d.TotalAmount.Valid && d.BasicAmount.Valid && !d.GSTAmount.Valid:
		d.GSTAmount = decimal.NewNullDecimal(d.TotalAmount.Decimal.Sub(d.BasicAmount.Decimal))
	}
	if d.GSTPercentage == "" && d.BasicAmount.Valid && d.GSTAmount.Valid {
		d.GSTPercentage = SnapGSTRate(d.BasicAmount.Decimal, d.GSTAmount.Decimal)
	}
}

// ApplyTo copies the extracted fields into f, leaving fields the draft does
// not know untouched.
func (d *Draft) ApplyTo(f *invoice.Form) {
	if d.InvoiceNumber != "" {
		f.InvoiceNumber = d.InvoiceNumber
	}
	if d.InvoiceDate.Valid() {
		f.InvoiceDate = d.InvoiceDate
	}
	if d.BasicAmount.Valid {
		f.BasicAmount = decimal.NewNullDecimal(d.BasicAmount.Decimal.Round(2))
	}
	if d.GSTPercentage != "" {
		f.GSTPercentage = d.GSTPercentage
	}
}

// gstSnapTolerance is how far, in percentage points, an observed rate may sit
// from a selectable rate and still snap to it.
var gstSnapTolerance = decimal.NewFromFloat(1.5)

// SnapGSTRate infers the GST rate from the net and tax amounts and snaps it
// to the nearest selectable rate. It returns "" when net is not positive or
// no rate is close enough.
func SnapGSTRate(net, tax decimal.Decimal) string {
	if !net.IsPositive() || tax.IsNegative() {
		return ""
	}
	observed := tax.Div(net).Mul(decimal.NewFromInt(100))

	best := ""
	bestDist := decimal.Zero
	for _, rate := range models.GSTRates {
		dist := observed.Sub(models.ParsePercent(rate)).Abs()
		if best == "" || dist.LessThan(bestDist) {
			best, bestDist = rate, dist
		}
	}
	if bestDist.GreaterThan(gstSnapTolerance) {
		return ""
	}
	return best
}

var amountNoise = regexp.MustCompile(`(?i)(₹|rs\.?|inr|\s)`)

// ParseAmount reads a printed amount such as "₹ 1,18,000.50", "Rs. 1180" or
// "1.180,50". A lone comma followed by one or two digits is read as the
// decimal separator; otherwise commas group digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := amountNoise.ReplaceAllString(strings.TrimSpace(s), "")
	cleaned = strings.TrimSuffix(cleaned, "/-")

	switch {
	case strings.Contains(cleaned, ".") && strings.Contains(cleaned, ","):
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Contains(cleaned, ","):
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse amount: %s (cleaned: %s)", s, cleaned)
	}
	return d, nil
}

// readPDF reads and checks a PDF upload.
func readPDF(op string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSizeBytes+1))
	if err != nil {
		return nil, WrapError(op, err, "failed to read PDF data")
	}
	if len(data) > MaxDocumentSizeBytes {
		return nil, WrapError(op, ErrDocumentTooLarge, fmt.Sprintf("file size exceeds %d bytes", MaxDocumentSizeBytes))
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, WrapError(op, ErrInvalidPDF, "missing PDF header")
	}
	return data, nil
}
