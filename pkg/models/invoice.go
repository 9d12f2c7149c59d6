package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a project invoice as stored by the backend.
type Invoice struct {
	ID FlexString `json:"id"`

	Project       Projects `json:"project"`
	ModeOfProject string   `json:"modeOfProject"`
	State         string   `json:"state"`
	BillCategory  string   `json:"mybillCategory"`
	Milestone     string   `json:"milestone"`
	InvoiceNumber string   `json:"invoiceNumber"`

	InvoiceDate    Date `json:"invoiceDate"`
	SubmissionDate Date `json:"submissionDate"`
	PaymentDate    Date `json:"paymentDate"`

	BasicAmount          Amount `json:"invoiceBasicAmount"`
	GSTPercentage        string `json:"gstPercentage"`
	GSTAmount            Amount `json:"invoiceGstAmount"`
	TotalAmount          Amount `json:"totalAmount"`
	PassedAmountByClient Amount `json:"passedAmountByClient"`

	Deductions

	TotalDeduction     Amount `json:"totalDeduction"`
	NetPayable         Amount `json:"netPayable"`
	AmountPaidByClient Amount `json:"amountPaidByClient"`
	Balance            Amount `json:"balance"`

	Status  Status `json:"status"`
	Remarks string `json:"remarks"`

	InvoiceCopyPath       string `json:"invoice_copy_path,omitempty"`
	ProofOfSubmissionPath string `json:"proof_of_submission_path,omitempty"`
	SupportingDocsPath    string `json:"supporting_docs_path,omitempty"`

	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// AttachmentPath returns the server path stored for an attachment kind.
func (inv *Invoice) AttachmentPath(kind FileKind) string {
	switch kind {
	case FileInvoiceCopy:
		return inv.InvoiceCopyPath
	case FileProofOfSubmission:
		return inv.ProofOfSubmissionPath
	case FileSupportingDocs:
		return inv.SupportingDocsPath
	}
	return ""
}

// Pending is the amount still expected from the client.
func (inv *Invoice) Pending() decimal.Decimal {
	return inv.NetPayable.Sub(inv.AmountPaidByClient.Decimal)
}

// Deductions holds the ten independent deduction line items.
type Deductions struct {
	Retention         Amount `json:"retention"`
	GSTWithheld       Amount `json:"gstWithheld"`
	TDS               Amount `json:"tds"`
	GSTTDS            Amount `json:"gstTds"`
	BOCW              Amount `json:"bocw"`
	LowDepthDeduction Amount `json:"lowDepthDeduction"`
	LD                Amount `json:"ld"`
	SLAPenalty        Amount `json:"slaPenalty"`
	Penalty           Amount `json:"penalty"`
	OtherDeduction    Amount `json:"otherDeduction"`
}

// DeductionField describes one deduction column.
type DeductionField struct {
	Key   string
	Label string
}

// DeductionFields lists the deductions in form order.
var DeductionFields = []DeductionField{
	{Key: "retention", Label: "Retention"},
	{Key: "gstWithheld", Label: "GST Withheld"},
	{Key: "tds", Label: "TDS"},
	{Key: "gstTds", Label: "GST TDS"},
	{Key: "bocw", Label: "BOCW"},
	{Key: "lowDepthDeduction", Label: "Low Depth Deduction"},
	{Key: "ld", Label: "LD"},
	{Key: "slaPenalty", Label: "SLA Penalty"},
	{Key: "penalty", Label: "Penalty"},
	{Key: "otherDeduction", Label: "Other Deduction"},
}

func (d *Deductions) field(key string) *Amount {
	switch key {
	case "retention":
		return &d.Retention
	case "gstWithheld":
		return &d.GSTWithheld
	case "tds":
		return &d.TDS
	case "gstTds":
		return &d.GSTTDS
	case "bocw":
		return &d.BOCW
	case "lowDepthDeduction":
		return &d.LowDepthDeduction
	case "ld":
		return &d.LD
	case "slaPenalty":
		return &d.SLAPenalty
	case "penalty":
		return &d.Penalty
	case "otherDeduction":
		return &d.OtherDeduction
	}
	return nil
}

// Get returns the deduction stored under key, or zero for unknown keys.
func (d Deductions) Get(key string) decimal.Decimal {
	if f := d.field(key); f != nil {
		return f.Decimal
	}
	return decimal.Zero
}

// Set stores v under key and reports whether key names a deduction.
func (d *Deductions) Set(key string, v decimal.Decimal) bool {
	f := d.field(key)
	if f == nil {
		return false
	}
	f.Decimal = v
	return true
}

// Sum adds all ten deductions.
func (d Deductions) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, f := range DeductionFields {
		total = total.Add(d.Get(f.Key))
	}
	return total
}

// Projects is the canonical list form of the invoice project field. The
// backend sends either a single string, a list or null.
type Projects []string

// UnmarshalJSON implements json.Unmarshaler.
func (p *Projects) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = NormalizeProjects(raw)
	return nil
}

// NormalizeProjects converts a string, list or nil into a project list,
// dropping blank entries.
func NormalizeProjects(v interface{}) Projects {
	var out Projects
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch t := v.(type) {
	case string:
		add(t)
	case []string:
		for _, s := range t {
			add(s)
		}
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return out
}

// Contains matches name case-insensitively.
func (p Projects) Contains(name string) bool {
	for _, s := range p {
		if strings.EqualFold(s, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// String joins the projects with ", ".
func (p Projects) String() string {
	return strings.Join(p, ", ")
}

// FlexString decodes from either a JSON string or a number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*f = ""
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		*f = FlexString(unq)
		return nil
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string {
	return string(f)
}
