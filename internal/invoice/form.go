package invoice

import (
	"strings"

	"github.com/shopspring/decimal"

	"invoicedesk/pkg/models"
)

// Form is the editable state of a single invoice before submission.
type Form struct {
	// ID is set when editing an existing invoice.
	ID string

	Project       models.Projects
	Mode          string
	State         string
	BillCategory  string
	Milestone     string
	InvoiceNumber string

	InvoiceDate    models.Date
	SubmissionDate models.Date
	PaymentDate    models.Date

	BasicAmount   decimal.NullDecimal
	GSTPercentage string
	PassedAmount  decimal.NullDecimal
	Deductions    models.Deductions
	AmountPaid    decimal.NullDecimal

	Status  models.Status
	Remarks string

	// Files are local paths of new uploads.
	Files models.Files
	// Existing are server paths of attachments already stored.
	Existing map[models.FileKind]string
}

// NewForm returns an empty form with the default status preselected.
func NewForm() Form {
	return Form{
		Status:   models.DefaultStatus,
		Files:    models.Files{},
		Existing: map[models.FileKind]string{},
	}
}

// FormFromInvoice prefills a form for editing an existing invoice.
func FormFromInvoice(inv models.Invoice) Form {
	f := NewForm()
	f.ID = inv.ID.String()
	f.Project = inv.Project
	f.Mode = inv.ModeOfProject
	f.State = inv.State
	f.BillCategory = inv.BillCategory
	f.Milestone = inv.Milestone
	f.InvoiceNumber = inv.InvoiceNumber
	f.InvoiceDate = inv.InvoiceDate
	f.SubmissionDate = inv.SubmissionDate
	f.PaymentDate = inv.PaymentDate
	f.BasicAmount = decimal.NewNullDecimal(inv.BasicAmount.Decimal)
	f.GSTPercentage = inv.GSTPercentage
	f.PassedAmount = decimal.NewNullDecimal(inv.PassedAmountByClient.Decimal)
	f.Deductions = inv.Deductions
	f.AmountPaid = decimal.NewNullDecimal(inv.AmountPaidByClient.Decimal)
	if inv.Status != "" {
		f.Status = inv.Status
	}
	f.Remarks = inv.Remarks
	for _, kind := range models.FileKinds {
		if p := inv.AttachmentPath(kind); p != "" {
			f.Existing[kind] = p
		}
	}
	return f
}

// FormFromPayload reads a submitted payload back into a form. Values that do
// not parse are left empty.
func FormFromPayload(p *models.Payload) Form {
	f := NewForm()
	f.Status = ""
	f.Project = models.NormalizeProjects(p.Values("project"))
	f.Mode = p.Get("modeOfProject")
	f.State = p.Get("state")
	f.BillCategory = p.Get("mybillCategory")
	f.Milestone = p.Get("milestone")
	f.InvoiceNumber = p.Get("invoiceNumber")
	f.InvoiceDate, _ = models.ParseDate(p.Get("invoiceDate"))
	f.SubmissionDate, _ = models.ParseDate(p.Get("submissionDate"))
	f.PaymentDate, _ = models.ParseDate(p.Get("paymentDate"))
	f.BasicAmount = nullDecimal(p.Get("invoiceBasicAmount"))
	f.GSTPercentage = p.Get("gstPercentage")
	f.PassedAmount = nullDecimal(p.Get("passedAmountByClient"))
	for _, d := range models.DeductionFields {
		if v := nullDecimal(p.Get(d.Key)); v.Valid {
			f.Deductions.Set(d.Key, v.Decimal)
		}
	}
	f.AmountPaid = nullDecimal(p.Get("amountPaidByClient"))
	if st := p.Get("status"); st != "" {
		f.Status, _ = models.ParseStatus(st)
	}
	f.Remarks = p.Get("remarks")
	return f
}

func nullDecimal(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// SelectProject sets the project and, when the mode is still empty,
// preselects the mode associated with that project.
func (f *Form) SelectProject(project string) {
	f.Project = models.NormalizeProjects(project)
	if f.Mode != "" {
		return
	}
	if mode, ok := models.DefaultModeForProject(project); ok {
		f.Mode = mode
	}
}

// Input extracts the calculator input.
func (f Form) Input() Input {
	return Input{
		BasicAmount:   f.BasicAmount.Decimal,
		GSTPercentage: f.GSTPercentage,
		Deductions:    f.Deductions,
		AmountPaid:    f.AmountPaid.Decimal,
		Status:        f.Status,
	}
}

// Calculate derives the form's amounts.
func (f Form) Calculate() Breakdown {
	return Calculate(f.Input())
}

// HasAttachment reports whether kind is either uploaded or already stored.
func (f Form) HasAttachment(kind models.FileKind) bool {
	return f.Files[kind] != "" || f.Existing[kind] != ""
}

// BuildPayload serializes the form and its breakdown into the multipart field
// set accepted by the backend. Monetary fields are always present ("0" when
// empty); optional milestone and dates are omitted when unset.
func BuildPayload(f Form, b Breakdown) *models.Payload {
	p := models.NewPayload()
	if len(f.Project) == 0 {
		p.Set("project", "")
	}
	for _, project := range f.Project {
		p.Add("project", project)
	}
	p.Set("modeOfProject", f.Mode)
	p.Set("state", f.State)
	p.Set("mybillCategory", f.BillCategory)
	if f.Milestone != "" {
		p.Set("milestone", f.Milestone)
	}
	p.Set("invoiceNumber", f.InvoiceNumber)
	setDate(p, "invoiceDate", f.InvoiceDate)
	setDate(p, "submissionDate", f.SubmissionDate)
	p.Set("invoiceBasicAmount", money(f.BasicAmount))
	p.Set("gstPercentage", f.GSTPercentage)
	p.Set("invoiceGstAmount", b.GSTAmount.StringFixed(2))
	p.Set("totalAmount", b.TotalAmount.StringFixed(2))
	p.Set("passedAmountByClient", money(f.PassedAmount))
	for _, d := range models.DeductionFields {
		p.Set(d.Key, money(decimal.NewNullDecimal(f.Deductions.Get(d.Key))))
	}
	p.Set("totalDeduction", b.TotalDeduction.StringFixed(2))
	p.Set("netPayable", b.NetPayable.StringFixed(2))
	p.Set("status", string(f.Status))
	p.Set("amountPaidByClient", money(f.AmountPaid))
	setDate(p, "paymentDate", f.PaymentDate)
	p.Set("balance", b.Balance.StringFixed(2))
	p.Set("remarks", f.Remarks)
	return p
}

func setDate(p *models.Payload, key string, d models.Date) {
	if d.Valid() {
		p.Set(key, d.String())
	}
}

func money(v decimal.NullDecimal) string {
	if !v.Valid || v.Decimal.IsZero() {
		return "0"
	}
	return models.Round2(v.Decimal).StringFixed(2)
}
