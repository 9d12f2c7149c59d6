package invoice

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"invoicedesk/internal/logger"
	"invoicedesk/pkg/models"
)

// Mode selects how violations are treated.
type Mode int

const (
	// ModeStrict blocks submission on any violation (interactive forms).
	ModeStrict Mode = iota
	// ModeLenient reports violations as warnings only (bulk ingestion).
	ModeLenient
)

func (m Mode) String() string {
	if m == ModeLenient {
		return "lenient"
	}
	return "strict"
}

// requiredFields mirrors the mandatory part of the form for validator tags.
type requiredFields struct {
	Project       []string `validate:"required,min=1" label:"project"`
	Mode          string   `validate:"required" label:"mode of project"`
	State         string   `validate:"required" label:"state"`
	BillCategory  string   `validate:"required" label:"bill category"`
	InvoiceNumber string   `validate:"required" label:"invoice number"`
	InvoiceDate   string   `validate:"required" label:"invoice date"`
	BasicAmount   string   `validate:"required" label:"basic amount"`
	GSTPercentage string   `validate:"required,gstrate" label:"GST percentage"`
	Status        string   `validate:"required,invoicestatus" label:"status"`
}

// Validator checks a form before it is submitted.
type Validator struct {
	mode     Mode
	now      func() time.Time
	existing []models.Invoice
	validate *validator.Validate
	log      zerolog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithExisting enables the duplicate invoice number check against a fetched
// invoice list.
func WithExisting(list []models.Invoice) Option {
	return func(v *Validator) { v.existing = list }
}

// NewValidator creates a validator in the given mode.
func NewValidator(mode Mode, opts ...Option) *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("label")
	})
	_ = validate.RegisterValidation("gstrate", func(fl validator.FieldLevel) bool {
		return models.IsGSTRate(fl.Field().String())
	})
	_ = validate.RegisterValidation("invoicestatus", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseStatus(fl.Field().String())
		return ok
	})

	v := &Validator{
		mode:     mode,
		now:      time.Now,
		validate: validate,
		log:      logger.WithComponent("invoice-validation"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Result lists every violated rule.
type Result struct {
	Mode     Mode
	Problems ValidationErrors
}

// OK reports whether no rule was violated.
func (r Result) OK() bool {
	return len(r.Problems) == 0
}

// Err returns the violations when they block submission, nil otherwise.
// Lenient results never block.
func (r Result) Err() error {
	if r.Mode == ModeStrict && len(r.Problems) > 0 {
		return r.Problems
	}
	return nil
}

// Validate checks f and its breakdown. Each violated rule produces its own
// ValidationError. Attachments and duplicate numbers are only checked in
// strict mode.
func (v *Validator) Validate(f Form, b Breakdown) Result {
	res := Result{Mode: v.mode}
	add := func(e *ValidationError) {
		if e != nil {
			res.Problems = append(res.Problems, e)
		}
	}

	for _, e := range v.checkFields(f) {
		add(e)
	}

	if v.mode == ModeStrict {
		if !f.HasAttachment(models.FileInvoiceCopy) {
			add(NewValidationError(ErrMissingInvoiceCopy, string(models.FileInvoiceCopy),
				"Please attach the invoice copy"))
		}
		if !f.HasAttachment(models.FileProofOfSubmission) {
			add(NewValidationError(ErrMissingProofOfSubmission, string(models.FileProofOfSubmission),
				"Please attach the proof of submission"))
		}
	}

	if f.PaymentDate.Valid() && f.SubmissionDate.Valid() && f.PaymentDate.Before(f.SubmissionDate) {
		add(NewValidationError(ErrPaymentBeforeSubmission, "paymentDate",
			"Payment date must be later than Submission Date"))
	}

	today := models.NewDate(v.now())
	if f.InvoiceDate.Valid() && f.InvoiceDate.After(today) {
		add(NewValidationError(ErrInvoiceDateInFuture, "invoiceDate",
			"Invoice Date cannot be in the future"))
	}
	if f.SubmissionDate.Valid() && f.SubmissionDate.After(today) {
		add(NewValidationError(ErrSubmissionDateInFuture, "submissionDate",
			"Submission Date cannot be in the future"))
	}

	if status, _ := models.ParseStatus(string(f.Status)); status == models.StatusPaid && !b.Balance.IsZero() {
		add(NewValidationError(ErrPaidBalanceNotZero, "balance",
			fmt.Sprintf("Balance must be 0 when status is Paid (current balance %s)", b.Balance.StringFixed(2))))
	}

	if v.mode == ModeStrict && v.existing != nil {
		add(CheckDuplicateNumber(v.existing, f.InvoiceNumber, f.ID))
	}

	if len(res.Problems) > 0 {
		v.log.Debug().
			Str("mode", v.mode.String()).
			Str("invoice_number", f.InvoiceNumber).
			Int("problems", len(res.Problems)).
			Msg("Invoice form failed validation")
	}
	return res
}

func (v *Validator) checkFields(f Form) []*ValidationError {
	req := requiredFields{
		Project:       f.Project,
		Mode:          strings.TrimSpace(f.Mode),
		State:         strings.TrimSpace(f.State),
		BillCategory:  strings.TrimSpace(f.BillCategory),
		InvoiceNumber: strings.TrimSpace(f.InvoiceNumber),
		InvoiceDate:   f.InvoiceDate.String(),
		GSTPercentage: strings.TrimSpace(f.GSTPercentage),
		Status:        strings.TrimSpace(string(f.Status)),
	}
	if f.BasicAmount.Valid {
		req.BasicAmount = f.BasicAmount.Decimal.String()
	}

	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []*ValidationError{NewValidationError(ErrMissingRequiredField, "", err.Error())}
	}

	var missing []string
	var out []*ValidationError
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "gstrate":
			out = append(out, NewValidationError(ErrInvalidGSTPercentage, "gstPercentage",
				fmt.Sprintf("GST percentage must be one of %s", strings.Join(models.GSTRates, ", "))))
		case "invoicestatus":
			out = append(out, NewValidationError(ErrInvalidStatus, "status",
				fmt.Sprintf("Status must be one of %s", joinStatuses())))
		default:
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		missingErr := NewValidationError(ErrMissingRequiredField, strings.Join(missing, ","),
			fmt.Sprintf("Please fill all required fields (%s)", strings.Join(missing, ", ")))
		out = append([]*ValidationError{missingErr}, out...)
	}
	return out
}

func joinStatuses() string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// CheckDuplicateNumber reports whether another invoice in existing already
// uses number. The comparison ignores case and surrounding whitespace; the
// invoice identified by selfID is skipped so an edit does not collide with
// itself.
func CheckDuplicateNumber(existing []models.Invoice, number, selfID string) *ValidationError {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil
	}
	for _, inv := range existing {
		if selfID != "" && inv.ID.String() == selfID {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(inv.InvoiceNumber), number) {
			return NewValidationError(ErrDuplicateInvoiceNumber, "invoiceNumber",
				fmt.Sprintf("Invoice number %s already exists", number))
		}
	}
	return nil
}
