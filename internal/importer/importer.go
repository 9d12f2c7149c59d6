package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicedesk/internal/invoice"
	"invoicedesk/internal/logger"
	"invoicedesk/pkg/models"
)

// ErrNoUser is returned when the session carries no user id.
var ErrNoUser = errors.New("no user id in session")

// Backend creates invoices and returns the current list.
type Backend interface {
	CreateInvoice(ctx context.Context, payload *models.Payload, files models.Files) (*models.Invoice, error)
	ListInvoices(ctx context.Context) ([]models.Invoice, error)
}

// Identity supplies the id every imported row is attributed to.
type Identity interface {
	UserID() string
}

// Recorder persists the outcome of a run.
type Recorder interface {
	RecordRun(ctx context.Context, r *Report) error
}

// ProgressFunc is called after each data row with the number of rows handled
// so far and the total number of data rows.
type ProgressFunc func(current, total int)

// RowError is a failed row. Row is the spreadsheet row number (header is 1).
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Row, e.Message)
}

// Report summarizes an import run.
type Report struct {
	RunID      string           `json:"runId"`
	Source     string           `json:"source"`
	Total      int              `json:"total"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Errors     []RowError       `json:"errors,omitempty"`
	Warnings   []RowError       `json:"warnings,omitempty"`
	Invoices   []models.Invoice `json:"-"`
	RefreshErr error            `json:"-"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// Messages returns the per-row failures as display lines.
func (r *Report) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.String()
	}
	return out
}

// Summary is the one-line outcome shown after a run.
func (r *Report) Summary() string {
	if r.Failed > 0 {
		return fmt.Sprintf("Imported %d rows, %d failed", r.Succeeded, r.Failed)
	}
	return fmt.Sprintf("Successfully imported %d rows", r.Succeeded)
}

// Importer submits spreadsheet rows one at a time.
type Importer struct {
	backend  Backend
	identity Identity
	recorder Recorder
	progress ProgressFunc
	now      func() time.Time
	checker  *invoice.Validator
}

// Option configures an Importer.
type Option func(*Importer)

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(im *Importer) { im.progress = fn }
}

// WithRecorder stores each finished run, e.g. in the local journal.
func WithRecorder(r Recorder) Option {
	return func(im *Importer) { im.recorder = r }
}

// WithClock overrides time.Now for run timestamps and row warnings.
func WithClock(now func() time.Time) Option {
	return func(im *Importer) { im.now = now }
}

// New creates an Importer that submits through backend on behalf of id.
func New(backend Backend, id Identity, opts ...Option) *Importer {
	im := &Importer{
		backend:  backend,
		identity: id,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(im)
	}
	im.checker = invoice.NewValidator(invoice.ModeLenient, invoice.WithClock(im.now))
	return im
}

// Run imports every data row of sheet. Row failures never abort the run and
// the invoice list is refreshed at the end whatever happened. The returned
// error is non-nil only when the run could not start.
func (im *Importer) Run(ctx context.Context, sheet *Sheet) (*Report, error) {
	if im.identity == nil || strings.TrimSpace(im.identity.UserID()) == "" {
		return nil, ErrNoUser
	}
	if sheet == nil || len(sheet.Headers) == 0 {
		return nil, ErrEmptySheet
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Source:    sheet.Source,
		Total:     len(sheet.Rows),
		StartedAt: im.now(),
	}
	log := logger.WithRun("importer", report.RunID).With().
		Str("user_id", im.identity.UserID()).
		Str("source", sheet.Source).
		Logger()

	fields := ResolveHeaders(sheet.Headers)
	log.Debug().Strs("fields", fields).Int("rows", report.Total).Msg("Resolved sheet headers")

	for i := range sheet.Rows {
		rowNum := i + 2
		payload, ok := im.rowPayload(fields, sheet, i)
		if !ok {
			report.Skipped++
			log.Debug().Int("row", rowNum).Msg("Skipping blank row")
			im.tick(i+1, report.Total)
			continue
		}

		for _, w := range im.warnings(payload) {
			report.Warnings = append(report.Warnings, RowError{Row: rowNum, Message: w})
		}

		if _, err := im.backend.CreateInvoice(ctx, payload, nil); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, RowError{Row: rowNum, Message: err.Error()})
			log.Debug().Err(err).Int("row", rowNum).Msg("Row failed")
		} else {
			report.Succeeded++
			log.Debug().Int("row", rowNum).Str("invoice_number", payload.Get("invoiceNumber")).Msg("Row imported")
		}
		im.tick(i+1, report.Total)
	}

	invoices, err := im.backend.ListInvoices(context.WithoutCancel(ctx))
	if err != nil {
		report.RefreshErr = err
		log.Warn().Err(err).Msg("Failed to refresh invoices after import")
	} else {
		report.Invoices = invoices
	}
	report.FinishedAt = im.now()

	im.record(ctx, report, log)

	log.Info().
		Int("total", report.Total).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("Import finished")
	return report, nil
}

func (im *Importer) tick(current, total int) {
	if im.progress != nil {
		im.progress(current, total)
	}
}

func (im *Importer) record(ctx context.Context, report *Report, log zerolog.Logger) {
	if im.recorder == nil {
		return
	}
	if err := im.recorder.RecordRun(context.WithoutCancel(ctx), report); err != nil {
		log.Warn().Err(err).Msg("Failed to record import run")
	}
}

// rowPayload builds the creation payload for data row i. It reports false
// when no recognized column holds a value.
func (im *Importer) rowPayload(fields []string, sheet *Sheet, i int) (*models.Payload, bool) {
	p := models.NewPayload()
	p.Set("userId", im.identity.UserID())

	recognized := 0
	for j, field := range fields {
		if field == "" {
			continue
		}
		v := Coerce(field, sheet.Cell(i, j, field))
		if v.Null {
			continue
		}
		recognized++
		if field == "project" {
			for _, name := range strings.Split(v.Text, ",") {
				if name = strings.TrimSpace(name); name != "" {
					p.Add("project", name)
				}
			}
			continue
		}
		p.Set(field, v.Text)
	}
	return p, recognized > 0
}

// warnings runs the lenient checks on a row payload. They are reported, never
// enforced.
func (im *Importer) warnings(p *models.Payload) []string {
	f := invoice.FormFromPayload(p)
	res := im.checker.Validate(f, f.Calculate())
	out := make([]string, 0, len(res.Problems))
	for _, prob := range res.Problems {
		out = append(out, prob.Message)
	}
	return out
}
