package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"invoicedesk/pkg/models"
)

type staticUser string

func (u staticUser) UserID() string { return string(u) }

type fakeBackend struct {
	payloads  []*models.Payload
	failOn    map[string]error
	listCalls int
}

func (b *fakeBackend) CreateInvoice(_ context.Context, p *models.Payload, _ models.Files) (*models.Invoice, error) {
	b.payloads = append(b.payloads, p)
	if err := b.failOn[p.Get("invoiceNumber")]; err != nil {
		return nil, err
	}
	return &models.Invoice{InvoiceNumber: p.Get("invoiceNumber")}, nil
}

func (b *fakeBackend) ListInvoices(context.Context) ([]models.Invoice, error) {
	b.listCalls++
	out := make([]models.Invoice, 0, len(b.payloads))
	for _, p := range b.payloads {
		out = append(out, models.Invoice{InvoiceNumber: p.Get("invoiceNumber")})
	}
	return out, nil
}

type memRecorder struct{ reports []*Report }

func (m *memRecorder) RecordRun(_ context.Context, r *Report) error {
	m.reports = append(m.reports, r)
	return nil
}

var fixedNow = func() time.Time { return time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC) }

func TestRunHappyPath(t *testing.T) {
	backend := &fakeBackend{}
	rec := &memRecorder{}
	im := New(backend, staticUser("u-1"), WithRecorder(rec), WithClock(fixedNow))

	sheet := &Sheet{
		Source:  "april.csv",
		Headers: []string{"Invoice No", "Invoice Date", "Basic Amount"},
		Rows: [][]string{
			{"INV-1", "12 April 2025", "1000"},
			{"INV-2", "13 April 2025", "2000"},
		},
	}
	report, err := im.Run(context.Background(), sheet)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, "Successfully imported 2 rows", report.Summary())
	require.Len(t, backend.payloads, 2)

	first := backend.payloads[0]
	assert.Equal(t, "userId", first.Keys()[0])
	assert.Equal(t, "u-1", first.Get("userId"))
	assert.Equal(t, "2025-04-12", first.Get("invoiceDate"))
	assert.Equal(t, "1000.00", first.Get("invoiceBasicAmount"))
	assert.Equal(t, "2025-04-13", backend.payloads[1].Get("invoiceDate"))
	assert.Equal(t, "2000.00", backend.payloads[1].Get("invoiceBasicAmount"))

	assert.Equal(t, 1, backend.listCalls)
	assert.Len(t, report.Invoices, 2)
	require.Len(t, rec.reports, 1)
	assert.Equal(t, report.RunID, rec.reports[0].RunID)
}

func TestRunPartialFailureStillRefreshes(t *testing.T) {
	backend := &fakeBackend{failOn: map[string]error{"INV-2": errors.New("Invoice number already exists")}}
	im := New(backend, staticUser("u-1"), WithClock(fixedNow))

	sheet := &Sheet{
		Headers: []string{"Invoice No", "Basic Amount"},
		Rows: [][]string{
			{"INV-1", "100"},
			{"INV-2", "200"},
			{"INV-3", "300"},
		},
	}
	report, err := im.Run(context.Background(), sheet)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"Row 3: Invoice number already exists"}, report.Messages())
	assert.Equal(t, "Imported 2 rows, 1 failed", report.Summary())
	assert.Equal(t, 1, backend.listCalls)
	assert.Len(t, backend.payloads, 3, "later rows are still attempted")
}

func TestRunSkipsBlankRowsAndUnknownColumns(t *testing.T) {
	backend := &fakeBackend{}
	var ticks [][2]int
	im := New(backend, staticUser("u-1"), WithClock(fixedNow), WithProgress(func(c, total int) {
		ticks = append(ticks, [2]int{c, total})
	}))

	sheet := &Sheet{
		Headers: []string{"Colour", "Invoice No", "Project"},
		Rows: [][]string{
			{"red", "", ""},
			{"blue", "INV-7", "Alpha, Beta"},
			{},
		},
	}
	report, err := im.Run(context.Background(), sheet)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, backend.payloads, 1)
	p := backend.payloads[0]
	assert.False(t, p.Has("colour"))
	assert.Equal(t, []string{"Alpha", "Beta"}, p.Values("project"))
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, ticks)
}

func TestRunCollectsLenientWarnings(t *testing.T) {
	backend := &fakeBackend{}
	im := New(backend, staticUser("u-1"), WithClock(fixedNow))

	sheet := &Sheet{
		Headers: []string{"Invoice No", "Invoice Date"},
		Rows:    [][]string{{"INV-1", "1 January 2030"}},
	}
	report, err := im.Run(context.Background(), sheet)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded, "warnings never block a row")
	var msgs []string
	for _, w := range report.Warnings {
		assert.Equal(t, 2, w.Row)
		msgs = append(msgs, w.Message)
	}
	assert.Contains(t, msgs, "Invoice Date cannot be in the future")
}

func TestRunKeepsDisplayedPercentFromXLSX(t *testing.T) {
	wb := excelize.NewFile()
	name := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(name, "A1", &[]interface{}{"Invoice No", "GST Percentage", "Basic Amount"}))
	require.NoError(t, wb.SetSheetRow(name, "A2", &[]interface{}{"INV-1", 0.18, 1000}))
	pct, err := wb.NewStyle(&excelize.Style{NumFmt: 9})
	require.NoError(t, err)
	require.NoError(t, wb.SetCellStyle(name, "B2", "B2", pct))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	sheet, err := ReadXLSX(buf)
	require.NoError(t, err)

	backend := &fakeBackend{}
	report, err := New(backend, staticUser("u-1"), WithClock(fixedNow)).Run(context.Background(), sheet)
	require.NoError(t, err)

	require.Len(t, backend.payloads, 1)
	assert.Equal(t, "18%", backend.payloads[0].Get("gstPercentage"))
	assert.Equal(t, "1000.00", backend.payloads[0].Get("invoiceBasicAmount"))
	for _, w := range report.Warnings {
		assert.NotContains(t, w.Message, "GST percentage")
	}
}

func TestRunRequiresUser(t *testing.T) {
	im := New(&fakeBackend{}, staticUser(""))
	_, err := im.Run(context.Background(), &Sheet{Headers: []string{"Invoice No"}})
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestRunCancelledContextFailsRemainingRows(t *testing.T) {
	backend := &ctxBackend{}
	im := New(backend, staticUser("u-1"), WithClock(fixedNow))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := im.Run(ctx, &Sheet{
		Headers: []string{"Invoice No"},
		Rows:    [][]string{{"INV-1"}, {"INV-2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.True(t, backend.listed, "refresh runs even after cancellation")
}

type ctxBackend struct{ listed bool }

func (b *ctxBackend) CreateInvoice(ctx context.Context, _ *models.Payload, _ models.Files) (*models.Invoice, error) {
	return nil, ctx.Err()
}

func (b *ctxBackend) ListInvoices(ctx context.Context) ([]models.Invoice, error) {
	b.listed = true
	return nil, ctx.Err()
}
