package prefill

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedesk/pkg/models"
)

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

type stubExtractor struct {
	draft *Draft
	err   error
	seen  []byte
}

func (s *stubExtractor) Extract(ctx context.Context, pdf io.Reader) (*Draft, error) {
	s.seen, _ = io.ReadAll(pdf)
	return s.draft, s.err
}

type stubCompleter struct {
	calls int
	err   error
	fill  func(d *Draft)
}

func (s *stubCompleter) Complete(ctx context.Context, pdf []byte, d *Draft) error {
	s.calls++
	if s.fill != nil {
		s.fill(d)
	}
	return s.err
}

const pdfBody = "%PDF-1.7 fake"

func TestServiceCompleteDraftSkipsCompletion(t *testing.T) {
	ex := &stubExtractor{draft: &Draft{
		InvoiceNumber: "A",
		InvoiceDate:   mustDate(t, "2025-04-01"),
		BasicAmount:   decimal.NewNullDecimal(decimal.NewFromInt(10)),
		GSTPercentage: "0%",
	}}
	comp := &stubCompleter{}

	d, err := NewService(ex, comp).Extract(context.Background(), strings.NewReader(pdfBody))
	require.NoError(t, err)
	assert.Equal(t, "A", d.InvoiceNumber)
	assert.Equal(t, pdfBody, string(ex.seen))
	assert.Zero(t, comp.calls)
}

func TestServiceCompletesMissing(t *testing.T) {
	ex := &stubExtractor{draft: &Draft{InvoiceNumber: "A"}}
	comp := &stubCompleter{fill: func(d *Draft) { d.GSTPercentage = "5%" }}

	d, err := NewService(ex, comp).Extract(context.Background(), strings.NewReader(pdfBody))
	require.NoError(t, err)
	assert.Equal(t, 1, comp.calls)
	assert.Equal(t, "5%", d.GSTPercentage)
}

func TestServiceExtractorFailureFallsBack(t *testing.T) {
	ex := &stubExtractor{err: WrapError("Extract", ErrQuotaExceeded, "")}
	comp := &stubCompleter{fill: func(d *Draft) { d.InvoiceNumber = "FROM-OCR" }}

	d, err := NewService(ex, comp).Extract(context.Background(), strings.NewReader(pdfBody))
	require.NoError(t, err)
	assert.Equal(t, "FROM-OCR", d.InvoiceNumber)

	_, err = NewService(ex, nil).Extract(context.Background(), strings.NewReader(pdfBody))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestServiceCompletionFailureKeepsPartial(t *testing.T) {
	ex := &stubExtractor{draft: &Draft{InvoiceNumber: "A"}}
	comp := &stubCompleter{err: errors.New("model down")}

	d, err := NewService(ex, comp).Extract(context.Background(), strings.NewReader(pdfBody))
	require.NoError(t, err)
	assert.Equal(t, "A", d.InvoiceNumber)
}

func TestServiceRejectsNonPDF(t *testing.T) {
	_, err := NewService(&stubExtractor{}, nil).Extract(context.Background(), strings.NewReader("hello"))
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

func TestServiceNeedsBackend(t *testing.T) {
	_, err := NewService(nil, nil).Extract(context.Background(), strings.NewReader(pdfBody))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError("op", nil, ""))

	inner := WrapError("inner", ErrInvalidPDF, "bad")
	assert.Same(t, inner, WrapError("outer", inner, "again"))
	assert.Equal(t, "prefill: inner failed: bad: invalid or corrupted PDF document", inner.Error())
}
