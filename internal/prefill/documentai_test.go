package prefill

import (
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entity(kind, text string, conf float32) *documentaipb.Document_Entity {
	return &documentaipb.Document_Entity{Type: kind, MentionText: text, Confidence: conf}
}

func TestDraftFromDocument(t *testing.T) {
	doc := &documentaipb.Document{
		Entities: []*documentaipb.Document_Entity{
			entity("invoice_id", " INV/2025/014 ", 0.97),
			entity("invoice_date", "12/04/2025", 0.91),
			entity("net_amount", "₹ 1,00,000.00", 0.88),
			entity("total_tax_amount", "18,000.00", 0.86),
			entity("supplier_name", "Acme Networks", 0.9),
		},
	}

	d := draftFromDocument(doc, zerolog.Nop())
	assert.Equal(t, "INV/2025/014", d.InvoiceNumber)
	assert.Equal(t, "2025-04-12", d.InvoiceDate.String())
	require.True(t, d.BasicAmount.Valid)
	assert.True(t, d.BasicAmount.Decimal.Equal(dec("100000")))
	require.True(t, d.TotalAmount.Valid)
	assert.True(t, d.TotalAmount.Decimal.Equal(dec("118000")))
	assert.Equal(t, "18%", d.GSTPercentage)
	assert.Empty(t, d.Missing())
	assert.InDelta(t, 0.97, d.Confidence["invoice_id"], 0.001)
}

func TestDraftFromDocumentFallbacks(t *testing.T) {
	doc := &documentaipb.Document{
		Text: "TAX INVOICE\nInvoice No: NFS-2291\nDate of supply ...",
		Entities: []*documentaipb.Document_Entity{
			entity("invoice_date", "sometime in April", 0.3),
			entity("total_amount", "1,050.00", 0.8),
		},
	}

	d := draftFromDocument(doc, zerolog.Nop())
	assert.Equal(t, "NFS-2291", d.InvoiceNumber)
	assert.False(t, d.InvoiceDate.Valid())
	assert.False(t, d.BasicAmount.Valid)
	assert.Equal(t, []string{FieldInvoiceDate, FieldBasicAmount, FieldGSTPercentage}, d.Missing())
}

func TestInvoiceNumberFromText(t *testing.T) {
	assert.Equal(t, "A-17", invoiceNumberFromText("Invoice Number: A-17 dated"))
	assert.Equal(t, "BGCL/22", invoiceNumberFromText("Bill No. BGCL/22"))
	assert.Equal(t, "", invoiceNumberFromText("nothing to see"))
}

func TestHandleProcessingError(t *testing.T) {
	p := &DocumentAIExtractor{config: DocumentAIConfig{ProcessorID: "abc"}}

	tests := map[string]error{
		"rpc error: code = PermissionDenied desc = PERMISSION_DENIED": ErrInvalidCredentials,
		"RESOURCE_EXHAUSTED: quota":                                  ErrQuotaExceeded,
		"NOT_FOUND: processor":                                       ErrProcessorNotFound,
		"INVALID_ARGUMENT: bad doc":                                  ErrInvalidPDF,
		"something else":                                             ErrProcessingFailed,
	}
	for msg, want := range tests {
		err := p.handleProcessingError("Extract", errors.New(msg))
		assert.ErrorIs(t, err, want, msg)
	}
}
