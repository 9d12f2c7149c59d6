package preview

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedesk/pkg/models"
)

func sample() *models.Invoice {
	inv := &models.Invoice{
		Project:         models.Projects{"NFS"},
		InvoiceNumber:   "INV/2025/01",
		InvoiceDate:     models.MustDate("2025-04-12"),
		BasicAmount:     models.AmountFromString("1000"),
		GSTPercentage:   "18%",
		GSTAmount:       models.AmountFromString("180"),
		TotalAmount:     models.AmountFromString("1180"),
		TotalDeduction:  models.AmountFromString("100"),
		NetPayable:      models.AmountFromString("1080"),
		Balance:         models.AmountFromString("1080"),
		Status:          models.StatusUnderProcess,
		Remarks:         "Submitted to circle office",
		InvoiceCopyPath: `uploads\copies\inv-1.pdf`,
	}
	inv.Deductions.TDS = models.AmountFromString("100")
	return inv
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sample()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestRenderEmptyInvoice(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &models.Invoice{}))
	assert.NotZero(t, buf.Len())
}

func TestSaveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName(sample()))
	require.NoError(t, SaveFile(path, sample()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "invoice_INV_2025_01.pdf", FileName(sample()))
	assert.Equal(t, "invoice_draft.pdf", FileName(&models.Invoice{}))
}
