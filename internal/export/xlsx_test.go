package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"invoicedesk/internal/importer"
	"invoicedesk/pkg/models"
)

func exported() []models.Invoice {
	inv := models.Invoice{
		Project:        models.Projects{"NFS", "GAIL"},
		ModeOfProject:  "Back To Back",
		State:          "Delhi",
		BillCategory:   "Service",
		InvoiceNumber:  "INV-1",
		InvoiceDate:    models.MustDate("2025-04-12"),
		BasicAmount:    models.AmountFromString("1000"),
		GSTPercentage:  "18%",
		GSTAmount:      models.AmountFromString("180"),
		TotalAmount:    models.AmountFromString("1180"),
		NetPayable:     models.AmountFromString("1080.5"),
		TotalDeduction: models.AmountFromString("99.5"),
		Status:         models.StatusUnderProcess,
		Balance:        models.AmountFromString("1080.5"),
		InvoiceCopyPath: "uploads/inv-1.pdf",
	}
	inv.Deductions.TDS = models.AmountFromString("99.5")
	return []models.Invoice{inv}
}

func TestColumns(t *testing.T) {
	headers := Headers()
	require.Len(t, headers, 33)
	assert.Equal(t, "Project", headers[0])
	assert.Equal(t, "Supporting Docs Path", headers[32])

	fields := importer.ResolveHeaders(headers)
	for i, f := range fields[:30] {
		assert.NotEmpty(t, f, headers[i])
	}
	assert.Equal(t, []string{"", "", ""}, fields[30:], "attachment paths are not importable")
}

func TestRows(t *testing.T) {
	rows := Rows(exported())
	require.Len(t, rows, 2)
	row := rows[1]
	assert.Equal(t, "NFS, GAIL", row[0])
	assert.Equal(t, "12 April 2025", row[6])
	assert.Equal(t, "", row[7])
	assert.Equal(t, 1000.0, row[8])
	assert.Equal(t, 99.5, row[15])
	assert.Equal(t, "uploads/inv-1.pdf", row[30])
}

func TestDefaultFileName(t *testing.T) {
	assert.Equal(t, "invoices_full_2025-05-10.xlsx", DefaultFileName(time.Date(2025, 5, 10, 23, 0, 0, 0, time.UTC)))
}

func TestWorkbookRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, exported()))

	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{SheetName}, wb.GetSheetList())
	require.NoError(t, wb.Close())

	sheet, err := importer.ReadXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)

	fields := importer.ResolveHeaders(sheet.Headers)
	got := map[string]importer.Value{}
	for j, f := range fields {
		if f != "" && j < len(sheet.Rows[0]) {
			got[f] = importer.Coerce(f, sheet.Rows[0][j])
		}
	}
	assert.Equal(t, "2025-04-12", got["invoiceDate"].Text)
	assert.Equal(t, "1000.00", got["invoiceBasicAmount"].Text)
	assert.Equal(t, "1080.50", got["netPayable"].Text)
	assert.Equal(t, "99.50", got["tds"].Text)
	assert.Equal(t, "NFS, GAIL", got["project"].Text)
	assert.True(t, got["submissionDate"].Null)
}

func TestSaveXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName(time.Now()))
	require.NoError(t, SaveXLSX(path, exported()))

	sheet, err := importer.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, sheet.Headers, 33)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "a.xlsx", ObjectName("", "a.xlsx"))
	assert.Equal(t, "exports/2025/a.xlsx", ObjectName("/exports/2025/", "a.xlsx"))
}
