package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedesk/internal/api"
	"invoicedesk/internal/importer"
	"invoicedesk/internal/invoice"
	"invoicedesk/internal/report"
	"invoicedesk/internal/session"
	"invoicedesk/pkg/models"
)

func formCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	addFormFlags(c)
	require.NoError(t, c.Flags().Parse(args))
	return c
}

func TestParseDeductions(t *testing.T) {
	var d models.Deductions
	require.NoError(t, parseDeductions([]string{"tds=2000", "GST TDS=1,500.50", "ld=Rs. 300/-"}, &d))

	assert.True(t, d.Get("tds").Equal(decimal.NewFromInt(2000)))
	assert.True(t, d.Get("gstTds").Equal(decimal.RequireFromString("1500.50")))
	assert.True(t, d.Get("ld").Equal(decimal.NewFromInt(300)))

	assert.Error(t, parseDeductions([]string{"tds"}, &d))
	assert.ErrorContains(t, parseDeductions([]string{"bonus=5"}, &d), "unknown deduction")
}

func TestApplyFormFlagsCreate(t *testing.T) {
	copyPath := filepath.Join(t.TempDir(), "copy.pdf")
	require.NoError(t, os.WriteFile(copyPath, []byte("%PDF-1.4"), 0o644))

	c := formCommand(t,
		"--project", "NFS",
		"--number", "INV-7",
		"--date", "2025-04-10",
		"--basic", "1,00,000",
		"--gst", "18%",
		"--deduction", "tds=2000",
		"--status", "under process",
		"--invoice-copy", copyPath,
	)
	form := invoice.NewForm()
	require.NoError(t, applyFormFlags(c, &form))

	assert.Equal(t, models.Projects{"NFS"}, form.Project)
	assert.Equal(t, "Back To Back", form.Mode)
	assert.Equal(t, "INV-7", form.InvoiceNumber)
	assert.Equal(t, "2025-04-10", form.InvoiceDate.String())
	assert.True(t, form.BasicAmount.Decimal.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, models.StatusUnderProcess, form.Status)
	assert.Equal(t, copyPath, form.Files[models.FileInvoiceCopy])

	b := form.Calculate()
	assert.Equal(t, "18000.00", b.GSTAmount.StringFixed(2))
	assert.Equal(t, "116000.00", b.NetPayable.StringFixed(2))
}

func TestApplyFormFlagsOnlyChanged(t *testing.T) {
	inv := models.Invoice{
		ID:            "9",
		Project:       models.Projects{"GAIL"},
		InvoiceNumber: "INV-9",
		GSTPercentage: "18%",
		BasicAmount:   models.NewAmount(decimal.NewFromInt(500)),
		Status:        models.StatusUnderProcess,
	}
	form := invoice.FormFromInvoice(inv)

	c := formCommand(t, "--paid", "590", "--status", "Paid", "--payment-date", "2025-06-01")
	require.NoError(t, applyFormFlags(c, &form))

	assert.Equal(t, "INV-9", form.InvoiceNumber)
	assert.Equal(t, models.Projects{"GAIL"}, form.Project)
	assert.Equal(t, "18%", form.GSTPercentage)
	assert.Equal(t, models.StatusPaid, form.Status)
	assert.True(t, form.Calculate().Balance.IsZero())
}

func TestApplyFormFlagsRejectsBadInput(t *testing.T) {
	cases := map[string][]string{
		"gst":    {"--gst", "7%"},
		"status": {"--status", "Lost"},
		"date":   {"--date", "someday"},
		"upload": {"--proof", filepath.Join(t.TempDir(), "missing.pdf")},
		"amount": {"--basic", "abc"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			form := invoice.NewForm()
			assert.Error(t, applyFormFlags(formCommand(t, args...), &form))
		})
	}
}

func TestFilterFromFlags(t *testing.T) {
	c := &cobra.Command{Use: "test"}
	addFilterFlags(c)
	require.NoError(t, c.Flags().Parse([]string{
		"--project", "NFS,GAIL", "--status", "paid", "--fy", "FY 2024-25", "--from", "2024-05-01",
	}))

	f, err := filterFromFlags(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"NFS", "GAIL"}, f.Projects)
	assert.Equal(t, []models.Status{models.StatusPaid}, f.Statuses)
	require.NotNil(t, f.FinancialYear)
	assert.Equal(t, "2024-2025", f.FinancialYear.Value)
	assert.Equal(t, "2024-05-01", f.From.String())

	bad := &cobra.Command{Use: "test"}
	addFilterFlags(bad)
	require.NoError(t, bad.Flags().Parse([]string{"--fy", "2024-27"}))
	_, err = filterFromFlags(bad)
	assert.Error(t, err)
}

func TestHandleAPIError(t *testing.T) {
	log := zerolog.Nop()

	err := handleAPIError(fmt.Errorf("load: %w", session.ErrNoToken), log)
	assert.Contains(t, err.Error(), "invoicedesk login")

	err = handleAPIError(&api.APIError{StatusCode: 401, Message: "jwt expired"}, log)
	assert.Contains(t, err.Error(), "401")

	err = handleAPIError(fmt.Errorf("list: %w", context.DeadlineExceeded), log)
	assert.Contains(t, err.Error(), "--timeout")

	problems := invoice.ValidationErrors{
		invoice.NewValidationError(invoice.ErrMissingInvoiceCopy, "invoiceCopy", "Please attach the invoice copy"),
	}
	err = handleAPIError(problems, log)
	assert.Contains(t, err.Error(), "  - Please attach the invoice copy")

	assert.NoError(t, handleAPIError(nil, log))
}

func TestHandleAPIErrorImportSentinels(t *testing.T) {
	log := zerolog.Nop()

	err := handleAPIError(importer.ErrNoUser, log)
	assert.Contains(t, err.Error(), "Please re-login")

	err = handleAPIError(fmt.Errorf("load: %w", importer.ErrEmptySheet), log)
	assert.Equal(t, "file appears to be empty or missing headers", err.Error())
}

func TestStaleTotals(t *testing.T) {
	inv := models.Invoice{
		BasicAmount:    models.NewAmount(decimal.NewFromInt(1000)),
		GSTPercentage:  "18%",
		GSTAmount:      models.NewAmount(decimal.NewFromInt(180)),
		TotalAmount:    models.NewAmount(decimal.NewFromInt(1180)),
		NetPayable:     models.NewAmount(decimal.NewFromInt(1180)),
		Balance:        models.NewAmount(decimal.NewFromInt(1180)),
		TotalDeduction: models.NewAmount(decimal.Zero),
		Status:         models.StatusUnderProcess,
	}
	assert.Empty(t, staleTotals(inv))

	inv.Balance = models.NewAmount(decimal.NewFromInt(500))
	inv.GSTAmount = models.NewAmount(decimal.NewFromInt(120))
	assert.Equal(t, []string{"invoiceGstAmount", "balance"}, staleTotals(inv))
}

func TestFinancialYearOptions(t *testing.T) {
	got := financialYearOptions(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	require.Len(t, got, fyChoices)
	assert.Equal(t, "2024-2025", got[0])
	assert.Equal(t, "2023-2024", got[1])

	for _, v := range got {
		_, ok := report.ParseFinancialYear(v)
		assert.True(t, ok, v)
	}
}

func TestParseKind(t *testing.T) {
	kind, err := parseKind("proofofsubmission")
	require.NoError(t, err)
	assert.Equal(t, models.FileProofOfSubmission, kind)

	_, err = parseKind("photo")
	assert.ErrorContains(t, err, "invoiceCopy")
}
