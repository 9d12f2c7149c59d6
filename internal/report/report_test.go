package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedesk/pkg/models"
)

func amt(s string) models.Amount { return models.AmountFromString(s) }

func sample() []models.Invoice {
	a := models.Invoice{
		ID: "1", InvoiceNumber: "NFS-001", Project: models.Projects{"NFS"}, State: "Delhi",
		BillCategory: "Service", Status: models.StatusPaid, GSTPercentage: "18%",
		InvoiceDate: models.MustDate("2025-04-12"), SubmissionDate: models.MustDate("2025-04-15"),
		BasicAmount: amt("1000"), GSTAmount: amt("180"), TotalAmount: amt("1180"),
		PassedAmountByClient: amt("1000"), NetPayable: amt("1080"), AmountPaidByClient: amt("1080"),
	}
	a.Deductions.TDS = amt("100")

	b := models.Invoice{
		ID: "2", InvoiceNumber: "GAIL-7", Project: models.Projects{"GAIL", "NFS"}, State: "Bihar",
		BillCategory: "Supply", Status: models.StatusUnderProcess, GSTPercentage: "12%",
		InvoiceDate: models.MustDate("2024-10-01"), SubmissionDate: models.MustDate("2025-01-20"),
		BasicAmount: amt("2000"), GSTAmount: amt("240"), TotalAmount: amt("2240"),
		NetPayable: amt("2200"), AmountPaidByClient: amt("200"), Balance: amt("2000"),
	}
	b.Deductions.TDS = amt("20")
	b.Deductions.Retention = amt("20")

	c := models.Invoice{
		ID: "3", InvoiceNumber: "X-1", Status: models.StatusUnderProcess, GSTPercentage: "18%",
		InvoiceDate: models.MustDate("2025-05-01"),
		BasicAmount: amt("500"), GSTAmount: amt("90"), TotalAmount: amt("590"),
		NetPayable: amt("590"), Balance: amt("590"),
	}
	return []models.Invoice{a, b, c}
}

var now = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func TestFinancialYears(t *testing.T) {
	years := FinancialYears(2025, 5)
	require.Len(t, years, 5)
	assert.Equal(t, "FY 2025-26", years[0].Label)
	assert.Equal(t, "2025-2026", years[0].Value)
	assert.Equal(t, "2025-04-01", years[0].Start.String())
	assert.Equal(t, "2026-03-31", years[0].End.String())
	assert.Equal(t, "FY 2021-22", years[4].Label)

	for _, in := range []string{"2025-2026", "2025-26", "FY 2025-26", "fy2025/26"} {
		fy, ok := ParseFinancialYear(in)
		require.True(t, ok, in)
		assert.Equal(t, "2025-2026", fy.Value, in)
	}
	_, ok := ParseFinancialYear("2025-2027")
	assert.False(t, ok)

	fy := NewFinancialYear(2024)
	assert.True(t, fy.Contains(models.MustDate("2025-03-31")))
	assert.False(t, fy.Contains(models.MustDate("2025-04-01")))
	assert.False(t, fy.Contains(models.Date{}))

	assert.Equal(t, 2024, CurrentFinancialYearStart(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2025, CurrentFinancialYearStart(now))
}

func TestFilter(t *testing.T) {
	list := sample()
	fy := NewFinancialYear(2025)

	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"none", Filter{}, []string{"1", "2", "3"}},
		{"search number", Filter{Search: "gail"}, []string{"2"}},
		{"search status", Filter{Search: "paid"}, []string{"1"}},
		{"project any", Filter{Projects: []string{"nfs"}}, []string{"1", "2"}},
		{"state", Filter{State: "Delhi"}, []string{"1"}},
		{"bill category", Filter{BillCategory: "supply"}, []string{"2"}},
		{"statuses", Filter{Statuses: []models.Status{models.StatusUnderProcess}}, []string{"2", "3"}},
		{"financial year", Filter{FinancialYear: &fy}, []string{"1", "3"}},
		{"range inclusive", Filter{From: models.MustDate("2025-04-12"), To: models.MustDate("2025-05-01")}, []string{"1", "3"}},
		{"open start", Filter{To: models.MustDate("2024-12-31")}, []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, inv := range Apply(list, tt.f) {
				got = append(got, inv.ID.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, "3500", s.Basic.String())
	assert.Equal(t, "510", s.GST.String())
	assert.Equal(t, "4010", s.Total.String())
	assert.Equal(t, "1280", s.Paid.String())
	assert.Equal(t, "2590", s.Pending.String())
	assert.Equal(t, "2590", s.Balance.String())
}

func TestDeductions(t *testing.T) {
	totals := DeductionTotals(sample())
	require.Len(t, totals, len(models.DeductionFields))
	assert.Equal(t, "Retention", totals[0].Label)
	assert.Equal(t, "20", totals[0].Value.String())
	assert.Equal(t, "TDS", totals[2].Label)
	assert.Equal(t, "120", totals[2].Value.String())

	detail, err := DeductionDetail(sample(), "TDS")
	require.NoError(t, err)
	assert.Len(t, detail, 2)

	detail, err = DeductionDetail(sample(), "retention")
	require.NoError(t, err)
	require.Len(t, detail, 1)
	assert.Equal(t, "GAIL-7", detail[0].InvoiceNumber)

	_, err = DeductionDetail(sample(), "bribes")
	assert.Error(t, err)
}

func TestStatusCounts(t *testing.T) {
	list := append(sample(), models.Invoice{Status: "Lost"}, models.Invoice{Status: " cancelled "})
	counts := StatusCounts(list)
	assert.Equal(t, []StatusCount{
		{models.StatusPaid, 1},
		{models.StatusUnderProcess, 2},
		{models.StatusCreditNoteIssued, 0},
		{models.StatusCancelled, 1},
	}, counts)
}

func TestProjectBreakdown(t *testing.T) {
	got := ProjectBreakdown(sample())
	require.Len(t, got, 3)
	assert.Equal(t, "NFS", got[0].Project)
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "3000", got[0].Raised.String())
	assert.Equal(t, "GAIL", got[1].Project)
	assert.Equal(t, UnknownProject, got[2].Project)

	assert.Equal(t, []string{"GAIL", "NFS"}, ProjectOptions(sample()))
}

func TestOverdue(t *testing.T) {
	list := sample()

	got := Overdue(list, OverdueQuery{DateField: ByInvoiceDate, Timeframe: 180 * day}, now)
	require.Len(t, got, 1)
	assert.Equal(t, "GAIL-7", got[0].InvoiceNumber)

	got = Overdue(list, OverdueQuery{DateField: BySubmissionDate, Timeframe: 90 * day}, now)
	assert.Len(t, got, 1)

	got = Overdue(list, OverdueQuery{DateField: ByInvoiceDate, Timeframe: 7 * day}, now)
	assert.Len(t, got, 2, "X-1 is nine days old")

	got = Overdue(list, OverdueQuery{DateField: ByInvoiceDate, Timeframe: 7 * day, Project: "gail"}, now)
	assert.Len(t, got, 1)

	got = Overdue(list, OverdueQuery{DateField: ByInvoiceDate, Timeframe: 7 * day, Search: "x-"}, now)
	assert.Len(t, got, 1)
}

func TestParseTimeframe(t *testing.T) {
	d, err := ParseTimeframe("")
	require.NoError(t, err)
	assert.Equal(t, 180*day, d)

	d, err = ParseTimeframe("2W")
	require.NoError(t, err)
	assert.Equal(t, 14*day, d)

	d, err = ParseTimeframe("1y")
	require.NoError(t, err)
	assert.Equal(t, 365*day, d)

	_, err = ParseTimeframe("forever")
	assert.Error(t, err)

	f, err := ParseDateField("SubmissionDate")
	require.NoError(t, err)
	assert.Equal(t, BySubmissionDate, f)
	_, err = ParseDateField("paymentDate")
	assert.Error(t, err)
}

func TestAging(t *testing.T) {
	buckets := Aging(sample(), "", now)
	require.Len(t, buckets, 5)

	got := map[string][2]int{}
	for _, b := range buckets {
		got[b.Value] = [2]int{b.InvoiceDate, b.SubmissionDate}
	}
	assert.Equal(t, [2]int{2, 1}, got["1w"])
	assert.Equal(t, [2]int{1, 1}, got["15d"])
	assert.Equal(t, [2]int{1, 1}, got["3m"])
	assert.Equal(t, [2]int{1, 0}, got["6m"])

	buckets = Aging(sample(), "NFS", now)
	assert.Equal(t, 1, buckets[0].InvoiceDate)
}

func TestGSTBreakdown(t *testing.T) {
	r := GSTBreakdown(sample())
	assert.Equal(t, 3, r.Count)
	assert.Equal(t, "510", r.TotalGST.String())

	require.Len(t, r.ByRate, 2)
	assert.Equal(t, "12%", r.ByRate[0].Rate)
	assert.Equal(t, "18%", r.ByRate[1].Rate)
	assert.Equal(t, 2, r.ByRate[1].Count)
	assert.Equal(t, "270", r.ByRate[1].GST.String())

	require.Len(t, r.ByDate, 3)
	assert.Equal(t, "2024-10-01", r.ByDate[0].Date.String())

	require.Len(t, r.Top, 3)
	assert.Equal(t, "GAIL-7", r.Top[0].InvoiceNumber)
}

func TestTopForStatus(t *testing.T) {
	paid := TopForStatus(sample(), models.StatusPaid)
	assert.Equal(t, "NFS-001", paid[0].InvoiceNumber)

	open := TopForStatus(sample(), models.StatusUnderProcess)
	assert.Equal(t, "GAIL-7", open[0].InvoiceNumber)
	assert.True(t, open[0].Balance.Equal(decimal.NewFromInt(2000)))
}
