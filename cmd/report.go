package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"invoicedesk/internal/logger"
	"invoicedesk/internal/report"
	"invoicedesk/pkg/models"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Dashboard reports over the visible invoices",
	Long: `Dashboard reports over the invoices visible to the current user. Every
report accepts the filters of 'invoice list' (--project, --fy, --status ...).`,
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Totals of basic, GST, total, paid, pending and balance",
	Args:  cobra.NoArgs,
	RunE:  runReportSummary,
}

var reportDeductionsCmd = &cobra.Command{
	Use:   "deductions [field]",
	Short: "Totals per deduction, or the invoices carrying one deduction",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReportDeductions,
}

var reportStatusCmd = &cobra.Command{
	Use:   "status [status]",
	Short: "Invoice counts per status, or the top invoices of one status",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReportStatus,
}

var reportProjectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Raised, approved, paid and balance per project",
	Args:  cobra.NoArgs,
	RunE:  runReportProjects,
}

var reportOverdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Under process invoices older than a timeframe",
	Example: `  invoicedesk report overdue --timeframe 3m --date-field submissionDate --project NFS`,
	Args:    cobra.NoArgs,
	RunE:    runReportOverdue,
}

var reportAgingCmd = &cobra.Command{
	Use:   "aging",
	Short: "Counts of Under process invoices per age bucket",
	Args:  cobra.NoArgs,
	RunE:  runReportAging,
}

var reportGSTCmd = &cobra.Command{
	Use:   "gst",
	Short: "GST by rate and by invoice date, with the largest GST invoices",
	Args:  cobra.NoArgs,
	RunE:  runReportGST,
}

var reportOptionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Financial years and projects accepted by --fy and --project",
	Args:  cobra.NoArgs,
	RunE:  runReportOptions,
}

// fyChoices is how many financial years, newest first, are offered for --fy.
const fyChoices = 5

func init() {
	rootCmd.AddCommand(reportCmd)
	subs := []*cobra.Command{reportSummaryCmd, reportDeductionsCmd, reportStatusCmd,
		reportProjectsCmd, reportOverdueCmd, reportAgingCmd, reportGSTCmd}
	reportCmd.AddCommand(subs...)
	for _, c := range subs {
		addFilterFlags(c)
	}
	reportCmd.AddCommand(reportOptionsCmd)

	reportOverdueCmd.Flags().String("date-field", string(report.ByInvoiceDate), "Age from invoiceDate or submissionDate")
	reportOverdueCmd.Flags().String("timeframe", report.DefaultTimeframe, "Minimum age: 1w, 2w, 15d, 1m, 2m, 3m, 6m or 1y")
}

// financialYearOptions lists the --fy values offered at time now.
func financialYearOptions(now time.Time) []string {
	years := report.FinancialYears(report.CurrentFinancialYearStart(now), fyChoices)
	out := make([]string, len(years))
	for i, fy := range years {
		out[i] = fy.Value
	}
	return out
}

func runReportOptions(cmd *cobra.Command, args []string) error {
	list, err := reportInvoices(report.Filter{})
	if err != nil {
		return err
	}
	years := report.FinancialYears(report.CurrentFinancialYearStart(time.Now()), fyChoices)
	projects := report.ProjectOptions(list)

	if jsonOutput(cmd) {
		return printJSON(os.Stdout, struct {
			FinancialYears []report.FinancialYear `json:"financialYears"`
			Projects       []string               `json:"projects"`
		}{years, projects})
	}
	tw := newTable(os.Stdout)
	row(tw, "FINANCIAL YEAR", "FROM", "TO")
	for _, fy := range years {
		row(tw, fy.Label, fy.Start.String(), fy.End.String())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Projects:")
	for _, p := range projects {
		fmt.Println("  " + p)
	}
	return nil
}

// reportInvoices fetches the visible invoices and applies filter.
func reportInvoices(filter report.Filter) ([]models.Invoice, error) {
	log := logger.WithComponent("report")
	client, err := newClient(true)
	if err != nil {
		return nil, handleAPIError(err, log)
	}
	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	list, err := client.ListInvoices(ctx)
	if err != nil {
		return nil, handleAPIError(err, log)
	}
	return report.Apply(list, filter), nil
}

func filteredInvoices(cmd *cobra.Command) ([]models.Invoice, error) {
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	return reportInvoices(filter)
}

func runReportSummary(cmd *cobra.Command, args []string) error {
	list, err := filteredInvoices(cmd)
	if err != nil {
		return err
	}
	s := report.Summarize(list)
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, s)
	}
	tw := newTable(os.Stdout)
	row(tw, "Invoices", strconv.Itoa(s.Count))
	row(tw, "Basic amount", models.FormatMoney(s.Basic))
	row(tw, "GST", models.FormatMoney(s.GST))
	row(tw, "Total amount", models.FormatMoney(s.Total))
	row(tw, "Amount paid", models.FormatMoney(s.Paid))
	row(tw, "Pending", models.FormatMoney(s.Pending))
	row(tw, "Balance", models.FormatMoney(s.Balance))
	return tw.Flush()
}

func runReportDeductions(cmd *cobra.Command, args []string) error {
	list, err := filteredInvoices(cmd)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		carrying, err := report.DeductionDetail(list, args[0])
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(os.Stdout, carrying)
		}
		key, _ := deductionField(args[0])
		tw := newTable(os.Stdout)
		row(tw, "NUMBER", "PROJECT", "DATE", "AMOUNT")
		for _, inv := range carrying {
			row(tw, inv.InvoiceNumber, inv.Project.String(), inv.InvoiceDate.String(),
				models.FormatMoney(inv.Deductions.Get(key)))
		}
		return tw.Flush()
	}

	totals := report.DeductionTotals(list)
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, totals)
	}
	tw := newTable(os.Stdout)
	row(tw, "DEDUCTION", "KEY", "TOTAL")
	for _, t := range totals {
		row(tw, t.Label, t.Key, models.FormatMoney(t.Value))
	}
	return tw.Flush()
}

func runReportStatus(cmd *cobra.Command, args []string) error {
	list, err := filteredInvoices(cmd)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		status, ok := models.ParseStatus(args[0])
		if !ok {
			return fmt.Errorf("invalid status %q (one of: %s)", args[0], joinStatuses())
		}
		inStatus := report.Apply(list, report.Filter{Statuses: []models.Status{status}})
		top := report.TopForStatus(inStatus, status)
		if jsonOutput(cmd) {
			return printJSON(os.Stdout, top)
		}
		fmt.Printf("%s: %d invoices\n", status, len(inStatus))
		return invoiceTable(os.Stdout, top)
	}

	counts := report.StatusCounts(list)
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, counts)
	}
	tw := newTable(os.Stdout)
	row(tw, "STATUS", "COUNT")
	for _, c := range counts {
		row(tw, string(c.Status), strconv.Itoa(c.Count))
	}
	return tw.Flush()
}

func runReportProjects(cmd *cobra.Command, args []string) error {
	list, err := filteredInvoices(cmd)
	if err != nil {
		return err
	}
	projects := report.ProjectBreakdown(list)
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, projects)
	}
	tw := newTable(os.Stdout)
	row(tw, "PROJECT", "INVOICES", "RAISED", "APPROVED", "TOTAL", "PAID", "BALANCE")
	for _, p := range projects {
		row(tw, p.Project, strconv.Itoa(p.Count), models.FormatMoney(p.Raised), models.FormatMoney(p.Approved),
			models.FormatMoney(p.Total), models.FormatMoney(p.Paid), models.FormatMoney(p.Balance))
	}
	return tw.Flush()
}

func runReportOverdue(cmd *cobra.Command, args []string) error {
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}

	raw, _ := cmd.Flags().GetString("date-field")
	field, err := report.ParseDateField(raw)
	if err != nil {
		return err
	}
	raw, _ = cmd.Flags().GetString("timeframe")
	tf, err := report.ParseTimeframe(raw)
	if err != nil {
		return err
	}

	// Overdue search only looks at the invoice number.
	q := report.OverdueQuery{DateField: field, Timeframe: tf, Search: filter.Search}
	filter.Search = ""

	list, err := reportInvoices(filter)
	if err != nil {
		return err
	}
	overdue := report.Overdue(list, q, time.Now())
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, overdue)
	}
	if len(overdue) == 0 {
		fmt.Println("No overdue invoices")
		return nil
	}
	return invoiceTable(os.Stdout, overdue)
}

func runReportAging(cmd *cobra.Command, args []string) error {
	list, err := filteredInvoices(cmd)
	if err != nil {
		return err
	}
	buckets := report.Aging(list, "", time.Now())
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, buckets)
	}
	tw := newTable(os.Stdout)
	row(tw, "OLDER THAN", "BY INVOICE DATE", "BY SUBMISSION DATE")
	for _, b := range buckets {
		row(tw, b.Label, strconv.Itoa(b.InvoiceDate), strconv.Itoa(b.SubmissionDate))
	}
	return tw.Flush()
}

func runReportGST(cmd *cobra.Command, args []string) error {
	list, err := filteredInvoices(cmd)
	if err != nil {
		return err
	}
	g := report.GSTBreakdown(list)
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, g)
	}

	fmt.Printf("%d invoices, total GST %s\n\n", g.Count, models.FormatMoney(g.TotalGST))
	tw := newTable(os.Stdout)
	row(tw, "RATE", "INVOICES", "GST")
	for _, r := range g.ByRate {
		row(tw, orNone(r.Rate), strconv.Itoa(r.Count), models.FormatMoney(r.GST))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(g.Top) > 0 {
		fmt.Println("\nLargest GST amounts:")
		return invoiceTable(os.Stdout, g.Top)
	}
	return nil
}
