package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"invoicedesk/internal/api"
	"invoicedesk/internal/invoice"
	"invoicedesk/internal/logger"
	"invoicedesk/internal/report"
	"invoicedesk/pkg/models"
)

var invoiceCmd = &cobra.Command{
	Use:     "invoice",
	Aliases: []string{"invoices", "inv"},
	Short:   "List, create, edit and delete invoices",
}

var invoiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices visible to the current user",
	Example: `  invoicedesk invoice list --project NFS --fy 2025-26
  invoicedesk invoice list --status "Under process" --search INV-2025 --json`,
	Args: cobra.NoArgs,
	RunE: runInvoiceList,
}

var invoiceShowCmd = &cobra.Command{
	Use:   "show <invoice-id>",
	Short: "Show every field of one invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runInvoiceShow,
}

var invoiceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an invoice",
	Long: `Create an invoice. GST, totals, net payable and balance are computed
locally and submitted with the form. The invoice copy and the proof of
submission are required, and the invoice number must not already exist.`,
	Example: `  invoicedesk invoice create --project NFS --state Delhi --bill-category Service \
    --number INV-2025-014 --date 2025-05-02 --submission-date 2025-05-05 \
    --basic 150000 --gst 18% --deduction tds=3000 \
    --invoice-copy ./inv-014.pdf --proof ./ack-014.pdf`,
	Args: cobra.NoArgs,
	RunE: runInvoiceCreate,
}

var invoiceUpdateCmd = &cobra.Command{
	Use:   "update <invoice-id>",
	Short: "Edit an invoice; only the flags given are changed",
	Example: `  invoicedesk invoice update 42 --paid 174000 --payment-date 2025-07-01 --status Paid`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInvoiceUpdate,
}

var invoiceDeleteCmd = &cobra.Command{
	Use:   "delete <invoice-id>...",
	Short: "Delete one or more invoices",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInvoiceDelete,
}

var invoiceRemoveFileCmd = &cobra.Command{
	Use:   "remove-file <invoice-id> <kind>",
	Short: "Remove a stored attachment (invoiceCopy, proofOfSubmission, supportingDocs)",
	Args:  cobra.ExactArgs(2),
	RunE:  runInvoiceRemoveFile,
}

var invoiceDownloadCmd = &cobra.Command{
	Use:   "download <invoice-id> <kind>",
	Short: "Download a stored attachment",
	Args:  cobra.ExactArgs(2),
	RunE:  runInvoiceDownload,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceListCmd, invoiceShowCmd, invoiceCreateCmd, invoiceUpdateCmd,
		invoiceDeleteCmd, invoiceRemoveFileCmd, invoiceDownloadCmd)

	addFilterFlags(invoiceListCmd)

	addFormFlags(invoiceCreateCmd)
	addFormFlags(invoiceUpdateCmd)
	for _, c := range []*cobra.Command{invoiceCreateCmd, invoiceUpdateCmd} {
		c.Flags().Bool("dry-run", false, "Validate and print the payload without submitting")
	}

	invoiceDeleteCmd.Flags().Bool("yes", false, "Confirm the deletion")
	invoiceDownloadCmd.Flags().StringP("output", "o", "", "Output file (default: the stored file name)")
}

// addFilterFlags registers the list filters shared by list, export and report.
func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("search", "", "Match invoice number or status")
	f.StringSlice("project", nil, "Keep invoices of these projects")
	f.String("state", "", "Keep invoices of this state")
	f.String("bill-category", "", "Keep invoices of this bill category")
	f.StringSlice("status", nil, "Keep invoices with these statuses")
	f.String("fy", "", "Financial year, e.g. 2025-26")
	f.String("from", "", "Earliest invoice date (YYYY-MM-DD)")
	f.String("to", "", "Latest invoice date (YYYY-MM-DD)")

	_ = cmd.RegisterFlagCompletionFunc("fy", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return financialYearOptions(time.Now()), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("project", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		list, err := reportInvoices(report.Filter{})
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return report.ProjectOptions(list), cobra.ShellCompDirectiveNoFileComp
	})
}

func filterFromFlags(cmd *cobra.Command) (report.Filter, error) {
	flags := cmd.Flags()
	var filter report.Filter

	filter.Search, _ = flags.GetString("search")
	filter.Projects, _ = flags.GetStringSlice("project")
	filter.State, _ = flags.GetString("state")
	filter.BillCategory, _ = flags.GetString("bill-category")

	statuses, _ := flags.GetStringSlice("status")
	for _, raw := range statuses {
		st, ok := models.ParseStatus(raw)
		if !ok {
			return filter, fmt.Errorf("invalid --status %q", raw)
		}
		filter.Statuses = append(filter.Statuses, st)
	}

	if raw, _ := flags.GetString("fy"); raw != "" {
		fy, ok := report.ParseFinancialYear(raw)
		if !ok {
			return filter, fmt.Errorf("invalid --fy %q (expected e.g. 2025-26)", raw)
		}
		filter.FinancialYear = &fy
	}

	var err error
	if raw, _ := flags.GetString("from"); raw != "" {
		if filter.From, err = models.ParseDate(raw); err != nil {
			return filter, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if raw, _ := flags.GetString("to"); raw != "" {
		if filter.To, err = models.ParseDate(raw); err != nil {
			return filter, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return filter, nil
}

// fetchInvoices lists the visible invoices and applies the filter flags.
func fetchInvoices(cmd *cobra.Command, client *api.Client) ([]models.Invoice, error) {
	filter, err := filterFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.WithComponent("invoice")
	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	list, err := client.ListInvoices(ctx)
	if err != nil {
		return nil, handleAPIError(err, log)
	}
	return report.Apply(list, filter), nil
}

func addFormFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("project", nil, "Project(s): "+strings.Join(models.AdminProjects, ", "))
	f.String("mode", "", "Mode of project: "+strings.Join(models.Modes, ", "))
	f.String("state", "", "State: "+strings.Join(models.States, ", "))
	f.String("bill-category", "", "Bill category: "+strings.Join(models.BillCategories, ", "))
	f.String("milestone", "", "Milestone: "+strings.Join(models.Milestones, ", "))
	f.String("number", "", "Invoice number")
	f.String("date", "", "Invoice date (YYYY-MM-DD)")
	f.String("submission-date", "", "Submission date (YYYY-MM-DD)")
	f.String("payment-date", "", "Payment date (YYYY-MM-DD)")
	f.String("basic", "", "Invoice basic amount")
	f.String("gst", "", "GST percentage: "+strings.Join(models.GSTRates, ", "))
	f.String("passed", "", "Amount passed by client")
	f.StringArray("deduction", nil, "Deduction as key=value (repeatable)")
	f.String("paid", "", "Amount paid by client")
	f.String("status", "", "Status: "+joinStatuses())
	f.String("remarks", "", "Remarks")
	f.String("invoice-copy", "", "Invoice copy to upload")
	f.String("proof", "", "Proof of submission to upload")
	f.String("supporting", "", "Supporting documents to upload")
	f.String("from-draft", "", "Prefill from a draft JSON written by 'invoicedesk prefill'")
}

func joinStatuses() string {
	names := make([]string, len(models.Statuses))
	for i, s := range models.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// applyFormFlags copies every flag the user set onto the form.
func applyFormFlags(cmd *cobra.Command, form *invoice.Form) error {
	flags := cmd.Flags()
	str := func(name string) (string, bool) {
		if !flags.Changed(name) {
			return "", false
		}
		v, _ := flags.GetString(name)
		return strings.TrimSpace(v), true
	}

	if path, ok := str("from-draft"); ok && path != "" {
		d, err := loadDraft(path)
		if err != nil {
			return err
		}
		d.ApplyTo(form)
	}

	if flags.Changed("project") {
		projects, _ := flags.GetStringSlice("project")
		if len(projects) == 1 {
			form.SelectProject(projects[0])
		} else {
			form.Project = models.NormalizeProjects(projects)
		}
	}
	if v, ok := str("mode"); ok {
		form.Mode = v
	}
	if v, ok := str("state"); ok {
		form.State = v
	}
	if v, ok := str("bill-category"); ok {
		form.BillCategory = v
	}
	if v, ok := str("milestone"); ok {
		form.Milestone = v
	}
	if v, ok := str("number"); ok {
		form.InvoiceNumber = v
	}

	dates := []struct {
		flag string
		dst  *models.Date
	}{
		{"date", &form.InvoiceDate},
		{"submission-date", &form.SubmissionDate},
		{"payment-date", &form.PaymentDate},
	}
	for _, d := range dates {
		v, ok := str(d.flag)
		if !ok {
			continue
		}
		if v == "" {
			*d.dst = models.Date{}
			continue
		}
		parsed, err := models.ParseDate(v)
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", d.flag, err)
		}
		*d.dst = parsed
	}

	var err error
	if v, ok := str("basic"); ok {
		if form.BasicAmount, err = parseAmountFlag("basic", v); err != nil {
			return err
		}
	}
	if v, ok := str("gst"); ok {
		if v != "" && !models.IsGSTRate(v) {
			return fmt.Errorf("invalid --gst %q (one of: %s)", v, strings.Join(models.GSTRates, ", "))
		}
		form.GSTPercentage = v
	}
	if v, ok := str("passed"); ok {
		if form.PassedAmount, err = parseAmountFlag("passed", v); err != nil {
			return err
		}
	}
	if flags.Changed("deduction") {
		pairs, _ := flags.GetStringArray("deduction")
		if err := parseDeductions(pairs, &form.Deductions); err != nil {
			return err
		}
	}
	if v, ok := str("paid"); ok {
		if form.AmountPaid, err = parseAmountFlag("paid", v); err != nil {
			return err
		}
	}
	if v, ok := str("status"); ok {
		status, known := models.ParseStatus(v)
		if !known {
			return fmt.Errorf("invalid --status %q (one of: %s)", v, joinStatuses())
		}
		form.Status = status
	}
	if v, ok := str("remarks"); ok {
		form.Remarks = v
	}

	uploads := map[string]models.FileKind{
		"invoice-copy": models.FileInvoiceCopy,
		"proof":        models.FileProofOfSubmission,
		"supporting":   models.FileSupportingDocs,
	}
	for flag, kind := range uploads {
		path, ok := str(flag)
		if !ok || path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("--%s: %w", flag, err)
		}
		form.Files[kind] = path
	}
	return nil
}

// submitForm validates the form strictly against the visible invoices and
// creates or updates it.
func submitForm(cmd *cobra.Command, client *api.Client, form invoice.Form, existing []models.Invoice) error {
	log := logger.WithComponent("invoice")
	if form.ID != "" {
		log = log.With().Str("invoice_id", form.ID).Logger()
	}

	b := form.Calculate()
	res := invoice.NewValidator(invoice.ModeStrict, invoice.WithExisting(existing)).Validate(form, b)
	if err := res.Err(); err != nil {
		return handleAPIError(err, log)
	}
	payload := invoice.BuildPayload(form, b)

	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		return printJSON(os.Stdout, struct {
			Fields map[string]string `json:"fields"`
			Files  models.Files      `json:"files,omitempty"`
		}{payload.Map(), form.Files})
	}

	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	var (
		saved *models.Invoice
		err   error
	)
	if form.ID == "" {
		saved, err = client.CreateInvoice(ctx, payload, form.Files)
	} else {
		saved, err = client.UpdateInvoice(ctx, form.ID, payload, form.Files)
	}
	if err != nil {
		return handleAPIError(err, log)
	}

	log.Info().
		Str("invoice_number", form.InvoiceNumber).
		Str("net_payable", b.NetPayable.StringFixed(2)).
		Msg("Invoice saved")

	if jsonOutput(cmd) {
		return printJSON(os.Stdout, saved)
	}
	id := form.ID
	if saved != nil && saved.ID.String() != "" {
		id = saved.ID.String()
	}
	if form.ID == "" {
		fmt.Printf("Invoice %s created (id %s)\n", form.InvoiceNumber, id)
	} else {
		fmt.Printf("Invoice %s updated\n", form.InvoiceNumber)
	}
	return nil
}

func runInvoiceList(cmd *cobra.Command, args []string) error {
	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, logger.WithComponent("invoice"))
	}
	list, err := fetchInvoices(cmd, client)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, list)
	}
	if len(list) == 0 {
		fmt.Println("No invoices found")
		return nil
	}
	return invoiceTable(os.Stdout, list)
}

func runInvoiceShow(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")
	inv, _, err := findInvoice(args[0])
	if err != nil {
		return handleAPIError(err, log)
	}
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, inv)
	}

	tw := newTable(os.Stdout)
	row(tw, "ID", inv.ID.String())
	row(tw, "Invoice number", inv.InvoiceNumber)
	row(tw, "Project", inv.Project.String())
	row(tw, "Mode", inv.ModeOfProject)
	row(tw, "State", inv.State)
	row(tw, "Bill category", inv.BillCategory)
	row(tw, "Milestone", inv.Milestone)
	row(tw, "Invoice date", inv.InvoiceDate.String())
	row(tw, "Submission date", inv.SubmissionDate.String())
	row(tw, "Basic amount", amount(inv.BasicAmount.Decimal))
	row(tw, "GST", inv.GSTPercentage+"  "+amount(inv.GSTAmount.Decimal))
	row(tw, "Total amount", amount(inv.TotalAmount.Decimal))
	row(tw, "Passed by client", amount(inv.PassedAmountByClient.Decimal))
	for _, d := range models.DeductionFields {
		if v := inv.Deductions.Get(d.Key); !v.IsZero() {
			row(tw, "  "+d.Label, amount(v))
		}
	}
	row(tw, "Total deduction", amount(inv.TotalDeduction.Decimal))
	row(tw, "Net payable", amount(inv.NetPayable.Decimal))
	row(tw, "Amount paid", amount(inv.AmountPaidByClient.Decimal))
	row(tw, "Payment date", inv.PaymentDate.String())
	row(tw, "Balance", amount(inv.Balance.Decimal))
	row(tw, "Status", string(inv.Status))
	row(tw, "Remarks", inv.Remarks)
	if stale := staleTotals(*inv); len(stale) > 0 {
		row(tw, "Stale totals", strings.Join(stale, ", ")+" (run 'invoice update' to recompute)")
	}
	for _, kind := range models.FileKinds {
		if p := inv.AttachmentPath(kind); p != "" {
			row(tw, string(kind), filepath.Base(p))
		}
	}
	return tw.Flush()
}

// findInvoice loads the visible list once and picks id from it.
func findInvoice(id string) (*models.Invoice, []models.Invoice, error) {
	client, err := newClient(true)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := commandContext(commandTimeout(), logger.WithComponent("invoice"))
	defer cancel()

	list, err := client.ListInvoices(ctx)
	if err != nil {
		return nil, nil, err
	}
	for i := range list {
		if list[i].ID.String() == id {
			return &list[i], list, nil
		}
	}
	return nil, list, fmt.Errorf("%w: %s", api.ErrInvoiceNotFound, id)
}

func runInvoiceCreate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")
	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}

	form := invoice.NewForm()
	if err := applyFormFlags(cmd, &form); err != nil {
		return err
	}

	ctx, cancel := commandContext(commandTimeout(), log)
	existing, err := client.ListInvoices(ctx)
	cancel()
	if err != nil {
		return handleAPIError(err, log)
	}
	return submitForm(cmd, client, form, existing)
}

func runInvoiceUpdate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")
	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}

	inv, existing, err := findInvoice(args[0])
	if err != nil {
		return handleAPIError(err, log)
	}
	if stale := staleTotals(*inv); len(stale) > 0 {
		log.Warn().Str("invoice_id", args[0]).Strs("fields", stale).
			Msg("Stored totals differ from recomputed values; they will be rewritten")
	}
	form := invoice.FormFromInvoice(*inv)
	if err := applyFormFlags(cmd, &form); err != nil {
		return err
	}
	return submitForm(cmd, client, form, existing)
}

// staleTotals names the stored aggregates of inv that no longer match what
// its inputs compute to.
func staleTotals(inv models.Invoice) []string {
	b := invoice.Recalculate(inv)
	checks := []struct {
		field  string
		stored models.Amount
		want   decimal.Decimal
	}{
		{"invoiceGstAmount", inv.GSTAmount, b.GSTAmount},
		{"totalAmount", inv.TotalAmount, b.TotalAmount},
		{"totalDeduction", inv.TotalDeduction, b.TotalDeduction},
		{"netPayable", inv.NetPayable, b.NetPayable},
		{"balance", inv.Balance, b.Balance},
	}
	var out []string
	for _, c := range checks {
		if !models.Round2(c.stored.Decimal).Equal(models.Round2(c.want)) {
			out = append(out, c.field)
		}
	}
	return out
}

func runInvoiceDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("refusing to delete %d invoice(s) without --yes", len(args))
	}
	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}
	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	if len(args) == 1 {
		err = client.DeleteInvoice(ctx, args[0])
	} else {
		err = client.DeleteInvoices(ctx, args)
	}
	if err != nil {
		return handleAPIError(err, log)
	}
	fmt.Printf("Deleted %d invoice(s)\n", len(args))
	return nil
}

func parseKind(raw string) (models.FileKind, error) {
	kind, ok := models.ParseFileKind(raw)
	if !ok {
		names := make([]string, len(models.FileKinds))
		for i, k := range models.FileKinds {
			names[i] = string(k)
		}
		return "", fmt.Errorf("unknown attachment kind %q (one of: %s)", raw, strings.Join(names, ", "))
	}
	return kind, nil
}

func runInvoiceRemoveFile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")
	kind, err := parseKind(args[1])
	if err != nil {
		return err
	}
	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}
	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	if err := client.RemoveFile(ctx, args[0], kind); err != nil {
		return handleAPIError(err, log)
	}
	fmt.Printf("Removed %s from invoice %s\n", kind, args[0])
	return nil
}

func runInvoiceDownload(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("invoice")
	kind, err := parseKind(args[1])
	if err != nil {
		return err
	}
	inv, _, err := findInvoice(args[0])
	if err != nil {
		return handleAPIError(err, log)
	}
	stored := inv.AttachmentPath(kind)
	if stored == "" {
		return fmt.Errorf("invoice %s has no %s attached", args[0], kind)
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = filepath.Base(strings.ReplaceAll(stored, `\`, "/"))
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	client, err := newClient(true)
	if err != nil {
		f.Close()
		return handleAPIError(err, log)
	}
	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	n, err := client.DownloadFile(ctx, stored, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("download failed (%d): %s", apiErr.StatusCode, apiErr.Error())
		}
		return handleAPIError(err, log)
	}
	fmt.Printf("Saved %s (%d bytes)\n", out, n)
	return nil
}
