package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"invoicedesk/internal/importer"
	"invoicedesk/internal/journal"
	"invoicedesk/internal/logger"
	"invoicedesk/internal/sheets"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Bulk-create invoices from a CSV, Excel or Google Sheet",
	Long: `Create one invoice per data row of a spreadsheet. The first row holds the
column headers; headers are matched loosely ("Invoice No.", "invoice number"
and "InvoiceNumber" all map to the invoice number).

Rows are submitted one at a time. A failing row is reported and the import
continues with the next one. Every run is recorded in the local journal so
the failures can be reviewed later with 'invoicedesk import history'.`,
	Example: `  invoicedesk import invoices.xlsx
  invoicedesk import --sheet-url https://docs.google.com/spreadsheets/d/<id>/edit --worksheet May`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

var importHistoryCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded import runs, or the row errors of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runImportHistory,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importHistoryCmd)

	f := importCmd.Flags()
	f.String("sheet-url", "", "Google Sheet to import from (default from GOOGLE_SHEET_URL)")
	f.String("worksheet", "", "Worksheet name (default from GOOGLE_SHEET_WORKSHEET)")
	f.Duration("run-timeout", 30*time.Minute, "Deadline for the whole import")
	f.Bool("no-journal", false, "Do not record the run in the local journal")
	f.Bool("quiet", false, "Do not print progress")

	importHistoryCmd.Flags().Int("limit", 20, "Number of runs to list (0 for all)")
}

// userIdentity adapts the session's user id for the importer.
type userIdentity string

func (u userIdentity) UserID() string { return string(u) }

func runImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("import")
	flags := cmd.Flags()

	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}

	runTimeout, _ := flags.GetDuration("run-timeout")
	ctx, cancel := commandContext(runTimeout, log)
	defer cancel()

	sheet, err := loadSheet(cmd, args)
	if err != nil {
		return handleAPIError(err, log)
	}

	opts := []importer.Option{}
	if quiet, _ := flags.GetBool("quiet"); !quiet {
		opts = append(opts, importer.WithProgress(func(current, total int) {
			fmt.Fprintf(os.Stderr, "\rImporting row %d of %d", current, total)
			if current == total {
				fmt.Fprintln(os.Stderr)
			}
		}))
	}
	if noJournal, _ := flags.GetBool("no-journal"); !noJournal {
		store, err := journal.Open(appConfig.JournalPath)
		if err != nil {
			log.Warn().Err(err).Msg("Import journal unavailable, run will not be recorded")
		} else {
			defer store.Close()
			opts = append(opts, importer.WithRecorder(store))
		}
	}

	im := importer.New(client, userIdentity(client.Session().UserID()), opts...)
	rep, err := im.Run(ctx, sheet)
	if err != nil {
		return handleAPIError(err, log)
	}

	if jsonOutput(cmd) {
		return printJSON(os.Stdout, rep)
	}
	fmt.Println(rep.Summary())
	if rep.Skipped > 0 {
		fmt.Printf("Skipped %d blank rows\n", rep.Skipped)
	}
	for _, msg := range rep.Messages() {
		fmt.Println("  " + msg)
	}
	for _, w := range rep.Warnings {
		fmt.Println("  warning: " + w.String())
	}
	if rep.RefreshErr != nil {
		fmt.Fprintf(os.Stderr, "Could not refresh the invoice list: %v\n", rep.RefreshErr)
	}
	if rep.Failed > 0 {
		fmt.Printf("Run id: %s\n", rep.RunID)
	}
	return nil
}

// loadSheet reads the file argument, or the Google Sheet from the flags and
// configuration.
func loadSheet(cmd *cobra.Command, args []string) (*importer.Sheet, error) {
	if len(args) == 1 {
		return importer.ReadFile(args[0])
	}

	sheetURL, worksheet := sheetTarget(cmd)
	if sheetURL == "" {
		return nil, fmt.Errorf("give a .csv/.xlsx file or --sheet-url")
	}

	log := logger.WithComponent("import")
	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	svc, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return nil, err
	}
	raw, shown, err := svc.ReadRows(ctx, worksheet)
	if err != nil {
		return nil, err
	}
	sheet, err := importer.FromInterfaces(raw, shown)
	if err != nil {
		return nil, err
	}
	sheet.Source = "sheet:" + worksheet
	return sheet, nil
}

func sheetTarget(cmd *cobra.Command) (string, string) {
	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	if sheetURL == "" {
		sheetURL = appConfig.GoogleSheetURL
	}
	worksheet, _ := cmd.Flags().GetString("worksheet")
	if worksheet == "" {
		worksheet = appConfig.GoogleSheetWorksheet
	}
	return sheetURL, worksheet
}

func runImportHistory(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("import")
	store, err := journal.Open(appConfig.JournalPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		entries, err := store.RowErrors(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput(cmd) {
			return printJSON(os.Stdout, struct {
				Run     *journal.Run    `json:"run"`
				Entries []journal.Entry `json:"entries"`
			}{run, entries})
		}
		fmt.Printf("Run %s from %s at %s: %d ok, %d failed, %d skipped\n",
			run.ID, run.Source, run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Succeeded, run.Failed, run.Skipped)
		for _, e := range entries {
			fmt.Printf("  %-7s %s\n", e.Kind, e.String())
		}
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return printJSON(os.Stdout, runs)
	}
	if len(runs) == 0 {
		fmt.Println("No import runs recorded")
		return nil
	}
	tw := newTable(os.Stdout)
	row(tw, "RUN", "STARTED", "SOURCE", "TOTAL", "OK", "FAILED", "SKIPPED")
	for _, r := range runs {
		row(tw, r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Source,
			strconv.Itoa(r.Total), strconv.Itoa(r.Succeeded), strconv.Itoa(r.Failed), strconv.Itoa(r.Skipped))
	}
	return tw.Flush()
}
