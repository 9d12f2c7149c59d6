package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"invoicedesk/internal/export"
	"invoicedesk/internal/logger"
	"invoicedesk/internal/sheets"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the (filtered) invoice list to Excel, a Google Sheet or Cloud Storage",
	Long: `Export the invoices visible to the current user, narrowed by the same
filters as 'invoice list', as an .xlsx workbook with one column per invoice
field. Column headers match the import headers, so the workbook can be
edited and imported again.`,
	Example: `  invoicedesk export
  invoicedesk export --fy 2025-26 --project NFS -o nfs.xlsx
  invoicedesk export --sheet-url https://docs.google.com/spreadsheets/d/<id>/edit --worksheet Export
  invoicedesk export --gcs`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	addFilterFlags(exportCmd)

	f := exportCmd.Flags()
	f.StringP("output", "o", "", "Workbook path (default invoices_full_<date>.xlsx)")
	f.String("sheet-url", "", "Write to this Google Sheet instead of a file")
	f.String("worksheet", "", "Worksheet to replace (default "+export.SheetName+")")
	f.Bool("gcs", false, "Also archive the workbook to GCS_EXPORT_BUCKET")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")
	flags := cmd.Flags()

	client, err := newClient(true)
	if err != nil {
		return handleAPIError(err, log)
	}
	list, err := fetchInvoices(cmd, client)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("no invoices to export")
	}

	ctx, cancel := commandContext(commandTimeout(), log)
	defer cancel()

	if sheetURL, _ := flags.GetString("sheet-url"); sheetURL != "" {
		worksheet, _ := flags.GetString("worksheet")
		if worksheet == "" {
			worksheet = export.SheetName
		}
		svc, err := sheets.NewSheetsService(ctx, sheetURL)
		if err != nil {
			return err
		}
		if err := svc.WriteInvoices(ctx, worksheet, export.Rows(list)); err != nil {
			return err
		}
		fmt.Printf("Exported %d invoices to worksheet %q\n", len(list), worksheet)
		return nil
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, list); err != nil {
		return err
	}

	name := export.DefaultFileName(time.Now())
	out, _ := flags.GetString("output")
	if out == "" {
		out = name
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Printf("Exported %d invoices to %s\n", len(list), out)

	if archive, _ := flags.GetBool("gcs"); archive {
		a, err := export.NewArchiver(ctx, appConfig.GCSExportBucket, appConfig.GCSExportFolder)
		if err != nil {
			return err
		}
		defer a.Close()
		uri, err := a.Upload(ctx, filepath.Base(out), bytes.NewReader(buf.Bytes()))
		if err != nil {
			return err
		}
		fmt.Printf("Archived to %s\n", uri)
	}
	return nil
}
