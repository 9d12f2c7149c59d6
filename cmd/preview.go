package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoicedesk/internal/logger"
	"invoicedesk/internal/preview"
)

var previewCmd = &cobra.Command{
	Use:   "preview <invoice-id>",
	Short: "Render a one-page PDF summary of an invoice",
	Example: `  invoicedesk preview 42
  invoicedesk preview 42 -o summary.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringP("output", "o", "", "PDF path (default invoice_<number>.pdf)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("preview")

	inv, _, err := findInvoice(args[0])
	if err != nil {
		return handleAPIError(err, log)
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = preview.FileName(inv)
	}
	if err := preview.SaveFile(out, inv); err != nil {
		return err
	}

	log.Debug().Str("invoice_id", args[0]).Str("path", out).Msg("Preview rendered")
	fmt.Printf("Preview saved to %s\n", out)
	return nil
}
