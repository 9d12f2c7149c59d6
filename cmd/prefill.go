package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"invoicedesk/internal/logger"
	"invoicedesk/internal/prefill"
)

var prefillCmd = &cobra.Command{
	Use:   "prefill <pdf-file>",
	Short: "Read invoice number, date, basic amount and GST rate from an invoice PDF",
	Long: `Extract the invoice number, invoice date, basic amount and GST rate from an
invoice PDF and write them as a draft JSON, ready for
'invoicedesk invoice create --from-draft'.

Document AI's invoice parser runs first. Fields it cannot find are completed
from the Vision OCR text by an OpenAI model, unless --no-completion is given
or OPENAI_API_KEY is not set.

Environment:
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - service account
  GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION          - Document AI project
  DOCUMENT_AI_PROCESSOR_ID                             - invoice parser id
  OPENAI_API_KEY, OPENAI_MODEL                         - completion (optional)`,
	Example: `  invoicedesk prefill invoice.pdf
  invoicedesk prefill invoice.pdf -o draft.json --confidence
  invoicedesk invoice create --from-draft draft.json --project NFS ...`,
	Args: cobra.ExactArgs(1),
	RunE: runPrefill,
}

func init() {
	rootCmd.AddCommand(prefillCmd)

	f := prefillCmd.Flags()
	f.StringP("output", "o", "", "Draft JSON path (default: stdout)")
	f.Bool("no-completion", false, "Only use Document AI")
	f.Bool("confidence", false, "Include per-field confidence scores")
	f.Duration("process-timeout", 2*time.Minute, "Deadline for extraction and completion")
}

func runPrefill(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("prefill")
	flags := cmd.Flags()
	path := args[0]

	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("file must be a PDF: %s", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	timeout, _ := flags.GetDuration("process-timeout")
	ctx, cancel := commandContext(timeout, log)
	defer cancel()

	var extractor prefill.Extractor
	if appConfig.DocumentAIProcessorID != "" {
		dai, err := prefill.NewDocumentAIExtractor(ctx, prefill.DocumentAIConfig{
			ProjectID:   appConfig.GoogleCloudProject,
			Location:    appConfig.GoogleCloudLocation,
			ProcessorID: appConfig.DocumentAIProcessorID,
			Timeout:     timeout,
		})
		if err != nil {
			return handlePrefillError(err, log)
		}
		defer dai.Close()
		extractor = dai
	}

	var completer prefill.FieldCompleter
	noCompletion, _ := flags.GetBool("no-completion")
	if !noCompletion && appConfig.OpenAIAPIKey != "" {
		ocr, err := prefill.NewVisionOCR(ctx)
		if err != nil {
			return handlePrefillError(err, log)
		}
		defer ocr.Close()

		cfg := prefill.DefaultCompletionConfig()
		if appConfig.OpenAIModel != "" {
			cfg.Model = appConfig.OpenAIModel
		}
		c, err := prefill.NewCompleter(ocr, appConfig.OpenAIAPIKey, cfg)
		if err != nil {
			return handlePrefillError(err, log)
		}
		completer = c
	}

	if extractor == nil && completer == nil {
		return fmt.Errorf("nothing to extract with: set DOCUMENT_AI_PROCESSOR_ID and/or OPENAI_API_KEY")
	}

	log.Info().Str("file", path).Msg("Extracting invoice fields")
	draft, err := prefill.NewService(extractor, completer).Extract(ctx, file)
	if err != nil {
		return handlePrefillError(err, log)
	}

	if withConf, _ := flags.GetBool("confidence"); !withConf {
		draft.Confidence = nil
	}
	if missing := draft.Missing(); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "Could not find: %s\n", strings.Join(missing, ", "))
	}

	out, _ := flags.GetString("output")
	if err := writeJSONFile(out, draft); err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintf(os.Stderr, "Draft written to %s\n", out)
	}
	return nil
}

// handlePrefillError provides user-friendly error messages for extraction failures
func handlePrefillError(err error, log zerolog.Logger) error {
	log.Debug().Err(err).Msg("Prefill failed")

	switch {
	case errors.Is(err, prefill.ErrDocumentTooLarge):
		return fmt.Errorf("PDF file is too large (maximum 20MB)")
	case errors.Is(err, prefill.ErrInvalidPDF):
		return fmt.Errorf("file is not a valid PDF document")
	case errors.Is(err, prefill.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not found. Set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")
	case errors.Is(err, prefill.ErrInvalidCredentials):
		return fmt.Errorf("invalid credentials or insufficient permissions for Document AI / Vision")
	case errors.Is(err, prefill.ErrProcessorNotFound):
		return fmt.Errorf("Document AI processor not found. Check DOCUMENT_AI_PROCESSOR_ID and GOOGLE_CLOUD_LOCATION")
	case errors.Is(err, prefill.ErrQuotaExceeded):
		return fmt.Errorf("API quota exceeded. Try again later")
	case errors.Is(err, prefill.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages for OCR (maximum %d)", prefill.MaxPagesSync)
	case errors.Is(err, prefill.ErrContextCanceled):
		return fmt.Errorf("processing was canceled or timed out. Try increasing --process-timeout")
	case errors.Is(err, prefill.ErrInvalidConfiguration):
		return fmt.Errorf("prefill is not configured: %w", err)
	default:
		return fmt.Errorf("failed to extract invoice fields: %w", err)
	}
}
