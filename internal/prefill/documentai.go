package prefill

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"

	"invoicedesk/internal/logger"
	"invoicedesk/pkg/models"
)

// DocumentAIConfig holds configuration for Google Document AI processing.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location, "us" or "eu".
	Location string

	// ProcessorID is the invoice parser processor ID.
	ProcessorID string

	// Timeout bounds a single ProcessDocument call.
	Timeout time.Duration
}

// DocumentAIExtractor implements Extractor with a Document AI invoice parser.
type DocumentAIExtractor struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIExtractor creates the extractor. Credentials come from
// GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS.
func NewDocumentAIExtractor(ctx context.Context, config DocumentAIConfig) (*DocumentAIExtractor, error) {
	const op = "NewDocumentAIExtractor"

	if config.ProjectID == "" {
		return nil, WrapError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		return nil, WrapError(op, ErrMissingCredentials, err.Error())
	}

	return &DocumentAIExtractor{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}, nil
}

// Extract sends the PDF to the processor and maps its entities to a draft.
func (p *DocumentAIExtractor) Extract(ctx context.Context, pdf io.Reader) (*Draft, error) {
	const op = "Extract"

	data, err := readPDF(op, pdf)
	if err != nil {
		return nil, err
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "application/pdf",
			},
		},
	}

	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, p.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, WrapError(op, ErrProcessingFailed, "no document in response")
	}

	draft := draftFromDocument(resp.Document, p.log)
	p.log.Info().
		Str("invoice_number", draft.InvoiceNumber).
		Str("invoice_date", draft.InvoiceDate.String()).
		Str("gst_percentage", draft.GSTPercentage).
		Strs("missing", draft.Missing()).
		Msg("Document AI extraction completed")
	return draft, nil
}

func (p *DocumentAIExtractor) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// handleProcessingError converts Document AI errors to prefill errors.
func (p *DocumentAIExtractor) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return WrapError(op, ErrInvalidCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "QUOTA_EXCEEDED"), strings.Contains(errStr, "RESOURCE_EXHAUSTED"):
		return WrapError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "NOT_FOUND"):
		return WrapError(op, ErrProcessorNotFound, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT"):
		return WrapError(op, ErrInvalidPDF, "document format not supported or corrupted")
	case strings.Contains(errStr, "DeadlineExceeded"), strings.Contains(errStr, "context deadline exceeded"):
		return WrapError(op, context.DeadlineExceeded, "processing timeout")
	case strings.Contains(errStr, "Canceled"), strings.Contains(errStr, "context canceled"):
		return WrapError(op, ErrContextCanceled, "processing was canceled")
	default:
		return WrapError(op, ErrProcessingFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// Close closes the underlying Document AI client.
func (p *DocumentAIExtractor) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// draftFromDocument maps invoice parser entities onto a draft.
func draftFromDocument(doc *documentaipb.Document, log zerolog.Logger) *Draft {
	draft := &Draft{Confidence: make(map[string]float32)}

	for _, entity := range doc.Entities {
		value := strings.TrimSpace(entity.MentionText)
		draft.Confidence[entity.Type] = entity.Confidence

		log.Debug().
			Str("entity_type", entity.Type).
			Str("value", value).
			Float32("confidence", entity.Confidence).
			Msg("Processing Document AI entity")

		switch entity.Type {
		case "invoice_id", "invoice_number":
			draft.InvoiceNumber = value
		case "invoice_date":
			if d, err := entityDate(entity); err == nil {
				draft.InvoiceDate = d
			} else {
				log.Warn().Err(err).Str("raw_value", value).Msg("Failed to extract invoice date")
			}
		case "net_amount", "subtotal_amount":
			setAmount(&draft.BasicAmount, entity, log)
		case "total_tax_amount", "vat_amount":
			setAmount(&draft.GSTAmount, entity, log)
		case "total_amount", "gross_amount":
			setAmount(&draft.TotalAmount, entity, log)
		}
	}

	if draft.InvoiceNumber == "" && doc.Text != "" {
		if n := invoiceNumberFromText(doc.Text); n != "" {
			draft.InvoiceNumber = n
			draft.Confidence["invoice_number_fallback"] = 0.6
			log.Info().Str("fallback_number", n).Msg("Invoice number extracted using fallback strategy")
		}
	}

	draft.fillDerived()
	return draft
}

func setAmount(dst *decimal.NullDecimal, entity *documentaipb.Document_Entity, log zerolog.Logger) {
	amount, err := entityMoney(entity)
	if err != nil {
		log.Warn().Err(err).Str("entity_type", entity.Type).Str("raw_value", entity.MentionText).Msg("Failed to extract amount")
		return
	}
	*dst = decimal.NewNullDecimal(amount)
}

var entityDateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// entityDate prefers the normalized value and falls back to the mention
// text, read day-first.
func entityDate(entity *documentaipb.Document_Entity) (models.Date, error) {
	if nv := entity.NormalizedValue; nv != nil {
		if dv := nv.GetDateValue(); dv != nil && dv.Year > 0 {
			return models.NewDate(time.Date(int(dv.Year), time.Month(dv.Month), int(dv.Day), 0, 0, 0, 0, time.UTC)), nil
		}
	}

	s := strings.TrimSpace(entity.MentionText)
	if s == "" {
		return models.Date{}, fmt.Errorf("empty date value")
	}
	for _, layout := range entityDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.NewDate(t), nil
		}
	}
	return models.Date{}, fmt.Errorf("unable to parse date: %s", s)
}

func entityMoney(entity *documentaipb.Document_Entity) (decimal.Decimal, error) {
	if nv := entity.NormalizedValue; nv != nil {
		if mv := nv.GetMoneyValue(); mv != nil {
			return decimal.New(mv.Units, 0).Add(decimal.New(int64(mv.Nanos), -9)), nil
		}
	}
	if strings.TrimSpace(entity.MentionText) == "" {
		return decimal.Zero, fmt.Errorf("empty amount value")
	}
	return ParseAmount(entity.MentionText)
}

var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)invoice\s*(?:number|no|#)\.?\s*[:\-]?\s*([A-Z0-9][A-Z0-9/\-]{2,29})`),
	regexp.MustCompile(`(?i)bill\s*(?:number|no)\.?\s*[:\-]?\s*([A-Z0-9][A-Z0-9/\-]{2,29})`),
	regexp.MustCompile(`(?i)(?:^|\s)inv[\s\-:.#]*([A-Z0-9][A-Z0-9/\-]{2,29})`),
}

// invoiceNumberFromText looks for a labelled invoice number in OCR text.
func invoiceNumberFromText(text string) string {
	for _, re := range invoiceNumberPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// extractBytes runs e over PDF bytes already read.
func extractBytes(ctx context.Context, e Extractor, data []byte) (*Draft, error) {
	return e.Extract(ctx, bytes.NewReader(data))
}
