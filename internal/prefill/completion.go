package prefill

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"invoicedesk/internal/logger"
	"invoicedesk/pkg/models"
)

// CompletionConfig configures the chat completion step.
type CompletionConfig struct {
	Model       string
	Temperature float32
	MaxRetries  int
}

// DefaultCompletionConfig returns the settings used when none are given.
func DefaultCompletionConfig() CompletionConfig {
	return CompletionConfig{
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		MaxRetries:  3,
	}
}

// Completer fills the fields a draft is missing from the OCR text of the PDF.
type Completer struct {
	ocr    TextSource
	client *openai.Client
	config CompletionConfig
	log    zerolog.Logger
}

// NewCompleter creates a completer talking to OpenAI with apiKey.
func NewCompleter(ocr TextSource, apiKey string, config CompletionConfig) (*Completer, error) {
	const op = "NewCompleter"
	if apiKey == "" {
		return nil, WrapError(op, ErrInvalidConfiguration, "OPENAI_API_KEY is required")
	}
	return NewCompleterWithClient(ocr, openai.NewClient(apiKey), config), nil
}

// NewCompleterWithClient creates a completer with an explicit client.
func NewCompleterWithClient(ocr TextSource, client *openai.Client, config CompletionConfig) *Completer {
	defaults := DefaultCompletionConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	return &Completer{
		ocr:    ocr,
		client: client,
		config: config,
		log:    logger.WithComponent("invoice-completion"),
	}
}

// completionResponse is the JSON object the model is asked for.
type completionResponse struct {
	InvoiceNumber string
	InvoiceDate   string
	BasicAmount   string
	GSTAmount     string
	TotalAmount   string
	GSTPercentage string
}

// Complete fills the missing fields of d in place. It is a no-op when
// nothing is missing.
func (c *Completer) Complete(ctx context.Context, pdf []byte, d *Draft) error {
	const op = "Complete"

	missing := d.Missing()
	if len(missing) == 0 {
		return nil
	}

	text, err := c.ocr.Text(ctx, pdf)
	if err != nil {
		return WrapError(op, err, "OCR failed")
	}

	resp, err := c.ask(ctx, text, missing, d)
	if err != nil {
		return err
	}

	c.merge(d, resp, missing)

	c.log.Info().
		Strs("requested", missing).
		Strs("completed", d.Completed).
		Strs("still_missing", d.Missing()).
		Msg("Invoice completion finished")
	return nil
}

func (c *Completer) ask(ctx context.Context, text string, missing []string, d *Draft) (*completionResponse, error) {
	const op = "ask"

	prompt := buildCompletionPrompt(text, missing, d)
	c.log.Debug().
		Int("prompt_length", len(prompt)).
		Strs("missing_fields", missing).
		Str("model", c.config.Model).
		Msg("Sending completion request to ChatGPT")

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, WrapError(op, ErrContextCanceled, err.Error())
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: c.config.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			MaxTokens: 500,
		})
		if err != nil {
			lastErr = err
			c.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", c.config.MaxRetries).
				Msg("ChatGPT request failed, retrying")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices from ChatGPT")
			continue
		}

		content := resp.Choices[0].Message.Content
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(content), &raw); err != nil {
			lastErr = fmt.Errorf("failed to parse ChatGPT JSON response: %w", err)
			c.log.Warn().
				Err(err).
				Str("response", content).
				Int("attempt", attempt).
				Msg("Failed to parse ChatGPT response, retrying")
			continue
		}

		return &completionResponse{
			InvoiceNumber: getString(raw, "invoice_number"),
			InvoiceDate:   getString(raw, "invoice_date"),
			BasicAmount:   getString(raw, "basic_amount"),
			GSTAmount:     getString(raw, "gst_amount"),
			TotalAmount:   getString(raw, "total_amount"),
			GSTPercentage: getString(raw, "gst_percentage"),
		}, nil
	}

	return nil, WrapError(op, ErrCompletionFailed, fmt.Sprintf("all %d attempts failed, last error: %v", c.config.MaxRetries, lastErr))
}

// merge copies answers into fields that were missing. Amounts the draft
// already holds are never overwritten.
func (c *Completer) merge(d *Draft, resp *completionResponse, missing []string) {
	for _, field := range missing {
		switch field {
		case FieldInvoiceNumber:
			if v := strings.TrimSpace(resp.InvoiceNumber); v != "" {
				d.InvoiceNumber = v
			}
		case FieldInvoiceDate:
			if date, err := models.ParseDate(resp.InvoiceDate); err == nil && date.Valid() {
				d.InvoiceDate = date
			} else if resp.InvoiceDate != "" {
				c.log.Warn().Str("raw_value", resp.InvoiceDate).Msg("Ignoring unparseable invoice date from ChatGPT")
			}
		case FieldBasicAmount:
			mergeAmount(&d.BasicAmount, resp.BasicAmount)
		case FieldGSTPercentage:
			if rate := normalizeRate(resp.GSTPercentage); rate != "" {
				d.GSTPercentage = rate
			}
		}
	}
	mergeAmount(&d.GSTAmount, resp.GSTAmount)
	mergeAmount(&d.TotalAmount, resp.TotalAmount)
	d.fillDerived()

	still := make(map[string]bool)
	for _, f := range d.Missing() {
		still[f] = true
	}
	for _, f := range missing {
		if !still[f] {
			d.Completed = append(d.Completed, f)
		}
	}
}

func mergeAmount(dst *decimal.NullDecimal, raw string) {
	if dst.Valid || strings.TrimSpace(raw) == "" {
		return
	}
	if v, err := ParseAmount(raw); err == nil {
		*dst = decimal.NewNullDecimal(v)
	}
}

// normalizeRate accepts "18", "18%" or "18.0 %" and returns the matching
// selectable rate.
func normalizeRate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	want := models.ParsePercent(s)
	for _, rate := range models.GSTRates {
		if models.ParsePercent(rate).Equal(want) {
			return rate
		}
	}
	return ""
}

const systemPrompt = `You read Indian GST invoices and return the requested fields as a single JSON object.
Use these keys only: invoice_number, invoice_date (YYYY-MM-DD), basic_amount (taxable value before GST),
gst_amount (total CGST+SGST or IGST), total_amount (amount including GST), gst_percentage (one of 0, 5, 12, 18).
Amounts are plain numbers without currency symbols or thousands separators.
Leave a key out when the document does not state it.`

func buildCompletionPrompt(text string, missing []string, d *Draft) string {
	keys := map[string]string{
		FieldInvoiceNumber: "invoice_number",
		FieldInvoiceDate:   "invoice_date",
		FieldBasicAmount:   "basic_amount",
		FieldGSTPercentage: "gst_percentage",
	}

	var b strings.Builder
	b.WriteString("Missing fields: ")
	wanted := make([]string, 0, len(missing))
	for _, f := range missing {
		wanted = append(wanted, keys[f])
	}
	b.WriteString(strings.Join(wanted, ", "))
	b.WriteString("\n")

	if d.InvoiceNumber != "" || d.InvoiceDate.Valid() || d.BasicAmount.Valid || d.GSTAmount.Valid {
		b.WriteString("Already known:\n")
		if d.InvoiceNumber != "" {
			fmt.Fprintf(&b, "- invoice_number: %s\n", d.InvoiceNumber)
		}
		if d.InvoiceDate.Valid() {
			fmt.Fprintf(&b, "- invoice_date: %s\n", d.InvoiceDate)
		}
		if d.BasicAmount.Valid {
			fmt.Fprintf(&b, "- basic_amount: %s\n", d.BasicAmount.Decimal.StringFixed(2))
		}
		if d.GSTAmount.Valid {
			fmt.Fprintf(&b, "- gst_amount: %s\n", d.GSTAmount.Decimal.StringFixed(2))
		}
	}

	b.WriteString("\nInvoice text:\n")
	b.WriteString(text)
	return b.String()
}

func getString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
