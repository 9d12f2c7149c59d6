package prefill

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"invoicedesk/internal/logger"
)

// MaxPagesSync is the page limit for synchronous OCR.
const MaxPagesSync = 5

// TextSource returns the plain text of a PDF.
type TextSource interface {
	Text(ctx context.Context, pdf []byte) (string, error)
}

// VisionOCR implements TextSource with Google Cloud Vision document text detection.
type VisionOCR struct {
	client *vision.ImageAnnotatorClient
	log    zerolog.Logger
}

// NewVisionOCR creates the OCR client with credentials from the environment,
// falling back to application default credentials.
func NewVisionOCR(ctx context.Context) (*VisionOCR, error) {
	const op = "NewVisionOCR"

	var opts []option.ClientOption
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapError(op, err, "failed to create Vision client")
	}

	return &VisionOCR{client: client, log: logger.WithComponent("vision-ocr")}, nil
}

// Text runs document text detection over every page of the PDF.
func (g *VisionOCR) Text(ctx context.Context, pdf []byte) (string, error) {
	const op = "Text"

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdf,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return "", WrapError(op, ErrProcessingFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return "", WrapError(op, ErrProcessingFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return "", WrapError(op, ErrProcessingFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	text, err := pagesText(fileResp)
	if err != nil {
		return "", WrapError(op, err, "failed to process Vision API response")
	}

	g.log.Debug().
		Int("pages", len(fileResp.Responses)).
		Int("chars", len(text)).
		Msg("OCR completed")
	return text, nil
}

// pagesText joins the full text of each page.
func pagesText(fileResp *visionpb.AnnotateFileResponse) (string, error) {
	if len(fileResp.Responses) == 0 {
		return "", ErrEmptyDocument
	}
	if len(fileResp.Responses) > MaxPagesSync {
		return "", fmt.Errorf("%w: document has %d pages", ErrTooManyPages, len(fileResp.Responses))
	}

	var all strings.Builder
	for i, page := range fileResp.Responses {
		if page.Error != nil {
			return "", fmt.Errorf("error processing page %d: %s", i+1, page.Error.Message)
		}
		if page.FullTextAnnotation == nil {
			continue
		}
		if i > 0 {
			fmt.Fprintf(&all, "\n\n--- Page %d ---\n\n", i+1)
		}
		all.WriteString(page.FullTextAnnotation.Text)
	}

	if strings.TrimSpace(all.String()) == "" {
		return "", ErrEmptyDocument
	}
	return all.String(), nil
}

// Close closes the underlying Vision client.
func (g *VisionOCR) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
