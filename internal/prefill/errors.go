package prefill

import (
	"errors"
	"fmt"
)

// Common prefill errors
var (
	// ErrDocumentTooLarge is returned when the PDF exceeds the 20MB synchronous limit.
	ErrDocumentTooLarge = errors.New("document size exceeds the maximum limit (20MB)")

	// ErrInvalidPDF is returned when the data is not a PDF document.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrInvalidConfiguration is returned when required settings are missing.
	ErrInvalidConfiguration = errors.New("invalid prefill configuration")

	// ErrMissingCredentials is returned when no Google Cloud credentials are available.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")

	// ErrInvalidCredentials is returned when the credentials lack permissions.
	ErrInvalidCredentials = errors.New("invalid or insufficient credentials")

	// ErrQuotaExceeded is returned when the API quota is exhausted.
	ErrQuotaExceeded = errors.New("API quota exceeded")

	// ErrProcessorNotFound is returned when the Document AI processor does not exist.
	ErrProcessorNotFound = errors.New("document processor not found")

	// ErrProcessingFailed is returned when extraction fails for any other reason.
	ErrProcessingFailed = errors.New("document processing failed")

	// ErrTooManyPages is returned when OCR is asked for more pages than it handles synchronously.
	ErrTooManyPages = errors.New("PDF has too many pages (maximum 5 pages for synchronous processing)")

	// ErrEmptyDocument is returned when the PDF has no readable text.
	ErrEmptyDocument = errors.New("document contains no readable text")

	// ErrCompletionFailed is returned when the language model gives no usable answer.
	ErrCompletionFailed = errors.New("field completion failed")

	// ErrContextCanceled is returned when processing is canceled.
	ErrContextCanceled = errors.New("processing was canceled")
)

// ProcessingError wraps a failure with the operation that produced it.
type ProcessingError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context.
	Details string
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("prefill: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("prefill: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Is matches the underlying error.
func (e *ProcessingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapError wraps err as a ProcessingError unless it already is one.
func WrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return err
	}
	return &ProcessingError{Op: op, Err: err, Details: details}
}
