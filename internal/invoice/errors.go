package invoice

import (
	"errors"
	"fmt"
	"strings"
)

// Validation rules. Each violated rule is reported as its own
// ValidationError wrapping one of these.
var (
	// ErrMissingRequiredField is returned when any mandatory form field is empty.
	ErrMissingRequiredField = errors.New("missing required invoice field")

	// ErrMissingInvoiceCopy is returned when no invoice copy is attached.
	ErrMissingInvoiceCopy = errors.New("invoice copy not attached")

	// ErrMissingProofOfSubmission is returned when no proof of submission is attached.
	ErrMissingProofOfSubmission = errors.New("proof of submission not attached")

	// ErrPaymentBeforeSubmission is returned when the payment date precedes the submission date.
	ErrPaymentBeforeSubmission = errors.New("payment date before submission date")

	// ErrInvoiceDateInFuture is returned when the invoice date is after today.
	ErrInvoiceDateInFuture = errors.New("invoice date in the future")

	// ErrSubmissionDateInFuture is returned when the submission date is after today.
	ErrSubmissionDateInFuture = errors.New("submission date in the future")

	// ErrPaidBalanceNotZero is returned when a Paid invoice still has a balance.
	ErrPaidBalanceNotZero = errors.New("paid invoice has non-zero balance")

	// ErrInvalidGSTPercentage is returned for a GST percentage outside the fixed rates.
	ErrInvalidGSTPercentage = errors.New("invalid GST percentage")

	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid invoice status")

	// ErrDuplicateInvoiceNumber is returned when another invoice already uses the number.
	ErrDuplicateInvoiceNumber = errors.New("duplicate invoice number")
)

// ValidationError is one violated rule with the message shown to the user.
type ValidationError struct {
	// Rule is the sentinel identifying the violated rule.
	Rule error

	// Field names the offending form field(s).
	Field string

	// Message is the user-facing text.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap returns the violated rule.
func (e *ValidationError) Unwrap() error {
	return e.Rule
}

// NewValidationError creates a new ValidationError.
func NewValidationError(rule error, field, message string) *ValidationError {
	return &ValidationError{
		Rule:    rule,
		Field:   field,
		Message: message,
	}
}

// ValidationErrors is the blocking result of a strict validation.
type ValidationErrors []*ValidationError

// Error joins the individual messages.
func (es ValidationErrors) Error() string {
	msgs := make([]string, 0, len(es))
	for _, e := range es {
		msgs = append(msgs, e.Message)
	}
	return fmt.Sprintf("invoice rejected: %s", strings.Join(msgs, "; "))
}

// Is matches any contained rule.
func (es ValidationErrors) Is(target error) bool {
	for _, e := range es {
		if errors.Is(e, target) {
			return true
		}
	}
	return false
}
