package models

import "strings"

// Status is the payment state of an invoice.
type Status string

const (
	StatusPaid             Status = "Paid"
	StatusUnderProcess     Status = "Under process"
	StatusCreditNoteIssued Status = "Credit Note Issued"
	StatusCancelled        Status = "Cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPaid, StatusUnderProcess, StatusCreditNoteIssued, StatusCancelled}

// DefaultStatus is preselected for new invoices.
const DefaultStatus = StatusUnderProcess

// IsTerminal reports whether the invoice no longer carries a payable amount.
func (s Status) IsTerminal() bool {
	return s == StatusCreditNoteIssued || s == StatusCancelled
}

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return Status(s), false
}

// GSTRates are the selectable GST percentages.
var GSTRates = []string{"0%", "5%", "12%", "18%"}

// IsGSTRate reports whether s is one of GSTRates.
func IsGSTRate(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range GSTRates {
		if r == s {
			return true
		}
	}
	return false
}

// Form option lists.
var (
	Modes          = []string{"Back To Back", "Direct"}
	States         = []string{"West Bengal", "Delhi", "Bihar", "MP", "Kerala", "Sikkim", "Jharkhand", "Andaman"}
	BillCategories = []string{"Service", "Supply", "ROW", "AMC", "Restoration Service", "Restoration Supply", "Restoration Row", "Spares", "Training"}
	Milestones     = []string{"60%", "90%", "100%"}
	AdminProjects  = []string{"NFS", "GAIL", "BGCL", "STP", "BHARAT NET", "NFS AMC"}
)

var projectModes = map[string]string{
	"nfs":        "Back To Back",
	"nfs amc":    "Back To Back",
	"gail":       "Direct",
	"bgcl":       "Direct",
	"stp":        "Direct",
	"bharat net": "Direct",
}

// DefaultModeForProject returns the mode of project preselected when a
// project is chosen.
func DefaultModeForProject(project string) (string, bool) {
	mode, ok := projectModes[strings.ToLower(strings.TrimSpace(project))]
	return mode, ok
}

// FileKind names one of the three invoice attachments.
type FileKind string

const (
	FileInvoiceCopy       FileKind = "invoiceCopy"
	FileProofOfSubmission FileKind = "proofOfSubmission"
	FileSupportingDocs    FileKind = "supportingDocs"
)

// FileKinds lists the attachment kinds in form order.
var FileKinds = []FileKind{FileInvoiceCopy, FileProofOfSubmission, FileSupportingDocs}

// ParseFileKind accepts the wire name of an attachment kind.
func ParseFileKind(s string) (FileKind, bool) {
	for _, k := range FileKinds {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, true
		}
	}
	return "", false
}

// Files maps attachment kinds to local file paths for upload.
type Files map[FileKind]string
