package report

import (
	"fmt"
	"strings"
	"time"

	"invoicedesk/pkg/models"
)

const day = 24 * time.Hour

// Period is a named age threshold.
type Period struct {
	Value    string        `json:"value"`
	Label    string        `json:"label"`
	Duration time.Duration `json:"-"`
}

// AgingPeriods are the buckets of the aging chart.
var AgingPeriods = []Period{
	{Value: "1w", Label: "1 week", Duration: 7 * day},
	{Value: "15d", Label: "15 days", Duration: 15 * day},
	{Value: "1m", Label: "1 month", Duration: 30 * day},
	{Value: "3m", Label: "3 months", Duration: 90 * day},
	{Value: "6m", Label: "6 months", Duration: 180 * day},
}

var extraTimeframes = map[string]time.Duration{
	"2w":      14 * day,
	"2weeks":  14 * day,
	"2m":      60 * day,
	"1y":      365 * day,
	"6months": 180 * day,
}

// DefaultTimeframe is used when none is given.
const DefaultTimeframe = "6m"

// ParseTimeframe resolves a timeframe code such as "15d" or "1y".
func ParseTimeframe(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = DefaultTimeframe
	}
	for _, p := range AgingPeriods {
		if p.Value == s {
			return p.Duration, nil
		}
	}
	if d, ok := extraTimeframes[s]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown timeframe %q (use 1w, 2w, 15d, 1m, 2m, 3m, 6m or 1y)", s)
}

// DateField selects which invoice date ages are measured from.
type DateField string

const (
	ByInvoiceDate    DateField = "invoiceDate"
	BySubmissionDate DateField = "submissionDate"
)

// ParseDateField accepts the two field names, case-insensitively.
func ParseDateField(s string) (DateField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "invoicedate", "invoice":
		return ByInvoiceDate, nil
	case "submissiondate", "submission":
		return BySubmissionDate, nil
	}
	return "", fmt.Errorf("unknown date field %q (use invoiceDate or submissionDate)", s)
}

func (f DateField) of(inv models.Invoice) models.Date {
	if f == BySubmissionDate {
		return inv.SubmissionDate
	}
	return inv.InvoiceDate
}

// OverdueQuery selects overdue invoices.
type OverdueQuery struct {
	Project   string
	DateField DateField
	Timeframe time.Duration
	Search    string
}

func underProcess(inv models.Invoice) bool {
	return strings.TrimSpace(string(inv.Status)) == string(models.StatusUnderProcess)
}

// Overdue returns the Under process invoices whose chosen date is at least
// the timeframe before now.
func Overdue(list []models.Invoice, q OverdueQuery, now time.Time) []models.Invoice {
	tf := q.Timeframe
	if tf <= 0 {
		tf, _ = ParseTimeframe(DefaultTimeframe)
	}
	cutoff := now.Add(-tf)
	search := strings.ToLower(strings.TrimSpace(q.Search))

	var out []models.Invoice
	for _, inv := range list {
		if !underProcess(inv) {
			continue
		}
		if q.Project != "" && !inv.Project.Contains(q.Project) {
			continue
		}
		d := q.DateField.of(inv)
		if !d.Valid() || d.Time.After(cutoff) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(inv.InvoiceNumber), search) {
			continue
		}
		out = append(out, inv)
	}
	return out
}

// AgingBucket counts Under process invoices at least one period old, measured
// from each date.
type AgingBucket struct {
	Period
	InvoiceDate    int `json:"invoiceDate"`
	SubmissionDate int `json:"submissionDate"`
}

// Aging counts, per period, the Under process invoices (optionally of one
// project) whose invoice or submission date is at least that old. Buckets are
// cumulative: an invoice six months old counts in every bucket.
func Aging(list []models.Invoice, project string, now time.Time) []AgingBucket {
	out := make([]AgingBucket, len(AgingPeriods))
	for i, p := range AgingPeriods {
		out[i].Period = p
	}
	for _, inv := range list {
		if !underProcess(inv) {
			continue
		}
		if project != "" && !inv.Project.Contains(project) {
			continue
		}
		for i, p := range AgingPeriods {
			if old(inv.InvoiceDate, now, p.Duration) {
				out[i].InvoiceDate++
			}
			if old(inv.SubmissionDate, now, p.Duration) {
				out[i].SubmissionDate++
			}
		}
	}
	return out
}

func old(d models.Date, now time.Time, age time.Duration) bool {
	return d.Valid() && now.Sub(d.Time) >= age
}
