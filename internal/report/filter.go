// Package report aggregates a fetched invoice list for dashboards and
// exports. Everything here is read-only over the list it is given.
package report

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"invoicedesk/pkg/models"
)

// FinancialYear runs from 1 April to 31 March.
type FinancialYear struct {
	Value string      `json:"value"` // "2025-2026"
	Label string      `json:"label"` // "FY 2025-26"
	Start models.Date `json:"start"`
	End   models.Date `json:"end"`
}

// Contains reports whether d falls in the year, both ends inclusive.
func (fy FinancialYear) Contains(d models.Date) bool {
	return d.Valid() && !d.Before(fy.Start) && !d.After(fy.End)
}

// NewFinancialYear returns the year starting in April of startYear.
func NewFinancialYear(startYear int) FinancialYear {
	end := startYear + 1
	return FinancialYear{
		Value: fmt.Sprintf("%d-%d", startYear, end),
		Label: fmt.Sprintf("FY %d-%02d", startYear, end%100),
		Start: models.NewDate(time.Date(startYear, time.April, 1, 0, 0, 0, 0, time.UTC)),
		End:   models.NewDate(time.Date(end, time.March, 31, 0, 0, 0, 0, time.UTC)),
	}
}

// FinancialYears lists count years, newest first, starting with the one that
// begins in currentYear.
func FinancialYears(currentYear, count int) []FinancialYear {
	out := make([]FinancialYear, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, NewFinancialYear(currentYear-i))
	}
	return out
}

var fyPattern = regexp.MustCompile(`^(?i:fy)?\s*(\d{4})\s*[-/]\s*(\d{2}|\d{4})$`)

// ParseFinancialYear accepts "2025-2026", "2025-26" and "FY 2025-26".
func ParseFinancialYear(s string) (FinancialYear, bool) {
	m := fyPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return FinancialYear{}, false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if len(m[2]) == 2 {
		end += start / 100 * 100
	}
	if end != start+1 {
		return FinancialYear{}, false
	}
	return NewFinancialYear(start), true
}

// CurrentFinancialYearStart is the calendar year in which the financial year
// containing t began.
func CurrentFinancialYearStart(t time.Time) int {
	if t.Month() < time.April {
		return t.Year() - 1
	}
	return t.Year()
}

// Filter narrows an invoice list. Zero fields do not filter.
type Filter struct {
	// Search matches a substring of the invoice number or the status.
	Search string
	// Projects keeps invoices assigned to any of them, case-insensitively.
	Projects      []string
	State         string
	BillCategory  string
	Statuses      []models.Status
	FinancialYear *FinancialYear
	// From and To bound the invoice date, inclusive by day.
	From models.Date
	To   models.Date
}

// Active reports whether any criterion is set.
func (f Filter) Active() bool {
	return f.Search != "" || len(f.Projects) > 0 || f.State != "" || f.BillCategory != "" ||
		len(f.Statuses) > 0 || f.FinancialYear != nil || f.From.Valid() || f.To.Valid()
}

// Match reports whether inv satisfies every criterion.
func (f Filter) Match(inv models.Invoice) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(inv.InvoiceNumber), q) &&
			!strings.Contains(strings.ToLower(string(inv.Status)), q) {
			return false
		}
	}
	if len(f.Projects) > 0 && !matchesAnyProject(inv.Project, f.Projects) {
		return false
	}
	if f.State != "" && !strings.EqualFold(strings.TrimSpace(inv.State), f.State) {
		return false
	}
	if f.BillCategory != "" && !strings.EqualFold(strings.TrimSpace(inv.BillCategory), f.BillCategory) {
		return false
	}
	if len(f.Statuses) > 0 && !hasStatus(f.Statuses, inv.Status) {
		return false
	}
	if f.FinancialYear != nil && !f.FinancialYear.Contains(inv.InvoiceDate) {
		return false
	}
	if f.From.Valid() || f.To.Valid() {
		if !inv.InvoiceDate.Valid() {
			return false
		}
		if f.From.Valid() && inv.InvoiceDate.Before(f.From) {
			return false
		}
		if f.To.Valid() && inv.InvoiceDate.After(f.To) {
			return false
		}
	}
	return true
}

// Apply returns the invoices matching f, in their original order.
func Apply(list []models.Invoice, f Filter) []models.Invoice {
	if !f.Active() {
		return list
	}
	out := make([]models.Invoice, 0, len(list))
	for _, inv := range list {
		if f.Match(inv) {
			out = append(out, inv)
		}
	}
	return out
}

func matchesAnyProject(have models.Projects, want []string) bool {
	for _, w := range want {
		if have.Contains(w) {
			return true
		}
	}
	return false
}

func hasStatus(statuses []models.Status, s models.Status) bool {
	s = models.Status(strings.TrimSpace(string(s)))
	for _, want := range statuses {
		if strings.EqualFold(string(want), string(s)) {
			return true
		}
	}
	return false
}

// ProjectOptions lists the distinct projects in list, sorted.
func ProjectOptions(list []models.Invoice) []string {
	seen := map[string]bool{}
	var out []string
	for _, inv := range list {
		for _, p := range inv.Project {
			p = strings.TrimSpace(p)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
