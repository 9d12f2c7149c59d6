package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"invoicedesk/pkg/models"
)

// Summary holds the headline totals of a list.
type Summary struct {
	Count   int             `json:"count"`
	Basic   decimal.Decimal `json:"basic"`
	GST     decimal.Decimal `json:"gst"`
	Total   decimal.Decimal `json:"total"`
	Paid    decimal.Decimal `json:"paid"`
	Pending decimal.Decimal `json:"pending"`
	Balance decimal.Decimal `json:"balance"`
}

// Summarize totals list. Pending is net payable minus amount paid, summed per
// invoice; Balance is the stored balance.
func Summarize(list []models.Invoice) Summary {
	var s Summary
	for i := range list {
		inv := &list[i]
		s.Count++
		s.Basic = s.Basic.Add(inv.BasicAmount.Decimal)
		s.GST = s.GST.Add(inv.GSTAmount.Decimal)
		s.Total = s.Total.Add(inv.TotalAmount.Decimal)
		s.Paid = s.Paid.Add(inv.AmountPaidByClient.Decimal)
		s.Pending = s.Pending.Add(inv.Pending())
		s.Balance = s.Balance.Add(inv.Balance.Decimal)
	}
	return s
}

// LabeledAmount is one row of a totals table.
type LabeledAmount struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

// DeductionTotals sums each deduction over list, in form order.
func DeductionTotals(list []models.Invoice) []LabeledAmount {
	out := make([]LabeledAmount, len(models.DeductionFields))
	for i, f := range models.DeductionFields {
		out[i] = LabeledAmount{Key: f.Key, Label: f.Label}
	}
	for _, inv := range list {
		for i, f := range models.DeductionFields {
			out[i].Value = out[i].Value.Add(inv.Deductions.Get(f.Key))
		}
	}
	return out
}

// ErrUnknownDeduction is returned for a deduction key outside
// models.DeductionFields.
type ErrUnknownDeduction string

func (e ErrUnknownDeduction) Error() string {
	return fmt.Sprintf("unknown deduction %q", string(e))
}

// DeductionDetail returns the invoices carrying a positive amount for the
// given deduction key or label.
func DeductionDetail(list []models.Invoice, field string) ([]models.Invoice, error) {
	key, ok := deductionKey(field)
	if !ok {
		return nil, ErrUnknownDeduction(field)
	}
	var out []models.Invoice
	for _, inv := range list {
		if inv.Deductions.Get(key).IsPositive() {
			out = append(out, inv)
		}
	}
	return out, nil
}

func deductionKey(field string) (string, bool) {
	field = strings.TrimSpace(field)
	for _, f := range models.DeductionFields {
		if strings.EqualFold(f.Key, field) || strings.EqualFold(f.Label, field) {
			return f.Key, true
		}
	}
	return "", false
}

// StatusCount is the number of invoices in one status.
type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int           `json:"count"`
}

// StatusCounts counts invoices per known status, in display order. Unknown
// statuses are not counted.
func StatusCounts(list []models.Invoice) []StatusCount {
	out := make([]StatusCount, len(models.Statuses))
	for i, s := range models.Statuses {
		out[i].Status = s
	}
	for _, inv := range list {
		st, ok := models.ParseStatus(string(inv.Status))
		if !ok {
			continue
		}
		for i := range out {
			if out[i].Status == st {
				out[i].Count++
			}
		}
	}
	return out
}

// UnknownProject groups invoices without a project.
const UnknownProject = "Unknown"

// ProjectSummary totals the invoices of one project.
type ProjectSummary struct {
	Project  string          `json:"project"`
	Count    int             `json:"count"`
	Raised   decimal.Decimal `json:"raised"`
	Approved decimal.Decimal `json:"approved"`
	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`
	Balance  decimal.Decimal `json:"balance"`
}

// ProjectBreakdown totals list per project. An invoice assigned to several
// projects counts once for each. Projects are sorted by count, then name.
func ProjectBreakdown(list []models.Invoice) []ProjectSummary {
	byName := map[string]*ProjectSummary{}
	var order []string
	for i := range list {
		inv := &list[i]
		projects := []string(inv.Project)
		if len(projects) == 0 {
			projects = []string{UnknownProject}
		}
		for _, p := range projects {
			ps, ok := byName[p]
			if !ok {
				ps = &ProjectSummary{Project: p}
				byName[p] = ps
				order = append(order, p)
			}
			ps.Count++
			ps.Raised = ps.Raised.Add(inv.BasicAmount.Decimal)
			ps.Approved = ps.Approved.Add(inv.PassedAmountByClient.Decimal)
			ps.Total = ps.Total.Add(inv.TotalAmount.Decimal)
			ps.Paid = ps.Paid.Add(inv.AmountPaidByClient.Decimal)
			ps.Balance = ps.Balance.Add(inv.Balance.Decimal)
		}
	}

	out := make([]ProjectSummary, 0, len(order))
	for _, p := range order {
		out = append(out, *byName[p])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Project < out[j].Project
	})
	return out
}

// Top returns the n invoices with the largest value of key, largest first.
func Top(list []models.Invoice, n int, key func(models.Invoice) decimal.Decimal) []models.Invoice {
	sorted := make([]models.Invoice, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return key(sorted[i]).GreaterThan(key(sorted[j]))
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// TopForStatus picks the five invoices shown beside a status view: the
// largest payments for Paid, the largest balances otherwise.
func TopForStatus(list []models.Invoice, status models.Status) []models.Invoice {
	if status == models.StatusPaid {
		return Top(list, 5, func(inv models.Invoice) decimal.Decimal { return inv.AmountPaidByClient.Decimal })
	}
	return Top(list, 5, func(inv models.Invoice) decimal.Decimal { return inv.Balance.Decimal })
}
