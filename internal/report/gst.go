package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"invoicedesk/pkg/models"
)

// RateTotal is the GST collected at one rate.
type RateTotal struct {
	Rate  string          `json:"rate"`
	Count int             `json:"count"`
	GST   decimal.Decimal `json:"gst"`
}

// DateTotal is the GST of invoices dated on one day.
type DateTotal struct {
	Date models.Date     `json:"date"`
	GST  decimal.Decimal `json:"gst"`
}

// GSTReport summarizes the GST of a list.
type GSTReport struct {
	Count    int              `json:"count"`
	TotalGST decimal.Decimal  `json:"totalGst"`
	ByRate   []RateTotal      `json:"byRate"`
	ByDate   []DateTotal      `json:"byDate"`
	Top      []models.Invoice `json:"top"`
}

// GSTBreakdown totals GST by rate and by invoice date and picks the five
// invoices with the largest GST amount. Rates follow models.GSTRates order;
// invoices without a rate are grouped under "".
func GSTBreakdown(list []models.Invoice) GSTReport {
	var r GSTReport
	rates := map[string]*RateTotal{}
	dates := map[string]*DateTotal{}

	for _, inv := range list {
		gst := inv.GSTAmount.Decimal
		r.Count++
		r.TotalGST = r.TotalGST.Add(gst)

		rate := strings.TrimSpace(inv.GSTPercentage)
		rt, ok := rates[rate]
		if !ok {
			rt = &RateTotal{Rate: rate}
			rates[rate] = rt
		}
		rt.Count++
		rt.GST = rt.GST.Add(gst)

		if inv.InvoiceDate.Valid() {
			key := inv.InvoiceDate.String()
			dt, ok := dates[key]
			if !ok {
				dt = &DateTotal{Date: inv.InvoiceDate}
				dates[key] = dt
			}
			dt.GST = dt.GST.Add(gst)
		}
	}

	for _, rate := range models.GSTRates {
		if rt, ok := rates[rate]; ok {
			r.ByRate = append(r.ByRate, *rt)
			delete(rates, rate)
		}
	}
	var rest []string
	for rate := range rates {
		rest = append(rest, rate)
	}
	sort.Strings(rest)
	for _, rate := range rest {
		r.ByRate = append(r.ByRate, *rates[rate])
	}

	for _, dt := range dates {
		r.ByDate = append(r.ByDate, *dt)
	}
	sort.Slice(r.ByDate, func(i, j int) bool { return r.ByDate[i].Date.Before(r.ByDate[j].Date) })

	r.Top = Top(list, 5, func(inv models.Invoice) decimal.Decimal { return inv.GSTAmount.Decimal })
	return r
}
