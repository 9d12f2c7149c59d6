// Package importer turns uploaded invoice spreadsheets into creation payloads
// and submits them row by row.
//
// Headers are matched by name, not position: every header cell is lower-cased
// and stripped of anything outside [a-z0-9], then looked up in a fixed
// dictionary of accepted variants. Unknown columns are ignored. Cell values
// are coerced by field kind; bad dates become null and bad amounts become 0,
// so a messy sheet degrades instead of failing.
package importer

import (
	"strings"
)

// Kind selects the coercion applied to a column.
type Kind int

const (
	KindText Kind = iota
	KindDate
	KindPassthrough
	KindMoney
)

// NormalizeHeader lower-cases h and drops every character outside [a-z0-9],
// so "Balance / Pending Amount" and "balancePendingAmount" both become
// "balancependingamount".
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var headerFields = map[string]string{
	"project":              "project",
	"modeofproject":        "modeOfProject",
	"state":                "state",
	"mybillcategory":       "mybillCategory",
	"billcategory":         "mybillCategory",
	"milestone":            "milestone",
	"invoicenumber":        "invoiceNumber",
	"invoiceno":            "invoiceNumber",
	"invoicedate":          "invoiceDate",
	"submissiondate":       "submissionDate",
	"invoicebasicamount":   "invoiceBasicAmount",
	"basicamount":          "invoiceBasicAmount",
	"gstpercentage":        "gstPercentage",
	"invoicegstamount":     "invoiceGstAmount",
	"gstamount":            "invoiceGstAmount",
	"totalamount":          "totalAmount",
	"passedamountbyclient": "passedAmountByClient",
	"retention":            "retention",
	"gstwithheld":          "gstWithheld",
	"tds":                  "tds",
	"gsttds":               "gstTds",
	"bocw":                 "bocw",
	"lowdepthdeduction":    "lowDepthDeduction",
	"ld":                   "ld",
	"slapenalty":           "slaPenalty",
	"penalty":              "penalty",
	"otherdeduction":       "otherDeduction",
	"totaldeduction":       "totalDeduction",
	"netpayable":           "netPayable",
	"status":               "status",
	"amountpaidbyclient":   "amountPaidByClient",
	"paymentdate":          "paymentDate",
	"balance":              "balance",
	"balancependingamount": "balance",
	"pendingamount":        "balance",
	"remarks":              "remarks",
}

var fieldKinds = map[string]Kind{
	"invoiceDate":          KindDate,
	"submissionDate":       KindDate,
	"paymentDate":          KindDate,
	"milestone":            KindPassthrough,
	"gstPercentage":        KindPassthrough,
	"invoiceBasicAmount":   KindMoney,
	"invoiceGstAmount":     KindMoney,
	"totalAmount":          KindMoney,
	"passedAmountByClient": KindMoney,
	"retention":            KindMoney,
	"gstWithheld":          KindMoney,
	"tds":                  KindMoney,
	"gstTds":               KindMoney,
	"bocw":                 KindMoney,
	"lowDepthDeduction":    KindMoney,
	"ld":                   KindMoney,
	"slaPenalty":           KindMoney,
	"penalty":              KindMoney,
	"otherDeduction":       KindMoney,
	"totalDeduction":       KindMoney,
	"netPayable":           KindMoney,
	"amountPaidByClient":   KindMoney,
	"balance":              KindMoney,
}

// FieldForHeader maps an already normalized header to its canonical field.
func FieldForHeader(normalized string) (string, bool) {
	f, ok := headerFields[normalized]
	return f, ok
}

// FieldKind reports how values of a canonical field are coerced.
func FieldKind(field string) Kind {
	if k, ok := fieldKinds[field]; ok {
		return k
	}
	return KindText
}

// ResolveHeaders maps each header cell to its canonical field, or "" when the
// column is not recognized.
func ResolveHeaders(headers []string) []string {
	fields := make([]string, len(headers))
	for i, h := range headers {
		if f, ok := FieldForHeader(NormalizeHeader(h)); ok {
			fields[i] = f
		}
	}
	return fields
}
