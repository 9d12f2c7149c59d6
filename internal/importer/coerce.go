package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"invoicedesk/pkg/models"
)

var (
	nonMoneyChars = regexp.MustCompile(`[^0-9.\-]`)
	leadingNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
	serialPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// CoerceMoney cleans a monetary cell. Everything but digits, '.' and '-' is
// dropped, the longest leading number is parsed and the result is rounded to
// two decimals. An empty cell yields nil; a cell with no parseable number
// yields zero. Negative values are kept.
func CoerceMoney(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	m := leadingNumber.FindString(nonMoneyChars.ReplaceAllString(raw, ""))
	m = strings.TrimSuffix(m, ".")
	if m == "" || m == "-" {
		zero := decimal.Zero
		return &zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		zero := decimal.Zero
		return &zero
	}
	d = d.Round(2)
	return &d
}

var monthNumbers = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August, "sep": time.September,
	"sept": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var genericDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"2-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon Jan 2 2006",
}

// CoerceDate converts a date cell to YYYY-MM-DD. It accepts Excel serial
// numbers, "<day> <MonthName> <year>" and a set of common layouts. It returns
// false for empty or unparseable cells.
func CoerceDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if serialPattern.MatchString(raw) {
		serial, err := strconv.ParseFloat(raw, 64)
		if err != nil || serial <= 0 {
			return "", false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return "", false
		}
		return t.Format(models.DateLayout), true
	}

	if d, ok := parseDayMonthYear(raw); ok {
		return d, true
	}

	for _, layout := range genericDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(models.DateLayout), true
		}
	}
	return "", false
}

func parseDayMonthYear(raw string) (string, bool) {
	parts := strings.Fields(raw)
	if len(parts) != 3 {
		return "", false
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	month, ok := monthNumbers[strings.ToLower(strings.TrimSuffix(parts[1], ","))]
	if !ok {
		return "", false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil || year < 1 {
		return "", false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return "", false
	}
	return t.Format(models.DateLayout), true
}

// Value is a coerced cell. Null values are left out of the payload.
type Value struct {
	Text string
	Null bool
}

// Coerce converts a raw cell according to the kind of field.
func Coerce(field, raw string) Value {
	switch FieldKind(field) {
	case KindDate:
		d, ok := CoerceDate(raw)
		return Value{Text: d, Null: !ok}
	case KindPassthrough:
		v := strings.TrimSpace(raw)
		return Value{Text: v, Null: v == ""}
	case KindMoney:
		d := CoerceMoney(raw)
		if d == nil {
			return Value{Null: true}
		}
		return Value{Text: d.StringFixed(2)}
	default:
		v := strings.TrimSpace(raw)
		return Value{Text: v, Null: v == ""}
	}
}
