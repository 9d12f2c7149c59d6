package models

import (
	"strings"
	"time"
)

// DateLayout is the wire format for invoice dates.
const DateLayout = "2006-01-02"

// LongDateLayout renders dates as "12 April 2025".
const LongDateLayout = "2 January 2006"

// Date is a calendar day without time of day. The zero value means "no date"
// and encodes as JSON null.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	LongDateLayout,
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts ISO dates, RFC3339 timestamps and long dates. Empty input
// returns the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return Date{}, nil
	}
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return NewDate(t), nil
		}
		lastErr = err
	}
	return Date{}, lastErr
}

// MustDate parses an ISO date and panics on failure. Intended for tests and
// constants.
func MustDate(s string) Date {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return NewDate(d)
}

// Valid reports whether a date is set.
func (d Date) Valid() bool {
	return !d.IsZero()
}

// String returns the ISO form, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Long returns "12 April 2025", or "" for the zero Date.
func (d Date) Long() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(LongDateLayout)
}

// After compares by calendar day.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// Before compares by calendar day.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler. Unparseable values decode to
// the zero Date.
func (d *Date) UnmarshalJSON(b []byte) error {
	parsed, err := ParseDate(strings.Trim(string(b), `"`))
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}
