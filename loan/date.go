package loan

import (
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// DATE - Calendar day, no time-of-day component
// =============================================================================

// DateFormat is the ISO layout dates are written in.
const DateFormat = "2006-01-02"

// readDateFormat also accepts single-digit months and days ("2025-3-1").
const readDateFormat = "2006-1-2"

// Date is a calendar day. The zero value is "no date". Dates are comparable
// with ==, which is what the daily summary uses for "same day".
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized date (NewDate(2025, 1, 32) is Feb 1st).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return DateOf(t)
}

// DateOf truncates a time to its calendar day in the time's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{y: y, m: m, d: d}
}

// Today returns the current local calendar day.
func Today() Date { return DateOf(time.Now()) }

// ParseDate parses YYYY-MM-DD. Failures are reported as *MalformedDateError.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(readDateFormat, s)
	if err != nil {
		return Date{}, &MalformedDateError{Value: s, Err: err}
	}
	return DateOf(t), nil
}

// MustParseDate is like ParseDate but panics on error. For tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Comparison
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }
func (d Date) After(x Date) bool  { return d.time().After(x.time()) }
func (d Date) Equal(x Date) bool  { return d == x }
func (d Date) IsZero() bool       { return d == Date{} }

// Arithmetic
func (d Date) AddDays(n int) Date { return NewDate(d.y, d.m, d.d+n) }

// Properties
func (d Date) Year() int             { return d.y }
func (d Date) Month() time.Month     { return d.m }
func (d Date) Day() int              { return d.d }
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }
func (d Date) Time() time.Time       { return d.time() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.time().Format(DateFormat)
}

// DaysBetween returns to - from in whole days. Negative when to is earlier.
// Both ends are UTC midnights, so the difference in Unix seconds is a whole
// number of days.
func DaysBetween(from, to Date) int {
	return int((to.time().Unix() - from.time().Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// =============================================================================
// ENCODING
// =============================================================================

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &MalformedDateError{Value: string(b), Err: err}
	}
	return d.UnmarshalText([]byte(s))
}

var (
	_ json.Marshaler   = Date{}
	_ json.Unmarshaler = (*Date)(nil)
)
