// Package dates provides the civil-date arithmetic the inventory core
// is built on: a date-only type stored and serialized as YYYY-MM-DD,
// plus expiry boundary checks against an injected clock.
package dates

import (
	"database/sql/driver"
	"fmt"
	"math"
	"time"
)

// Layout is the wire and storage format for civil dates.
const Layout = "2006-01-02"

// NearExpiryWindowDays is the inclusive near-expiry boundary: an item
// expiring exactly this many days from today is still near-expiry.
const NearExpiryWindowDays = 60

// Clock supplies the current time. Services hold one so expiry logic
// stays deterministic under test.
type Clock func() time.Time

// System is the production clock.
var System Clock = time.Now

// Date is a calendar date with no time component, normalized to
// midnight UTC.
type Date struct {
	time.Time
}

// New creates a Date from year, month and day.
func New(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Of truncates a timestamp to its civil date in the timestamp's location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return New(y, m, d)
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected %s", s, Layout)
	}
	return Date{Time: t}, nil
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return d.Format(Layout)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s: expected a %s string", s, Layout)
	}
	parsed, err := Parse(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer for DATE columns.
func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = Of(v.UTC())
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Today returns the current civil date according to the clock.
func Today(now Clock) Date {
	return Of(now())
}

// DaysBetween returns the number of days from a to b, rounded up on
// fractional differences. Same day yields 0; any forward gap counts as
// at least one full day.
func DaysBetween(a, b Date) int {
	return int(math.Ceil(b.Sub(a.Time).Hours() / 24))
}

// IsExpired reports whether the date is strictly before today.
func IsExpired(now Clock, d Date) bool {
	return d.Before(Today(now).Time)
}

// IsNearExpiry reports whether the date is not expired and falls within
// the near-expiry window, boundary inclusive.
func IsNearExpiry(now Clock, d Date) bool {
	return !IsExpired(now, d) && DaysBetween(Today(now), d) <= NearExpiryWindowDays
}
