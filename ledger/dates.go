package ledger

import (
	"time"
)

// =============================================================================
// DATE - Display-string calendar date
// =============================================================================

// Date holds a calendar date as received (a display string) together with
// its parsed form. Incoming payloads use day-first European formats; the
// raw string is preserved so round-tripping the persisted document never
// rewrites what a human typed.
type Date struct {
	Raw  string
	Time time.Time
	ok   bool
}

// dateLayouts are tried in order. Unpadded day and month layouts accept
// padded input too, so both "05.03.2026" and "5.3.2026" parse.
var dateLayouts = []string{
	"2.1.2006",
	"2006-1-2",
	"2/1/2006",
	"2.1.06",
}

// ParseDate parses a display date string. An unparseable string is kept
// verbatim with Valid() == false; comparisons involving it are skipped
// rather than failed.
func ParseDate(s string) Date {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Raw: s, Time: t, ok: true}
		}
	}
	return Date{Raw: s}
}

// NewDate builds a parsed Date directly. For tests and generated rows.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Raw: t.Format("02.01.2006"), Time: t, ok: true}
}

// Today returns the current calendar date.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) Valid() bool  { return d.ok }
func (d Date) IsZero() bool { return d.Raw == "" && !d.ok }

func (d Date) String() string {
	if d.Raw != "" {
		return d.Raw
	}
	if d.ok {
		return d.Time.Format("02.01.2006")
	}
	return ""
}

// WithinDays reports whether both dates parse and lie within n calendar
// days of each other. Unparseable dates never exclude a comparison result
// on their own; callers decide what a non-comparison means.
func (d Date) WithinDays(other Date, n int) bool {
	if !d.ok || !other.ok {
		return false
	}
	diff := d.Time.Sub(other.Time)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours()/24) <= n
}
