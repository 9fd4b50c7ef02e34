package ledger_test

import (
	"testing"
	"time"

	"github.com/meridian/agent-ledger/ledger"
)

func TestParseDate_AcceptedLayouts(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"05.03.2026", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"5.3.2026", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"2026-03-05", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"2026-3-5", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"05/03/2026", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"5/3/2026", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"05.03.26", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"5.3.26", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		d := ledger.ParseDate(c.in)
		if !d.Valid() {
			t.Errorf("ParseDate(%q): expected valid", c.in)
			continue
		}
		if !d.Time.Equal(c.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", c.in, d.Time, c.want)
		}
	}
}

func TestParseDate_UnparseableKeepsRaw(t *testing.T) {
	// GIVEN: A date string no layout matches
	// WHEN: Parsing
	// THEN: The raw text survives for display but the date is invalid

	d := ledger.ParseDate("mid March, probably")
	if d.Valid() {
		t.Error("expected invalid date")
	}
	if d.String() != "mid March, probably" {
		t.Errorf("raw text lost: %q", d.String())
	}
}

func TestDate_WithinDays(t *testing.T) {
	a := ledger.NewDate(2026, time.March, 5)
	b := ledger.NewDate(2026, time.March, 15)

	if !a.WithinDays(b, 10) {
		t.Error("10 days apart should be within a 10-day window")
	}
	if a.WithinDays(b, 9) {
		t.Error("10 days apart should be outside a 9-day window")
	}
	// Symmetric.
	if !b.WithinDays(a, 10) {
		t.Error("window should not depend on argument order")
	}
	// Unparseable dates never satisfy a window.
	if a.WithinDays(ledger.ParseDate("???"), 365) {
		t.Error("invalid date must not be within any window")
	}
}

func TestDate_StringRoundTrip(t *testing.T) {
	d := ledger.ParseDate("07.11.2025")
	if d.String() != "07.11.2025" {
		t.Errorf("display string rewritten: %q", d.String())
	}
	if ledger.ParseDate(d.String()).Time != d.Time {
		t.Error("string form should reparse to the same day")
	}
}
