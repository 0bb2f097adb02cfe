package format

import (
	"testing"
	"time"
)

func TestCents(t *testing.T) {
	cases := map[int64]string{
		0:        "$0.00",
		5:        "$0.05",
		25:       "$0.25",
		123456:   "$1,234.56",
		-250:     "-$2.50",
		10000000: "$100,000.00",
	}
	for in, want := range cases {
		if got := Cents(in); got != want {
			t.Errorf("Cents(%d) = %q, want %q", in, got, want)
		}
	}
	if got := SignedCents(500); got != "+$5.00" {
		t.Errorf("SignedCents(500) = %q", got)
	}
}

func TestNumberAndPercent(t *testing.T) {
	if got := Number(1234567); got != "1,234,567" {
		t.Errorf("Number = %q", got)
	}
	if got := Percent(1250); got != "12.5%" {
		t.Errorf("Percent(1250) = %q", got)
	}
	if got := Percent(7000); got != "70%" {
		t.Errorf("Percent(7000) = %q", got)
	}
}

func TestDates(t *testing.T) {
	if got := Date("2025-03-01T12:00:00Z"); got != "Mar 1, 2025" {
		t.Errorf("Date = %q", got)
	}
	if got := Date("2025-03-01 08:30:00"); got != "Mar 1, 2025" {
		t.Errorf("Date(sql) = %q", got)
	}
	if got := Date("soon"); got != "soon" {
		t.Errorf("Date(invalid) = %q", got)
	}

	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"":                     "Recently",
		"2025-03-20T09:00:00Z": "Today",
		"2025-03-19T09:00:00Z": "Yesterday",
		"2025-03-16T12:00:00Z": "4 days ago",
		"2025-03-06T12:00:00Z": "2 weeks ago",
		"2025-01-02T12:00:00Z": "Jan 2, 2025",
	}
	for in, want := range cases {
		if got := Relative(in, now); got != want {
			t.Errorf("Relative(%q) = %q, want %q", in, got, want)
		}
	}
}
