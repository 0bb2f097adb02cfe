package format

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Cents formats an amount in US cents as dollars.
// Example: Cents(123456) => "$1,234.56"
func Cents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	out := "$" + printer.Sprintf("%d", cents/100) + fmt.Sprintf(".%02d", cents%100)
	if neg {
		return "-" + out
	}
	return out
}

// SignedCents formats a balance change with an explicit sign.
func SignedCents(cents int64) string {
	if cents > 0 {
		return "+" + Cents(cents)
	}
	return Cents(cents)
}

// Number formats an integer with thousands separators.
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Percent formats basis points (1/100 of a percent) as "12.5%".
func Percent(basisPoints int64) string {
	whole := float64(basisPoints) / 100
	s := strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", whole), "0"), ".")
	return s + "%"
}

// ParseTime parses the backend's timestamps. It accepts RFC 3339 and the
// space-separated SQL form.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Date formats a backend timestamp as "Jan 2, 2006". Unparseable values are
// returned unchanged.
func Date(value string) string {
	t, ok := ParseTime(value)
	if !ok {
		return value
	}
	return t.Format("Jan 2, 2006")
}

// DateTime formats a backend timestamp with minutes.
func DateTime(value string) string {
	t, ok := ParseTime(value)
	if !ok {
		return value
	}
	return t.Format("Jan 2, 2006 3:04 PM")
}

// Relative describes how long ago value was, relative to now.
func Relative(value string, now time.Time) string {
	t, ok := ParseTime(value)
	if !ok {
		return "Recently"
	}
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		return fmt.Sprintf("%d weeks ago", days/7)
	default:
		return t.Format("Jan 2, 2006")
	}
}
