// Package parse converts the loosely formatted price and shipping text
// found in product listings into numeric values.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// InStockShippingDays is assumed when availability text says the
	// item ships immediately.
	InStockShippingDays = 3
	// DefaultShippingDays is assumed when no pattern matches.
	DefaultShippingDays = 5
)

var (
	amountRe     = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	withinDaysRe = regexp.MustCompile(`(?:within|in)\s+(\d{1,3})\s+(?:business\s+)?days?`)
	monthDayRe   = regexp.MustCompile(`(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\b`)
	dayMonthRe   = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Price extracts a numeric amount from a price string such as
// "$1,177.91", ignoring currency symbols and thousands separators.
// Empty, "null", and unparsable inputs return 0. When the string holds
// several amounts (a price range), the first one wins.
func Price(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return 0
	}
	m := amountRe.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

// Count extracts a non-negative integer from text like "12,873 ratings".
// Empty, "null", and unparsable inputs return 0.
func Count(s string) int {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return 0
	}
	m := amountRe.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.SplitN(strings.ReplaceAll(m, ",", ""), ".", 2)[0])
	if err != nil {
		return 0
	}
	return n
}

// ShippingDays derives a day count from availability or delivery text.
// Relative phrases ("ships within 2 days") yield their stated count,
// immediate-availability phrases yield InStockShippingDays, exact dates
// ("delivery Monday, April 15") yield the calendar distance from now
// with dates earlier than today rolling over to next year, and anything
// unrecognized yields DefaultShippingDays.
func ShippingDays(text string, now time.Time) int {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" || s == "null" {
		return DefaultShippingDays
	}
	if m := withinDaysRe.FindStringSubmatch(s); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if strings.Contains(s, "in stock") || strings.Contains(s, "available") {
		return InStockShippingDays
	}
	if strings.Contains(s, "today") {
		return 0
	}
	if strings.Contains(s, "tomorrow") {
		return 1
	}
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		if d, ok := calendarDays(m[1], m[2], now); ok {
			return d
		}
	}
	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		if d, ok := calendarDays(m[2], m[1], now); ok {
			return d
		}
	}
	return DefaultShippingDays
}

// DaysUntil returns the whole calendar days from now's date to target's
// date. Negative when target is in the past.
func DaysUntil(target, now time.Time) int {
	t := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)
	n := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(n) / (24 * time.Hour))
}

func calendarDays(monthTok, dayTok string, now time.Time) (int, bool) {
	month, ok := months[monthTok]
	if !ok {
		return 0, false
	}
	day, err := strconv.Atoi(dayTok)
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	target := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
	if target.Before(midnight(now)) {
		target = target.AddDate(1, 0, 0)
	}
	return DaysUntil(target, now), true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
