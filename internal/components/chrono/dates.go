package chrono

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// day-first layouts go before dateparse, which reads 01/02/2006 as month-first.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

var relativeRegex = regexp.MustCompile(`^(\d+|a|an|one)\s+(\pL+)\s+(ago|назад)$`)
var shortRelativeRegex = regexp.MustCompile(`^(\d+)\s*([hdw])$`)

// amounts above this are not something a forum displays and would overflow
// time.Duration for the small units.
const maxRelativeAmount = 100_000

type unit int

const (
	unit_none unit = iota
	unit_second
	unit_minute
	unit_hour
	unit_day
	unit_week
	unit_month
	unit_year
)

var unitPrefixes = []struct {
	prefix string
	unit   unit
}{
	{"second", unit_second},
	{"sec", unit_second},
	{"сек", unit_second},
	{"minute", unit_minute},
	{"min", unit_minute},
	{"мин", unit_minute},
	{"hour", unit_hour},
	{"hr", unit_hour},
	{"час", unit_hour},
	{"day", unit_day},
	{"день", unit_day},
	{"дня", unit_day},
	{"дней", unit_day},
	{"week", unit_week},
	{"нед", unit_week},
	{"month", unit_month},
	{"мес", unit_month},
	{"year", unit_year},
	{"год", unit_year},
	{"лет", unit_year},
}

func lookupUnit(word string) unit {
	for _, p := range unitPrefixes {
		if strings.HasPrefix(word, p.prefix) {
			return p.unit
		}
	}
	return unit_none
}

func subtract(now time.Time, n int, u unit) time.Time {
	switch u {
	case unit_second:
		return now.Add(-time.Duration(n) * time.Second)
	case unit_minute:
		return now.Add(-time.Duration(n) * time.Minute)
	case unit_hour:
		return now.Add(-time.Duration(n) * time.Hour)
	case unit_day:
		return now.AddDate(0, 0, -n)
	case unit_week:
		return now.AddDate(0, 0, -7*n)
	case unit_month:
		return now.AddDate(0, -n, 0)
	case unit_year:
		return now.AddDate(-n, 0, 0)
	}
	return now
}

// ParseRelative resolves expressions like "2 hours ago", "5 дней назад",
// "yesterday" or the short "3d" against now.
func ParseRelative(raw string, now time.Time) (time.Time, bool) {
	text := strings.ToLower(strings.Join(strings.Fields(raw), " "))

	switch text {
	case "just now", "now", "только что", "сейчас", "today", "сегодня":
		return now, true
	case "yesterday", "вчера":
		return now.AddDate(0, 0, -1), true
	}

	if groups := shortRelativeRegex.FindStringSubmatch(text); groups != nil {
		n, err := strconv.Atoi(groups[1])
		if err != nil || n > maxRelativeAmount {
			return time.Time{}, false
		}
		switch groups[2] {
		case "h":
			return subtract(now, n, unit_hour), true
		case "d":
			return subtract(now, n, unit_day), true
		case "w":
			return subtract(now, n, unit_week), true
		}
	}

	groups := relativeRegex.FindStringSubmatch(text)
	if groups == nil {
		return time.Time{}, false
	}
	n := 1
	switch groups[1] {
	case "a", "an", "one":
	default:
		parsed, err := strconv.Atoi(groups[1])
		if err != nil || parsed > maxRelativeAmount {
			return time.Time{}, false
		}
		n = parsed
	}
	u := lookupUnit(groups[2])
	if u == unit_none {
		return time.Time{}, false
	}
	return subtract(now, n, u), true
}

// ParseDate parses the date strings forums display. Absolute formats are
// interpreted in the location of now, relative ones are resolved against now.
func ParseDate(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	loc := now.Location()
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, true
		}
	}

	if t, ok := ParseRelative(raw, now); ok {
		return t, true
	}

	t, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
