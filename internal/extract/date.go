package extract

import (
	"regexp"
	"strings"
)

var monthNumbers = strings.NewReplacer(
	"January", "01",
	"February", "02",
	"March", "03",
	"April", "04",
	"May", "05",
	"June", "06",
	"July", "07",
	"August", "08",
	"September", "09",
	"October", "10",
	"November", "11",
	"December", "12",
)

var (
	dayMonthYearRe = regexp.MustCompile(`(\d{2})\s+(\d{1,2})(?:st|nd|rd|th)?,?\s*(\d{4})`)
	monthYearRe    = regexp.MustCompile(`(\d{2}),?\s*(\d{4})`)
	yearOnlyRe     = regexp.MustCompile(`^(\d{4})$`)
	firstYearRe    = regexp.MustCompile(`\d{4}`)
)

// FormatDate normalizes a printed release date to YYYY-MM-DD.
//
//	"July 23rd, 2002" -> "2002-07-23"
//	"July, 2002"      -> "2002-07-01"
//	"2002"            -> "2002-01-01"
//
// Anything else yields "".
func FormatDate(raw string) string {
	s := monthNumbers.Replace(strings.TrimSpace(raw))

	if m := dayMonthYearRe.FindStringSubmatch(s); m != nil {
		day := m[2]
		if len(day) == 1 {
			day = "0" + day
		}
		return m[3] + "-" + m[1] + "-" + day
	}
	if m := monthYearRe.FindStringSubmatch(s); m != nil {
		return m[2] + "-" + m[1] + "-01"
	}
	if m := yearOnlyRe.FindStringSubmatch(s); m != nil {
		return m[1] + "-01-01"
	}
	return ""
}

// firstYear returns the first run of four digits in s.
func firstYear(s string) string {
	return firstYearRe.FindString(s)
}
