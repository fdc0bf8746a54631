package services

import (
	"regexp"
	"strconv"
	"time"
)

var dobPattern = regexp.MustCompile(`^\s*(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2}|\d{4})\s*$`)

// twoDigitYearPivot splits two-digit years: below it is 20xx, otherwise 19xx.
const twoDigitYearPivot = 50

// ParseDOB parses a day-first date such as 07/07/2008, 7-7-08 or 07.07.2008.
// Impossible calendar dates are rejected.
func ParseDOB(s string) (time.Time, bool) {
	m := dobPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		if year < twoDigitYearPivot {
			year += 2000
		} else {
			year += 1900
		}
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31/02 into March
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// AgeFromDOB returns whole years between the date of birth and now, or 0
// when the date cannot be parsed or the age falls outside (0, 120).
func AgeFromDOB(dob string, now time.Time) int {
	born, ok := ParseDOB(dob)
	if !ok {
		return 0
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	if !ValidAge(age) {
		return 0
	}
	return age
}

// ValidAge reports whether age lies in the open interval (0, 120).
func ValidAge(age int) bool {
	return age > 0 && age < 120
}
