package services

import (
	"strings"
	"unicode"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

// signReplacer maps verbal and parenthesized Rh markers to +/-. Longer
// patterns come first so POSITIVE is not consumed as POS.
var signReplacer = strings.NewReplacer(
	"(+VE)", "+", "(-VE)", "-",
	"(+)", "+", "(-)", "-",
	"+VE", "+", "-VE", "-",
	"POSITIVE", "+", "NEGATIVE", "-",
	"POS", "+", "NEG", "-",
	"RH(D)", "", "RHD", "", "(D)", "", "RH", "",
)

// dashReplacer folds the various unicode minus and dash runes into ASCII.
var dashReplacer = strings.NewReplacer("−", "-", "–", "-", "—", "-", "‐", "-", "＋", "+")

// containmentOrder checks AB before A and B since "A+" is a substring of "AB+".
var containmentOrder = []string{"AB+", "AB-", "A+", "A-", "B+", "B-", "O+", "O-"}

// NormalizeBloodGroup reduces free-form blood-group text to one of the
// eight canonical values, or "" when that is not possible.
func NormalizeBloodGroup(s string) string {
	u := strings.ToUpper(dashReplacer.Replace(s))
	u = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, u)
	if u == "" {
		return ""
	}

	u = signReplacer.Replace(u)
	u = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '+', r == '-':
			return r
		}
		return -1
	}, u)

	// A zero printed in place of the letter O.
	if u == "0+" || u == "0-" {
		u = "O" + u[1:]
	}

	if models.IsBloodGroup(u) {
		return u
	}
	for _, g := range containmentOrder {
		if strings.Contains(u, g) {
			return g
		}
	}
	return ""
}
