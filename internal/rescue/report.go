package rescue

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
	"github.com/bloodbridge/donor-extraction-service/internal/services"
)

// rhWord is an optional Rh marker printed between the group and its sign.
const rhWord = `(?:RH\s*(?:\(D\)\s*)?)?`

const signToken = `(\+\s*VE|-\s*VE|POSITIVE|NEGATIVE|POS|NEG|\(\+\)|\(-\)|\+|-|−)`

var (
	finalGroupPattern    = regexp.MustCompile(`(?i)FINAL\s*BLOOD\s*GROUP\s*[|:\s]+\s*(AB|A|B|O|0)\s*` + rhWord + signToken)
	aboGroupPattern      = regexp.MustCompile(`(?i)ABO\s*(?:BLOOD\s*)?(?:GROUP|GROUPING|TYPE)\s*[|:\s]+\s*(AB|A|B|O)\b`)
	rhFactorPattern      = regexp.MustCompile(`(?i)RH\s*(?:\(D\)\s*)?(?:FACTOR|TYPE|TYPING)\s*[|:\s]+\s*` + signToken)
	labelledGroupPattern = regexp.MustCompile(`(?i)BLOOD\s*GROUP\s*(?:&|AND)?\s*(?:RH\s*(?:\(D\)\s*)?(?:FACTOR|TYPE)?)?\s*[|:\s]+\s*(AB|A|B|O|0)\s*` + rhWord + signToken)

	patientNamePattern = regexp.MustCompile(`(?i)\b(?:Patient(?:'s)?\s*)?Name\s*[|:\s]+\s*((?:(?:Mr|Mrs|Ms|Miss|Master|Baby)\.?\s+)?[A-Za-z][A-Za-z. ]*?)[ \t]*(?:\n|\r|\||\bGender\b|\bSex\b|\bDate\b|\bAge\b|$)`)
	honorificPrefix    = regexp.MustCompile(`(?i)^(?:Mr|Mrs|Ms|Miss|Master|Baby)\.?\s+`)
	patientAgePattern  = regexp.MustCompile(`(?i)\bAge(?:\s*/\s*(?:Sex|Gender))?\s*[|:\s]+\s*(\d{1,3})\s*(?:Years?|Yrs?|Y)?`)
	testDatePattern    = regexp.MustCompile(`(?i)\b(?:(?:Test|Report|Reported|Collection|Collected|Sample|Registration|Receiving)\s*(?:Date|On)?|Date)\s*(?:&\s*Time)?\s*[|:\s]+\s*(\d{1,2}[/\-.](?:\d{1,2}|[A-Za-z]{3})[/\-.]\d{2,4})`)
)

// Report fills the empty fields of base from raw lab-report text.
func Report(text string, base models.ReportRecord) models.ReportRecord {
	out := base

	if !models.IsBloodGroup(out.BloodGroup) {
		out.BloodGroup = findBloodGroup(text)
	}
	if out.PatientName == "" || !services.IsPlausibleName(out.PatientName) {
		out.PatientName = findPatientName(text)
	}
	if out.PatientAge == 0 {
		out.PatientAge = findPatientAge(text)
	}
	if out.Gender == "" {
		out.Gender = findGender(text)
	}
	if out.TestDate == "" {
		if m := testDatePattern.FindStringSubmatch(text); m != nil {
			out.TestDate = m[1]
		}
	}
	return out
}

// findBloodGroup tries the final labelled result first, then the separate
// ABO and Rh rows, then any labelled blood group.
func findBloodGroup(text string) string {
	if m := finalGroupPattern.FindStringSubmatch(text); m != nil {
		if g := services.NormalizeBloodGroup(m[1] + m[2]); g != "" {
			return g
		}
	}

	abo := aboGroupPattern.FindStringSubmatch(text)
	rh := rhFactorPattern.FindStringSubmatch(text)
	if abo != nil && rh != nil {
		if g := services.NormalizeBloodGroup(abo[1] + rh[1]); g != "" {
			return g
		}
	}

	for _, m := range labelledGroupPattern.FindAllStringSubmatch(text, -1) {
		if g := services.NormalizeBloodGroup(m[1] + m[2]); g != "" {
			return g
		}
	}
	return ""
}

func findPatientName(text string) string {
	for _, m := range patientNamePattern.FindAllStringSubmatch(text, -1) {
		name := strings.Join(strings.Fields(honorificPrefix.ReplaceAllString(m[1], "")), " ")
		name = strings.TrimRight(name, ". ")
		if services.IsPlausibleName(name) {
			return name
		}
	}
	return ""
}

func findPatientAge(text string) int {
	m := patientAgePattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	age, err := strconv.Atoi(m[1])
	if err != nil || !services.ValidAge(age) {
		return 0
	}
	return age
}
