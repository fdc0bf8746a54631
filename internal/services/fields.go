package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// nameDenyList holds structural words printed on identity cards and lab
// reports that OCR regularly returns where a person's name is expected.
var nameDenyList = map[string]struct{}{
	"GOVERNMENT": {}, "INDIA": {}, "AADHAAR": {}, "AADHAR": {}, "AUTHORITY": {},
	"UNIQUE": {}, "MALE": {}, "FEMALE": {}, "DOWNLOAD": {}, "DATE": {},
	"ISSUE": {}, "BIRTH": {}, "DOB": {}, "VID": {}, "ENROLLMENT": {},
	"UIDAI": {}, "HELP": {}, "YEAR": {}, "YEARS": {}, "NAME": {},
	"GENDER": {}, "ADDRESS": {}, "FATHER": {}, "MOTHER": {}, "IDENTIFICATION": {},
}

const (
	minNameLength = 3
	maxNameLength = 50
)

// IsPlausibleName applies the name plausibility filter shared by the AI and
// regex paths.
func IsPlausibleName(name string) bool {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return false
	}

	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsLetter(first) {
		return false
	}

	hasVowel := false
	for _, r := range name {
		if strings.ContainsRune("aeiouAEIOU", r) {
			hasVowel = true
			break
		}
	}
	if !hasVowel {
		return false
	}

	for _, tok := range strings.FieldsFunc(name, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if IsStructuralWord(tok) {
			return false
		}
	}
	return true
}

// IsStructuralWord reports whether word is a deny-listed card/report label.
func IsStructuralWord(word string) bool {
	_, ok := nameDenyList[strings.ToUpper(word)]
	return ok
}

// NormalizeGender maps free-form gender text to "Male", "Female" or "".
// FEMALE is tested first since MALE is a substring of it.
func NormalizeGender(s string) string {
	u := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case u == "":
		return ""
	case u == "F", strings.Contains(u, "FEMALE"), strings.Contains(s, "महिला"):
		return "Female"
	case u == "M", strings.Contains(u, "MALE"), strings.Contains(s, "पुरुष"):
		return "Male"
	}
	return ""
}
