// Package rescue recovers document fields from raw OCR text with fixed
// patterns. It is the deterministic fallback behind the remote OCR and AI
// stages and only fills fields that are still empty.
package rescue

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
	"github.com/bloodbridge/donor-extraction-service/internal/services"
)

var (
	idNumberPattern = regexp.MustCompile(`\b\d{4}[ \t]?\d{4}[ \t]?\d{4}\b`)

	wordPattern        = regexp.MustCompile(`\p{L}+`)
	capitalizedPattern = regexp.MustCompile(`^[A-Z][A-Za-z]+$`)

	// Positional name heuristics, tried in order.
	namePatterns = []*regexp.Regexp{
		// line preceding the date of birth, in any case
		regexp.MustCompile(`(?m)^[ \t]*((?i:[A-Z][a-z]{2,}(?:[ \t]+[A-Z][a-z]+)*))[ \t]*\n[^\n]*(?i:DOB|जन्म)`),
		// Latin name following the Devanagari rendering
		regexp.MustCompile(`[\x{0900}-\x{097F}]+[ \t]*\n?[ \t]*([A-Z][a-z]{2,}(?:[ \t]+[A-Z][a-z]+)*)`),
		// line preceding the gender
		regexp.MustCompile(`(?m)((?i:[A-Z][a-z]{2,}(?:[ \t]+[A-Z][a-z]+)*))[ \t]*\n[^\n]*(?i:MALE|FEMALE|पुरुष|महिला)`),
		// any capitalized word with a vowel
		regexp.MustCompile(`\b([A-Z][a-z]*[aeiou][a-z]{2,})\b`),
	}
	nameTrailer = regexp.MustCompile(`(?i)\s*(DOB|MALE|FEMALE|जन्म|पुरुष|महिला).*$`)

	dobPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:जन्म\s*तिथि\s*[/\\]?\s*)?DOB\s*[:\s]*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`),
		regexp.MustCompile(`जन्म\s*तिथि\s*[:\s]*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`),
		regexp.MustCompile(`(?i)Date\s*of\s*Birth\s*[:\s]*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4})`),
		regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`),
	}

	labelledGender = regexp.MustCompile(`(?i)\b(?:Gender|Sex)\s*[|:\s]+\s*(Male|Female|M|F)\b`)
	femaleWord     = regexp.MustCompile(`\bFEMALE\b`)
	maleWord       = regexp.MustCompile(`\bMALE\b`)
)

const (
	minHeuristicNameLength = 4
	maxNameTokens          = 4
)

// Identity fills the empty fields of base from raw identity-card text.
// A name already present but implausible is replaced.
func Identity(text string, base models.IdentityRecord, now time.Time) models.IdentityRecord {
	out := base

	if !models.IsIdentityNumber(out.IDNumber) {
		out.IDNumber = findIDNumber(text)
	}
	if out.Name == "" || !services.IsPlausibleName(out.Name) {
		out.Name = findName(text)
	}
	if out.DateOfBirth == "" {
		out.DateOfBirth = firstSubmatch(text, dobPatterns)
	}
	if out.Gender == "" {
		out.Gender = findGender(text)
	}
	if out.Age == 0 && out.DateOfBirth != "" {
		out.Age = services.AgeFromDOB(out.DateOfBirth, now)
	}
	return out
}

// findIDNumber returns the first stand-alone 12-digit number, skipping the
// 16-digit virtual ID and any line that labels one.
func findIDNumber(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(strings.ToUpper(line), "VID") {
			continue
		}
		for _, loc := range idNumberPattern.FindAllStringIndex(line, -1) {
			if digitAdjacent(line, loc[0], loc[1]) {
				continue
			}
			return stripSpaces(line[loc[0]:loc[1]])
		}
	}
	return ""
}

// digitAdjacent reports whether the span continues into another digit group.
func digitAdjacent(line string, start, end int) bool {
	after := strings.TrimLeft(line[end:], " \t")
	if after != "" && after[0] >= '0' && after[0] <= '9' {
		return true
	}
	before := strings.TrimRight(line[:start], " \t")
	if before != "" {
		c := before[len(before)-1]
		return c >= '0' && c <= '9'
	}
	return false
}

func findName(text string) string {
	if name := dictionaryName(text); name != "" {
		return name
	}
	for _, p := range namePatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(nameTrailer.ReplaceAllString(m[1], ""))
			if len([]rune(candidate)) >= minHeuristicNameLength && services.IsPlausibleName(candidate) {
				return candidate
			}
		}
	}
	return ""
}

// dictionaryName returns the highest-priority dictionary word found in the
// text, extended with the capitalized words that follow it on the same line.
func dictionaryName(text string) string {
	best := -1
	var loc []int
	for _, l := range wordPattern.FindAllStringIndex(text, -1) {
		rank, ok := dictionaryRank(text[l[0]:l[1]])
		if ok && (best < 0 || rank < best) {
			best, loc = rank, l
		}
	}
	if loc == nil {
		return ""
	}

	title := cases.Title(language.Und)
	word := title.String(text[loc[0]:loc[1]])
	parts := []string{word}

	rest := text[loc[1]:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	for _, tok := range strings.Fields(rest) {
		if len(parts) == maxNameTokens || !capitalizedPattern.MatchString(tok) || services.IsStructuralWord(tok) {
			break
		}
		parts = append(parts, title.String(tok))
	}

	full := strings.Join(parts, " ")
	if services.IsPlausibleName(full) {
		return full
	}
	return word
}

func findGender(text string) string {
	if m := labelledGender.FindStringSubmatch(text); m != nil {
		return services.NormalizeGender(m[1])
	}
	switch {
	case strings.Contains(text, "महिला"):
		return "Female"
	case strings.Contains(text, "पुरुष"):
		return "Male"
	}
	upper := strings.ToUpper(text)
	switch {
	case femaleWord.MatchString(upper):
		return "Female"
	case maleWord.MatchString(upper):
		return "Male"
	}
	return ""
}

func firstSubmatch(text string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
}
