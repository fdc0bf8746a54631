package ai

import "strings"

// maxJSONScan bounds how far into a model response the brace matcher looks.
const maxJSONScan = 16 << 10

// extractJSONObject returns the first balanced {...} span in a model
// response. Braces inside JSON strings are ignored.
func extractJSONObject(response string) (string, bool) {
	cleaned := strings.TrimSpace(response)
	fence := strings.Repeat("`", 3)
	cleaned = strings.ReplaceAll(cleaned, fence+"json", "")
	cleaned = strings.ReplaceAll(cleaned, fence, "")

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return "", false
	}

	limit := len(cleaned)
	if limit-start > maxJSONScan {
		limit = start + maxJSONScan
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < limit; i++ {
		c := cleaned[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], true
			}
		}
	}
	return "", false
}
