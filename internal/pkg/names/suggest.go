// Package names implements the heuristic that proposes person names from
// OCR text tokens. Suggestions are advisory; they never assert identity.
package names

import (
	"strings"
	"unicode"
)

// stoplist contains capitalized words that frequently appear in yearbook
// copy but are not given names.
var stoplist = map[string]bool{
	"The":        true,
	"And":        true,
	"Class":      true,
	"School":     true,
	"High":       true,
	"Senior":     true,
	"Juniors":    true,
	"Junior":     true,
	"Freshman":   true,
	"Sophomore":  true,
	"Yearbook":   true,
	"Club":       true,
	"Team":       true,
	"President":  true,
	"Secretary":  true,
	"Treasurer":  true,
	"Captain":    true,
	"Coach":      true,
	"Mr":         true,
	"Mrs":        true,
	"Miss":       true,
	"Ms":         true,
	"Dr":         true,
	"Page":       true,
	"Photo":      true,
	"Pictured":   true,
	"Row":        true,
	"Left":       true,
	"Right":      true,
	"Top":        true,
	"Bottom":     true,
	"From":       true,
	"Graduation": true,
	"Memories":   true,
}

// IsLikelyName reports whether a single token looks like part of a
// proper name: capitalized, longer than two letters, all alphabetic and
// not stoplisted.
func IsLikelyName(token string) bool {
	token = strings.Trim(token, ".,;:!?\"'()[]")
	if len(token) <= 2 {
		return false
	}
	if stoplist[token] {
		return false
	}

	runes := []rune(token)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) && r != '-' && r != '\'' {
			return false
		}
	}
	return true
}

// SuggestFromText extracts candidate full names from a block of OCR
// text. Consecutive name-like tokens on the same line are joined, so
// "Margaret Atwood" comes back as one suggestion.
func SuggestFromText(text string) []string {
	var suggestions []string
	seen := map[string]bool{}

	for _, line := range strings.Split(text, "\n") {
		tokens := strings.Fields(line)
		var current []string

		flush := func() {
			if len(current) == 0 {
				return
			}
			name := strings.Join(current, " ")
			current = nil
			if !seen[name] {
				seen[name] = true
				suggestions = append(suggestions, name)
			}
		}

		for _, token := range tokens {
			if IsLikelyName(token) {
				current = append(current, strings.Trim(token, ".,;:!?\"'()[]"))
				// a trailing comma or semicolon separates listed names
				if strings.HasSuffix(token, ",") || strings.HasSuffix(token, ";") {
					flush()
				}
			} else {
				flush()
			}
		}
		flush()
	}

	return suggestions
}

// FirstSuggestion returns the first candidate name or empty string
func FirstSuggestion(text string) string {
	suggestions := SuggestFromText(text)
	if len(suggestions) == 0 {
		return ""
	}
	return suggestions[0]
}
