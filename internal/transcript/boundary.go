package transcript

import (
	"strings"
	"unicode"
)

// abbreviations never end a sentence when followed by a period.
var abbreviations = map[string]struct{}{
	"cf": {}, "dr": {}, "e.g": {}, "fig": {}, "i.e": {}, "jr": {}, "mr": {},
	"mrs": {}, "ms": {}, "prof": {}, "sr": {}, "st": {},
}

// ambiguousAbbreviations end a sentence only when a capitalized word follows.
var ambiguousAbbreviations = map[string]struct{}{
	"etc": {}, "vs": {},
}

// lowercaseAbbreviations stay lowercase even at a sentence start.
var lowercaseAbbreviations = map[string]struct{}{
	"e.g": {}, "etc": {}, "i.e": {}, "vs": {},
}

// isTerminal reports runes that always close a sentence.
func isTerminal(r rune) bool {
	switch r {
	case '!', '?', '。', '！', '？', '；':
		return true
	default:
		return false
	}
}

func isSentencePrefixRune(r rune) bool {
	switch r {
	case ')', ']', '}', '\'', '"', '’', '”':
		return true
	default:
		return false
	}
}

// isSentenceBoundaryPeriod decides whether runes[idx], a period, ends a
// sentence.
func isSentenceBoundaryPeriod(runes []rune, idx int) bool {
	if idx < 0 || idx >= len(runes) || runes[idx] != '.' {
		return false
	}

	// 3.14, example.com, ...
	if idx+1 < len(runes) {
		next := runes[idx+1]
		if unicode.IsLetter(next) || unicode.IsDigit(next) || next == '.' {
			return false
		}
	}

	token := strings.ToLower(tokenBeforePeriod(runes, idx))
	if token == "" {
		return true
	}
	if _, ok := abbreviations[token]; ok {
		return false
	}
	if _, ok := ambiguousAbbreviations[token]; ok {
		return nextWordCapitalized(runes, idx+1)
	}
	if isInitialism(token) {
		return nextWordCapitalized(runes, idx+1)
	}
	return true
}

// tokenBeforePeriod returns the letters and inner periods ending at idx.
func tokenBeforePeriod(runes []rune, idx int) string {
	start := idx - 1
	for start >= 0 && (unicode.IsLetter(runes[start]) || runes[start] == '.') {
		start--
	}
	return strings.Trim(string(runes[start+1:idx]), ".")
}

// nextWordCapitalized is true at end of text, since a trailing abbreviation
// closes its sentence.
func nextWordCapitalized(runes []rune, from int) bool {
	for i := from; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r), isSentencePrefixRune(r):
			continue
		case unicode.IsLetter(r):
			return unicode.IsUpper(r)
		default:
			return false
		}
	}
	return true
}

// isInitialism matches single letters joined by periods, e.g. "u.s".
func isInitialism(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		runes := []rune(part)
		if len(runes) != 1 || !unicode.IsLetter(runes[0]) {
			return false
		}
	}
	return true
}
