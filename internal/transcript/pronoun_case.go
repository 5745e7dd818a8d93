package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// pronounI matches a lone i or one of its contractions.
var pronounI = regexp.MustCompile(`\bi(?:['’](?:m|d|ll|ve|re|s))?\b`)

func capitalizePronounI(text string) string {
	var out strings.Builder
	last := 0
	for _, m := range pronounI.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		if end-start == 1 && inInitialism(text, start, end) {
			continue
		}
		out.WriteString(text[last:start])
		out.WriteByte('I')
		last = start + 1
	}
	if last == 0 {
		return text
	}
	out.WriteString(text[last:])
	return out.String()
}

// inInitialism keeps the i in "i.e." and "a.i." lowercase.
func inInitialism(text string, start, end int) bool {
	dotAfter := end < len(text) && text[end] == '.'
	if dotAfter && end+1 < len(text) {
		if next, _ := utf8.DecodeRuneInString(text[end+1:]); unicode.IsLetter(next) {
			return true
		}
	}
	if dotAfter && start > 1 && text[start-1] == '.' {
		prev, _ := utf8.DecodeLastRuneInString(text[:start-1])
		return unicode.IsLetter(prev)
	}
	return false
}
