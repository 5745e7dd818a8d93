package transcript

import (
	"strings"
	"unicode"
)

func capitalizeSentenceStarts(text string) string {
	runes := []rune(text)

	var out strings.Builder
	out.Grow(len(text))

	capitalizeNext := true
	sawSpace := false

	for i, r := range runes {
		if capitalizeNext {
			switch {
			case unicode.IsLetter(r):
				if (i == 0 || sawSpace) && shouldCapitalizeWordAt(runes, i) {
					r = unicode.ToUpper(r)
				}
				capitalizeNext = false
			case unicode.IsSpace(r):
				sawSpace = true
			case isSentencePrefixRune(r):
				// . "quote" keeps waiting for the letter.
			default:
				capitalizeNext = false
			}
		}

		out.WriteRune(r)

		if r == '.' && isSentenceBoundaryPeriod(runes, i) || isTerminal(r) {
			capitalizeNext = true
			sawSpace = false
		}
	}

	return out.String()
}

func shouldCapitalizeWordAt(runes []rune, idx int) bool {
	end := idx
	for end < len(runes) && (unicode.IsLetter(runes[end]) || runes[end] == '.') {
		end++
	}
	token := strings.ToLower(strings.Trim(string(runes[idx:end]), "."))
	_, lower := lowercaseAbbreviations[token]
	return !lower
}
