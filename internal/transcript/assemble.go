// Package transcript joins endpointed utterances into readable text and
// splits text into sentences for synthesis.
package transcript

import (
	"strings"
	"unicode"
)

// Options controls transcript assembly formatting behavior.
type Options struct {
	TrailingSpace       bool
	CapitalizeSentences bool
}

// Assemble joins utterance texts and applies configured normalization.
//
// With CapitalizeSentences, all-caps utterances, which many subword
// vocabularies produce, are folded to lowercase before sentence casing.
func Assemble(utterances []string, opts Options) string {
	if len(utterances) == 0 {
		return ""
	}

	parts := make([]string, 0, len(utterances))
	for _, u := range utterances {
		if opts.CapitalizeSentences && isAllCaps(u) {
			u = strings.ToLower(u)
		}
		parts = append(parts, u)
	}

	normalized := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeSentences {
		normalized = capitalizePronounI(capitalizeSentenceStarts(normalized))
	}

	if opts.TrailingSpace {
		return normalized + " "
	}
	return normalized
}

func isAllCaps(text string) bool {
	letters := 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters > 1
}
