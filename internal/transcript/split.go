package transcript

import (
	"strings"
	"unicode"
)

// Sentences splits text at sentence boundaries and line breaks. Terminal
// punctuation stays with its sentence; blank pieces are dropped.
func Sentences(text string) []string {
	runes := []rune(text)

	var out []string
	start := 0
	flush := func(end int) {
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\n':
			flush(i + 1)
		case isTerminal(r) || r == '.' && isSentenceBoundaryPeriod(runes, i):
			end := i + 1
			// Keep runs like "?!" and closing quotes with the sentence.
			for end < len(runes) && (isTerminal(runes[end]) || isSentencePrefixRune(runes[end])) {
				end++
			}
			if end < len(runes) && !unicode.IsSpace(runes[end]) && !isCJK(r) {
				continue
			}
			flush(end)
			i = end - 1
		}
	}
	flush(len(runes))
	return out
}

// Group joins consecutive sentences into groups of at most n.
func Group(sentences []string, n int) []string {
	if n <= 0 {
		n = 1
	}
	groups := make([]string, 0, (len(sentences)+n-1)/n)
	for i := 0; i < len(sentences); i += n {
		end := min(i+n, len(sentences))
		groups = append(groups, strings.Join(sentences[i:end], " "))
	}
	return groups
}

func isCJK(r rune) bool {
	return r == '。' || r == '！' || r == '？' || r == '；'
}
