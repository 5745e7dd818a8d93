// Package bias parses hotword and keyword lists and matches them against
// decoded token sequences.
package bias

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rbright/hark/internal/tokens"
)

// Entry is one biased phrase expressed as model tokens.
type Entry struct {
	Tokens    []string
	Display   string
	Boost     float32
	Threshold float32
}

// Vocabulary resolves token symbols to ids.
type Vocabulary interface {
	ID(sym string) (int, bool)
}

// Parse reads one entry per line:
//
//	tok1 tok2 ... [@display] [:boost] [#threshold]
//
// Missing boost and threshold take the supplied defaults.
func Parse(text string, defaultBoost, defaultThreshold float32) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		entry := Entry{Boost: defaultBoost, Threshold: defaultThreshold}
		for _, field := range strings.Fields(line) {
			switch {
			case strings.HasPrefix(field, "@") && len(field) > 1:
				entry.Display = field[1:]
			case strings.HasPrefix(field, ":") && len(field) > 1:
				v, err := strconv.ParseFloat(field[1:], 32)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid boost %q", lineNo, field)
				}
				entry.Boost = float32(v)
			case strings.HasPrefix(field, "#") && len(field) > 1:
				v, err := strconv.ParseFloat(field[1:], 32)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid threshold %q", lineNo, field)
				}
				entry.Threshold = float32(v)
			default:
				entry.Tokens = append(entry.Tokens, field)
			}
		}

		if len(entry.Tokens) == 0 {
			return nil, fmt.Errorf("line %d: entry has no tokens", lineNo)
		}
		if entry.Display == "" {
			entry.Display = tokens.Join(entry.Tokens)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Load reads entries from path and appends those in buf.
func Load(path, buf string, defaultBoost, defaultThreshold float32) ([]Entry, error) {
	var entries []Entry
	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read bias list %q: %w", path, err)
		}
		fromFile, err := Parse(string(content), defaultBoost, defaultThreshold)
		if err != nil {
			return nil, fmt.Errorf("bias list %q: %w", path, err)
		}
		entries = append(entries, fromFile...)
	}

	fromBuf, err := Parse(buf, defaultBoost, defaultThreshold)
	if err != nil {
		return nil, fmt.Errorf("in-memory bias list: %w", err)
	}
	return append(entries, fromBuf...), nil
}

// Graph is a compiled, read-only set of entries.
type Graph struct {
	entries []compiled
}

type compiled struct {
	entry Entry
	ids   []int
}

// Match is an entry found at the end of a token sequence.
type Match struct {
	Entry Entry
	// Start indexes the first matched token in the searched sequence.
	Start int
	IDs   []int
}

// Compile resolves every entry against vocab. Unknown symbols are an error.
func Compile(entries []Entry, vocab Vocabulary) (*Graph, error) {
	g := &Graph{entries: make([]compiled, 0, len(entries))}
	for i, e := range entries {
		ids := make([]int, len(e.Tokens))
		for j, sym := range e.Tokens {
			id, ok := vocab.ID(sym)
			if !ok {
				return nil, fmt.Errorf("entry %d (%s): unknown token %q", i+1, e.Display, sym)
			}
			ids[j] = id
		}
		e.Tokens = append([]string(nil), e.Tokens...)
		g.entries = append(g.entries, compiled{entry: e, ids: ids})
	}
	return g, nil
}

// Len reports the number of entries; a nil graph is empty.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.entries)
}

// Entries returns a copy of the compiled entries.
func (g *Graph) Entries() []Entry {
	if g == nil {
		return nil
	}
	out := make([]Entry, len(g.entries))
	for i, c := range g.entries {
		out[i] = c.entry
	}
	return out
}

// MatchSuffix returns the longest entry whose tokens end seq.
func (g *Graph) MatchSuffix(seq []int) (Match, bool) {
	if g == nil {
		return Match{}, false
	}

	best := -1
	for i, c := range g.entries {
		if len(c.ids) == 0 || len(c.ids) > len(seq) {
			continue
		}
		if !hasSuffix(seq, c.ids) {
			continue
		}
		if best < 0 || len(c.ids) > len(g.entries[best].ids) {
			best = i
		}
	}
	if best < 0 {
		return Match{}, false
	}

	c := g.entries[best]
	return Match{
		Entry: c.entry,
		Start: len(seq) - len(c.ids),
		IDs:   append([]int(nil), c.ids...),
	}, true
}

// Continue returns the token that extends the longest entry prefix ending
// seq, with that entry's boost. The empty prefix counts, so with no partial
// match the highest-boosted entry's first token is returned. Entries without
// a positive boost are ignored.
func (g *Graph) Continue(seq []int) (id int, boost float32, ok bool) {
	if g == nil {
		return 0, 0, false
	}

	bestLen := -1
	for _, c := range g.entries {
		if c.entry.Boost <= 0 || len(c.ids) == 0 {
			continue
		}
		for n := min(len(c.ids)-1, len(seq)); n >= 0; n-- {
			if n < bestLen || (n == bestLen && c.entry.Boost <= boost) {
				break
			}
			if hasSuffix(seq, c.ids[:n]) {
				bestLen, id, boost = n, c.ids[n], c.entry.Boost
				break
			}
		}
	}
	return id, boost, bestLen >= 0
}

func hasSuffix(seq, suffix []int) bool {
	offset := len(seq) - len(suffix)
	for i, id := range suffix {
		if seq[offset+i] != id {
			return false
		}
	}
	return true
}
