// Package tokens loads model symbol tables and renders token sequences as text.
package tokens

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// WordBoundary marks the start of a word in sentencepiece vocabularies.
const WordBoundary = "▁"

// Table maps token ids to symbols and back.
type Table struct {
	byID  map[int]string
	bySym map[string]int
}

// Load reads a table from path, or from buf when path is empty.
func Load(path string, buf string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		if strings.TrimSpace(buf) == "" {
			return nil, fmt.Errorf("tokens: neither a file nor an in-memory table was provided")
		}
		return Parse(strings.NewReader(buf))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tokens %q: %w", path, err)
	}
	defer file.Close()

	table, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("tokens %q: %w", path, err)
	}
	return table, nil
}

// Parse reads "symbol id" lines. A line holding only an id names the space symbol.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{byID: make(map[int]string), bySym: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		var sym, rawID string
		switch len(fields) {
		case 1:
			sym, rawID = " ", fields[0]
		case 2:
			sym, rawID = fields[0], fields[1]
		default:
			return nil, fmt.Errorf("line %d: expected \"symbol id\", got %q", lineNo, line)
		}

		id, err := strconv.Atoi(rawID)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid id %q", lineNo, rawID)
		}
		if prev, ok := t.byID[id]; ok {
			return nil, fmt.Errorf("line %d: id %d already assigned to %q", lineNo, id, prev)
		}
		t.byID[id] = sym
		t.bySym[sym] = id
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(t.byID) == 0 {
		return nil, fmt.Errorf("symbol table is empty")
	}
	return t, nil
}

func (t *Table) Symbol(id int) (string, bool) {
	sym, ok := t.byID[id]
	return sym, ok
}

func (t *Table) ID(sym string) (int, bool) {
	id, ok := t.bySym[sym]
	return id, ok
}

// IDs returns every id in ascending order.
func (t *Table) IDs() []int {
	ids := make([]int, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (t *Table) Len() int {
	return len(t.byID)
}

// Symbols maps ids to symbols, skipping ids the table does not know.
func (t *Table) Symbols(ids []int) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if sym, ok := t.byID[id]; ok {
			out = append(out, sym)
		}
	}
	return out
}

// Join renders symbols as text. Word boundaries become spaces and runs of
// <0xHH> byte tokens are decoded together as UTF-8.
func Join(symbols []string) string {
	var out strings.Builder
	var pending []byte

	flush := func() {
		if len(pending) == 0 {
			return
		}
		out.WriteString(strings.ToValidUTF8(string(pending), "�"))
		pending = pending[:0]
	}

	for _, sym := range symbols {
		if b, ok := byteToken(sym); ok {
			pending = append(pending, b)
			continue
		}
		flush()
		out.WriteString(strings.ReplaceAll(sym, WordBoundary, " "))
	}
	flush()

	return strings.TrimSpace(out.String())
}

func byteToken(sym string) (byte, bool) {
	if len(sym) != 6 || !strings.HasPrefix(sym, "<0x") || sym[5] != '>' {
		return 0, false
	}
	v, err := strconv.ParseUint(sym[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}
