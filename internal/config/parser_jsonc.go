package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// stringTracker follows string literals through a byte-at-a-time scan.
type stringTracker struct {
	inString bool
	escaped  bool
}

// consume reports whether ch is part of a string literal, quotes included.
func (t *stringTracker) consume(ch byte) bool {
	switch {
	case t.escaped:
		t.escaped = false
		return true
	case t.inString && ch == '\\':
		t.escaped = true
		return true
	case ch == '"':
		t.inString = !t.inString
		return true
	default:
		return t.inString
	}
}

// toStrictJSON blanks comments and dangling commas. The result has the same
// length and line structure as content, so decoder offsets map back to it.
func toStrictJSON(content string) (string, error) {
	out := []byte(content)

	var str stringTracker
	for i := 0; i < len(out); i++ {
		if str.consume(out[i]) || out[i] != '/' || i+1 >= len(out) {
			continue
		}
		switch out[i+1] {
		case '/':
			end := i
			for end < len(out) && out[end] != '\n' && out[end] != '\r' {
				end++
			}
			blank(out[i:end])
			i = end - 1
		case '*':
			closeAt := strings.Index(content[i+2:], "*/")
			if closeAt < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			end := i + 2 + closeAt + 2
			blank(out[i:end])
			i = end - 1
		}
	}

	str = stringTracker{}
	for i, ch := range out {
		if str.consume(ch) || ch != ',' {
			continue
		}
		rest := bytes.TrimLeft(out[i+1:], " \t\r\n")
		if len(rest) > 0 && (rest[0] == '}' || rest[0] == ']') {
			out[i] = ' '
		}
	}
	return string(out), nil
}

// blank overwrites b with spaces but keeps line breaks and tabs.
func blank(b []byte) {
	for i, ch := range b {
		if ch != '\n' && ch != '\r' && ch != '\t' {
			b[i] = ' '
		}
	}
}

// requireEOF fails when anything but whitespace follows the first value.
func requireEOF(decoder *json.Decoder) error {
	var extra struct{}
	switch err := decoder.Decode(&extra); {
	case errors.Is(err, io.EOF):
		return nil
	case err == nil:
		return errors.New("multiple JSON values are not allowed")
	default:
		return err
	}
}

// withPosition prefixes syntax and type errors with their line and column.
func withPosition(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := lineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// lineCol locates the byte before offset, which is where encoding/json
// reports a problem.
func lineCol(content string, offset int64) (int, int) {
	limit := min(offset, int64(len(content)))
	if limit <= 0 {
		return 1, 1
	}
	head := content[:limit-1]
	return 1 + strings.Count(head, "\n"), len(head) - strings.LastIndexByte(head, '\n')
}
