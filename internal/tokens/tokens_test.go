package tokens

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	table, err := Parse(strings.NewReader("<blk> 0\n▁HE 1\nLLO 2\n\n3\n"))
	require.NoError(t, err)
	require.Equal(t, 4, table.Len())

	sym, ok := table.Symbol(1)
	require.True(t, ok)
	require.Equal(t, "▁HE", sym)

	sym, ok = table.Symbol(3)
	require.True(t, ok)
	require.Equal(t, " ", sym)

	id, ok := table.ID("LLO")
	require.True(t, ok)
	require.Equal(t, 2, id)

	_, ok = table.Symbol(99)
	require.False(t, ok)
}

func TestParseTableErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "bad id", input: "a x\n", wantErr: "invalid id"},
		{name: "duplicate id", input: "a 1\nb 1\n", wantErr: "already assigned"},
		{name: "too many fields", input: "a b 1\n", wantErr: "expected"},
		{name: "empty", input: "\n\n", wantErr: "empty"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.input))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadPrefersFileThenBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.txt")
	require.NoError(t, os.WriteFile(path, []byte("a 0\nb 1\n"), 0o600))

	table, err := Load(path, "z 0\n")
	require.NoError(t, err)
	_, ok := table.ID("a")
	require.True(t, ok)

	table, err = Load("", "z 0\n")
	require.NoError(t, err)
	_, ok = table.ID("z")
	require.True(t, ok)

	_, err = Load("", "")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"), "")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		want    string
	}{
		{name: "word pieces", symbols: []string{"▁HE", "LLO", "▁WORLD"}, want: "HELLO WORLD"},
		{name: "byte tokens", symbols: []string{"<0xE4>", "<0xBD>", "<0xA0>", "好"}, want: "你好"},
		{name: "invalid bytes replaced", symbols: []string{"<0xFF>"}, want: "�"},
		{name: "empty", symbols: nil, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Join(tc.symbols))
		})
	}
}

func TestSymbolsSkipsUnknownIDs(t *testing.T) {
	table, err := Parse(strings.NewReader("a 0\nb 1\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"b", "a"}, table.Symbols([]int{1, 7, 0}))
}

func TestIDsSorted(t *testing.T) {
	table, err := Parse(strings.NewReader("c 7\na 0\nb 3\n"))
	require.NoError(t, err)
	require.Equal(t, []int{0, 3, 7}, table.IDs())
}
