package bias

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/hark/internal/tokens"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *tokens.Table {
	t.Helper()
	table, err := tokens.Parse(strings.NewReader("<blk> 0\n▁HE 1\nLLO 2\n▁WORLD 3\n▁HI 4\n"))
	require.NoError(t, err)
	return table
}

func TestParseEntryFields(t *testing.T) {
	entries, err := Parse("▁HE LLO @HELLO :2.5 #0.3\n\n▁WORLD\n", 1.5, 0.25)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, []string{"▁HE", "LLO"}, entries[0].Tokens)
	require.Equal(t, "HELLO", entries[0].Display)
	require.Equal(t, float32(2.5), entries[0].Boost)
	require.Equal(t, float32(0.3), entries[0].Threshold)

	require.Equal(t, "WORLD", entries[1].Display)
	require.Equal(t, float32(1.5), entries[1].Boost)
	require.Equal(t, float32(0.25), entries[1].Threshold)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "bad boost", input: "▁HE :abc", wantErr: "invalid boost"},
		{name: "bad threshold", input: "▁HE #x", wantErr: "invalid threshold"},
		{name: "no tokens", input: "@ONLY :1.0", wantErr: "no tokens"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input, 1, 0)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadMergesFileAndBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotwords.txt")
	require.NoError(t, os.WriteFile(path, []byte("▁HE LLO\n"), 0o600))

	entries, err := Load(path, "▁WORLD", 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"), "", 1, 0)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompileRejectsUnknownToken(t *testing.T) {
	entries, err := Parse("▁NOPE", 1, 0)
	require.NoError(t, err)

	_, err = Compile(entries, testTable(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown token")
}

func TestMatchSuffixPrefersLongest(t *testing.T) {
	entries, err := Parse("LLO @SHORT\n▁HE LLO @LONG\n", 1, 0)
	require.NoError(t, err)
	g, err := Compile(entries, testTable(t))
	require.NoError(t, err)

	m, ok := g.MatchSuffix([]int{3, 1, 2})
	require.True(t, ok)
	require.Equal(t, "LONG", m.Entry.Display)
	require.Equal(t, 1, m.Start)
	require.Equal(t, []int{1, 2}, m.IDs)

	_, ok = g.MatchSuffix([]int{1, 2, 3})
	require.False(t, ok)
}

func TestContinueExtendsLongestPrefix(t *testing.T) {
	g, err := Compile([]Entry{
		{Tokens: []string{"▁HE", "LLO"}, Boost: 1},
		{Tokens: []string{"▁WORLD"}, Boost: 3},
		{Tokens: []string{"▁HI"}},
	}, testTable(t))
	require.NoError(t, err)

	tests := []struct {
		name      string
		seq       []int
		wantID    int
		wantBoost float32
	}{
		{name: "empty picks highest boost", seq: nil, wantID: 3, wantBoost: 3},
		{name: "partial phrase continues", seq: []int{1}, wantID: 2, wantBoost: 1},
		{name: "partial phrase after other tokens", seq: []int{4, 1}, wantID: 2, wantBoost: 1},
		{name: "completed phrase starts over", seq: []int{1, 2}, wantID: 3, wantBoost: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, boost, ok := g.Continue(tt.seq)
			require.True(t, ok)
			require.Equal(t, tt.wantID, id)
			require.Equal(t, tt.wantBoost, boost)
		})
	}

	unboosted, err := Compile([]Entry{{Tokens: []string{"▁HI"}}}, testTable(t))
	require.NoError(t, err)
	_, _, ok := unboosted.Continue(nil)
	require.False(t, ok)
}

func TestNilGraphIsEmpty(t *testing.T) {
	var g *Graph
	require.Equal(t, 0, g.Len())
	require.Nil(t, g.Entries())
	_, ok := g.MatchSuffix([]int{1})
	require.False(t, ok)
	_, _, ok = g.Continue([]int{1})
	require.False(t, ok)
}

func TestCompiledGraphsAreIndependent(t *testing.T) {
	table := testTable(t)

	sessionEntries, err := Parse("▁HE LLO", 1, 0)
	require.NoError(t, err)
	session, err := Compile(sessionEntries, table)
	require.NoError(t, err)

	streamEntries, err := Parse("▁HI", 3, 0)
	require.NoError(t, err)
	stream, err := Compile(streamEntries, table)
	require.NoError(t, err)

	sessionEntries[0].Tokens[0] = "mutated"
	require.Equal(t, 1, session.Len())
	require.Equal(t, "▁HE", session.Entries()[0].Tokens[0])
	require.Equal(t, "HI", stream.Entries()[0].Display)
}
