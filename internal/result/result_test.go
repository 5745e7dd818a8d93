package result

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/tokens"
	"github.com/stretchr/testify/require"
)

func testAssembler(t *testing.T, alignment bool) Assembler {
	t.Helper()
	table, err := tokens.Parse(strings.NewReader("<blk> 0\n▁HE 1\nLLO 2\n▁WORLD 3\n"))
	require.NoError(t, err)
	return Assembler{Symbols: table, Alignment: alignment}
}

func TestAssembleTextTokensTimestamps(t *testing.T) {
	a := testAssembler(t, true)

	r := a.Assemble(engine.Hypothesis{
		Tokens:     []int{1, 2, 3},
		Timestamps: []float32{0.1, 0.2, 0.5},
		Lang:       "en",
	})
	require.Equal(t, "HELLO WORLD", r.Text)
	require.Equal(t, []string{"▁HE", "LLO", "▁WORLD"}, r.Tokens)
	require.Equal(t, []float32{0.1, 0.2, 0.5}, r.Timestamps)
	require.Equal(t, "en", r.Lang)
	require.False(t, r.Empty())
}

func TestAssembleWithoutAlignmentDropsTimestamps(t *testing.T) {
	a := testAssembler(t, false)
	r := a.Assemble(engine.Hypothesis{Tokens: []int{1}, Timestamps: []float32{0.1}})
	require.Nil(t, r.Timestamps)
}

func TestAssembleIsIdempotent(t *testing.T) {
	a := testAssembler(t, true)
	h := engine.Hypothesis{Tokens: []int{1, 2}, Timestamps: []float32{0, 0.1}}
	require.Equal(t, a.Assemble(h), a.Assemble(h))
}

func TestAssembleEmpty(t *testing.T) {
	r := testAssembler(t, true).Assemble(engine.Hypothesis{})
	require.True(t, r.Empty())
	require.Equal(t, `{"text":"","tokens":[]}`, r.JSON())
}

func TestJSONOmitsAbsentFields(t *testing.T) {
	r := Result{Text: "HELLO", Tokens: []string{"▁HE", "LLO"}}
	require.Equal(t, `{"text":"HELLO","tokens":["▁HE","LLO"]}`, r.JSON())
}

func TestJSONCarriesOptionalFields(t *testing.T) {
	start := float32(1.5)
	r := Result{
		Text:       "HI",
		Tokens:     []string{"▁HI"},
		Timestamps: []float32{1.5},
		Lang:       "en",
		Emotion:    "HAPPY",
		Event:      "Speech",
		Keyword:    "HI",
		StartTime:  &start,
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.JSON()), &decoded))
	for _, key := range []string{"text", "tokens", "timestamps", "lang", "emotion", "event", "keyword", "start_time"} {
		require.Contains(t, decoded, key)
	}
	require.Equal(t, 1.5, decoded["start_time"])
	require.NotContains(t, r.JSON(), "null")
}

func TestJSONWritesNonFiniteTimesAsZero(t *testing.T) {
	tests := []struct {
		name string
		v    float32
	}{
		{name: "nan", v: float32(math.NaN())},
		{name: "positive infinity", v: float32(math.Inf(1))},
		{name: "negative infinity", v: float32(math.Inf(-1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testAssembler(t, true)
			r := a.Assemble(engine.Hypothesis{Tokens: []int{1, 2}, Timestamps: []float32{0.5, tt.v}})
			start := tt.v
			r.StartTime = &start

			require.Equal(t,
				`{"text":"HELLO","tokens":["▁HE","LLO"],"timestamps":[0.5,0],"start_time":0}`,
				r.JSON(),
			)
			// The result itself is left as decoded.
			require.Len(t, r.Timestamps, 2)
			require.False(t, r.Timestamps[1] == 0)
		})
	}
}
