package reference

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/tokens"
	"github.com/stretchr/testify/require"
)

func testSpec(t *testing.T, mode engine.Mode) engine.Spec {
	t.Helper()
	table, err := tokens.Parse(strings.NewReader("<blk> 0\n<unk> 1\n▁A 2\n▁B 3\nC 4\n"))
	require.NoError(t, err)
	return engine.Spec{Mode: mode, Symbols: table, SampleRate: 16000}
}

func sine(seconds float64, amp float64) []float32 {
	n := int(seconds * 16000)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*300*float64(i)/16000))
	}
	return out
}

func TestRecognizerInfo(t *testing.T) {
	rec, err := NewRecognizer(testSpec(t, engine.ModeOnline))
	require.NoError(t, err)

	info := rec.Info()
	require.Equal(t, 16000, info.SampleRate)
	require.Equal(t, 1600, info.ChunkSamples)
	require.Equal(t, float32(0.01), info.FrameShift)
	require.True(t, info.Alignment)
	require.False(t, info.Concurrent)
}

func TestRecognizerRequiresSymbols(t *testing.T) {
	_, err := NewRecognizer(engine.Spec{})
	require.Error(t, err)
}

func TestRecognizerEmitsTokensForSpeechOnly(t *testing.T) {
	rec, err := NewRecognizer(testSpec(t, engine.ModeOnline))
	require.NoError(t, err)

	states, err := rec.DecodeBatch(context.Background(), []engine.Request{
		{Samples: make([]float32, 16000), State: rec.NewState()},
		{Samples: sine(0.5, 0.5), State: rec.NewState()},
	})
	require.NoError(t, err)
	require.Len(t, states, 2)

	require.Empty(t, states[0].Hypothesis().Tokens)
	require.Equal(t, 100, states[0].NumFrames())
	require.Equal(t, 100, states[0].TrailingSilenceFrames())

	hyp := states[1].Hypothesis()
	// run start plus every 20 voiced frames in 50 frames
	require.Len(t, hyp.Tokens, 3)
	require.InDeltaSlice(t, []float32{0, 0.2, 0.4}, hyp.Timestamps, 1e-6)
	require.Len(t, hyp.Scores, 3)
	require.Equal(t, 0, states[1].TrailingSilenceFrames())
	for _, id := range hyp.Tokens {
		require.GreaterOrEqual(t, id, 2)
	}
}

func TestRecognizerBatchTransparent(t *testing.T) {
	rec, err := NewRecognizer(testSpec(t, engine.ModeOnline))
	require.NoError(t, err)

	speech := sine(0.3, 0.4)
	alone, err := rec.DecodeBatch(context.Background(), []engine.Request{{Samples: speech, State: rec.NewState()}})
	require.NoError(t, err)

	batched, err := rec.DecodeBatch(context.Background(), []engine.Request{
		{Samples: sine(0.7, 0.9), State: rec.NewState()},
		{Samples: speech, State: rec.NewState()},
	})
	require.NoError(t, err)
	require.Equal(t, alone[0].Hypothesis(), batched[1].Hypothesis())
}

func TestRecognizerAppliesBias(t *testing.T) {
	spec := testSpec(t, engine.ModeOnline)
	rec, err := NewRecognizer(spec)
	require.NoError(t, err)

	plain, err := rec.DecodeBatch(context.Background(), []engine.Request{{Samples: sine(0.5, 0.5), State: rec.NewState()}})
	require.NoError(t, err)
	unbiased := plain[0].Hypothesis().Tokens
	require.Len(t, unbiased, 3)

	tests := []struct {
		name  string
		boost float32
		want  []int
	}{
		// ▁B C, then the phrase starts over.
		{name: "boost above frame score", boost: 2, want: []int{3, 4, 3}},
		{name: "boost below frame score", boost: 0.5, want: unbiased},
		{name: "no boost", boost: 0, want: unbiased},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph, err := bias.Compile([]bias.Entry{{Tokens: []string{"▁B", "C"}, Boost: tt.boost}}, spec.Symbols)
			require.NoError(t, err)

			states, err := rec.DecodeBatch(context.Background(), []engine.Request{
				{Samples: sine(0.5, 0.5), State: rec.NewState(), Bias: graph},
			})
			require.NoError(t, err)
			require.Equal(t, tt.want, states[0].Hypothesis().Tokens)
		})
	}
}

func TestRecognizerCarriesPartialFrames(t *testing.T) {
	rec, err := NewRecognizer(testSpec(t, engine.ModeOnline))
	require.NoError(t, err)

	states, err := rec.DecodeBatch(context.Background(), []engine.Request{{Samples: make([]float32, 250), State: rec.NewState()}})
	require.NoError(t, err)
	require.Equal(t, 1, states[0].NumFrames())

	states, err = rec.DecodeBatch(context.Background(), []engine.Request{{Samples: make([]float32, 70), State: states[0]}})
	require.NoError(t, err)
	require.Equal(t, 2, states[0].NumFrames())

	states, err = rec.DecodeBatch(context.Background(), []engine.Request{{Samples: make([]float32, 10), State: states[0], Final: true}})
	require.NoError(t, err)
	require.Equal(t, 3, states[0].NumFrames())
}

func TestRecognizerDoesNotMutateInputState(t *testing.T) {
	rec, err := NewRecognizer(testSpec(t, engine.ModeOnline))
	require.NoError(t, err)

	initial := rec.NewState()
	_, err = rec.DecodeBatch(context.Background(), []engine.Request{{Samples: sine(0.2, 0.5), State: initial}})
	require.NoError(t, err)
	require.Equal(t, 0, initial.NumFrames())
	require.Empty(t, initial.Hypothesis().Tokens)
}

func TestRecognizerOfflineLabels(t *testing.T) {
	spec := testSpec(t, engine.ModeOffline)
	spec.ModelType = "sense_voice"
	spec.Language = "zh"
	rec, err := NewRecognizer(spec)
	require.NoError(t, err)

	states, err := rec.DecodeBatch(context.Background(), []engine.Request{{Samples: sine(0.2, 0.5), State: rec.NewState(), Final: true}})
	require.NoError(t, err)

	hyp := states[0].Hypothesis()
	require.Equal(t, "zh", hyp.Lang)
	require.Equal(t, "NEUTRAL", hyp.Emotion)
	require.Equal(t, "Speech", hyp.Event)
}

func TestRecognizerRejectsCancelledContext(t *testing.T) {
	rec, err := NewRecognizer(testSpec(t, engine.ModeOnline))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rec.DecodeBatch(ctx, []engine.Request{{State: rec.NewState()}})
	require.ErrorIs(t, err, engine.ErrEngine)
}

func TestSynthesizer(t *testing.T) {
	s := Synthesizer{}
	require.Equal(t, 22050, s.SampleRate())
	require.Equal(t, 4, s.NumSpeakers())

	normal, err := s.Synthesize(context.Background(), "ab c", 0, 1)
	require.NoError(t, err)
	fast, err := s.Synthesize(context.Background(), "ab c", 0, 2)
	require.NoError(t, err)
	require.Greater(t, len(normal), len(fast))

	other, err := s.Synthesize(context.Background(), "ab c", 1, 1)
	require.NoError(t, err)
	require.Len(t, other, len(normal))
	require.NotEqual(t, normal, other)

	empty, err := s.Synthesize(context.Background(), "", 0, 1)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestDenoiserAttenuatesNoiseFloor(t *testing.T) {
	d := Denoiser{}
	require.Equal(t, 16000, d.SampleRate())

	noise := make([]float32, 8000)
	for i := range noise {
		if i%2 == 0 {
			noise[i] = 0.01
		} else {
			noise[i] = -0.01
		}
	}
	input := append(noise, sine(0.5, 0.5)...)

	out, err := d.Denoise(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, out, len(input))
	require.InDelta(t, 0.001, out[0], 1e-6)
	require.Equal(t, input[len(input)-100], out[len(out)-100])

	empty, err := d.Denoise(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestBackendsRegistered(t *testing.T) {
	require.Contains(t, engine.Backends(), Backend)
}
