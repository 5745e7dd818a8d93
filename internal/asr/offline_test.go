package asr

import (
	"context"
	"testing"

	"github.com/rbright/hark/internal/stream"
	"github.com/stretchr/testify/require"
)

func newReferenceOffline(t *testing.T) *Offline {
	t.Helper()
	rec, err := NewOffline(context.Background(), referenceConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })
	return rec
}

func TestOfflineDecodeCarriesLabels(t *testing.T) {
	rec := newReferenceOffline(t)
	s, err := rec.CreateStream("")
	require.NoError(t, err)
	defer s.Close()

	require.Empty(t, rec.GetResult(s).Tokens)

	require.NoError(t, s.AcceptWaveform(16000, silence(0.2)))
	require.NoError(t, s.AcceptWaveform(16000, sine(0.8, 0.5)))
	require.NoError(t, rec.DecodeStream(context.Background(), s))
	require.True(t, s.Decoded())

	res := rec.GetResult(s)
	require.NotEmpty(t, res.Tokens)
	require.Equal(t, "en", res.Lang)
	require.Equal(t, "NEUTRAL", res.Emotion)
	require.Equal(t, "Speech", res.Event)
	require.Contains(t, res.JSON(), `"lang":"en"`)
}

func TestOfflineDecodesEachStreamOnce(t *testing.T) {
	fake := newFakeRecognizer()
	cfg := fakeConfig()
	cfg.Offline.Paraformer.Model = "unused.onnx"
	cfg.Offline.Tokens = writeFile(t, t.TempDir(), "tokens.txt", testTokens)

	rec, err := NewOffline(context.Background(), cfg, WithEngine(fake))
	require.NoError(t, err)
	defer rec.Close()

	a, err := rec.CreateStream("")
	require.NoError(t, err)
	b, err := rec.CreateStream("")
	require.NoError(t, err)
	empty, err := rec.CreateStream("")
	require.NoError(t, err)

	require.NoError(t, a.AcceptWaveform(16000, make([]float32, 500)))
	require.NoError(t, a.AcceptWaveform(16000, make([]float32, 700)))
	require.NoError(t, b.AcceptWaveform(16000, make([]float32, 4000)))

	require.NoError(t, rec.Decode(context.Background(), a, empty, b))
	require.Len(t, fake.batches, 1)
	require.Len(t, fake.batches[0], 2)
	require.Len(t, fake.batches[0][0].Samples, 1200)
	require.Len(t, fake.batches[0][1].Samples, 4000)
	require.True(t, fake.batches[0][0].Final)
	require.False(t, empty.Decoded())

	require.NoError(t, rec.Decode(context.Background(), a, b))
	require.Len(t, fake.batches, 1)

	require.Error(t, a.AcceptWaveform(16000, []float32{0.1}))
}

func TestOfflineDecodeRepeatedStreamOnce(t *testing.T) {
	fake := newFakeRecognizer()
	cfg := fakeConfig()
	cfg.Offline.Paraformer.Model = "unused.onnx"
	cfg.Offline.Tokens = writeFile(t, t.TempDir(), "tokens.txt", testTokens)

	rec, err := NewOffline(context.Background(), cfg, WithEngine(fake))
	require.NoError(t, err)
	defer rec.Close()

	s, err := rec.CreateStream("")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.AcceptWaveform(16000, make([]float32, 2000)))

	require.NoError(t, rec.Decode(context.Background(), s, s))
	require.Len(t, fake.batches, 1)
	require.Len(t, fake.batches[0], 1)
	require.True(t, s.Decoded())
	require.Len(t, rec.GetResult(s).Tokens, 1)
}

func TestOfflineBatchingIsTransparent(t *testing.T) {
	inputs := [][]float32{
		sine(0.6, 0.5),
		concat(silence(0.3), sine(0.9, 0.3)),
		silence(0.5),
	}
	rec := newReferenceOffline(t)

	one := make([]*stream.Offline, len(inputs))
	batch := make([]*stream.Offline, len(inputs))
	for i, in := range inputs {
		var err error
		one[i], err = rec.CreateStream("")
		require.NoError(t, err)
		batch[i], err = rec.CreateStream("")
		require.NoError(t, err)
		require.NoError(t, one[i].AcceptWaveform(16000, in))
		require.NoError(t, batch[i].AcceptWaveform(16000, in))
	}

	for _, s := range one {
		require.NoError(t, rec.Decode(context.Background(), s))
	}
	require.NoError(t, rec.Decode(context.Background(), batch...))

	for i := range inputs {
		require.Equal(t, rec.GetResult(one[i]), rec.GetResult(batch[i]), "stream %d", i)
	}
}

func TestOfflineResamplesInput(t *testing.T) {
	rec := newReferenceOffline(t)
	s, err := rec.CreateStream("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AcceptWaveform(8000, make([]float32, 8000)))
	require.Equal(t, 16000, s.PendingLen())
}
