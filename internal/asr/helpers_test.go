package asr

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/engine"
	"github.com/stretchr/testify/require"

	_ "github.com/rbright/hark/internal/engine/reference"
)

const testTokens = "<blk> 0\n<unk> 1\n▁HELLO 2\n▁WORLD 3\n▁HI 4\nS 5\n"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// referenceConfig points the online and offline sections at placeholder model
// files so the reference backend can load.
func referenceConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	tokensPath := writeFile(t, dir, "tokens.txt", testTokens)

	cfg := config.Default()
	cfg.Online.Zipformer2CTC.Model = writeFile(t, dir, "ctc.onnx", "stub")
	cfg.Online.Tokens = tokensPath
	cfg.Offline.SenseVoice.Model = writeFile(t, dir, "sense-voice.onnx", "stub")
	cfg.Offline.Tokens = tokensPath
	return cfg
}

func fakeConfig() config.Config {
	cfg := config.Default()
	cfg.Online.Zipformer2CTC.Model = "unused.onnx"
	cfg.Online.TokensBuf = testTokens
	return cfg
}

func sine(seconds, amp float64) []float32 {
	n := int(seconds * 16000)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*300*float64(i)/16000))
	}
	return out
}

func silence(seconds float64) []float32 {
	return make([]float32, int(seconds*16000))
}

func concat(parts ...[]float32) []float32 {
	var out []float32
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

type fakeState struct {
	frames int
	tokens []int
}

func (s *fakeState) Hypothesis() engine.Hypothesis {
	return engine.Hypothesis{Tokens: append([]int(nil), s.tokens...)}
}
func (s *fakeState) NumFrames() int             { return s.frames }
func (s *fakeState) TrailingSilenceFrames() int { return 0 }

// fakeRecognizer emits token 2 per request and records every batch.
type fakeRecognizer struct {
	info  engine.Info
	err   error
	short bool
	delay time.Duration

	mu      sync.Mutex
	batches [][]engine.Request
	closed  bool

	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{info: engine.Info{SampleRate: 16000, ChunkSamples: 1600, FrameShift: 0.01}}
}

func (f *fakeRecognizer) Info() engine.Info             { return f.info }
func (f *fakeRecognizer) NewState() engine.DecoderState { return &fakeState{} }

func (f *fakeRecognizer) DecodeBatch(_ context.Context, reqs []engine.Request) ([]engine.DecoderState, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.batches = append(f.batches, reqs)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	out := make([]engine.DecoderState, len(reqs))
	for i, req := range reqs {
		prev := req.State.(*fakeState)
		out[i] = &fakeState{
			frames: prev.frames + len(req.Samples)/160,
			tokens: append(append([]int(nil), prev.tokens...), 2),
		}
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeRecognizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRecognizer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}
