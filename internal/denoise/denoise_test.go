package denoise

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/engine"
	"github.com/stretchr/testify/require"

	_ "github.com/rbright/hark/internal/engine/reference"
)

type fakeDenoiser struct {
	got []float32
	err error
}

func (f *fakeDenoiser) SampleRate() int { return 16000 }
func (f *fakeDenoiser) Close() error    { return nil }

func (f *fakeDenoiser) Denoise(_ context.Context, samples []float32) ([]float32, error) {
	f.got = samples
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = v / 2
	}
	return out, nil
}

func fakeConfig() config.Config {
	cfg := config.Default()
	cfg.Denoiser.GTCRN.Model = "gtcrn.onnx"
	return cfg
}

func TestRunAtModelRate(t *testing.T) {
	fake := &fakeDenoiser{}
	s, err := New(context.Background(), fakeConfig(), WithEngine(fake))
	require.NoError(t, err)
	defer s.Close()

	out, err := s.Run(context.Background(), []float32{0.2, 0.4}, 16000)
	require.NoError(t, err)
	require.Equal(t, 16000, out.SampleRate)
	require.Equal(t, []float32{0.1, 0.2}, out.Samples)
}

func TestRunResamplesForeignRate(t *testing.T) {
	fake := &fakeDenoiser{}
	s, err := New(context.Background(), fakeConfig(), WithEngine(fake))
	require.NoError(t, err)

	out, err := s.Run(context.Background(), make([]float32, 8000), 8000)
	require.NoError(t, err)
	require.Len(t, fake.got, 16000)
	require.Len(t, out.Samples, 16000)
	require.InDelta(t, 1.0, out.Duration(), 1e-9)
}

func TestRunErrors(t *testing.T) {
	fake := &fakeDenoiser{err: errors.New("nan in mask")}
	s, err := New(context.Background(), fakeConfig(), WithEngine(fake))
	require.NoError(t, err)

	_, err = s.Run(context.Background(), []float32{0.1}, 16000)
	require.ErrorIs(t, err, engine.ErrEngine)

	_, err = s.Run(context.Background(), []float32{0.1}, 0)
	require.Error(t, err)
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(context.Background(), config.Default())
	require.ErrorIs(t, err, config.ErrInvalid)

	cfg := config.Default()
	cfg.Denoiser.GTCRN.Model = filepath.Join(t.TempDir(), "missing.onnx")
	_, err = New(context.Background(), cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReferenceDenoiserGatesNoise(t *testing.T) {
	model := filepath.Join(t.TempDir(), "gtcrn.onnx")
	require.NoError(t, os.WriteFile(model, []byte("stub"), 0o600))
	cfg := config.Default()
	cfg.Denoiser.GTCRN.Model = model

	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, 16000, s.SampleRate())

	in := make([]float32, 16000)
	for i := range in {
		in[i] = 0.01 * float32(math.Sin(float64(i)))
		if i >= 8000 {
			in[i] = 0.5 * float32(math.Sin(2*math.Pi*300*float64(i)/16000))
		}
	}
	out, err := s.Run(context.Background(), in, 16000)
	require.NoError(t, err)
	require.Len(t, out.Samples, len(in))
	require.Less(t, math.Abs(float64(out.Samples[100])), math.Abs(float64(in[100]))+1e-9)
	require.Equal(t, in[12000], out.Samples[12000])
}
