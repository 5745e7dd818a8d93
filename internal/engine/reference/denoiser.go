package reference

import (
	"context"
	"fmt"
	"sort"

	"github.com/rbright/hark/internal/engine"
)

const (
	denoiseSampleRate = 16000
	denoiseFrame      = 160
	// frames quieter than gateRatio times the noise floor are attenuated.
	gateRatio    = 2.0
	gateGain     = 0.1
	floorPercent = 0.2
)

// Denoiser is a frame-level noise gate keyed on the signal's own noise floor.
type Denoiser struct{}

func OpenDenoiser(_ context.Context, _ engine.Spec) (engine.Denoiser, error) {
	return Denoiser{}, nil
}

func (Denoiser) SampleRate() int { return denoiseSampleRate }
func (Denoiser) Close() error    { return nil }

func (Denoiser) Denoise(ctx context.Context, samples []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrEngine, err)
	}

	out := make([]float32, len(samples))
	copy(out, samples)
	if len(out) == 0 {
		return out, nil
	}

	var levels []float64
	for start := 0; start < len(out); start += denoiseFrame {
		levels = append(levels, rms(out[start:min(start+denoiseFrame, len(out))]))
	}

	sorted := append([]float64(nil), levels...)
	sort.Float64s(sorted)
	floor := sorted[int(float64(len(sorted)-1)*floorPercent)]
	if floor <= 0 {
		return out, nil
	}

	for i, level := range levels {
		if level > floor*gateRatio {
			continue
		}
		start := i * denoiseFrame
		for j := start; j < min(start+denoiseFrame, len(out)); j++ {
			out[j] *= gateGain
		}
	}
	return out, nil
}
