package audio

import "math"

// Resampler converts a mono signal between sample rates.
type Resampler interface {
	Resample(samples []float32, from, to int) []float32
}

// LinearResampler interpolates linearly between neighbouring samples.
type LinearResampler struct{}

// Resample returns a new slice; the input is never modified.
func (LinearResampler) Resample(src []float32, from, to int) []float32 {
	if len(src) == 0 {
		return nil
	}
	if from <= 0 {
		from = to
	}
	if to <= 0 || from == to {
		out := make([]float32, len(src))
		copy(out, src)
		return out
	}

	ratio := float64(from) / float64(to)
	targetLen := int(math.Ceil(float64(len(src)) / ratio))
	if targetLen <= 0 {
		targetLen = 1
	}

	out := make([]float32, targetLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		if idx >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		out[i] = src[idx] + (src[idx+1]-src[idx])*frac
	}
	return out
}
