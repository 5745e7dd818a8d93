// Package audio holds waveform containers, the per-stream sample buffer,
// and WAV file I/O.
package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const waveBitDepth = 16

// ErrUnsupportedWave reports a WAV file outside the mono 16-bit PCM subset.
var ErrUnsupportedWave = errors.New("unsupported wave format")

// Waveform is a mono float32 signal tagged with its sample rate.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the signal length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// ReadWave loads a mono 16-bit PCM WAV file and normalizes samples to [-1, 1).
func ReadWave(path string) (Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("open wave %q: %w", path, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return Waveform{}, fmt.Errorf("read wave %q: %w: not a RIFF/WAVE file", path, ErrUnsupportedWave)
	}
	if decoder.NumChans != 1 {
		return Waveform{}, fmt.Errorf("read wave %q: %w: %d channels, want mono", path, ErrUnsupportedWave, decoder.NumChans)
	}
	if decoder.BitDepth != waveBitDepth {
		return Waveform{}, fmt.Errorf("read wave %q: %w: %d-bit samples, want %d-bit", path, ErrUnsupportedWave, decoder.BitDepth, waveBitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("read wave %q: %w", path, err)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / 32768
	}

	return Waveform{Samples: samples, SampleRate: int(decoder.SampleRate)}, nil
}

// WriteWave stores w as mono 16-bit PCM. Samples are clamped to [-1, 1].
func WriteWave(path string, w Waveform) error {
	if w.SampleRate <= 0 {
		return fmt.Errorf("write wave %q: invalid sample rate %d", path, w.SampleRate)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create wave %q: %w", path, err)
	}

	encoder := wav.NewEncoder(file, w.SampleRate, waveBitDepth, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           toPCM16(w.Samples),
		SourceBitDepth: waveBitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		_ = file.Close()
		return fmt.Errorf("write wave %q: %w", path, err)
	}
	if err := encoder.Close(); err != nil {
		_ = file.Close()
		return fmt.Errorf("finalize wave %q: %w", path, err)
	}
	return file.Close()
}

func toPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		switch {
		case v > 32767:
			v = 32767
		case v < -32768:
			v = -32768
		}
		out[i] = int(v)
	}
	return out
}
