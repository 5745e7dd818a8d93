package reference

import (
	"context"
	"fmt"
	"math"
	"unicode"

	"github.com/rbright/hark/internal/engine"
)

const (
	synthSampleRate = 22050
	synthSpeakers   = 4
	toneSeconds     = 0.08
	pauseSeconds    = 0.06
	toneAmplitude   = 0.3
)

// Synthesizer renders each letter as a short tone. Speakers differ in pitch.
type Synthesizer struct{}

func OpenSynthesizer(_ context.Context, _ engine.Spec) (engine.Synthesizer, error) {
	return Synthesizer{}, nil
}

func (Synthesizer) SampleRate() int  { return synthSampleRate }
func (Synthesizer) NumSpeakers() int { return synthSpeakers }
func (Synthesizer) Close() error     { return nil }

func (Synthesizer) Synthesize(ctx context.Context, text string, sid int, speed float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrEngine, err)
	}
	if speed <= 0 {
		speed = 1
	}

	toneLen := int(toneSeconds * synthSampleRate / float64(speed))
	pauseLen := int(pauseSeconds * synthSampleRate / float64(speed))

	var out []float32
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			out = append(out, make([]float32, pauseLen)...)
			continue
		}
		freq := 200 + float64(r%32)*15 + float64(sid)*20
		out = append(out, tone(freq, toneLen)...)
	}
	return out, nil
}

func tone(freq float64, n int) []float32 {
	out := make([]float32, n)
	fade := n / 10
	for i := range out {
		gain := 1.0
		if fade > 0 {
			switch {
			case i < fade:
				gain = float64(i) / float64(fade)
			case i >= n-fade:
				gain = float64(n-1-i) / float64(fade)
			}
		}
		out[i] = float32(toneAmplitude * gain * math.Sin(2*math.Pi*freq*float64(i)/synthSampleRate))
	}
	return out
}
