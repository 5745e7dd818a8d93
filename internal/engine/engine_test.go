package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type nopRecognizer struct{}

func (nopRecognizer) Info() Info             { return Info{SampleRate: 16000} }
func (nopRecognizer) NewState() DecoderState { return nil }
func (nopRecognizer) DecodeBatch(context.Context, []Request) ([]DecoderState, error) {
	return nil, nil
}
func (nopRecognizer) Close() error { return nil }

func TestRegistryOpenRecognizer(t *testing.T) {
	RegisterRecognizer("engine-test-nop", func(context.Context, Spec) (Recognizer, error) {
		return nopRecognizer{}, nil
	})

	rec, err := OpenRecognizer(context.Background(), "engine-test-nop", Spec{})
	require.NoError(t, err)
	require.Equal(t, 16000, rec.Info().SampleRate)
	require.Contains(t, Backends(), "engine-test-nop")

	require.Panics(t, func() {
		RegisterRecognizer("engine-test-nop", func(context.Context, Spec) (Recognizer, error) { return nil, nil })
	})
}

func TestRegistryUnknownBackends(t *testing.T) {
	_, err := OpenRecognizer(context.Background(), "missing", Spec{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown recognizer backend")

	_, err = OpenSynthesizer(context.Background(), "missing", Spec{})
	require.Error(t, err)

	_, err = OpenDenoiser(context.Background(), "missing", Spec{})
	require.Error(t, err)
}

func TestHypothesisCloneIsDeep(t *testing.T) {
	h := Hypothesis{Tokens: []int{1, 2}, Timestamps: []float32{0.1, 0.2}, Lang: "en"}
	c := h.Clone()
	c.Tokens[0] = 9
	c.Timestamps[0] = 9
	require.Equal(t, 1, h.Tokens[0])
	require.Equal(t, float32(0.1), h.Timestamps[0])
	require.Nil(t, c.Scores)
	require.Equal(t, "en", c.Lang)
}
