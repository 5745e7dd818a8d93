// Package engine defines the boundary between sessions and the inference
// backends that run neural models.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/tokens"
)

// ErrEngine marks failures raised by a backend while running a model.
var ErrEngine = errors.New("inference engine failure")

// Hypothesis is the decoded output carried by a decoder state.
type Hypothesis struct {
	Tokens []int
	// Timestamps are seconds from the utterance start, one per token. Nil
	// when the backend produces no alignment.
	Timestamps []float32
	// Scores are per-token confidences in [0, 1]. Nil when unavailable.
	Scores  []float32
	Lang    string
	Emotion string
	Event   string
}

// Clone returns a deep copy.
func (h Hypothesis) Clone() Hypothesis {
	out := h
	out.Tokens = cloneSlice(h.Tokens)
	out.Timestamps = cloneSlice(h.Timestamps)
	out.Scores = cloneSlice(h.Scores)
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

// DecoderState is the opaque incremental state a backend keeps per stream.
type DecoderState interface {
	Hypothesis() Hypothesis
	// NumFrames counts frames decoded since the state was created.
	NumFrames() int
	// TrailingSilenceFrames counts the silent frames ending the utterance.
	TrailingSilenceFrames() int
}

// Request is one stream's contribution to a batched invocation.
type Request struct {
	Samples []float32
	State   DecoderState
	// Final marks the last chunk of a stream whose input has finished.
	Final bool
	// Bias is the stream's own hotword or keyword graph, or nil.
	Bias *bias.Graph
}

// Info describes the static properties of a loaded recognizer.
type Info struct {
	SampleRate int
	// ChunkSamples is how many samples a streaming decode step consumes.
	ChunkSamples int
	// FrameShift is seconds per decoder frame.
	FrameShift float32
	// Concurrent reports whether DecodeBatch may be called from several
	// goroutines at once.
	Concurrent bool
	Alignment  bool
}

// Recognizer runs acoustic models over batches of streams.
//
// DecodeBatch returns one updated state per request, in request order.
type Recognizer interface {
	Info() Info
	NewState() DecoderState
	DecodeBatch(ctx context.Context, reqs []Request) ([]DecoderState, error)
	Close() error
}

// Synthesizer turns text into audio one sentence group at a time.
type Synthesizer interface {
	SampleRate() int
	NumSpeakers() int
	Synthesize(ctx context.Context, text string, sid int, speed float32) ([]float32, error)
	Close() error
}

// Denoiser enhances a whole signal at its model sample rate.
type Denoiser interface {
	SampleRate() int
	Denoise(ctx context.Context, samples []float32) ([]float32, error)
	Close() error
}

// Mode selects which recognizer variant a backend should load.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
	ModeKeyword Mode = "keyword"
)

// Spec carries everything a backend needs to load a model.
type Spec struct {
	Mode       Mode
	ModelType  string
	ModelFiles []string
	Symbols    *tokens.Table
	SampleRate int
	FeatureDim int
	NumThreads int
	Provider   string
	Debug      bool
	// Language is the forced language for multilingual offline models.
	Language string
	// Decoding options forwarded to the search.
	DecodingMethod string
	MaxActivePaths int
	BlankPenalty   float32
	// Address and DialTimeout are used by network backends.
	Address     string
	DialTimeout time.Duration
	Logger      *slog.Logger
}
