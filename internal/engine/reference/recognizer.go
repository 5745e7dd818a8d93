// Package reference is a deterministic signal-level backend. It needs no
// neural models, which makes it suitable for tests, demos, and for checking
// that a deployment's plumbing works before real models are installed.
package reference

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/engine"
)

// Backend is the registry name of this package's engines.
const Backend = "reference"

const (
	defaultSampleRate = 16000
	frameShift        = float32(0.01)
	framesPerChunk    = 10
	// voicing threshold on frame RMS.
	voicedRMS = 0.02
	// a voiced run emits a token at its start and then every tokenEvery frames.
	tokenEvery = 20
)

func init() {
	engine.RegisterRecognizer(Backend, OpenRecognizer)
	engine.RegisterSynthesizer(Backend, OpenSynthesizer)
	engine.RegisterDenoiser(Backend, OpenDenoiser)
}

// Recognizer voices frames by energy and emits tokens for voiced runs. A
// request's bias graph steers which tokens are emitted.
type Recognizer struct {
	spec         engine.Spec
	sampleRate   int
	frameSamples int
	threshold    float64
	vocab        []int
	logger       *slog.Logger
}

// OpenRecognizer builds a Recognizer from spec. The symbol table is required.
func OpenRecognizer(_ context.Context, spec engine.Spec) (engine.Recognizer, error) {
	return NewRecognizer(spec)
}

func NewRecognizer(spec engine.Spec) (*Recognizer, error) {
	if spec.Symbols == nil {
		return nil, fmt.Errorf("reference recognizer: symbol table is required")
	}

	sampleRate := spec.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	frameSamples := int(float32(sampleRate) * frameShift)
	if frameSamples <= 0 {
		return nil, fmt.Errorf("reference recognizer: sample rate %d too low", sampleRate)
	}

	vocab := emittable(spec)
	if len(vocab) == 0 {
		return nil, fmt.Errorf("reference recognizer: symbol table has no emittable tokens")
	}

	threshold := voicedRMS
	if spec.BlankPenalty > 0 {
		threshold /= 1 + float64(spec.BlankPenalty)
	}

	logger := spec.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Debug("reference recognizer loaded",
		"mode", spec.Mode,
		"model_type", spec.ModelType,
		"decoding_method", spec.DecodingMethod,
		"vocab", len(vocab),
	)

	return &Recognizer{
		spec:         spec,
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
		threshold:    threshold,
		vocab:        vocab,
		logger:       logger,
	}, nil
}

// emittable lists token ids excluding blank and control symbols like <unk>.
func emittable(spec engine.Spec) []int {
	var ids []int
	for _, id := range spec.Symbols.IDs() {
		sym, _ := spec.Symbols.Symbol(id)
		if isControl(sym) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func isControl(sym string) bool {
	if strings.TrimSpace(sym) == "" {
		return true
	}
	if strings.HasPrefix(sym, "<0x") {
		return false
	}
	return strings.HasPrefix(sym, "<") && strings.HasSuffix(sym, ">")
}

func (r *Recognizer) Info() engine.Info {
	return engine.Info{
		SampleRate:   r.sampleRate,
		ChunkSamples: r.frameSamples * framesPerChunk,
		FrameShift:   frameShift,
		Concurrent:   false,
		Alignment:    true,
	}
}

func (r *Recognizer) NewState() engine.DecoderState {
	return &state{}
}

// DecodeBatch processes every request independently, so a stream's result
// does not depend on which other streams share its batch.
func (r *Recognizer) DecodeBatch(ctx context.Context, reqs []engine.Request) ([]engine.DecoderState, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrEngine, err)
	}

	out := make([]engine.DecoderState, len(reqs))
	for i, req := range reqs {
		prev, ok := req.State.(*state)
		if !ok {
			return nil, fmt.Errorf("%w: batch item %d carries a foreign decoder state %T", engine.ErrEngine, i, req.State)
		}
		out[i] = r.advance(prev, req)
	}
	return out, nil
}

func (r *Recognizer) Close() error {
	return nil
}

func (r *Recognizer) advance(prev *state, req engine.Request) *state {
	next := prev.clone()

	buf := append(next.carry, req.Samples...)
	next.carry = nil

	for len(buf) >= r.frameSamples {
		r.frame(next, buf[:r.frameSamples], req.Bias)
		buf = buf[r.frameSamples:]
	}
	if req.Final && len(buf) > 0 {
		r.frame(next, buf, req.Bias)
		buf = nil
	}
	if len(buf) > 0 {
		next.carry = append([]float32(nil), buf...)
	}

	if r.spec.Mode == engine.ModeOffline {
		r.label(next)
	}
	return next
}

func (r *Recognizer) frame(s *state, frame []float32, graph *bias.Graph) {
	level := rms(frame)
	if level >= r.threshold {
		if s.voicedRun%tokenEvery == 0 {
			score := confidence(level, r.threshold)
			s.hyp.Tokens = append(s.hyp.Tokens, r.tokenFor(level, score, s.hyp.Tokens, graph))
			s.hyp.Timestamps = append(s.hyp.Timestamps, float32(s.frames)*frameShift)
			s.hyp.Scores = append(s.hyp.Scores, score)
		}
		s.voicedRun++
		s.voiced++
		s.trailing = 0
	} else {
		s.voicedRun = 0
		s.trailing++
	}
	s.frames++
}

// tokenFor picks a token from the frame level. A biased continuation of the
// hypothesis wins instead when its boost reaches the frame score.
func (r *Recognizer) tokenFor(level float64, score float32, hyp []int, graph *bias.Graph) int {
	if id, boost, ok := graph.Continue(hyp); ok && boost >= score {
		return id
	}
	bucket := int(math.Round(level * 100))
	return r.vocab[bucket%len(r.vocab)]
}

func (r *Recognizer) label(s *state) {
	switch r.spec.ModelType {
	case "sense_voice":
		s.hyp.Lang = languageOr(r.spec.Language, "en")
		s.hyp.Emotion = "NEUTRAL"
		if s.voiced > 0 {
			s.hyp.Event = "Speech"
		}
	case "whisper":
		s.hyp.Lang = languageOr(r.spec.Language, "en")
	}
}

func languageOr(lang, fallback string) string {
	if lang == "" || lang == "auto" {
		return fallback
	}
	return lang
}

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, v := range frame {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func confidence(level, threshold float64) float32 {
	c := level / (threshold * 5)
	if c > 1 {
		c = 1
	}
	return float32(c)
}

type state struct {
	hyp       engine.Hypothesis
	frames    int
	trailing  int
	voicedRun int
	voiced    int
	carry     []float32
}

func (s *state) clone() *state {
	out := *s
	out.hyp = s.hyp.Clone()
	out.carry = append([]float32(nil), s.carry...)
	return &out
}

func (s *state) Hypothesis() engine.Hypothesis {
	return s.hyp.Clone()
}

func (s *state) NumFrames() int {
	return s.frames
}

func (s *state) TrailingSilenceFrames() int {
	return s.trailing
}
