// Package tts synthesizes speech one sentence group at a time. Callers can
// stop generation between chunks and keep the audio produced so far.
package tts

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/metrics"
	"github.com/rbright/hark/internal/transcript"
)

// Chunk is the audio for one sentence group.
type Chunk struct {
	Samples []float32
	// Index counts chunks from zero; Total is the number of groups in the text.
	Index int
	Total int
	// Progress is the fraction of groups synthesized, in (0, 1].
	Progress float32
}

// ProgressFunc receives each chunk as it is produced. Returning false stops
// generation after that chunk.
type ProgressFunc func(chunk []float32, progress float32) bool

// GeneratedAudio is the result of Generate. After a stop it holds every chunk
// delivered up to and including the one that stopped it.
type GeneratedAudio struct {
	Samples    []float32
	SampleRate int
	// Stopped reports that a ProgressFunc ended generation early.
	Stopped bool
}

// Save writes the audio as a mono 16-bit WAV file.
func (g GeneratedAudio) Save(path string) error {
	return audio.WriteWave(path, audio.Waveform{Samples: g.Samples, SampleRate: g.SampleRate})
}

// Option customizes a Session.
type Option func(*options)

type options struct {
	engine  engine.Synthesizer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithEngine uses synth instead of opening the configured backend.
func WithEngine(synth engine.Synthesizer) Option {
	return func(o *options) { o.engine = synth }
}

// WithLogger sets the session logger. Nil discards logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records chunk latency and cancellations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Session owns a loaded synthesis model.
type Session struct {
	synth        engine.Synthesizer
	maxSentences int
	silenceScale float32
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// New loads the configured synthesis model.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	model, warnings, err := cfg.TTS.Resolve()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		o.logger.Warn(w.Message, "session", "tts")
	}

	synth := o.engine
	if synth == nil {
		if err := config.CheckFiles(model.Files); err != nil {
			return nil, err
		}
		synth, err = engine.OpenSynthesizer(ctx, cfg.Engine.Backend, engine.Spec{
			ModelType:  model.Type,
			ModelFiles: model.Files,
			NumThreads: model.Runtime.NumThreads,
			Provider:   model.Runtime.Provider,
			Debug:      model.Runtime.Debug,
			Logger:     o.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s synthesizer: %w", cfg.Engine.Backend, err)
		}
	}

	maxSentences := cfg.TTS.MaxNumSentences
	if maxSentences <= 0 {
		maxSentences = 1
	}

	o.logger.Info("synthesizer session ready",
		"model_type", model.Type,
		"sample_rate", synth.SampleRate(),
		"speakers", synth.NumSpeakers(),
	)
	return &Session{
		synth:        synth,
		maxSentences: maxSentences,
		silenceScale: cfg.TTS.SilenceScale,
		logger:       o.logger,
		metrics:      o.metrics,
	}, nil
}

// SampleRate is the output rate of the loaded model.
func (s *Session) SampleRate() int {
	return s.synth.SampleRate()
}

// NumSpeakers is the number of voices the model provides.
func (s *Session) NumSpeakers() int {
	return s.synth.NumSpeakers()
}

// Chunks yields one chunk per sentence group. Every chunk after the first
// starts with silenceScale seconds of silence, so concatenating the yielded
// chunks gives the full utterance. Iteration ends at the first error.
func (s *Session) Chunks(ctx context.Context, text string, sid int, speed float32) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		if n := s.synth.NumSpeakers(); sid < 0 || sid >= n {
			s.logger.Warn("speaker id out of range; using speaker 0", "sid", sid, "speakers", n)
			sid = 0
		}
		if speed <= 0 {
			speed = 1
		}

		groups := transcript.Group(transcript.Sentences(text), s.maxSentences)
		gap := int(s.silenceScale * float32(s.synth.SampleRate()))

		for i, group := range groups {
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, err)
				return
			}

			started := time.Now()
			samples, err := s.synth.Synthesize(ctx, group, sid, speed)
			if err != nil {
				if !errors.Is(err, engine.ErrEngine) {
					err = fmt.Errorf("%w: %w", engine.ErrEngine, err)
				}
				yield(Chunk{}, fmt.Errorf("synthesize chunk %d of %d: %w", i+1, len(groups), err))
				return
			}
			s.metrics.RecordSynthChunk(time.Since(started).Seconds())

			if i > 0 && gap > 0 {
				samples = append(make([]float32, gap, gap+len(samples)), samples...)
			}
			chunk := Chunk{
				Samples:  samples,
				Index:    i,
				Total:    len(groups),
				Progress: float32(i+1) / float32(len(groups)),
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Generate synthesizes text, feeding each chunk to cb when it is not nil.
// A false return from cb is not an error: the audio produced so far is
// returned with Stopped set.
func (s *Session) Generate(ctx context.Context, text string, sid int, speed float32, cb ProgressFunc) (GeneratedAudio, error) {
	out := GeneratedAudio{SampleRate: s.synth.SampleRate()}

	for chunk, err := range s.Chunks(ctx, text, sid, speed) {
		if err != nil {
			return GeneratedAudio{}, err
		}
		out.Samples = append(out.Samples, chunk.Samples...)
		if cb != nil && !cb(chunk.Samples, chunk.Progress) {
			out.Stopped = true
			s.metrics.RecordSynthCancelled()
			s.logger.Info("synthesis stopped by callback", "chunk", chunk.Index+1, "chunks", chunk.Total)
			break
		}
	}
	return out, nil
}

// Close releases the synthesis model.
func (s *Session) Close() error {
	if err := s.synth.Close(); err != nil {
		return fmt.Errorf("close synthesizer: %w", err)
	}
	return nil
}
