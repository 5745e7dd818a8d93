// Package denoise runs single-shot speech enhancement.
package denoise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/metrics"
)

// Option customizes a Session.
type Option func(*options)

type options struct {
	engine    engine.Denoiser
	resampler audio.Resampler
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// WithEngine uses d instead of opening the configured backend.
func WithEngine(d engine.Denoiser) Option {
	return func(o *options) { o.engine = d }
}

// WithResampler replaces the linear resampler used for foreign input rates.
func WithResampler(r audio.Resampler) Option {
	return func(o *options) { o.resampler = r }
}

// WithLogger sets the session logger. Nil discards logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records run latency in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Session owns a loaded denoising model. It keeps no per-call state and is
// safe for concurrent use when the engine is.
type Session struct {
	denoiser  engine.Denoiser
	resampler audio.Resampler
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New loads the configured denoiser model.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.resampler == nil {
		o.resampler = audio.LinearResampler{}
	}

	model, err := cfg.Denoiser.Resolve()
	if err != nil {
		return nil, err
	}

	d := o.engine
	if d == nil {
		if err := config.CheckFiles(model.Files); err != nil {
			return nil, err
		}
		d, err = engine.OpenDenoiser(ctx, cfg.Engine.Backend, engine.Spec{
			ModelType:  model.Type,
			ModelFiles: model.Files,
			NumThreads: model.Runtime.NumThreads,
			Provider:   model.Runtime.Provider,
			Debug:      model.Runtime.Debug,
			Logger:     o.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s denoiser: %w", cfg.Engine.Backend, err)
		}
	}

	o.logger.Info("denoiser session ready", "model_type", model.Type, "sample_rate", d.SampleRate())
	return &Session{denoiser: d, resampler: o.resampler, logger: o.logger, metrics: o.metrics}, nil
}

// SampleRate is the fixed output rate of the model.
func (s *Session) SampleRate() int {
	return s.denoiser.SampleRate()
}

// Run denoises samples recorded at sampleRate. The output is always at
// SampleRate.
func (s *Session) Run(ctx context.Context, samples []float32, sampleRate int) (audio.Waveform, error) {
	if sampleRate <= 0 {
		return audio.Waveform{}, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	rate := s.denoiser.SampleRate()
	if sampleRate != rate {
		samples = s.resampler.Resample(samples, sampleRate, rate)
	}

	started := time.Now()
	out, err := s.denoiser.Denoise(ctx, samples)
	if err != nil {
		if !errors.Is(err, engine.ErrEngine) {
			err = fmt.Errorf("%w: %w", engine.ErrEngine, err)
		}
		return audio.Waveform{}, fmt.Errorf("denoise %d samples: %w", len(samples), err)
	}
	elapsed := time.Since(started)
	s.metrics.RecordDenoise(elapsed.Seconds())
	s.logger.Debug("denoised", "samples", len(samples), "elapsed_ms", elapsed.Milliseconds())

	return audio.Waveform{Samples: out, SampleRate: rate}, nil
}

// Close releases the denoiser model.
func (s *Session) Close() error {
	if err := s.denoiser.Close(); err != nil {
		return fmt.Errorf("close denoiser: %w", err)
	}
	return nil
}
