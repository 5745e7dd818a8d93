package asr

import (
	"log/slog"

	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/metrics"
)

// Option customizes a recognizer session.
type Option func(*options)

type options struct {
	engine  engine.Recognizer
	logger  *slog.Logger
	metrics *metrics.Metrics
	name    string

	keyword *keywordSetup
}

type keywordSetup struct {
	model     config.OnlineModelConfig
	entries   []bias.Entry
	boost     float32
	threshold float32
}

// WithEngine uses rec instead of opening the configured backend. The session
// takes ownership of rec and closes it on Close.
func WithEngine(rec engine.Recognizer) Option {
	return func(o *options) {
		o.engine = rec
	}
}

// WithLogger sets the session logger. Nil discards logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records decode activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithName labels the session in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithKeywords loads model as a keyword spotter. entries replace the hotword
// list, per-stream bias text replaces entries instead of extending them, and
// endpointing is disabled.
func WithKeywords(model config.OnlineModelConfig, entries []bias.Entry, boost, threshold float32) Option {
	return func(o *options) {
		o.keyword = &keywordSetup{
			model:     model,
			entries:   append([]bias.Entry(nil), entries...),
			boost:     boost,
			threshold: threshold,
		}
	}
}

func newOptions(mode engine.Mode, opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.name == "" {
		o.name = string(mode)
		if o.keyword != nil {
			o.name = string(engine.ModeKeyword)
		}
	}
	return o
}
