// Package kws spots keywords in streaming audio. Matching streams are reset
// automatically so the next occurrence can be detected without caller help.
package kws

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/hark/internal/asr"
	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/metrics"
	"github.com/rbright/hark/internal/result"
	"github.com/rbright/hark/internal/stream"
)

// Option customizes a Spotter.
type Option func(*options)

type options struct {
	engine  engine.Recognizer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithEngine uses rec instead of opening the configured backend.
func WithEngine(rec engine.Recognizer) Option {
	return func(o *options) { o.engine = rec }
}

// WithLogger sets the spotter logger. Nil discards logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records decode activity and detections in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Spotter is a keyword spotting session.
type Spotter struct {
	online            *asr.Online
	numTrailingBlanks int
	logger            *slog.Logger
	metrics           *metrics.Metrics

	mu   sync.Mutex
	hits map[*stream.Online]result.Result
}

// New loads the keyword model and the mandatory keyword list.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Spotter, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	kw := cfg.Keywords
	if strings.TrimSpace(kw.File) == "" && strings.TrimSpace(kw.Buf) == "" {
		return nil, fmt.Errorf("%w: keywords.file or keywords.buf is required", config.ErrInvalid)
	}
	entries, err := bias.Load(kw.File, kw.Buf, kw.Score, kw.Threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: keywords: %w", config.ErrInvalid, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: keyword list is empty", config.ErrInvalid)
	}

	sessionOpts := []asr.Option{
		asr.WithKeywords(kw.Model, entries, kw.Score, kw.Threshold),
		asr.WithLogger(o.logger),
		asr.WithMetrics(o.metrics),
	}
	if o.engine != nil {
		sessionOpts = append(sessionOpts, asr.WithEngine(o.engine))
	}
	online, err := asr.NewOnline(ctx, cfg, sessionOpts...)
	if err != nil {
		return nil, err
	}

	return &Spotter{
		online:            online,
		numTrailingBlanks: kw.NumTrailingBlanks,
		logger:            o.logger,
		metrics:           o.metrics,
		hits:              make(map[*stream.Online]result.Result),
	}, nil
}

// SampleRate is the model rate streams store audio at.
func (k *Spotter) SampleRate() int {
	return k.online.SampleRate()
}

// CreateStream allocates a stream. Non-empty keywords replace the session
// keyword list for this stream only.
func (k *Spotter) CreateStream(keywords string) (*stream.Online, error) {
	return k.online.CreateStream(keywords)
}

// IsReady reports whether s has a chunk to decode.
func (k *Spotter) IsReady(s *stream.Online) bool {
	return k.online.IsReady(s)
}

// Decode runs one engine call over the ready streams and checks each of them
// for a keyword. A stream's previous detection is dropped once it is
// decoded again. A stream repeated in streams is decoded once.
func (k *Spotter) Decode(ctx context.Context, streams ...*stream.Online) error {
	ready := make([]*stream.Online, 0, len(streams))
	seen := make(map[*stream.Online]struct{}, len(streams))
	for _, s := range streams {
		if _, dup := seen[s]; dup || !k.online.IsReady(s) {
			continue
		}
		seen[s] = struct{}{}
		ready = append(ready, s)
	}
	if err := k.online.Decode(ctx, ready...); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for _, s := range ready {
		delete(k.hits, s)
		if hit, ok := k.detect(s); ok {
			k.hits[s] = hit
			k.online.Reset(s)
		}
	}
	return nil
}

// DecodeStream decodes a single stream.
func (k *Spotter) DecodeStream(ctx context.Context, s *stream.Online) error {
	return k.Decode(ctx, s)
}

func (k *Spotter) detect(s *stream.Online) (result.Result, bool) {
	st := s.State()
	hyp := st.Hypothesis()

	match, ok := s.Bias().MatchSuffix(hyp.Tokens)
	if !ok {
		return result.Result{}, false
	}
	if st.TrailingSilenceFrames() < k.numTrailingBlanks {
		return result.Result{}, false
	}

	score := float32(1)
	if len(hyp.Scores) == len(hyp.Tokens) {
		var sum float32
		for _, v := range hyp.Scores[match.Start:] {
			sum += v
		}
		score = sum / float32(len(match.IDs))
	}
	if score < match.Entry.Threshold {
		k.logger.Debug("keyword below threshold",
			"stream", s.ID(),
			"keyword", match.Entry.Display,
			"score", score,
			"threshold", match.Entry.Threshold,
		)
		return result.Result{}, false
	}

	// Offset counts samples since the last reset; the difference is where
	// the current utterance began.
	start := float32(s.Position()-s.Offset()) / float32(s.SampleRate())
	var stamps []float32
	if len(hyp.Timestamps) == len(hyp.Tokens) {
		stamps = append(stamps, hyp.Timestamps[match.Start:]...)
		start += stamps[0]
	}

	hit := result.Result{
		Text:       match.Entry.Display,
		Tokens:     k.online.Symbols().Symbols(match.IDs),
		Timestamps: stamps,
		Keyword:    match.Entry.Display,
		StartTime:  &start,
	}
	k.metrics.RecordKeyword(match.Entry.Display)
	k.logger.Info("keyword detected",
		"stream", s.ID(),
		"keyword", match.Entry.Display,
		"start_time", start,
		"score", score,
	)
	return hit, true
}

// GetResult returns the stream's latest detection, or an empty result.
func (k *Spotter) GetResult(s *stream.Online) result.Result {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.hits[s]
}

// Reset starts over on s and drops its pending detection.
func (k *Spotter) Reset(s *stream.Online) {
	k.mu.Lock()
	delete(k.hits, s)
	k.mu.Unlock()
	k.online.Reset(s)
}

// Forget drops any detection held for s. Call it when s is closed so the
// spotter does not keep the stream alive.
func (k *Spotter) Forget(s *stream.Online) {
	k.mu.Lock()
	delete(k.hits, s)
	k.mu.Unlock()
}

// Close releases the keyword model.
func (k *Spotter) Close() error {
	k.mu.Lock()
	clear(k.hits)
	k.mu.Unlock()
	return k.online.Close()
}
