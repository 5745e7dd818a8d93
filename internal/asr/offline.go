package asr

import (
	"context"
	"fmt"

	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/result"
	"github.com/rbright/hark/internal/stream"
)

// Offline is a whole-utterance recognizer session.
type Offline struct {
	*base
}

// NewOffline loads the configured offline model.
func NewOffline(ctx context.Context, cfg config.Config, opts ...Option) (*Offline, error) {
	o := newOptions(engine.ModeOffline, opts)

	model, warnings, err := cfg.Offline.Resolve()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		o.logger.Warn(w.Message, "session", o.name)
	}

	entries, hotwordWarnings, err := config.BuildHotwords(cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range hotwordWarnings {
		o.logger.Warn(w.Message, "session", o.name)
	}

	b, err := open(ctx, cfg, engine.ModeOffline, model, entries, o)
	if err != nil {
		return nil, err
	}
	b.biasBoost = cfg.Hotwords.Score
	b.biasActive = cfg.Decoding.Method == "modified_beam_search"
	b.mergeBias = true
	return &Offline{base: b}, nil
}

// CreateStream allocates an offline stream bound to this session.
func (r *Offline) CreateStream(biasText string) (*stream.Offline, error) {
	if r.isClosed() {
		return nil, ErrSessionClosed
	}

	graph, err := r.streamBias(biasText)
	if err != nil {
		return nil, fmt.Errorf("compile stream bias: %w", err)
	}

	r.opts.metrics.StreamOpened(r.opts.name)
	name := r.opts.name
	m := r.opts.metrics
	return stream.NewOffline(stream.Options{
		Owner:      r,
		SampleRate: r.info.SampleRate,
		State:      r.rec.NewState(),
		Bias:       graph,
		OnClose:    func() { m.StreamClosed(name) },
	}), nil
}

// Decode runs one engine call over every undecoded stream holding audio,
// each consuming its whole buffer as a single final chunk. Streams decoded
// earlier, or repeated in streams, are skipped.
func (r *Offline) Decode(ctx context.Context, streams ...*stream.Offline) error {
	if r.isClosed() {
		return ErrSessionClosed
	}

	ready := make([]*stream.Offline, 0, len(streams))
	seen := make(map[*stream.Offline]struct{}, len(streams))
	for _, s := range streams {
		if s == nil {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if s.Owner() != r {
			return fmt.Errorf("decode stream %s: %w", s.ID(), ErrForeignStream)
		}
		if !s.Closed() && !s.Decoded() && s.PendingLen() > 0 {
			ready = append(ready, s)
		}
	}
	if len(ready) == 0 {
		return nil
	}

	reqs := make([]engine.Request, len(ready))
	for i, s := range ready {
		reqs[i] = engine.Request{
			Samples: s.Pending(),
			State:   s.State(),
			Final:   true,
			Bias:    r.requestBias(s.Bias()),
		}
	}

	states, err := r.invoke(ctx, reqs)
	if err != nil {
		return err
	}
	for i, s := range ready {
		s.MarkDecoded(states[i])
	}
	return nil
}

// DecodeStream decodes a single stream.
func (r *Offline) DecodeStream(ctx context.Context, s *stream.Offline) error {
	return r.Decode(ctx, s)
}

// GetResult snapshots the stream's hypothesis. Before Decode it is empty.
func (r *Offline) GetResult(s *stream.Offline) result.Result {
	if s == nil || s.State() == nil {
		return result.Result{}
	}
	return r.assembler.Assemble(s.State().Hypothesis())
}
