package asr

import (
	"context"
	"fmt"

	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/endpoint"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/result"
	"github.com/rbright/hark/internal/stream"
)

// Online is a streaming recognizer session.
//
// Decode may be called from several goroutines on disjoint sets of streams.
// Engine calls are serialized when the backend is not concurrent.
type Online struct {
	*base
	detector    endpoint.Detector
	endpointing bool
}

// NewOnline loads the configured streaming model. It fails on invalid config
// and on missing model or token files; no partial session is returned.
func NewOnline(ctx context.Context, cfg config.Config, opts ...Option) (*Online, error) {
	o := newOptions(engine.ModeOnline, opts)

	mode := engine.ModeOnline
	section := "online"
	modelCfg := cfg.Online
	if o.keyword != nil {
		mode = engine.ModeKeyword
		section = "keywords.model"
		modelCfg = o.keyword.model
	}

	model, warnings, err := modelCfg.Resolve(section)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		o.logger.Warn(w.Message, "session", o.name)
	}

	var entries []bias.Entry
	if o.keyword != nil {
		entries = o.keyword.entries
	} else {
		var hotwordWarnings []config.Warning
		entries, hotwordWarnings, err = config.BuildHotwords(cfg)
		if err != nil {
			return nil, err
		}
		for _, w := range hotwordWarnings {
			o.logger.Warn(w.Message, "session", o.name)
		}
	}

	b, err := open(ctx, cfg, mode, model, entries, o)
	if err != nil {
		return nil, err
	}

	s := &Online{base: b}
	if o.keyword != nil {
		b.biasBoost = o.keyword.boost
		b.biasThreshold = o.keyword.threshold
		b.biasActive = true
	} else {
		b.biasBoost = cfg.Hotwords.Score
		b.biasActive = cfg.Decoding.Method == "modified_beam_search"
		b.mergeBias = true
		s.endpointing = cfg.Endpoint.Enable
		s.detector = endpoint.NewDetector(endpoint.Config{
			Rule1: endpoint.Rule{Name: "rule1", MinTrailingSilence: cfg.Endpoint.Rule1MinTrailingSilence},
			Rule2: endpoint.Rule{Name: "rule2", MinTrailingSilence: cfg.Endpoint.Rule2MinTrailingSilence},
			Rule3: endpoint.Rule{Name: "rule3", MinUtteranceLength: cfg.Endpoint.Rule3MinUtteranceLength},
		})
	}
	return s, nil
}

// CreateStream allocates a stream bound to this session. Non-empty biasText
// is compiled into a graph owned by the stream; session entries are never
// modified.
func (r *Online) CreateStream(biasText string) (*stream.Online, error) {
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
	return stream.NewOnline(stream.Options{
		Owner:      r,
		SampleRate: r.info.SampleRate,
		State:      r.rec.NewState(),
		Bias:       graph,
		OnClose:    func() { m.StreamClosed(name) },
	}), nil
}

// IsReady reports whether s holds a full chunk, or has finished input with
// audio left to decode.
func (r *Online) IsReady(s *stream.Online) bool {
	if s == nil || s.Closed() {
		return false
	}
	pending := s.PendingLen()
	return pending >= r.info.ChunkSamples || (s.InputDone() && pending > 0)
}

// Decode runs one engine call over every ready stream, in argument order.
// Streams that are not ready are left untouched, and a stream passed more
// than once is decoded once. When the engine fails no stream advances.
func (r *Online) Decode(ctx context.Context, streams ...*stream.Online) error {
	if r.isClosed() {
		return ErrSessionClosed
	}

	ready := make([]*stream.Online, 0, len(streams))
	seen := make(map[*stream.Online]struct{}, len(streams))
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
		if r.IsReady(s) {
			ready = append(ready, s)
		}
	}
	if len(ready) == 0 {
		return nil
	}

	reqs := make([]engine.Request, len(ready))
	for i, s := range ready {
		pending := s.Pending()
		n := min(len(pending), r.info.ChunkSamples)
		reqs[i] = engine.Request{
			Samples: pending[:n],
			State:   s.State(),
			Final:   s.InputDone() && n == len(pending),
			Bias:    r.requestBias(s.Bias()),
		}
	}

	states, err := r.invoke(ctx, reqs)
	if err != nil {
		return err
	}

	for i, s := range ready {
		s.SetState(states[i])
		s.Advance(len(reqs[i].Samples))
		r.checkEndpoint(s)
	}
	return nil
}

// DecodeStream decodes a single stream.
func (r *Online) DecodeStream(ctx context.Context, s *stream.Online) error {
	return r.Decode(ctx, s)
}

func (r *Online) checkEndpoint(s *stream.Online) {
	if !r.endpointing || s.Endpointed() {
		return
	}
	st := s.State()
	rule, ok := r.detector.Detect(st.NumFrames(), st.TrailingSilenceFrames(), len(st.Hypothesis().Tokens) > 0, r.info.FrameShift)
	if !ok {
		return
	}
	s.MarkEndpoint()
	r.opts.metrics.RecordEndpoint(rule.Name)
	r.opts.logger.Debug("endpoint detected",
		"session", r.opts.name,
		"stream", s.ID(),
		"rule", rule.Name,
		"frames", st.NumFrames(),
		"position", s.Position(),
	)
}

// GetResult snapshots the stream's current hypothesis. It never changes
// decode progress.
func (r *Online) GetResult(s *stream.Online) result.Result {
	if s == nil || s.State() == nil {
		return result.Result{}
	}
	return r.assembler.Assemble(s.State().Hypothesis())
}

// IsEndpoint stays true from the first detected endpoint until Reset.
func (r *Online) IsEndpoint(s *stream.Online) bool {
	return s != nil && s.Endpointed()
}

// Reset begins a new utterance on s with a fresh decoder state.
func (r *Online) Reset(s *stream.Online) {
	if s == nil || s.Closed() || r.isClosed() {
		return
	}
	s.Reset(r.rec.NewState())
}
