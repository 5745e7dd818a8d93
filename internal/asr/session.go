// Package asr hosts the streaming and offline recognizer sessions: stream
// creation, batched decoding through one engine call, endpointing, and result
// extraction.
package asr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/hark/internal/bias"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/engine"
	"github.com/rbright/hark/internal/result"
	"github.com/rbright/hark/internal/tokens"
)

var (
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrForeignStream is returned when a stream created by another session
	// is passed to Decode.
	ErrForeignStream = errors.New("stream belongs to another session")
)

// base is the engine-facing half shared by the online and offline sessions.
type base struct {
	opts      options
	rec       engine.Recognizer
	info      engine.Info
	symbols   *tokens.Table
	assembler result.Assembler

	biasBoost     float32
	biasThreshold float32
	// biasActive controls whether bias graphs reach the engine at all.
	biasActive bool
	// mergeBias extends the session entries with per-stream text instead of
	// replacing them.
	mergeBias   bool
	sessionBias *bias.Graph

	// mu serializes engine calls when the backend is not concurrent.
	mu     sync.Mutex
	closed bool
	cmu    sync.RWMutex
}

func open(ctx context.Context, cfg config.Config, mode engine.Mode, model config.Model, entries []bias.Entry, o options) (*base, error) {
	if cfg.Feature.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: feature.sample_rate must be > 0", config.ErrInvalid)
	}

	symbols, err := loadSymbols(cfg, model, o.engine != nil)
	if err != nil {
		return nil, err
	}

	graph, err := bias.Compile(entries, symbols)
	if err != nil {
		return nil, fmt.Errorf("%w: compile bias list: %w", config.ErrInvalid, err)
	}

	rec := o.engine
	if rec == nil {
		rec, err = openEngine(ctx, cfg, mode, model, symbols, o.logger)
		if err != nil {
			return nil, err
		}
	}

	info := rec.Info()
	if info.SampleRate <= 0 || info.ChunkSamples <= 0 || info.FrameShift <= 0 {
		_ = rec.Close()
		return nil, fmt.Errorf("%w: recognizer reported invalid info %+v", engine.ErrEngine, info)
	}

	o.logger.Info("recognizer session ready",
		"session", o.name,
		"backend", cfg.Engine.Backend,
		"model_type", model.Type,
		"sample_rate", info.SampleRate,
		"chunk_samples", info.ChunkSamples,
		"bias_entries", graph.Len(),
	)

	return &base{
		opts:        o,
		rec:         rec,
		info:        info,
		symbols:     symbols,
		assembler:   result.Assembler{Symbols: symbols, Alignment: info.Alignment},
		sessionBias: graph,
	}, nil
}

// loadSymbols checks the model files and reads the token table. Files are
// not checked for injected engines or when a remote server holds the model;
// the table is always read locally.
func loadSymbols(cfg config.Config, model config.Model, injected bool) (*tokens.Table, error) {
	if !injected && cfg.Engine.Backend != "remote" {
		if err := config.CheckFiles(model.Files); err != nil {
			return nil, err
		}
	}

	symbols, err := tokens.Load(model.Tokens, model.TokensBuf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return symbols, nil
}

func openEngine(ctx context.Context, cfg config.Config, mode engine.Mode, model config.Model, symbols *tokens.Table, logger *slog.Logger) (engine.Recognizer, error) {
	maxPaths := cfg.Decoding.MaxActivePaths
	if mode == engine.ModeKeyword {
		maxPaths = cfg.Keywords.MaxActivePaths
	}
	rec, err := engine.OpenRecognizer(ctx, cfg.Engine.Backend, engine.Spec{
		Mode:           mode,
		ModelType:      model.Type,
		ModelFiles:     model.Files,
		Symbols:        symbols,
		SampleRate:     cfg.Feature.SampleRate,
		FeatureDim:     cfg.Feature.FeatureDim,
		NumThreads:     model.Runtime.NumThreads,
		Provider:       model.Runtime.Provider,
		Debug:          model.Runtime.Debug,
		Language:       model.Language,
		DecodingMethod: cfg.Decoding.Method,
		MaxActivePaths: maxPaths,
		BlankPenalty:   cfg.Decoding.BlankPenalty,
		Address:        cfg.Engine.Address,
		DialTimeout:    time.Duration(cfg.Engine.DialTimeoutMS) * time.Millisecond,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s recognizer: %w", cfg.Engine.Backend, err)
	}
	return rec, nil
}

// OpenEngine loads the recognizer a session of the given mode would use,
// without wrapping it in a session. It is what `hark serve` hosts, so the
// configured backend must be a local one.
func OpenEngine(ctx context.Context, cfg config.Config, mode engine.Mode, logger *slog.Logger) (engine.Recognizer, *tokens.Table, error) {
	if cfg.Engine.Backend == "remote" {
		return nil, nil, fmt.Errorf("%w: a remote backend cannot be served again; set engine.backend to a local backend", config.ErrInvalid)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		model    config.Model
		warnings []config.Warning
		err      error
	)
	switch mode {
	case engine.ModeOnline:
		model, warnings, err = cfg.Online.Resolve("online")
	case engine.ModeOffline:
		model, warnings, err = cfg.Offline.Resolve()
	case engine.ModeKeyword:
		model, warnings, err = cfg.Keywords.Model.Resolve("keywords.model")
	default:
		return nil, nil, fmt.Errorf("%w: unknown recognizer mode %q", config.ErrInvalid, mode)
	}
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		logger.Warn(w.Message, "mode", mode)
	}

	symbols, err := loadSymbols(cfg, model, false)
	if err != nil {
		return nil, nil, err
	}
	rec, err := openEngine(ctx, cfg, mode, model, symbols, logger)
	if err != nil {
		return nil, nil, err
	}
	return rec, symbols, nil
}

// streamBias compiles per-stream bias text. Empty text keeps the session graph.
func (b *base) streamBias(text string) (*bias.Graph, error) {
	if strings.TrimSpace(text) == "" {
		return b.sessionBias, nil
	}

	entries, err := bias.Parse(text, b.biasBoost, b.biasThreshold)
	if err != nil {
		return nil, err
	}
	if b.mergeBias {
		entries = append(b.sessionBias.Entries(), entries...)
	}
	return bias.Compile(entries, b.symbols)
}

func (b *base) isClosed() bool {
	b.cmu.RLock()
	defer b.cmu.RUnlock()
	return b.closed
}

// invoke runs one engine call and checks the index correspondence of its
// output. On error no state is returned.
func (b *base) invoke(ctx context.Context, reqs []engine.Request) ([]engine.DecoderState, error) {
	if !b.info.Concurrent {
		b.mu.Lock()
		defer b.mu.Unlock()
	}

	started := time.Now()
	states, err := b.rec.DecodeBatch(ctx, reqs)
	if err == nil && len(states) != len(reqs) {
		err = fmt.Errorf("%w: engine returned %d states for a batch of %d", engine.ErrEngine, len(states), len(reqs))
	}
	if err == nil {
		for i, st := range states {
			if st == nil {
				err = fmt.Errorf("%w: engine returned no state for batch item %d", engine.ErrEngine, i)
				break
			}
		}
	}
	elapsed := time.Since(started)
	b.opts.metrics.RecordDecode(b.opts.name, len(reqs), err, elapsed.Seconds())

	if err != nil {
		if !errors.Is(err, engine.ErrEngine) {
			err = fmt.Errorf("%w: %w", engine.ErrEngine, err)
		}
		b.opts.logger.Error("decode batch failed", "session", b.opts.name, "batch", len(reqs), "error", err)
		return nil, fmt.Errorf("decode batch of %d: %w", len(reqs), err)
	}

	b.opts.logger.Debug("decode batch", "session", b.opts.name, "batch", len(reqs), "elapsed_ms", elapsed.Milliseconds())
	return states, nil
}

func (b *base) requestBias(g *bias.Graph) *bias.Graph {
	if !b.biasActive {
		return nil
	}
	return g
}

// SampleRate is the model rate streams store audio at.
func (b *base) SampleRate() int {
	return b.info.SampleRate
}

// Info describes the loaded recognizer.
func (b *base) Info() engine.Info {
	return b.info
}

// Symbols is the model's token table.
func (b *base) Symbols() *tokens.Table {
	return b.symbols
}

// Close releases the engine. Streams must be closed before their session;
// using them afterwards is a programming error.
func (b *base) Close() error {
	b.cmu.Lock()
	if b.closed {
		b.cmu.Unlock()
		return nil
	}
	b.closed = true
	b.cmu.Unlock()

	if err := b.rec.Close(); err != nil {
		return fmt.Errorf("close recognizer: %w", err)
	}
	b.opts.logger.Info("recognizer session closed", "session", b.opts.name)
	return nil
}
