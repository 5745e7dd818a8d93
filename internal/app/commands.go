package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/rbright/hark/internal/asr"
	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/cli"
	"github.com/rbright/hark/internal/denoise"
	"github.com/rbright/hark/internal/events"
	"github.com/rbright/hark/internal/kws"
	"github.com/rbright/hark/internal/result"
	"github.com/rbright/hark/internal/stream"
	"github.com/rbright/hark/internal/transcript"
	"github.com/rbright/hark/internal/tts"
	"golang.org/x/sync/errgroup"
)

// Streaming commands feed files in pieces of this many seconds.
const feedSeconds = 0.1

// readWaves loads every file concurrently, keeping argument order.
func readWaves(ctx context.Context, paths []string) ([]audio.Waveform, error) {
	waves := make([]audio.Waveform, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w, err := audio.ReadWave(path)
			if err != nil {
				return err
			}
			waves[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return waves, nil
}

type fileResult struct {
	File   string        `json:"file"`
	Result result.Result `json:"result"`
}

func (r Runner) printJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(r.Stdout, string(raw))
	return err
}

// commandDecode decodes every file in one batch with the offline model.
func (r Runner) commandDecode(ctx context.Context, parsed cli.Parsed, inj injector) error {
	waves, err := readWaves(ctx, parsed.Args)
	if err != nil {
		return err
	}

	sess, err := asr.NewOffline(ctx, configFrom(inj),
		asr.WithLogger(loggerFrom(inj)),
		asr.WithMetrics(metricsFrom(inj)),
		asr.WithName("decode"),
	)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	streams := make([]*stream.Offline, len(waves))
	for i, w := range waves {
		s, err := sess.CreateStream(parsed.Bias)
		if err != nil {
			return fmt.Errorf("create stream for %s: %w", parsed.Args[i], err)
		}
		defer s.Close()
		if err := s.AcceptWaveform(w.SampleRate, w.Samples); err != nil {
			return fmt.Errorf("%s: %w", parsed.Args[i], err)
		}
		streams[i] = s
	}

	if err := sess.Decode(ctx, streams...); err != nil {
		return err
	}
	for i, s := range streams {
		if err := r.printJSON(fileResult{File: parsed.Args[i], Result: sess.GetResult(s)}); err != nil {
			return err
		}
	}
	return nil
}

// feed splits w into feedSeconds pieces and calls fn after accepting each.
func feed(ctx context.Context, w audio.Waveform, s interface {
	AcceptWaveform(int, []float32) error
}, fn func() error) error {
	piece := int(float64(w.SampleRate) * feedSeconds)
	if piece <= 0 {
		piece = 1
	}
	for start := 0; start < len(w.Samples); start += piece {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+piece, len(w.Samples))
		if err := s.AcceptWaveform(w.SampleRate, w.Samples[start:end]); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// commandStream simulates live input: every endpointed utterance is printed
// and published, then the assembled transcript is printed.
func (r Runner) commandStream(ctx context.Context, parsed cli.Parsed, inj injector) error {
	path := parsed.Args[0]
	waves, err := readWaves(ctx, parsed.Args)
	if err != nil {
		return err
	}
	cfg := configFrom(inj)
	logger := loggerFrom(inj)
	publisher := publisherFrom(inj)

	sess, err := asr.NewOnline(ctx, cfg,
		asr.WithLogger(logger),
		asr.WithMetrics(metricsFrom(inj)),
		asr.WithName("stream"),
	)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	s, err := sess.CreateStream(parsed.Bias)
	if err != nil {
		return err
	}
	defer s.Close()

	var texts []string
	emit := func() error {
		res := sess.GetResult(s)
		if res.Empty() {
			return nil
		}
		rate := float32(s.SampleRate())
		u := events.Utterance{
			StreamID: s.ID(),
			Source:   path,
			Index:    len(texts),
			Start:    float32(s.Position()-s.Offset()) / rate,
			End:      float32(s.Position()) / rate,
			Result:   res,
		}
		texts = append(texts, res.Text)
		if err := r.printJSON(u); err != nil {
			return err
		}
		if err := publisher.PublishUtterance(ctx, u); err != nil {
			logger.Warn("utterance not published", "stream", s.ID(), "error", err)
		}
		return nil
	}

	step := func() error {
		for sess.IsReady(s) {
			if err := sess.DecodeStream(ctx, s); err != nil {
				return err
			}
			if sess.IsEndpoint(s) {
				if err := emit(); err != nil {
					return err
				}
				sess.Reset(s)
			}
		}
		return nil
	}

	if err := feed(ctx, waves[0], s, step); err != nil {
		return err
	}
	s.InputFinished()
	if err := step(); err != nil {
		return err
	}
	if err := emit(); err != nil {
		return err
	}

	text := transcript.Assemble(texts, transcript.Options{
		TrailingSpace:       cfg.Transcript.TrailingSpace,
		CapitalizeSentences: cfg.Transcript.CapitalizeSentences,
	})
	if strings.TrimSpace(text) != "" {
		fmt.Fprintln(r.Stdout, text)
	}
	return nil
}

// commandSpot prints and publishes every keyword detection in a file.
func (r Runner) commandSpot(ctx context.Context, parsed cli.Parsed, inj injector) error {
	path := parsed.Args[0]
	waves, err := readWaves(ctx, parsed.Args)
	if err != nil {
		return err
	}
	logger := loggerFrom(inj)
	publisher := publisherFrom(inj)

	spotter, err := kws.New(ctx, configFrom(inj), kws.WithLogger(logger), kws.WithMetrics(metricsFrom(inj)))
	if err != nil {
		return err
	}
	defer func() { _ = spotter.Close() }()

	s, err := spotter.CreateStream(parsed.Bias)
	if err != nil {
		return err
	}
	defer func() {
		spotter.Forget(s)
		s.Close()
	}()

	step := func() error {
		for spotter.IsReady(s) {
			if err := spotter.DecodeStream(ctx, s); err != nil {
				return err
			}
			res := spotter.GetResult(s)
			if res.Keyword == "" {
				continue
			}
			if err := r.printJSON(res); err != nil {
				return err
			}
			hit := events.Keyword{StreamID: s.ID(), Source: path, Result: res}
			if err := publisher.PublishKeyword(ctx, hit); err != nil {
				logger.Warn("keyword not published", "stream", s.ID(), "error", err)
			}
		}
		return nil
	}

	if err := feed(ctx, waves[0], s, step); err != nil {
		return err
	}
	s.InputFinished()
	return step()
}

func (r Runner) commandTTS(ctx context.Context, parsed cli.Parsed, inj injector) error {
	sess, err := tts.New(ctx, configFrom(inj), tts.WithLogger(loggerFrom(inj)), tts.WithMetrics(metricsFrom(inj)))
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	gen, err := sess.Generate(ctx, parsed.Text, parsed.SID, parsed.Speed, func(_ []float32, progress float32) bool {
		fmt.Fprintf(r.Stderr, "progress: %.0f%%\n", progress*100)
		return ctx.Err() == nil
	})
	if err != nil {
		return err
	}
	if err := gen.Save(parsed.Output); err != nil {
		return err
	}

	seconds := float64(len(gen.Samples)) / float64(gen.SampleRate)
	fmt.Fprintf(r.Stdout, "wrote %s (%.2fs at %d Hz)\n", parsed.Output, seconds, gen.SampleRate)
	if gen.Stopped {
		return errors.New("synthesis interrupted; output holds the audio produced so far")
	}
	return nil
}

func (r Runner) commandDenoise(ctx context.Context, parsed cli.Parsed, inj injector) error {
	in, out := parsed.Args[0], parsed.Args[1]
	waves, err := readWaves(ctx, []string{in})
	if err != nil {
		return err
	}

	sess, err := denoise.New(ctx, configFrom(inj), denoise.WithLogger(loggerFrom(inj)), denoise.WithMetrics(metricsFrom(inj)))
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	clean, err := sess.Run(ctx, waves[0].Samples, waves[0].SampleRate)
	if err != nil {
		return err
	}
	if err := audio.WriteWave(out, clean); err != nil {
		return err
	}
	fmt.Fprintf(r.Stdout, "wrote %s (%.2fs at %d Hz)\n", out, clean.Duration(), clean.SampleRate)
	return nil
}
