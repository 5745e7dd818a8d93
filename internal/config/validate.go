package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rbright/hark/internal/bias"
)

// ErrInvalid marks configuration errors. They are fatal at session creation.
var ErrInvalid = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

var (
	knownBackends        = map[string]bool{"reference": true, "remote": true}
	knownDecodingMethods = map[string]bool{"greedy_search": true, "modified_beam_search": true}
	knownProviders       = map[string]bool{"cpu": true, "cuda": true, "coreml": true}
)

// Validate enforces config invariants and returns non-fatal warnings.
//
// Model family selection is checked when a session is created, since a
// config usually only carries the models for the sessions it is used with.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	backend := strings.TrimSpace(cfg.Engine.Backend)
	if backend == "" {
		return nil, invalid("engine.backend must not be empty")
	}
	if !knownBackends[backend] {
		return nil, invalid("engine.backend must be one of: reference, remote")
	}
	if backend == "remote" && strings.TrimSpace(cfg.Engine.Address) == "" {
		return nil, invalid("engine.address must not be empty when engine.backend=remote")
	}
	if cfg.Engine.DialTimeoutMS <= 0 {
		return nil, invalid("engine.dial_timeout_ms must be > 0")
	}

	if cfg.Feature.SampleRate <= 0 {
		return nil, invalid("feature.sample_rate must be > 0")
	}
	if cfg.Feature.FeatureDim <= 0 {
		return nil, invalid("feature.feature_dim must be > 0")
	}

	runtimes := map[string]Runtime{
		"online":         cfg.Online.Runtime,
		"offline":        cfg.Offline.Runtime,
		"keywords.model": cfg.Keywords.Model.Runtime,
		"tts":            cfg.TTS.Runtime,
		"denoiser":       cfg.Denoiser.Runtime,
	}
	for _, section := range sortedKeys(runtimes) {
		rt := runtimes[section]
		if rt.NumThreads <= 0 {
			return nil, invalid("%s.num_threads must be > 0", section)
		}
		if rt.Provider != "" && !knownProviders[rt.Provider] {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("%s.provider %q is not a known provider; falling back to cpu", section, rt.Provider)})
		}
	}

	if !knownDecodingMethods[cfg.Decoding.Method] {
		return nil, invalid("decoding.method must be one of: greedy_search, modified_beam_search")
	}
	if cfg.Decoding.MaxActivePaths <= 0 {
		return nil, invalid("decoding.max_active_paths must be > 0")
	}
	if cfg.Decoding.BlankPenalty < 0 {
		return nil, invalid("decoding.blank_penalty must be >= 0")
	}

	if cfg.Endpoint.Rule1MinTrailingSilence < 0 || cfg.Endpoint.Rule2MinTrailingSilence < 0 || cfg.Endpoint.Rule3MinUtteranceLength < 0 {
		return nil, invalid("endpoint rule thresholds must be >= 0")
	}
	if cfg.Endpoint.Enable && cfg.Endpoint.Rule1MinTrailingSilence == 0 && cfg.Endpoint.Rule2MinTrailingSilence == 0 && cfg.Endpoint.Rule3MinUtteranceLength == 0 {
		warnings = append(warnings, Warning{Message: "endpoint.enable=true but every rule is disabled; no endpoint will be detected"})
	}

	if cfg.Hotwords.MaxEntries <= 0 {
		return nil, invalid("hotwords.max_entries must be > 0")
	}
	hotwords, hotwordWarnings, err := BuildHotwords(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, hotwordWarnings...)
	if len(hotwords) > 0 && cfg.Decoding.Method != "modified_beam_search" {
		warnings = append(warnings, Warning{Message: "hotwords are only applied with decoding.method=modified_beam_search"})
	}

	if cfg.Keywords.Threshold < 0 || cfg.Keywords.Threshold > 1 {
		return nil, invalid("keywords.threshold must be within [0, 1]")
	}
	if cfg.Keywords.NumTrailingBlanks < 0 {
		return nil, invalid("keywords.num_trailing_blanks must be >= 0")
	}
	if cfg.Keywords.MaxActivePaths <= 0 {
		return nil, invalid("keywords.max_active_paths must be > 0")
	}

	if cfg.TTS.MaxNumSentences <= 0 {
		return nil, invalid("tts.max_num_sentences must be > 0")
	}
	if cfg.TTS.SilenceScale < 0 {
		return nil, invalid("tts.silence_scale must be >= 0")
	}

	if cfg.Events.Enabled {
		if len(cfg.Events.Brokers) == 0 {
			return nil, invalid("events.brokers must not be empty when events.enabled=true")
		}
		if strings.TrimSpace(cfg.Events.Topic) == "" {
			return nil, invalid("events.topic must not be empty when events.enabled=true")
		}
	}

	return warnings, nil
}

// BuildHotwords merges the hotword file, buffer, and enabled sets into a
// deterministic entry list. When the same phrase appears twice the higher
// boost wins.
func BuildHotwords(cfg Config) ([]bias.Entry, []Warning, error) {
	type candidate struct {
		entry bias.Entry
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	add := func(from string, entries []bias.Entry) {
		for _, e := range entries {
			key := strings.Join(e.Tokens, " ")
			if existing, exists := selected[key]; exists {
				if e.Boost > existing.entry.Boost {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("hotword %q present in %q and %q; using higher boost %.2f", key, existing.from, from, e.Boost)})
					selected[key] = candidate{entry: e, from: from}
				}
				continue
			}
			selected[key] = candidate{entry: e, from: from}
		}
	}

	if strings.TrimSpace(cfg.Hotwords.File) != "" || strings.TrimSpace(cfg.Hotwords.Buf) != "" {
		entries, err := bias.Load(cfg.Hotwords.File, cfg.Hotwords.Buf, cfg.Hotwords.Score, 0)
		if err != nil {
			return nil, nil, invalid("hotwords: %v", err)
		}
		add("hotwords", entries)
	}

	for _, name := range cfg.Hotwords.Global {
		set, ok := cfg.Hotwords.Sets[name]
		if !ok {
			return nil, nil, invalid("hotwords.global references unknown set %q", name)
		}
		boost := set.Boost
		if boost == 0 {
			boost = cfg.Hotwords.Score
		}
		entries, err := bias.Parse(strings.Join(set.Phrases, "\n"), boost, 0)
		if err != nil {
			return nil, nil, invalid("hotwords.sets.%s: %v", name, err)
		}
		add(name, entries)
	}

	if len(selected) > cfg.Hotwords.MaxEntries {
		return nil, nil, invalid("hotword count %d exceeds hotwords.max_entries=%d", len(selected), cfg.Hotwords.MaxEntries)
	}

	keys := sortedKeys(selected)
	entries := make([]bias.Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, selected[key].entry)
	}
	return entries, warnings, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
