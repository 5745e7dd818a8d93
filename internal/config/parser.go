package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parse reads JSONC configuration content over base and validates the result.
//
// Keys absent from content keep their base values. Unknown keys are errors.
func Parse(content string, base Config) (Config, []Warning, error) {
	cfg, err := decodeJSONC(content, base)
	if err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func decodeJSONC(content string, base Config) (Config, error) {
	if strings.TrimSpace(content) == "" {
		return base, nil
	}

	normalized, err := toStrictJSON(content)
	if err != nil {
		return Config{}, err
	}

	cfg := cloneConfig(base)
	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSONC config: %w", withPosition(normalized, err))
	}
	if err := requireEOF(decoder); err != nil {
		return Config{}, fmt.Errorf("invalid JSONC config: %w", withPosition(normalized, err))
	}

	return cfg, nil
}

// cloneConfig copies the map and slices that JSON decoding would otherwise
// write through to base.
func cloneConfig(base Config) Config {
	cfg := base
	cfg.Hotwords.Global = append([]string(nil), base.Hotwords.Global...)
	cfg.Hotwords.Sets = make(map[string]VocabSet, len(base.Hotwords.Sets))
	for name, set := range base.Hotwords.Sets {
		set.Phrases = append([]string(nil), set.Phrases...)
		cfg.Hotwords.Sets[name] = set
	}
	cfg.Events.Brokers = append([]string(nil), base.Events.Brokers...)
	return cfg
}
