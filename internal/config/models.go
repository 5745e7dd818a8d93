package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoModel marks a section with no model family configured at all. It is
// always wrapped together with ErrInvalid.
var ErrNoModel = errors.New("no model configured")

// Model is a resolved model family ready to hand to an engine backend.
type Model struct {
	// Type is the selected family, e.g. "transducer" or "sense_voice".
	Type string
	// Files lists every required file, tokens included.
	Files     []string
	Tokens    string
	TokensBuf string
	Language  string
	Runtime   Runtime
}

type namedPath struct {
	key   string
	value string
}

type family struct {
	name     string
	required []namedPath
	optional []namedPath
}

func (f family) populated() bool {
	for _, p := range append(f.required, f.optional...) {
		if strings.TrimSpace(p.value) != "" {
			return true
		}
	}
	return false
}

// selectFamily picks the family named by modelType, or the first populated
// one when modelType is empty. Other populated families produce warnings.
func selectFamily(section, modelType string, families []family) (family, []Warning, error) {
	var selected *family
	modelType = strings.TrimSpace(modelType)

	if modelType != "" {
		names := make([]string, 0, len(families))
		for i := range families {
			names = append(names, families[i].name)
			if families[i].name == modelType {
				selected = &families[i]
			}
		}
		if selected == nil {
			return family{}, nil, invalid("%s.model_type %q must be one of: %s", section, modelType, strings.Join(names, ", "))
		}
	} else {
		for i := range families {
			if families[i].populated() {
				selected = &families[i]
				break
			}
		}
		if selected == nil {
			return family{}, nil, fmt.Errorf("%w: %s: %w", ErrInvalid, section, ErrNoModel)
		}
	}

	for _, p := range selected.required {
		if strings.TrimSpace(p.value) == "" {
			return family{}, nil, invalid("%s.%s.%s must not be empty", section, selected.name, p.key)
		}
	}

	var warnings []Warning
	for _, f := range families {
		if f.name != selected.name && f.populated() {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("%s.%s is configured but ignored; using %s", section, f.name, selected.name)})
		}
	}
	return *selected, warnings, nil
}

func paths(f family) []string {
	out := make([]string, 0, len(f.required)+len(f.optional))
	for _, p := range f.required {
		out = append(out, p.value)
	}
	for _, p := range f.optional {
		if strings.TrimSpace(p.value) != "" {
			out = append(out, p.value)
		}
	}
	return out
}

// Resolve selects the streaming model family.
func (c OnlineModelConfig) Resolve(section string) (Model, []Warning, error) {
	f, warnings, err := selectFamily(section, c.ModelType, []family{
		{name: "transducer", required: []namedPath{
			{"encoder", c.Transducer.Encoder}, {"decoder", c.Transducer.Decoder}, {"joiner", c.Transducer.Joiner},
		}},
		{name: "paraformer", required: []namedPath{
			{"encoder", c.Paraformer.Encoder}, {"decoder", c.Paraformer.Decoder},
		}},
		{name: "zipformer2_ctc", required: []namedPath{{"model", c.Zipformer2CTC.Model}}},
	})
	if err != nil {
		return Model{}, nil, err
	}

	m := Model{Type: f.name, Files: paths(f), Tokens: c.Tokens, TokensBuf: c.TokensBuf, Runtime: c.Runtime}
	if err := m.requireTokens(section); err != nil {
		return Model{}, nil, err
	}
	if c.ModelingUnit == "bpe" && strings.TrimSpace(c.BPEVocab) == "" {
		return Model{}, nil, invalid("%s.bpe_vocab must not be empty when %s.modeling_unit=bpe", section, section)
	}
	if strings.TrimSpace(c.BPEVocab) != "" {
		m.Files = append(m.Files, c.BPEVocab)
	}
	return m, warnings, nil
}

// Resolve selects the offline model family.
func (c OfflineModelConfig) Resolve() (Model, []Warning, error) {
	f, warnings, err := selectFamily("offline", c.ModelType, []family{
		{name: "transducer", required: []namedPath{
			{"encoder", c.Transducer.Encoder}, {"decoder", c.Transducer.Decoder}, {"joiner", c.Transducer.Joiner},
		}},
		{name: "paraformer", required: []namedPath{{"model", c.Paraformer.Model}}},
		{name: "nemo_ctc", required: []namedPath{{"model", c.NemoCTC.Model}}},
		{name: "whisper", required: []namedPath{
			{"encoder", c.Whisper.Encoder}, {"decoder", c.Whisper.Decoder},
		}},
		{name: "tdnn", required: []namedPath{{"model", c.TDNN.Model}}},
		{name: "sense_voice", required: []namedPath{{"model", c.SenseVoice.Model}}},
		{name: "moonshine", required: []namedPath{
			{"preprocessor", c.Moonshine.Preprocessor},
			{"encoder", c.Moonshine.Encoder},
			{"uncached_decoder", c.Moonshine.UncachedDecoder},
			{"cached_decoder", c.Moonshine.CachedDecoder},
		}},
		{name: "fire_red_asr", required: []namedPath{
			{"encoder", c.FireRedASR.Encoder}, {"decoder", c.FireRedASR.Decoder},
		}},
		{name: "telespeech_ctc", required: []namedPath{{"model", c.TeleSpeechCTC.Model}}},
	})
	if err != nil {
		return Model{}, nil, err
	}

	m := Model{Type: f.name, Files: paths(f), Tokens: c.Tokens, Runtime: c.Runtime}
	switch f.name {
	case "whisper":
		m.Language = c.Whisper.Language
	case "sense_voice":
		m.Language = c.SenseVoice.Language
	}
	if err := m.requireTokens("offline"); err != nil {
		return Model{}, nil, err
	}
	if strings.TrimSpace(c.LM.Model) != "" {
		m.Files = append(m.Files, c.LM.Model)
	}
	return m, warnings, nil
}

// Resolve selects the synthesis model family.
func (c TTSConfig) Resolve() (Model, []Warning, error) {
	f, warnings, err := selectFamily("tts", c.ModelType, []family{
		{
			name:     "vits",
			required: []namedPath{{"model", c.Vits.Model}, {"tokens", c.Vits.Tokens}},
			optional: []namedPath{{"lexicon", c.Vits.Lexicon}, {"data_dir", c.Vits.DataDir}, {"dict_dir", c.Vits.DictDir}},
		},
		{
			name:     "matcha",
			required: []namedPath{{"acoustic_model", c.Matcha.AcousticModel}, {"vocoder", c.Matcha.Vocoder}, {"tokens", c.Matcha.Tokens}},
			optional: []namedPath{{"lexicon", c.Matcha.Lexicon}, {"data_dir", c.Matcha.DataDir}, {"dict_dir", c.Matcha.DictDir}},
		},
		{
			name:     "kokoro",
			required: []namedPath{{"model", c.Kokoro.Model}, {"voices", c.Kokoro.Voices}, {"tokens", c.Kokoro.Tokens}},
			optional: []namedPath{{"lexicon", c.Kokoro.Lexicon}, {"data_dir", c.Kokoro.DataDir}, {"dict_dir", c.Kokoro.DictDir}},
		},
	})
	if err != nil {
		return Model{}, nil, err
	}

	m := Model{Type: f.name, Files: paths(f), Runtime: c.Runtime}
	for _, list := range []string{c.RuleFsts, c.RuleFars} {
		for _, p := range strings.Split(list, ",") {
			if p = strings.TrimSpace(p); p != "" {
				m.Files = append(m.Files, p)
			}
		}
	}
	return m, warnings, nil
}

// Resolve checks the denoiser model.
func (c DenoiserConfig) Resolve() (Model, error) {
	if strings.TrimSpace(c.GTCRN.Model) == "" {
		return Model{}, fmt.Errorf("%w: denoiser.gtcrn.model is empty: %w", ErrInvalid, ErrNoModel)
	}
	return Model{Type: "gtcrn", Files: []string{c.GTCRN.Model}, Runtime: c.Runtime}, nil
}

func (m *Model) requireTokens(section string) error {
	switch {
	case strings.TrimSpace(m.Tokens) != "":
		m.Files = append(m.Files, m.Tokens)
	case strings.TrimSpace(m.TokensBuf) != "":
	default:
		return invalid("%s.tokens must not be empty", section)
	}
	return nil
}

// CheckFiles verifies that every model path exists.
func CheckFiles(files []string) error {
	for _, path := range files {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: model file %q: %w", ErrInvalid, path, err)
		}
	}
	return nil
}
