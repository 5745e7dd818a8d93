package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOnlineResolveInfersFamily(t *testing.T) {
	c := OnlineModelConfig{
		Paraformer: EncoderDecoderConfig{Encoder: "e.onnx", Decoder: "d.onnx"},
		Tokens:     "tokens.txt",
	}

	m, warnings, err := c.Resolve("online")
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "paraformer", m.Type)
	require.Equal(t, []string{"e.onnx", "d.onnx", "tokens.txt"}, m.Files)
}

func TestOnlineResolveExplicitTypeWarnsAboutOthers(t *testing.T) {
	c := OnlineModelConfig{
		ModelType:     "zipformer2_ctc",
		Zipformer2CTC: SingleModelConfig{Model: "ctc.onnx"},
		Transducer:    TransducerConfig{Encoder: "e.onnx"},
		TokensBuf:     "a 0\n",
	}

	m, warnings, err := c.Resolve("online")
	require.NoError(t, err)
	require.Equal(t, "zipformer2_ctc", m.Type)
	require.Equal(t, []string{"ctc.onnx"}, m.Files)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "online.transducer is configured but ignored")
}

func TestOnlineResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OnlineModelConfig
		wantErr string
	}{
		{name: "nothing configured", cfg: OnlineModelConfig{Tokens: "t"}, wantErr: "no model configured"},
		{name: "unknown type", cfg: OnlineModelConfig{ModelType: "rnn", Tokens: "t"}, wantErr: "must be one of"},
		{name: "missing joiner", cfg: OnlineModelConfig{
			Transducer: TransducerConfig{Encoder: "e", Decoder: "d"},
			Tokens:     "t",
		}, wantErr: "online.transducer.joiner"},
		{name: "missing tokens", cfg: OnlineModelConfig{Zipformer2CTC: SingleModelConfig{Model: "m"}}, wantErr: "online.tokens"},
		{name: "bpe without vocab", cfg: OnlineModelConfig{
			Zipformer2CTC: SingleModelConfig{Model: "m"},
			Tokens:        "t",
			ModelingUnit:  "bpe",
		}, wantErr: "bpe_vocab"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := tc.cfg.Resolve("online")
			require.ErrorIs(t, err, ErrInvalid)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestOfflineResolveCarriesLanguageAndLM(t *testing.T) {
	c := Default().Offline
	c.SenseVoice = SenseVoiceConfig{Model: "sv.onnx", Language: "ja"}
	c.Tokens = "tokens.txt"
	c.LM.Model = "lm.onnx"

	m, _, err := c.Resolve()
	require.NoError(t, err)
	require.Equal(t, "sense_voice", m.Type)
	require.Equal(t, "ja", m.Language)
	require.Equal(t, []string{"sv.onnx", "tokens.txt", "lm.onnx"}, m.Files)
}

func TestTTSResolve(t *testing.T) {
	c := Default().TTS
	c.Vits = VitsConfig{Model: "v.onnx", Tokens: "tokens.txt", Lexicon: "lexicon.txt"}
	c.RuleFsts = "a.fst, b.fst"

	m, _, err := c.Resolve()
	require.NoError(t, err)
	require.Equal(t, "vits", m.Type)
	require.Equal(t, []string{"v.onnx", "tokens.txt", "lexicon.txt", "a.fst", "b.fst"}, m.Files)

	c = Default().TTS
	c.Kokoro = KokoroConfig{Model: "k.onnx"}
	_, _, err = c.Resolve()
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), "tts.kokoro.voices")
}

func TestDenoiserResolve(t *testing.T) {
	_, err := DenoiserConfig{}.Resolve()
	require.ErrorIs(t, err, ErrInvalid)
	require.ErrorIs(t, err, ErrNoModel)

	m, err := DenoiserConfig{GTCRN: SingleModelConfig{Model: "gtcrn.onnx"}}.Resolve()
	require.NoError(t, err)
	require.Equal(t, []string{"gtcrn.onnx"}, m.Files)
}

func TestCheckFiles(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o600))

	require.NoError(t, CheckFiles([]string{present, dir}))

	err := CheckFiles([]string{present, filepath.Join(dir, "missing.onnx")})
	require.ErrorIs(t, err, ErrInvalid)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Contains(t, err.Error(), "missing.onnx")
}
