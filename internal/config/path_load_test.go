package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "hark", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "hark", "config.jsonc"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  "engine": {"backend": "remote", "address": "10.0.0.5:50051"},
  "decoding": {"method": "modified_beam_search", "max_active_paths": 8},
  "metrics": {"addr": "127.0.0.1:9464"},
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.Equal(t, "remote", loaded.Config.Engine.Backend)
	require.Equal(t, "10.0.0.5:50051", loaded.Config.Engine.Address)
	require.Equal(t, 8, loaded.Config.Decoding.MaxActivePaths)
	require.Equal(t, "127.0.0.1:9464", loaded.Config.Metrics.Addr)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"online": {"num_threads": 2}}`), 0o600))

	t.Setenv("HARK_NUM_THREADS", "6")
	t.Setenv("HARK_PROVIDER", "cuda")
	t.Setenv("HARK_DEBUG", "true")
	t.Setenv("HARK_ENGINE_BACKEND", "remote")
	t.Setenv("HARK_ENGINE_ADDRESS", "asr.internal:50051")
	t.Setenv("HARK_KAFKA_BROKERS", "k1:9092,k2:9092")

	loaded, err := Load(path)
	require.NoError(t, err)

	cfg := loaded.Config
	for _, rt := range []Runtime{cfg.Online.Runtime, cfg.Offline.Runtime, cfg.Keywords.Model.Runtime, cfg.TTS.Runtime, cfg.Denoiser.Runtime} {
		require.Equal(t, 6, rt.NumThreads)
		require.Equal(t, "cuda", rt.Provider)
		require.True(t, rt.Debug)
	}
	require.Equal(t, "remote", cfg.Engine.Backend)
	require.Equal(t, "asr.internal:50051", cfg.Engine.Address)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
	require.True(t, cfg.Events.Enabled)
}

func TestLoadRejectsInvalidEnvironmentOverride(t *testing.T) {
	t.Setenv("HARK_NUM_THREADS", "many")

	_, err := Load(filepath.Join(t.TempDir(), "missing.jsonc"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "environment overrides")
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestLoadValidationErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine": {"backend": "carrier-pigeon"}}`), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), path)
}
