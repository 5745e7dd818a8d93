package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLogPath(t *testing.T) {
	t.Run("xdg state home", func(t *testing.T) {
		xdgStateHome := t.TempDir()
		t.Setenv("XDG_STATE_HOME", xdgStateHome)
		t.Setenv("HOME", t.TempDir())

		path, err := resolveLogPath()
		require.NoError(t, err)
		require.Equal(t, filepath.Join(xdgStateHome, "hark", "log.jsonl"), path)
	})

	t.Run("home fallback", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_STATE_HOME", "")
		t.Setenv("HOME", home)

		path, err := resolveLogPath()
		require.NoError(t, err)
		require.Equal(t, filepath.Join(home, ".local", "state", "hark", "log.jsonl"), path)
	})
}

func TestNewWritesJSONLinesAtLevel(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	runtime, err := New(slog.LevelWarn)
	require.NoError(t, err)

	runtime.Logger.Info("dropped-info", "component", "logging")
	runtime.Logger.Warn("kept-warning", "component", "logging")
	require.NoError(t, runtime.Close())

	contents, err := os.ReadFile(runtime.Path)
	require.NoError(t, err)
	require.NotContains(t, string(contents), "dropped-info")
	require.Contains(t, string(contents), `"msg":"kept-warning"`)
	require.Contains(t, string(contents), `"component":"logging"`)

	stat, err := os.Stat(runtime.Path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw     string
		want    slog.Level
		wantErr bool
	}{
		{raw: "", want: slog.LevelInfo},
		{raw: "debug", want: slog.LevelDebug},
		{raw: "WARN", want: slog.LevelWarn},
		{raw: "error", want: slog.LevelError},
		{raw: "chatty", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseLevel(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
