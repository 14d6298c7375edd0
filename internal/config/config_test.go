// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	want := Default()
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("unexpected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reelcast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9999"
logLevel: debug
publish:
  baseUrl: https://sessions.example.com
  timeout: 5s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Listen)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "https://sessions.example.com", cfg.Publish.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Publish.Timeout)
	// Untouched sections keep their defaults.
	require.Equal(t, "ffmpeg", cfg.FFmpeg.Bin)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reelcast.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9999\"\n"), 0o600))

	t.Setenv("REELCAST_LISTEN", ":7777")
	t.Setenv("REELCAST_PUBLISH_BASE_URL", "https://env.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Listen)
	require.Equal(t, "https://env.example.com", cfg.Publish.BaseURL)
}

func TestValidateRejectsBadURL(t *testing.T) {
	cfg := Default()
	cfg.Publish.BaseURL = "not a url"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Notify.Endpoint = "/relative/only"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadLimits(t *testing.T) {
	cfg := Default()
	cfg.API.RateLimit = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Notify.TicksPerSec = 0
	require.Error(t, cfg.Validate())
}
