package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		ConfigEnv, "MCZ2OSZ_WORKERS", "MCZ2OSZ_RATE", "MCZ2OSZ_SPEED_MODIFIER", "MCZ2OSZ_OD",
		"MCZ2OSZ_PREVIEW_OFFSET", "MCZ2OSZ_PROBE_AUDIO", "MCZ2OSZ_SUMMARY", "MCZ2OSZ_DATABASE", "MCZ2OSZ_CARD_DIR",
		"MCZ2OSZ_CARD_PLACEHOLDER", "MCZ2OSZ_LISTEN", "MCZ2OSZ_UPLOAD_DIR", "MCZ2OSZ_ALLOWED_ORIGINS",
		"MCZ2OSZ_WATCH_DEBOUNCE", "MCZ2OSZ_FETCH_RATE_LIMIT", "MCZ2OSZ_FETCH_CONCURRENCY",
		"MCZ2OSZ_FETCH_USER_AGENT", "MCZ2OSZ_FETCH_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Rate)
	assert.True(t, cfg.PreviewOffset)
	assert.Equal(t, 8.0, cfg.OverallDifficulty)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "mcz2osz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workers: 3
rate: false
overall_difficulty: 7.5
preview_offset: false
probe_audio: true
database: history.db
allowed_origins: ["https://example.org"]
watch_debounce: 500ms
fetch:
  rate_limit: 10
  timeout: 1m
`), 0o644))

	t.Setenv("MCZ2OSZ_WORKERS", "5")
	t.Setenv("MCZ2OSZ_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Workers)
	assert.False(t, cfg.Rate)
	assert.Equal(t, 7.5, cfg.OverallDifficulty)
	assert.False(t, cfg.PreviewOffset)
	assert.True(t, cfg.ProbeAudio)
	assert.True(t, cfg.Summary)
	assert.Equal(t, "history.db", cfg.Database)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, 10, cfg.Fetch.RateLimit)
	assert.Equal(t, 2, cfg.Fetch.Concurrency)
	assert.Equal(t, time.Minute, cfg.Fetch.Timeout)
}

func TestLoadFromEnvPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 127.0.0.1:9000\n"), 0o644))
	t.Setenv(ConfigEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
}

func TestLoadExpandsHome(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MCZ2OSZ_DATABASE", "~/mcz2osz/history.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mcz2osz", "history.db"), cfg.Database)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("watch_debounce: soon\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "watch_debounce")

	t.Setenv("MCZ2OSZ_RATE", "maybe")
	_, err = Load("")
	assert.ErrorContains(t, err, "MCZ2OSZ_RATE")

	t.Setenv("MCZ2OSZ_RATE", "")
	t.Setenv("MCZ2OSZ_SPEED_MODIFIER", "0")
	_, err = Load("")
	assert.ErrorContains(t, err, "speed_modifier")
}
