package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ZEQUEL_ENCRYPTION_KEY", testKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7411", cfg.ListenAddr)
	assert.Equal(t, "zequel.db", cfg.StorePath)
	assert.Equal(t, 30*time.Second, cfg.HealthInterval)
	assert.Equal(t, float64(300), cfg.RequestsPerMinute)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ZEQUEL_ENCRYPTION_KEY", testKey)
	t.Setenv("ZEQUEL_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("ZEQUEL_HEALTH_INTERVAL", "5s")
	t.Setenv("ZEQUEL_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, 5*time.Second, cfg.HealthInterval)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadRequiresEncryptionKey(t *testing.T) {
	t.Setenv("ZEQUEL_ENCRYPTION_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "ZEQUEL_ENCRYPTION_KEY"))
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	t.Setenv("ZEQUEL_ENCRYPTION_KEY", testKey)
	t.Setenv("ZEQUEL_LOG_LEVEL", "verbose")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	} {
		got, err := ParseLogLevel(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}
