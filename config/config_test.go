package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"DEX_RECORDER_RECORDING_WINDOW_SECONDS",
		"DEX_RECORDER_USER_IDLE_SECONDS",
		"DEX_RECORDER_USER_GC_PERIOD_SECONDS",
		"DEX_RECORDER_MIX_TTL_SECONDS",
		"DEX_RECORDER_RECORDINGS_DIR",
		"DEX_RECORDER_MIXES_DIR",
		"DEX_RECORDER_CODEC_BINARY",
		"DEX_RECORDER_REDIS_ADDR",
		"DEX_RECORDER_METRICS_ADDR",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.RecordingWindowSeconds)
	assert.Equal(t, 3600, cfg.UserIdleSeconds)
	assert.Equal(t, 7200, cfg.UserGCPeriodSeconds)
	assert.Equal(t, 300, cfg.MixTTLSeconds)
	assert.Equal(t, "data/recorder", cfg.RecordingsDir)
	assert.Equal(t, "data/mixes", cfg.MixesDir)
	assert.Equal(t, "ffmpeg", cfg.CodecBinary)
	assert.Equal(t, "", cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	os.Setenv("DEX_RECORDER_RECORDING_WINDOW_SECONDS", "120")
	os.Setenv("DEX_RECORDER_REDIS_ADDR", "localhost:6379")
	defer os.Unsetenv("DEX_RECORDER_RECORDING_WINDOW_SECONDS")
	defer os.Unsetenv("DEX_RECORDER_REDIS_ADDR")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.RecordingWindowSeconds)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}
