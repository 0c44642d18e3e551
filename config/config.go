// Package config loads the recording engine's configuration from the
// process environment: a typed struct with documented defaults, loaded
// once at process start via envconfig.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable named in the engine's external interface.
// Field names are mapped to DEX_RECORDER_<FIELD> environment variables by
// envconfig's default "dex_recorder" prefix.
type Config struct {
	// DiscordToken authenticates the bot's gateway session.
	DiscordToken string `envconfig:"DISCORD_TOKEN"`

	// RecordingWindowSeconds bounds how much trailing audio per speaker is
	// kept in memory before the oldest segments are discarded.
	RecordingWindowSeconds int `envconfig:"RECORDING_WINDOW_SECONDS" default:"60"`

	// UserIdleSeconds is how long a speaker may go without voice activity
	// before its in-memory state is eligible for garbage collection.
	UserIdleSeconds int `envconfig:"USER_IDLE_SECONDS" default:"3600"`

	// UserGCPeriodSeconds is the interval between idle-speaker sweeps.
	UserGCPeriodSeconds int `envconfig:"USER_GC_PERIOD_SECONDS" default:"7200"`

	// MixTTLSeconds is how long a rendered mix file is kept on disk before
	// the TTL cleanup goroutine removes it.
	MixTTLSeconds int `envconfig:"MIX_TTL_SECONDS" default:"300"`

	// RecordingsDir is the root directory snapshot folders are written under,
	// one subdirectory per guild, one subdirectory per snapshot timestamp.
	RecordingsDir string `envconfig:"RECORDINGS_DIR" default:"data/recorder"`

	// MixesDir is the root directory rendered mixes are written under, one
	// subdirectory per guild.
	MixesDir string `envconfig:"MIXES_DIR" default:"data/mixes"`

	// CodecBinary is the path to (or name on PATH of) the external codec
	// process used to encode PCM and mix files.
	CodecBinary string `envconfig:"CODEC_BINARY" default:"ffmpeg"`

	// RedisAddr, when set, enables the optional snapshot-manifest cache.
	// Empty disables it; the engine works correctly without Redis.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	// MetricsAddr is the address the Prometheus exporter listens on.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load reads Config from the process environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("dex_recorder", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
