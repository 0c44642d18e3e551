package main

import (
	"fmt"
	"os"

	"github.com/EasterCompany/dex-voice-recorder/config"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

func main() {
	fmt.Printf("%s--- Voice Recorder Config Verifier ---%s\n", colorBlue, colorReset)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("%s[FATAL]%s could not load config: %v\n", colorRed, colorReset, err)
		os.Exit(1)
	}

	if cfg.DiscordToken == "" {
		fmt.Printf("%s[WARN]%s DEX_RECORDER_DISCORD_TOKEN is unset\n", colorYellow, colorReset)
	} else {
		fmt.Printf("%s[OK]%s discord token present\n", colorGreen, colorReset)
	}

	report := func(name string, val int) {
		if val <= 0 {
			fmt.Printf("%s[FATAL]%s %s must be positive, got %d\n", colorRed, colorReset, name, val)
			os.Exit(1)
		}
		fmt.Printf("%s[OK]%s %s=%d\n", colorGreen, colorReset, name, val)
	}
	report("RECORDING_WINDOW_SECONDS", cfg.RecordingWindowSeconds)
	report("USER_IDLE_SECONDS", cfg.UserIdleSeconds)
	report("USER_GC_PERIOD_SECONDS", cfg.UserGCPeriodSeconds)
	report("MIX_TTL_SECONDS", cfg.MixTTLSeconds)

	fmt.Printf("%s[OK]%s recordings dir = %s\n", colorGreen, colorReset, cfg.RecordingsDir)
	fmt.Printf("%s[OK]%s mixes dir = %s\n", colorGreen, colorReset, cfg.MixesDir)
	fmt.Printf("%s[OK]%s codec binary = %s\n", colorGreen, colorReset, cfg.CodecBinary)

	if cfg.RedisAddr == "" {
		fmt.Printf("%s[INFO]%s REDIS_ADDR unset, manifest cache disabled\n", colorBlue, colorReset)
	} else {
		fmt.Printf("%s[OK]%s redis addr = %s\n", colorGreen, colorReset, cfg.RedisAddr)
	}

	fmt.Printf("%s[OK]%s metrics addr = %s\n", colorGreen, colorReset, cfg.MetricsAddr)
}
