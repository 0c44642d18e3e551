// Package mixer combines a subset of one snapshot's files over an
// operator-chosen time window into a single encoded clip, with a
// TTL-driven cleanup goroutine mirroring the platform adapter's own
// ticker-based audio lifecycle management.
package mixer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/EasterCompany/dex-voice-recorder/codec"
	"github.com/EasterCompany/dex-voice-recorder/log"
	"github.com/EasterCompany/dex-voice-recorder/recorder"
	"github.com/EasterCompany/dex-voice-recorder/sanitize"
)

// Metrics is the narrow counter set the mixer reports on.
type Metrics interface {
	MixCreated(guildID string, duration time.Duration)
}

// Extension is the container every mix is written in.
const Extension = ".mp3"

// Mixer renders a mix file from a snapshot folder and schedules its
// removal after a fixed TTL.
type Mixer struct {
	Codec         *codec.Runner
	RecordingsDir string
	MixesDir      string
	MixTTL        time.Duration
	Logger        log.Logger
	Metrics       Metrics
}

// New wires a Mixer from its collaborators.
func New(codecRunner *codec.Runner, recordingsDir, mixesDir string, mixTTL time.Duration, logger log.Logger, metrics Metrics) *Mixer {
	return &Mixer{
		Codec:         codecRunner,
		RecordingsDir: recordingsDir,
		MixesDir:      mixesDir,
		MixTTL:        mixTTL,
		Logger:        logger,
		Metrics:       metrics,
	}
}

// Mix validates that the request names at least one file and a positive
// time window, builds the codec's mix-filter invocation over the selected
// per-user files, and returns the created mix's basename. On success it
// starts a detached timer that deletes the file after MixTTL regardless of
// whether it was ever served.
func (m *Mixer) Mix(ctx context.Context, guildID, timestamp string, userFiles []string, startSec, endSec float32) (string, error) {
	if len(userFiles) == 0 {
		return "", recorder.ErrBadRequest
	}
	if startSec >= endSec {
		return "", recorder.ErrBadRequest
	}

	snapshotDir := filepath.Join(m.RecordingsDir, guildID, timestamp)
	if info, err := os.Stat(snapshotDir); err != nil || !info.IsDir() {
		return "", recorder.ErrNotFound
	}

	inputs := make([]string, len(userFiles))
	for i, f := range userFiles {
		inputs[i] = filepath.Join(snapshotDir, sanitize.Name(f))
	}

	filter := fmt.Sprintf("amix=inputs=%d:duration=longest, atrim=%s:%s",
		len(inputs), formatSeconds(startSec), formatSeconds(endSec))

	mixDir := filepath.Join(m.MixesDir, guildID)
	if err := os.MkdirAll(mixDir, 0o755); err != nil {
		return "", fmt.Errorf("mixer: create mixes dir: %w", err)
	}

	name := strconv.FormatUint(uint64(rand.Uint32()), 10) + Extension
	outPath := filepath.Join(mixDir, name)

	start := time.Now()
	if err := m.Codec.MixFiles(ctx, inputs, filter, outPath); err != nil {
		return "", err
	}

	if m.Metrics != nil {
		m.Metrics.MixCreated(guildID, time.Since(start))
	}

	m.scheduleCleanup(outPath)

	return name, nil
}

func (m *Mixer) scheduleCleanup(path string) {
	go func() {
		time.Sleep(m.MixTTL)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.Logger.Error("mixer: ttl cleanup", err)
		}
	}()
}

func formatSeconds(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 3, 32)
}
