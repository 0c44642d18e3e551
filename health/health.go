// Package health periodically reports the recording engine's own resource
// footprint: process RSS alongside the active-speaker count, checked
// against the rolling-buffer memory bound every guild's speaker table is
// expected to respect.
package health

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/EasterCompany/dex-voice-recorder/audio"
	"github.com/EasterCompany/dex-voice-recorder/log"
	"github.com/EasterCompany/dex-voice-recorder/recorder"
)

// Report is one sample of the engine's resource footprint.
type Report struct {
	RSSBytes       uint64
	ActiveSpeakers int
	BoundBytes     uint64
	OverBound      bool
}

// Metrics is the narrow gauge set the reporter publishes on each tick.
type Metrics interface {
	ResourceSample(rssBytes uint64, activeSpeakers int)
}

// Reporter samples process memory and the registry's active-speaker count
// on a fixed interval.
type Reporter struct {
	Registry               *recorder.Registry
	RecordingWindowSeconds int
	Interval               time.Duration
	Logger                 log.Logger
	Metrics                Metrics

	proc *process.Process
}

// NewReporter wires a Reporter from its collaborators. pid is normally
// os.Getpid(); it is a parameter so tests can point at a known process.
func NewReporter(registry *recorder.Registry, recordingWindowSeconds int, interval time.Duration, logger log.Logger, metrics Metrics, pid int32) (*Reporter, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		Registry:               registry,
		RecordingWindowSeconds: recordingWindowSeconds,
		Interval:               interval,
		Logger:                 logger,
		Metrics:                metrics,
		proc:                   proc,
	}, nil
}

// Run samples on every tick until ctx is cancelled. It is meant to be
// started in its own goroutine by the embedding process.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := r.sample()
			if err != nil {
				r.Logger.Error("health: sample", err)
				continue
			}
			if r.Metrics != nil {
				r.Metrics.ResourceSample(rep.RSSBytes, rep.ActiveSpeakers)
			}
			if rep.OverBound {
				r.Logger.Info("health: resident set exceeds the configured rolling-buffer bound")
			}
		}
	}
}

func (r *Reporter) sample() (Report, error) {
	mem, err := r.proc.MemoryInfo()
	if err != nil {
		return Report{}, err
	}

	speakers := 0
	for _, guildID := range r.Registry.GuildIDs() {
		if g, ok := r.Registry.Get(guildID); ok {
			speakers += g.SpeakerCount()
		}
	}

	bound := Bound(speakers, r.RecordingWindowSeconds)
	return Report{
		RSSBytes:       mem.RSS,
		ActiveSpeakers: speakers,
		BoundBytes:     bound,
		OverBound:      mem.RSS > bound,
	}, nil
}

// Bound computes the expected worst-case rolling-buffer memory footprint:
// speakers * window_seconds * ticks_per_second * samples_per_tick * 2 bytes.
func Bound(speakers, recordingWindowSeconds int) uint64 {
	samplesPerSecond := uint64(audio.TicksPerSecond) * uint64(audio.SamplesPerTick)
	return uint64(speakers) * uint64(recordingWindowSeconds) * samplesPerSecond * 2
}

// DefaultPID is a convenience for wiring against the running process.
func DefaultPID() int32 {
	return int32(os.Getpid())
}
