// Package metrics records OpenTelemetry counters and histograms for the
// recording engine, bridged to Prometheus via InitProvider so they can be
// scraped from the configured metrics address.
package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/EasterCompany/dex-voice-recorder"

// Metrics holds every OpenTelemetry instrument the engine publishes. All
// fields are safe for concurrent use; the underlying OTel instruments
// handle their own synchronization.
type Metrics struct {
	ticksProcessed     metric.Int64Counter
	speakersEvicted    metric.Int64Counter
	speakersRegistered metric.Int64Counter
	decodeErrors       metric.Int64Counter
	snapshotsWritten   metric.Int64Counter
	snapshotFiles      metric.Int64Counter
	mixesCreated       metric.Int64Counter
	mixDuration        metric.Float64Histogram
	resourceRSS        metric.Int64ObservableGauge
	activeSpeakers     metric.Int64ObservableGauge

	lastRSS      atomic.Int64
	lastSpeakers atomic.Int64
}

// New creates a fully initialized Metrics from the given MeterProvider.
func New(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.ticksProcessed, err = m.Int64Counter("recorder.ticks_processed",
		metric.WithDescription("Voice ticks processed per guild.")); err != nil {
		return nil, err
	}
	if met.speakersEvicted, err = m.Int64Counter("recorder.speakers_evicted",
		metric.WithDescription("Speakers removed by idle garbage collection.")); err != nil {
		return nil, err
	}
	if met.speakersRegistered, err = m.Int64Counter("recorder.speakers_registered",
		metric.WithDescription("New SSRC-to-speaker registrations observed.")); err != nil {
		return nil, err
	}
	if met.decodeErrors, err = m.Int64Counter("recorder.decode_errors",
		metric.WithDescription("Ticks where a speaker's decoder produced no PCM.")); err != nil {
		return nil, err
	}
	if met.snapshotsWritten, err = m.Int64Counter("snapshot.written",
		metric.WithDescription("Completed snapshot folders.")); err != nil {
		return nil, err
	}
	if met.snapshotFiles, err = m.Int64Counter("snapshot.files_written",
		metric.WithDescription("Per-speaker files written across all snapshots.")); err != nil {
		return nil, err
	}
	if met.mixesCreated, err = m.Int64Counter("mixer.created",
		metric.WithDescription("Mix clips rendered.")); err != nil {
		return nil, err
	}
	if met.mixDuration, err = m.Float64Histogram("mixer.duration",
		metric.WithDescription("Wall-clock time spent rendering a mix."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	); err != nil {
		return nil, err
	}

	if met.resourceRSS, err = m.Int64ObservableGauge("health.rss_bytes",
		metric.WithDescription("Process resident set size, sampled periodically."),
	); err != nil {
		return nil, err
	}
	if met.activeSpeakers, err = m.Int64ObservableGauge("health.active_speakers",
		metric.WithDescription("Active speakers across all guilds, sampled periodically."),
	); err != nil {
		return nil, err
	}

	if _, err := m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(met.resourceRSS, met.lastRSS.Load())
		o.ObserveInt64(met.activeSpeakers, met.lastSpeakers.Load())
		return nil
	}, met.resourceRSS, met.activeSpeakers); err != nil {
		return nil, err
	}

	return met, nil
}

// TickProcessed implements recorder.Metrics.
func (m *Metrics) TickProcessed(guildID string) {
	m.ticksProcessed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("guild", guildID)))
}

// SpeakerEvicted implements recorder.Metrics.
func (m *Metrics) SpeakerEvicted(guildID string) {
	m.speakersEvicted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("guild", guildID)))
}

// SpeakerRegistered implements recorder.Metrics.
func (m *Metrics) SpeakerRegistered(guildID string) {
	m.speakersRegistered.Add(context.Background(), 1, metric.WithAttributes(attribute.String("guild", guildID)))
}

// DecodeErrorLogged implements recorder.Metrics.
func (m *Metrics) DecodeErrorLogged(guildID string) {
	m.decodeErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("guild", guildID)))
}

// SnapshotWritten implements snapshot.Metrics.
func (m *Metrics) SnapshotWritten(guildID string, fileCount int) {
	m.snapshotsWritten.Add(context.Background(), 1, metric.WithAttributes(attribute.String("guild", guildID)))
	m.snapshotFiles.Add(context.Background(), int64(fileCount), metric.WithAttributes(attribute.String("guild", guildID)))
}

// MixCreated implements mixer.Metrics.
func (m *Metrics) MixCreated(guildID string, duration time.Duration) {
	m.mixesCreated.Add(context.Background(), 1, metric.WithAttributes(attribute.String("guild", guildID)))
	m.mixDuration.Record(context.Background(), duration.Seconds(), metric.WithAttributes(attribute.String("guild", guildID)))
}

// ResourceSample implements health.Metrics. The observable gauges read
// these values back on the next collection pass.
func (m *Metrics) ResourceSample(rssBytes uint64, activeSpeakers int) {
	m.lastRSS.Store(int64(rssBytes))
	m.lastSpeakers.Store(int64(activeSpeakers))
}
