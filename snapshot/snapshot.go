// Package snapshot implements the cross-stream alignment algorithm: given a
// guild's currently buffered speakers, compute one shared timeline and
// dispatch a concurrent per-speaker encode to a timestamped folder.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EasterCompany/dex-voice-recorder/audio"
	"github.com/EasterCompany/dex-voice-recorder/cache"
	"github.com/EasterCompany/dex-voice-recorder/codec"
	"github.com/EasterCompany/dex-voice-recorder/identity"
	"github.com/EasterCompany/dex-voice-recorder/log"
	"github.com/EasterCompany/dex-voice-recorder/recorder"
	"github.com/EasterCompany/dex-voice-recorder/sanitize"
)

// Metrics is the narrow counter set the snapshot writer reports on.
type Metrics interface {
	SnapshotWritten(guildID string, fileCount int)
}

// ManifestIndex is the read-through accelerator a snapshot writer can
// optionally populate after a successful save. Its absence (a nil field)
// never affects SaveSnapshot's own correctness.
type ManifestIndex interface {
	PutManifest(ctx context.Context, guildID string, timestamp int64, files []cache.ManifestFile) error
	DeleteManifest(ctx context.Context, guildID string, timestamp int64) error
}

// Extension is the file extension every encoded snapshot clip gets. The
// codec binary decides the actual container/codec from its own defaults;
// this only names the file.
const Extension = ".ogg"

// FileInfo describes one speaker's output file from a completed snapshot.
type FileInfo struct {
	UserID uint64
	Name   string
	Path   string
}

// Result is the outcome of one SaveSnapshot call.
type Result struct {
	GuildID   string
	Timestamp int64
	Dir       string
	Files     []FileInfo
}

// Writer ties together the registry, codec runner, and identity lookup
// needed to turn a guild's rolling buffers into a snapshot folder.
type Writer struct {
	Registry *recorder.Registry
	Codec    *codec.Runner
	Identity identity.Lookup
	RootDir  string
	Logger   log.Logger
	Metrics  Metrics

	// Cache is optional; when set, a successful SaveSnapshot also
	// populates it so an external lister can skip the filesystem walk.
	Cache ManifestIndex

	// nowFunc is overridable in tests so the folder timestamp is
	// deterministic.
	nowFunc func() time.Time
}

// NewWriter wires a snapshot writer from its collaborators.
func NewWriter(registry *recorder.Registry, codecRunner *codec.Runner, lookup identity.Lookup, rootDir string, logger log.Logger, metrics Metrics) *Writer {
	return &Writer{
		Registry: registry,
		Codec:    codecRunner,
		Identity: lookup,
		RootDir:  rootDir,
		Logger:   logger,
		Metrics:  metrics,
		nowFunc:  time.Now,
	}
}

func (w *Writer) now() time.Time {
	if w.nowFunc != nil {
		return w.nowFunc()
	}
	return time.Now()
}

type collected struct {
	userID  uint64
	ssrc    uint32
	segs    []recorder.VoiceSegment
}

// SaveSnapshot resolves the guild, collects every speaker with non-empty
// buffered audio under its own lock (never holding two locks across I/O),
// computes the common timeline, and dispatches one concurrent encode per
// speaker.
func (w *Writer) SaveSnapshot(ctx context.Context, guildID string) (*Result, error) {
	g, ok := w.Registry.Get(guildID)
	if !ok {
		return nil, recorder.ErrNoData
	}

	speakers, tick := g.SnapshotSpeakers()
	if len(speakers) == 0 {
		return nil, recorder.ErrNoData
	}

	items := make([]collected, 0, len(speakers))
	for ssrc, state := range speakers {
		segs := state.SnapshotCopy()
		if len(segs) == 0 {
			continue
		}
		items = append(items, collected{userID: state.UserID, ssrc: ssrc, segs: segs})
	}
	if len(items) == 0 {
		return nil, recorder.ErrNoData
	}

	// Deterministic dispatch order; doesn't affect output, only log/test
	// reproducibility.
	sort.Slice(items, func(i, j int) bool { return items[i].ssrc < items[j].ssrc })

	firstStart, lastEnd := commonTimeline(items, tick)

	ts := w.now().Unix()
	dir := filepath.Join(w.RootDir, guildID, strconv.FormatInt(ts, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create folder: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	files := make([]FileInfo, len(items))
	sampleCounts := make([]int, len(items))

	for i, item := range items {
		i, item := i, item
		group.Go(func() error {
			pcm := alignAndFill(item.segs, firstStart, lastEnd)

			name, err := w.resolveName(gctx, guildID, item.userID)
			if err != nil {
				w.Logger.Error("snapshot: identity lookup", &recorder.TransientError{Op: "resolve display name", Err: err})
			}

			filename := sanitize.Name(name) + Extension
			outPath := filepath.Join(dir, filename)

			if err := w.Codec.EncodePCMToFile(gctx, pcm, outPath, audio.SampleRate, audio.Channels); err != nil {
				return err
			}

			files[i] = FileInfo{UserID: item.userID, Name: filename, Path: outPath}
			sampleCounts[i] = len(pcm)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if w.Cache != nil {
		manifest := make([]cache.ManifestFile, len(files))
		for i, f := range files {
			manifest[i] = cache.ManifestFile{UserID: f.UserID, Name: f.Name, SampleCount: sampleCounts[i]}
		}
		if err := w.Cache.PutManifest(ctx, guildID, ts, manifest); err != nil {
			w.Logger.Error("snapshot: populate manifest cache", err)
		}
	}

	if w.Metrics != nil {
		w.Metrics.SnapshotWritten(guildID, len(files))
	}

	return &Result{GuildID: guildID, Timestamp: ts, Dir: dir, Files: files}, nil
}

func (w *Writer) resolveName(ctx context.Context, guildID string, userID uint64) (string, error) {
	if w.Identity == nil {
		return identity.Fallback(userID), nil
	}
	name, err := w.Identity.ResolveDisplayName(ctx, guildID, userID)
	if err != nil {
		return identity.Fallback(userID), err
	}
	return name, nil
}

// commonTimeline computes first_start = min(front.start_tick) and
// last_end = max(back.end_tick ?? tick_counter+1) across every collected
// speaker. End ticks are exclusive, and an open tail segment received
// audio in the current tick, so it ends at the tick after tick_counter.
func commonTimeline(items []collected, tickCounter uint64) (firstStart, lastEnd uint64) {
	firstStart = items[0].segs[0].StartTick
	for _, item := range items {
		if s := item.segs[0].StartTick; s < firstStart {
			firstStart = s
		}
		last := item.segs[len(item.segs)-1]
		end := last.EndTickOr(tickCounter + 1)
		if end > lastEnd {
			lastEnd = end
		}
	}
	return firstStart, lastEnd
}

// alignAndFill builds the final interleaved PCM buffer for one speaker:
// append a zero-length sentinel segment at lastEnd, then walk the segments
// in order emitting zero-filled gaps followed by each segment's samples.
// An open tail segment is treated as running up to lastEnd.
func alignAndFill(segs []recorder.VoiceSegment, firstStart, lastEnd uint64) []int16 {
	sentinel := recorder.VoiceSegment{StartTick: lastEnd, EndTick: &lastEnd, Samples: nil}
	all := append(append([]recorder.VoiceSegment(nil), segs...), sentinel)

	out := make([]int16, 0, len(all)*audio.SamplesPerTick)
	prevEnd := firstStart

	for _, seg := range all {
		var gapTicks uint64
		if seg.StartTick > prevEnd {
			gapTicks = seg.StartTick - prevEnd
		}
		out = append(out, make([]int16, gapTicks*audio.SamplesPerTick)...)
		out = append(out, seg.Samples...)
		prevEnd = seg.EndTickOr(lastEnd)
	}

	return out
}
