package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/EasterCompany/dex-voice-recorder/recorder"
)

// Entry describes one speaker's file within a listed snapshot.
type Entry struct {
	Name     string
	Duration float64 // seconds; 0 when unprobeable
	HasDur   bool
}

// Listing describes one snapshot folder.
type Listing struct {
	Timestamp int64
	Files     []Entry
}

// List enumerates every snapshot folder recorded for a guild, probing each
// file's duration via the codec runner.
func (w *Writer) List(ctx context.Context, guildID string) ([]Listing, error) {
	guildDir := filepath.Join(w.RootDir, guildID)

	entries, err := os.ReadDir(guildDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Listing
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, err := strconv.ParseInt(e.Name(), 10, 64)
		if err != nil {
			continue
		}

		dir := filepath.Join(guildDir, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		listing := Listing{Timestamp: ts}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			dur, ok := w.Codec.ProbeDuration(ctx, filepath.Join(dir, f.Name()))
			listing.Files = append(listing.Files, Entry{Name: f.Name(), Duration: dur, HasDur: ok})
		}
		out = append(out, listing)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// Delete removes an entire snapshot folder and everything in it.
func (w *Writer) Delete(guildID string, timestamp int64) error {
	dir := filepath.Join(w.RootDir, guildID, strconv.FormatInt(timestamp, 10))

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return recorder.ErrNotFound
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}

	if w.Cache != nil {
		if err := w.Cache.DeleteManifest(context.Background(), guildID, timestamp); err != nil {
			w.Logger.Error("snapshot: evict manifest cache", err)
		}
	}
	return nil
}
