// Package cache provides an optional Redis-backed index of snapshot
// manifests: for each guild, the recent snapshot timestamps and each
// file's sample count. It exists purely to save an external lister a
// filesystem walk; nothing in snapshot or mixer depends on it for
// correctness, and every method degrades to a plain error a caller can
// choose to ignore.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dex-voice-recorder:"

// ManifestFile is one speaker's entry within a cached manifest.
type ManifestFile struct {
	UserID      uint64 `json:"user_id"`
	Name        string `json:"name"`
	SampleCount int    `json:"sample_count"`
}

// Index wraps a Redis client with the snapshot-manifest access pattern.
type Index struct {
	rdb *redis.Client
}

// New connects to addr and verifies the connection with a Ping. A caller
// with no RedisAddr configured should simply not construct an Index.
func New(ctx context.Context, addr string) (*Index, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", addr, err)
	}
	return &Index{rdb: rdb}, nil
}

func manifestKey(guildID string, timestamp int64) string {
	return fmt.Sprintf("%ssnapshot:%s:%d", keyPrefix, guildID, timestamp)
}

func timestampsKey(guildID string) string {
	return fmt.Sprintf("%ssnapshot:%s:index", keyPrefix, guildID)
}

// PutManifest records one snapshot's file list and adds its timestamp to
// the guild's recency index.
func (ix *Index) PutManifest(ctx context.Context, guildID string, timestamp int64, files []ManifestFile) error {
	payload, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("cache: marshal manifest: %w", err)
	}

	pipe := ix.rdb.Pipeline()
	pipe.Set(ctx, manifestKey(guildID, timestamp), payload, 0)
	pipe.ZAdd(ctx, timestampsKey(guildID), redis.Z{Score: float64(timestamp), Member: timestamp})
	_, err = pipe.Exec(ctx)
	return err
}

// ListTimestamps returns every snapshot timestamp indexed for a guild,
// most recent first.
func (ix *Index) ListTimestamps(ctx context.Context, guildID string) ([]int64, error) {
	raw, err := ix.rdb.ZRevRange(ctx, timestampsKey(guildID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		var ts int64
		if _, err := fmt.Sscanf(v, "%d", &ts); err == nil {
			out = append(out, ts)
		}
	}
	return out, nil
}

// GetManifest returns the cached file list for one snapshot, and false if
// nothing is cached for it.
func (ix *Index) GetManifest(ctx context.Context, guildID string, timestamp int64) ([]ManifestFile, bool, error) {
	raw, err := ix.rdb.Get(ctx, manifestKey(guildID, timestamp)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var files []ManifestFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, false, fmt.Errorf("cache: unmarshal manifest: %w", err)
	}
	return files, true, nil
}

// DeleteManifest removes one snapshot's cached entry, matching a
// filesystem-level snapshot deletion.
func (ix *Index) DeleteManifest(ctx context.Context, guildID string, timestamp int64) error {
	pipe := ix.rdb.Pipeline()
	pipe.Del(ctx, manifestKey(guildID, timestamp))
	pipe.ZRem(ctx, timestampsKey(guildID), timestamp)
	_, err := pipe.Exec(ctx)
	return err
}

// Ping verifies the underlying connection is alive.
func (ix *Index) Ping(ctx context.Context) error {
	return ix.rdb.Ping(ctx).Err()
}
