// Package identity defines the display-name resolution collaborator used
// only by the snapshot writer, plus a discordgo-backed implementation
// grounded in the platform adapter's own nickname-fallback chain.
package identity

import (
	"context"
	"errors"
	"strconv"
)

// ErrNotFound is returned when a user id cannot be resolved to any display
// name at all (the platform has no record of them).
var ErrNotFound = errors.New("identity: not found")

// Lookup resolves a user id to a human-readable display name, scoped to one
// guild (the same user id can have a per-guild nickname).
type Lookup interface {
	ResolveDisplayName(ctx context.Context, guildID string, userID uint64) (string, error)
}

// Fallback returns a usable name even when lookup fails: the decimal user
// id. Callers should prefer this over propagating the lookup error, since
// a transient identity failure must not abort a snapshot.
func Fallback(userID uint64) string {
	return strconv.FormatUint(userID, 10)
}
