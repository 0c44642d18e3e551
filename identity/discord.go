package identity

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// DiscordLookup resolves display names through a discordgo session,
// preferring a guild nickname, then the account's global display name,
// then its username — the same fallback chain the platform adapter used
// for formatting voice and transcription events.
type DiscordLookup struct {
	Session *discordgo.Session
}

// NewDiscordLookup wraps an active session.
func NewDiscordLookup(session *discordgo.Session) *DiscordLookup {
	return &DiscordLookup{Session: session}
}

func (d *DiscordLookup) ResolveDisplayName(ctx context.Context, guildID string, userID uint64) (string, error) {
	if d.Session == nil {
		return "", ErrNotFound
	}

	member, err := d.Session.GuildMember(guildID, strconv.FormatUint(userID, 10))
	if err != nil || member == nil {
		return "", ErrNotFound
	}

	if member.Nick != "" {
		return member.Nick, nil
	}
	if member.User != nil {
		if member.User.GlobalName != "" {
			return member.User.GlobalName, nil
		}
		if member.User.Username != "" {
			return member.User.Username, nil
		}
	}

	return "", ErrNotFound
}
