// Package session constructs the Discord session the recording engine
// rides on.
package session

import (
	"github.com/bwmarrin/discordgo"
)

// New creates a Discord session carrying only the intents the recording
// engine needs: guild and voice-state events to track who is speaking
// where, nothing from the message surface.
func New(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	s.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildVoiceStates

	return s, nil
}
