// Package voicesession defines the collaborator contract the recording
// engine consumes: a source of decoded voice events and a speaker→user
// mapping. The engine never depends on a concrete voice transport directly;
// it depends on these interfaces, and a transport-specific adapter (see
// DiscordAdapter) satisfies them.
package voicesession

// DecodedVoice carries one speaker's decoded PCM for a single tick. PCM is
// nil when the underlying decoder is disabled or a frame failed to decode
// — callers must log that condition rather than treat it as silence.
type DecodedVoice struct {
	PCM []int16
}

// VoiceTick is the periodic event carrying every speaker that produced (or
// attempted to produce) audio during one 20ms frame.
type VoiceTick struct {
	Speaking map[uint32]DecodedVoice
}

// SpeakingStateHandler reacts to a speaker announcing or re-announcing
// itself on an SSRC.
type SpeakingStateHandler interface {
	HandleSpeakingStateUpdate(ssrc uint32, userID *uint64)
}

// VoiceTickHandler reacts to one tick's worth of decoded audio across every
// currently speaking SSRC.
type VoiceTickHandler interface {
	HandleVoiceTick(tick VoiceTick)
}

// SpeakingEdgeHandler reacts to edge-triggered speaking transitions, when
// the transport exposes them. Optional: a transport that only emits ticks
// never calls this.
type SpeakingEdgeHandler interface {
	HandleSpeakingEdge(ssrc uint32, speaking bool)
}

// EventHandler is the full capability set a GuildRecorder implements. The
// same value is registered with a VoiceSession under all three hooks; event
// dispatch is tagged-variant, not subclass polymorphism.
type EventHandler interface {
	SpeakingStateHandler
	VoiceTickHandler
	SpeakingEdgeHandler
}

// VoiceSession is one active voice connection to a single guild's channel.
// It is the engine's only dependency on the surrounding chat platform.
type VoiceSession struct {
	GuildID string

	// Install attaches h to this session's speaking-state, tick, and (if
	// supported) edge hooks. Calling Install more than once with the same
	// handler must not duplicate dispatch — adapters are expected to track
	// whether a given handler is already installed.
	Install func(h EventHandler)
}
