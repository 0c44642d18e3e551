package recorder

import (
	"sync"
	"time"

	"github.com/EasterCompany/dex-voice-recorder/log"
	"github.com/EasterCompany/dex-voice-recorder/voicesession"
)

// Metrics is the narrow set of counters the GuildRecorder reports on. A nil
// Metrics is valid; every call is a no-op in that case.
type Metrics interface {
	TickProcessed(guildID string)
	SpeakerEvicted(guildID string)
	SpeakerRegistered(guildID string)
	DecodeErrorLogged(guildID string)
}

// Clock abstracts time.Now for activity timestamps and idle checks. The GC
// wake-up interval itself runs on a real time.Ticker.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// GCConfig controls the eviction coroutines a GuildRecorder spawns.
type GCConfig struct {
	RecordingWindowSeconds int
	UserIdleSeconds        int
	UserGCPeriodSeconds    int
}

// GuildRecorder is the per-voice-session event handler: it owns the speaker
// table, drives the per-SSRC state machine, and fires the GC coroutine for
// each newly announced speaker. It implements voicesession.EventHandler.
type GuildRecorder struct {
	GuildID string

	gc      GCConfig
	logger  log.Logger
	metrics Metrics
	clock   Clock

	mu          sync.RWMutex
	speakers    map[uint32]*SpeakerState
	gcCancel    map[uint32]chan struct{}
	tickCounter uint64
}

// NewGuildRecorder creates an empty recorder for one guild.
func NewGuildRecorder(guildID string, gc GCConfig, logger log.Logger, metrics Metrics) *GuildRecorder {
	return &GuildRecorder{
		GuildID:  guildID,
		gc:       gc,
		logger:   logger,
		metrics:  metrics,
		clock:    realClock{},
		speakers: make(map[uint32]*SpeakerState),
		gcCancel: make(map[uint32]chan struct{}),
	}
}

func (g *GuildRecorder) now() time.Time { return g.clock.Now() }

// HandleSpeakingStateUpdate implements voicesession.SpeakingStateHandler.
// A speaker entry is created lazily, only on the first announcement of a
// previously unknown SSRC that carries a user id. Re-announcement of a
// known SSRC is a no-op: the SSRC is the stable key within a session.
func (g *GuildRecorder) HandleSpeakingStateUpdate(ssrc uint32, userID *uint64) {
	if userID == nil {
		return
	}

	g.mu.Lock()
	if _, exists := g.speakers[ssrc]; exists {
		g.mu.Unlock()
		return
	}
	state := NewSpeakerState(*userID, g.now())
	g.speakers[ssrc] = state
	stop := make(chan struct{})
	g.gcCancel[ssrc] = stop
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.SpeakerRegistered(g.GuildID)
	}

	go g.speakerGC(ssrc, stop)
}

// HandleVoiceTick implements voicesession.VoiceTickHandler. Every speaker
// present in tick.Speaking gets its decoded PCM appended; every other known
// speaker has its tail segment closed and its buffer swept for expired
// segments.
func (g *GuildRecorder) HandleVoiceTick(tick voicesession.VoiceTick) {
	g.mu.Lock()
	g.tickCounter++
	now := g.tickCounter
	// Snapshot the speaker set under the write lock that protects the
	// counter, then release before any per-speaker work or I/O.
	speakers := make(map[uint32]*SpeakerState, len(g.speakers))
	for ssrc, st := range g.speakers {
		speakers[ssrc] = st
	}
	g.mu.Unlock()

	nowWall := g.now()

	for ssrc, decoded := range tick.Speaking {
		state, ok := speakers[ssrc]
		if !ok {
			// Unknown speaker: arrived before SpeakingStateUpdate, or the
			// SSRC rebound. Drop silently — it is anonymous and unsavable.
			continue
		}
		if decoded.PCM == nil {
			g.logger.Error("recorder: voice tick with no decoded pcm", errDecoderOff(ssrc))
			if g.metrics != nil {
				g.metrics.DecodeErrorLogged(g.GuildID)
			}
			continue
		}
		state.Append(decoded.PCM, now, nowWall)
	}

	for ssrc, state := range speakers {
		if _, spoke := tick.Speaking[ssrc]; spoke {
			continue
		}
		state.Close(now)
		state.EvictExpired(now, g.gc.RecordingWindowSeconds)
	}

	if g.metrics != nil {
		g.metrics.TickProcessed(g.GuildID)
	}
}

// HandleSpeakingEdge implements voicesession.SpeakingEdgeHandler. On
// "stopped" the tail segment closes and expired segments are swept; on
// "started" there is nothing to do because Append opens a fresh segment
// when the tail is already closed.
func (g *GuildRecorder) HandleSpeakingEdge(ssrc uint32, speaking bool) {
	if speaking {
		return
	}
	g.mu.RLock()
	state, ok := g.speakers[ssrc]
	tick := g.tickCounter
	g.mu.RUnlock()
	if !ok {
		return
	}
	state.Close(tick)
	state.EvictExpired(tick, g.gc.RecordingWindowSeconds)
}

// SnapshotSpeakers returns every speaker with non-empty buffered audio,
// after running EvictExpired on each, for use by the Snapshot Writer. The
// speaker table's read lock is held only long enough to copy the map of
// pointers; eviction and data collection happen outside that lock.
func (g *GuildRecorder) SnapshotSpeakers() (map[uint32]*SpeakerState, uint64) {
	g.mu.RLock()
	speakers := make(map[uint32]*SpeakerState, len(g.speakers))
	for ssrc, st := range g.speakers {
		speakers[ssrc] = st
	}
	tick := g.tickCounter
	g.mu.RUnlock()

	out := make(map[uint32]*SpeakerState)
	for ssrc, state := range speakers {
		state.EvictExpired(tick, g.gc.RecordingWindowSeconds)
		if state.HasData() {
			out[ssrc] = state
		}
	}
	return out, tick
}

// TickCounter returns the current tick count, the authoritative timeline.
func (g *GuildRecorder) TickCounter() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tickCounter
}

// SpeakerCount reports how many SSRCs are currently tracked, used by the
// health reporter's bounds check.
func (g *GuildRecorder) SpeakerCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.speakers)
}

func (g *GuildRecorder) removeSpeaker(ssrc uint32) {
	g.mu.Lock()
	delete(g.speakers, ssrc)
	delete(g.gcCancel, ssrc)
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.SpeakerEvicted(g.GuildID)
	}
}

// speakerGC is the per-SSRC idle-eviction coroutine. It wakes every
// UserGCPeriodSeconds and removes the speaker once it has been idle for
// longer than UserIdleSeconds. It terminates promptly if the speaker is
// removed by another path (stop channel closed).
func (g *GuildRecorder) speakerGC(ssrc uint32, stop chan struct{}) {
	period := time.Duration(g.gc.UserGCPeriodSeconds) * time.Second
	idleLimit := time.Duration(g.gc.UserIdleSeconds) * time.Second

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			g.mu.RLock()
			state, ok := g.speakers[ssrc]
			g.mu.RUnlock()
			if !ok {
				return
			}
			if state.IdleSince(g.now()) > idleLimit {
				g.removeSpeaker(ssrc)
				return
			}
		}
	}
}

type decoderOffError struct{ ssrc uint32 }

func (e decoderOffError) Error() string {
	return "decoder produced no pcm for ssrc"
}

func errDecoderOff(ssrc uint32) error { return decoderOffError{ssrc: ssrc} }
