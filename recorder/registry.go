package recorder

import (
	"sync"

	"github.com/EasterCompany/dex-voice-recorder/log"
	"github.com/EasterCompany/dex-voice-recorder/voicesession"
)

// Registry is the process-wide guild_id → GuildRecorder map. It is the only
// public handle external callers hold; nobody outside this package keeps a
// raw *GuildRecorder.
type Registry struct {
	gc      GCConfig
	logger  log.Logger
	metrics Metrics

	mu     sync.RWMutex
	guilds map[string]*GuildRecorder
}

// NewRegistry creates an empty registry. gc configures every GuildRecorder
// it subsequently creates.
func NewRegistry(gc GCConfig, logger log.Logger, metrics Metrics) *Registry {
	return &Registry{
		gc:      gc,
		logger:  logger,
		metrics: metrics,
		guilds:  make(map[string]*GuildRecorder),
	}
}

// Get returns the GuildRecorder for guildID, if one has been created.
func (r *Registry) Get(guildID string) (*GuildRecorder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guilds[guildID]
	return g, ok
}

// getOrCreate returns the existing recorder for guildID, creating one under
// the write lock if this is the first session seen for that guild.
func (r *Registry) getOrCreate(guildID string) *GuildRecorder {
	r.mu.RLock()
	g, ok := r.guilds[guildID]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok = r.guilds[guildID]; ok {
		return g
	}
	g = NewGuildRecorder(guildID, r.gc, r.logger, r.metrics)
	r.guilds[guildID] = g
	return g
}

// Install attaches the guild's recorder to session as the handler for all
// three voice event kinds. Installing twice for the same session is
// idempotent by construction: VoiceSession.Install is expected to dedupe on
// its side, and getOrCreate never replaces an existing recorder.
func (r *Registry) Install(session voicesession.VoiceSession) *GuildRecorder {
	g := r.getOrCreate(session.GuildID)
	session.Install(g)
	return g
}

// Remove drops a guild's recorder entirely, e.g. when its voice session
// ends. Any in-flight GC coroutines for its speakers are left to expire on
// their own; their speaker entries are no longer reachable and the whole
// GuildRecorder becomes eligible for collection once those coroutines exit.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.guilds, guildID)
}

// GuildIDs lists every guild the registry currently tracks.
func (r *Registry) GuildIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.guilds))
	for id := range r.guilds {
		ids = append(ids, id)
	}
	return ids
}
