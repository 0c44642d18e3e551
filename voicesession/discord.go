package voicesession

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pion/rtp"
	"layeh.com/gopus"

	"github.com/EasterCompany/dex-voice-recorder/audio"
	"github.com/EasterCompany/dex-voice-recorder/log"
)

// rtpPacketPool reuses *rtp.Packet allocations across the hot receive loop,
// the same tactic the platform adapter used for its own packet reconstruction.
var rtpPacketPool = sync.Pool{
	New: func() interface{} {
		return &rtp.Packet{}
	},
}

// DiscordAdapter bridges a discordgo voice connection's per-packet Opus
// stream into the engine's tick-shaped VoiceTick events. discordgo exposes
// audio as a channel of individually timestamped Opus packets rather than
// songbird's pre-aggregated per-tick callback, so this adapter buckets
// decoded PCM into synthetic 20ms windows itself.
type DiscordAdapter struct {
	guildID string
	vc      *discordgo.VoiceConnection
	logger  log.Logger

	mu        sync.Mutex
	handler   EventHandler
	installed bool
	decoders  map[uint32]*gopus.Decoder
	lastSeq   map[uint32]uint16
	pending   map[uint32][]int16

	cancel context.CancelFunc
}

// NewDiscordAdapter wraps an established voice connection for one guild.
func NewDiscordAdapter(guildID string, vc *discordgo.VoiceConnection, logger log.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		guildID:  guildID,
		vc:       vc,
		logger:   logger,
		decoders: make(map[uint32]*gopus.Decoder),
		lastSeq:  make(map[uint32]uint16),
		pending:  make(map[uint32][]int16),
	}
}

// Session returns the VoiceSession value for registration with the
// Registry. Install is idempotent: calling it more than once with the same
// or a different handler only starts the receive loop once.
func (a *DiscordAdapter) Session() VoiceSession {
	return VoiceSession{GuildID: a.guildID, Install: a.install}
}

func (a *DiscordAdapter) install(h EventHandler) {
	a.mu.Lock()
	if a.installed {
		a.handler = h
		a.mu.Unlock()
		return
	}
	a.installed = true
	a.handler = h
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	go a.receiveLoop(ctx)
	go a.tickLoop(ctx)
}

// Close stops the receive and tick loops.
func (a *DiscordAdapter) Close() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// HandleDiscordSpeakingUpdate is called from the discordgo
// VoiceSpeakingUpdate event handler with the SSRC-to-user mapping it
// carries.
func (a *DiscordAdapter) HandleDiscordSpeakingUpdate(ssrc uint32, userID uint64) {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h == nil {
		return
	}
	uid := userID
	h.HandleSpeakingStateUpdate(ssrc, &uid)
}

// receiveLoop drains the voice connection's Opus channel, decodes each
// packet, and accumulates samples into the pending per-SSRC buffer for the
// next tick boundary to consume.
func (a *DiscordAdapter) receiveLoop(ctx context.Context) {
	if a.vc == nil || a.vc.OpusRecv == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-a.vc.OpusRecv:
			if !ok {
				return
			}
			a.handlePacket(p)
		}
	}
}

func (a *DiscordAdapter) handlePacket(p *discordgo.Packet) {
	if p == nil {
		return
	}

	pkt := rtpPacketPool.Get().(*rtp.Packet)
	defer rtpPacketPool.Put(pkt)
	*pkt = rtp.Packet{}
	pkt.SSRC = p.SSRC
	pkt.SequenceNumber = p.Sequence
	pkt.Timestamp = p.Timestamp
	pkt.Payload = p.Opus

	a.mu.Lock()
	prevSeq, seen := a.lastSeq[p.SSRC]
	a.lastSeq[p.SSRC] = p.Sequence
	decoder := a.decoders[p.SSRC]
	if decoder == nil {
		var err error
		decoder, err = gopus.NewDecoder(audio.SampleRate, audio.Channels)
		if err != nil {
			a.mu.Unlock()
			a.logger.Error("voicesession: create opus decoder", err)
			return
		}
		a.decoders[p.SSRC] = decoder
	}
	a.mu.Unlock()

	// A gap wider than one packet indicates loss. The tick timeline stays
	// authoritative either way; this is logged only, never acted on.
	if seen && p.Sequence != prevSeq+1 {
		a.logger.Info("voicesession: rtp sequence gap detected, continuing on tick-only timeline")
	}

	pcm, err := decoder.Decode(p.Opus, audio.SamplesPerTickPerChan, false)
	if err != nil {
		a.logger.Error("voicesession: opus decode", err)
		return
	}

	a.mu.Lock()
	a.pending[p.SSRC] = append(a.pending[p.SSRC], pcm...)
	a.mu.Unlock()
}

// tickLoop fires every 20ms, draining whatever samples have accumulated per
// SSRC into one VoiceTick and handing it to the installed handler.
func (a *DiscordAdapter) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(1000/audio.TicksPerSecond) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.emitTick()
		}
	}
}

func (a *DiscordAdapter) emitTick() {
	a.mu.Lock()
	h := a.handler
	if len(a.pending) == 0 {
		a.mu.Unlock()
		if h != nil {
			h.HandleVoiceTick(VoiceTick{Speaking: map[uint32]DecodedVoice{}})
		}
		return
	}
	speaking := make(map[uint32]DecodedVoice, len(a.pending))
	for ssrc, samples := range a.pending {
		speaking[ssrc] = DecodedVoice{PCM: samples}
	}
	a.pending = make(map[uint32][]int16)
	a.mu.Unlock()

	if h != nil {
		h.HandleVoiceTick(VoiceTick{Speaking: speaking})
	}
}
