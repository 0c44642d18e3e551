package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EasterCompany/dex-voice-recorder/log"
	"github.com/EasterCompany/dex-voice-recorder/voicesession"
)

// noopLogger is a log.Logger that records Error calls for assertions and
// discards everything else.
type noopLogger struct {
	errors []string
}

func (l *noopLogger) Info(string)                          {}
func (l *noopLogger) Error(context string, err error)      { l.errors = append(l.errors, context) }
func (l *noopLogger) Fatal(context string, err error)      {}
func (l *noopLogger) WithOperation(name string) log.Logger { return l }

func defaultGC() GCConfig {
	return GCConfig{RecordingWindowSeconds: 60, UserIdleSeconds: 3600, UserGCPeriodSeconds: 7200}
}

func uptr(v uint64) *uint64 { return &v }

// E1: single speaker, contiguous speech.
func TestE1SingleSpeakerContiguousSpeech(t *testing.T) {
	g := NewGuildRecorder("g1", defaultGC(), &noopLogger{}, nil)
	g.HandleSpeakingStateUpdate(101, uptr(7))

	ones := make([]int16, SamplesPerTick)
	for i := range ones {
		ones[i] = 1
	}

	for i := 0; i < 10; i++ {
		g.HandleVoiceTick(voicesession.VoiceTick{
			Speaking: map[uint32]voicesession.DecodedVoice{101: {PCM: ones}},
		})
	}

	speakers, tick := g.SnapshotSpeakers()
	require.Len(t, speakers, 1)
	assert.Equal(t, uint64(10), tick)

	state := speakers[101]
	segs := state.SnapshotCopy()
	require.Len(t, segs, 1)
	assert.Len(t, segs[0].Samples, 19200)
	for _, v := range segs[0].Samples {
		assert.Equal(t, int16(1), v)
	}
}

// E2: two speakers with a gap between them.
func TestE2TwoSpeakersWithGap(t *testing.T) {
	g := NewGuildRecorder("g2", defaultGC(), &noopLogger{}, nil)
	g.HandleSpeakingStateUpdate(201, uptr(1))
	g.HandleSpeakingStateUpdate(202, uptr(2))

	ones := make([]int16, SamplesPerTick)
	for i := range ones {
		ones[i] = 1
	}
	twos := make([]int16, SamplesPerTick)
	for i := range twos {
		twos[i] = 2
	}

	// Tick 1: only A speaks.
	g.HandleVoiceTick(voicesession.VoiceTick{Speaking: map[uint32]voicesession.DecodedVoice{201: {PCM: ones}}})
	// Ticks 2-5: silence from both.
	for i := 0; i < 4; i++ {
		g.HandleVoiceTick(voicesession.VoiceTick{Speaking: map[uint32]voicesession.DecodedVoice{}})
	}
	// Tick 6: only B speaks.
	g.HandleVoiceTick(voicesession.VoiceTick{Speaking: map[uint32]voicesession.DecodedVoice{202: {PCM: twos}}})

	speakers, tick := g.SnapshotSpeakers()
	require.Len(t, speakers, 2)
	assert.Equal(t, uint64(6), tick)

	segsA := speakers[201].SnapshotCopy()
	segsB := speakers[202].SnapshotCopy()

	require.Len(t, segsA, 1)
	assert.Equal(t, uint64(1), segsA[0].StartTick)
	require.NotNil(t, segsA[0].EndTick)
	assert.Equal(t, uint64(2), *segsA[0].EndTick)
	assert.Len(t, segsA[0].Samples, SamplesPerTick)

	require.Len(t, segsB, 1)
	assert.Equal(t, uint64(6), segsB[0].StartTick)
	assert.True(t, segsB[0].Open())
	assert.Len(t, segsB[0].Samples, SamplesPerTick)
}

// E3: eviction with a 1-second window keeps roughly the last 50 ticks.
func TestE3Eviction(t *testing.T) {
	gc := GCConfig{RecordingWindowSeconds: 1, UserIdleSeconds: 3600, UserGCPeriodSeconds: 7200}
	g := NewGuildRecorder("g3", gc, &noopLogger{}, nil)
	g.HandleSpeakingStateUpdate(301, uptr(1))

	ones := make([]int16, SamplesPerTick)
	for i := range ones {
		ones[i] = 1
	}

	for i := 0; i < 200; i++ {
		g.HandleVoiceTick(voicesession.VoiceTick{Speaking: map[uint32]voicesession.DecodedVoice{301: {PCM: ones}}})
	}

	speakers, _ := g.SnapshotSpeakers()
	require.Len(t, speakers, 1)
	segs := speakers[301].SnapshotCopy()

	total := 0
	for _, seg := range segs {
		total += len(seg.Samples)
		for _, v := range seg.Samples {
			assert.Equal(t, int16(1), v)
		}
	}
	assert.LessOrEqual(t, total, 51*SamplesPerTick)
}

// E5: an idle speaker is reclaimed by GC within idle+period seconds.
func TestE5UserGCReclaim(t *testing.T) {
	gc := GCConfig{RecordingWindowSeconds: 60, UserIdleSeconds: 1, UserGCPeriodSeconds: 1}
	g := NewGuildRecorder("g5", gc, &noopLogger{}, nil)
	g.HandleSpeakingStateUpdate(501, uptr(9))

	_, ok := g.Get(501)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := g.Get(501)
		return !ok
	}, 4*time.Second, 50*time.Millisecond)
}

// Get exposes a read-only lookup used only by tests.
func (g *GuildRecorder) Get(ssrc uint32) (*SpeakerState, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.speakers[ssrc]
	return s, ok
}

// E6: decoder-off (nil PCM) logs an error and does not change the buffer.
func TestE6DecoderOffLogsAndLeavesBufferUnchanged(t *testing.T) {
	logger := &noopLogger{}
	g := NewGuildRecorder("g6", defaultGC(), logger, nil)
	g.HandleSpeakingStateUpdate(601, uptr(3))

	g.HandleVoiceTick(voicesession.VoiceTick{
		Speaking: map[uint32]voicesession.DecodedVoice{601: {PCM: []int16{1, 1}}},
	})
	g.HandleVoiceTick(voicesession.VoiceTick{
		Speaking: map[uint32]voicesession.DecodedVoice{601: {PCM: nil}},
	})

	speakers, _ := g.SnapshotSpeakers()
	segs := speakers[601].SnapshotCopy()
	require.Len(t, segs, 1)
	assert.Equal(t, []int16{1, 1}, segs[0].Samples)
	assert.Len(t, logger.errors, 1)
}

func TestUnknownSSRCOnVoiceTickIsDroppedSilently(t *testing.T) {
	g := NewGuildRecorder("g7", defaultGC(), &noopLogger{}, nil)
	assert.NotPanics(t, func() {
		g.HandleVoiceTick(voicesession.VoiceTick{
			Speaking: map[uint32]voicesession.DecodedVoice{999: {PCM: []int16{1, 1}}},
		})
	})
	_, ok := g.Get(999)
	assert.False(t, ok)
}

func TestReannouncementOfKnownSSRCIsNoOp(t *testing.T) {
	g := NewGuildRecorder("g8", defaultGC(), &noopLogger{}, nil)
	g.HandleSpeakingStateUpdate(801, uptr(1))
	g.HandleSpeakingStateUpdate(801, uptr(2))

	state, ok := g.Get(801)
	require.True(t, ok)
	assert.Equal(t, uint64(1), state.UserID)
}
