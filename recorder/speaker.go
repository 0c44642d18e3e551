package recorder

import (
	"sync"
	"time"
)

// SpeakerState is the per-SSRC record a guild's ingestion loop drives: a
// FIFO of voice segments plus the wall-clock timestamp used only for GC
// decisions. At most one segment is open at a time, and if one is open it
// is always the tail.
//
// Every exported method acquires the internal mutex for its own duration
// and never holds it across I/O — the lock protects the in-memory buffer
// only.
type SpeakerState struct {
	UserID       uint64
	LastActivity time.Time

	mu       sync.Mutex
	segments []VoiceSegment
}

// NewSpeakerState creates an empty speaker entry for a newly announced SSRC.
func NewSpeakerState(userID uint64, now time.Time) *SpeakerState {
	return &SpeakerState{UserID: userID, LastActivity: now}
}

// Append adds samples to the open tail segment, opening a new one at tick
// if the tail is closed or the buffer is empty. LastActivity is bumped to
// now regardless.
func (s *SpeakerState) Append(samples []int16, tick uint64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastActivity = now

	if n := len(s.segments); n > 0 && s.segments[n-1].Open() {
		tail := &s.segments[n-1]
		tail.Samples = append(tail.Samples, samples...)
		return
	}

	seg := VoiceSegment{StartTick: tick}
	seg.Samples = append(seg.Samples, samples...)
	s.segments = append(s.segments, seg)
}

// Close ends the open tail segment at tick, if any. A no-op when the tail
// is already closed or there is no tail.
func (s *SpeakerState) Close(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.segments); n > 0 && s.segments[n-1].Open() {
		end := tick
		s.segments[n-1].EndTick = &end
	}
}

// EvictExpired drops head segments whose start tick is older than
// windowSeconds of history relative to nowTick.
func (s *SpeakerState) EvictExpired(nowTick uint64, windowSeconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxAgeTicks := uint64(windowSeconds) * TicksPerSecond
	if nowTick < maxAgeTicks {
		return
	}
	cutoff := nowTick - maxAgeTicks

	i := 0
	for i < len(s.segments) && s.segments[i].StartTick < cutoff {
		i++
	}
	if i == 0 {
		return
	}
	s.segments = s.segments[i:]
}

// SnapshotCopy returns a deep copy of the current segment queue, safe for
// the snapshot writer to read without holding the speaker's lock.
func (s *SpeakerState) SnapshotCopy() []VoiceSegment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]VoiceSegment, len(s.segments))
	for i, seg := range s.segments {
		out[i] = seg.clone()
	}
	return out
}

// HasData reports whether the speaker currently holds any buffered audio.
func (s *SpeakerState) HasData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments) > 0
}

// IdleSince returns how long it has been since the speaker last produced
// audio, as observed at now.
func (s *SpeakerState) IdleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.LastActivity)
}
