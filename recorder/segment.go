package recorder

import "github.com/EasterCompany/dex-voice-recorder/audio"

// Re-exported for callers that only import recorder; the canonical
// definitions live in package audio so voicesession can share them without
// creating an import cycle back into recorder.
const (
	SampleRate            = audio.SampleRate
	Channels              = audio.Channels
	SamplesPerTickPerChan = audio.SamplesPerTickPerChan
	TicksPerSecond        = audio.TicksPerSecond
	SamplesPerTick        = audio.SamplesPerTick
)

// VoiceSegment is a maximal run of ticks during which one speaker was
// speaking, represented as a contiguous interleaved-stereo PCM buffer. A
// segment with EndTick == nil is open: more samples may still be appended.
type VoiceSegment struct {
	StartTick uint64
	EndTick   *uint64
	Samples   []int16
}

// Open reports whether the segment can still accept appended samples.
func (s *VoiceSegment) Open() bool {
	return s.EndTick == nil
}

// EndTickOr returns EndTick if closed, else the supplied fallback — used by
// the alignment algorithm when a segment is still open at snapshot time.
func (s *VoiceSegment) EndTickOr(fallback uint64) uint64 {
	if s.EndTick != nil {
		return *s.EndTick
	}
	return fallback
}

// clone returns a deep copy, safe to hand to a caller outside the owning
// speaker's lock.
func (s VoiceSegment) clone() VoiceSegment {
	out := VoiceSegment{StartTick: s.StartTick}
	if s.EndTick != nil {
		end := *s.EndTick
		out.EndTick = &end
	}
	if s.Samples != nil {
		out.Samples = append([]int16(nil), s.Samples...)
	}
	return out
}
