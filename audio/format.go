// Package audio holds the fixed PCM format constants shared by every layer
// of the recording engine, from the transport adapter down to the codec
// runner. None of these vary at runtime.
package audio

const (
	SampleRate            = 48000
	Channels              = 2
	SamplesPerTickPerChan = 960
	TicksPerSecond        = 50

	// SamplesPerTick is the number of interleaved int16 samples one tick
	// contributes across all channels.
	SamplesPerTick = SamplesPerTickPerChan * Channels
)
