package recorder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendOpensThenExtendsTailSegment(t *testing.T) {
	s := NewSpeakerState(7, time.Now())

	s.Append([]int16{1, 1, 1, 1}, 10, time.Now())
	s.Append([]int16{2, 2}, 11, time.Now())

	segs := s.SnapshotCopy()
	require.Len(t, segs, 1)
	assert.True(t, segs[0].Open())
	assert.Equal(t, uint64(10), segs[0].StartTick)
	assert.Equal(t, []int16{1, 1, 1, 1, 2, 2}, segs[0].Samples)
}

func TestCloseThenAppendOpensNewSegment(t *testing.T) {
	s := NewSpeakerState(7, time.Now())

	s.Append([]int16{1, 1}, 10, time.Now())
	s.Close(11)
	s.Append([]int16{2, 2}, 15, time.Now())

	segs := s.SnapshotCopy()
	require.Len(t, segs, 2)
	assert.False(t, segs[0].Open())
	assert.Equal(t, uint64(11), *segs[0].EndTick)
	assert.True(t, segs[1].Open())
	assert.Equal(t, uint64(15), segs[1].StartTick)
}

// Single-open-segment invariant (property 2): at most one segment is ever
// open, and it is always the tail.
func TestAtMostOneOpenSegmentIsAlwaysTail(t *testing.T) {
	s := NewSpeakerState(7, time.Now())
	for tick := uint64(0); tick < 20; tick++ {
		s.Append([]int16{1, 1}, tick, time.Now())
		if tick%3 == 0 {
			s.Close(tick)
		}
	}

	segs := s.SnapshotCopy()
	openCount := 0
	for i, seg := range segs {
		if seg.Open() {
			openCount++
			assert.Equal(t, len(segs)-1, i, "open segment must be the tail")
		}
	}
	assert.LessOrEqual(t, openCount, 1)
}

func TestEvictExpiredDropsOldHeadSegments(t *testing.T) {
	s := NewSpeakerState(7, time.Now())
	// One segment per tick, ticks 0..199, windowSeconds=1 (=50 ticks).
	for tick := uint64(0); tick < 200; tick++ {
		s.Append([]int16{1, 1}, tick, time.Now())
		s.Close(tick + 1)
	}

	s.EvictExpired(200, 1)

	segs := s.SnapshotCopy()
	for _, seg := range segs {
		assert.GreaterOrEqual(t, seg.StartTick, uint64(150))
	}
}

func TestSnapshotCopyIsIndependentOfLiveBuffer(t *testing.T) {
	s := NewSpeakerState(7, time.Now())
	s.Append([]int16{1, 1}, 0, time.Now())

	copy1 := s.SnapshotCopy()
	s.Append([]int16{9, 9}, 0, time.Now())

	assert.Equal(t, []int16{1, 1}, copy1[0].Samples)
}

func TestHasDataAndIdleSince(t *testing.T) {
	now := time.Now()
	s := NewSpeakerState(7, now)
	assert.False(t, s.HasData())

	s.Append([]int16{1}, 0, now)
	assert.True(t, s.HasData())

	later := now.Add(5 * time.Second)
	assert.InDelta(t, 5*time.Second, s.IdleSince(later), float64(50*time.Millisecond))
}
