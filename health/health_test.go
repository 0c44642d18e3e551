package health

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EasterCompany/dex-voice-recorder/log"
	"github.com/EasterCompany/dex-voice-recorder/recorder"
)

func TestBoundMatchesRollingBufferFormula(t *testing.T) {
	// 1 speaker, 60s window, 50 ticks/sec, 1920 samples/tick, 2 bytes/sample.
	got := Bound(1, 60)
	want := uint64(60 * 50 * 1920 * 2)
	assert.Equal(t, want, got)
}

func TestBoundScalesWithSpeakerCount(t *testing.T) {
	one := Bound(1, 60)
	three := Bound(3, 60)
	assert.Equal(t, one*3, three)
}

func TestReporterSamplesOwnProcess(t *testing.T) {
	reg := recorder.NewRegistry(recorder.GCConfig{RecordingWindowSeconds: 60, UserIdleSeconds: 3600, UserGCPeriodSeconds: 7200}, noopLogger{}, nil)

	r, err := NewReporter(reg, 60, 0, noopLogger{}, nil, int32(os.Getpid()))
	require.NoError(t, err)

	rep, err := r.sample()
	require.NoError(t, err)
	assert.Equal(t, 0, rep.ActiveSpeakers)
	assert.Greater(t, rep.RSSBytes, uint64(0))
}

type noopLogger struct{}

func (noopLogger) Info(string)                    {}
func (noopLogger) Error(string, error)             {}
func (noopLogger) Fatal(string, error)             {}
func (noopLogger) WithOperation(string) log.Logger { return noopLogger{} }
