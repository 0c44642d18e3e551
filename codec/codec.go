// Package codec isolates all interaction with the external audio
// transcoder behind three operations: encoding raw PCM to a file, mixing a
// set of files with an in-codec filter, and probing a file's duration.
// Keeping this out-of-process mirrors the platform adapter's own
// os/exec-based transcription shellout (core.go's `exec.Command("dex",
// "whisper", ...)`) and the crossfade session's kill-on-cancel child
// process pattern.
package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/EasterCompany/dex-voice-recorder/recorder"
)

// Runner spawns the configured codec binary. The zero value is invalid; use
// NewRunner.
type Runner struct {
	Binary string
}

// NewRunner wraps the path to (or PATH-resolvable name of) the codec
// binary, e.g. "ffmpeg".
func NewRunner(binary string) *Runner {
	return &Runner{Binary: binary}
}

const stderrTailLimit = 4096

// EncodePCMToFile spawns the codec with raw little-endian PCM input
// parameters matching sampleRate/channels, streams samples to its stdin in
// order, and waits for exit. The child is killed if ctx is cancelled before
// it exits.
func (r *Runner) EncodePCMToFile(ctx context.Context, samples []int16, outPath string, sampleRate, channels int) error {
	args := []string{
		"-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		outPath,
	}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Cancel = func() error { return cmd.Process.Kill() }

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &recorder.CodecError{Err: fmt.Errorf("open stdin: %w", err)}
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return &recorder.CodecError{Err: fmt.Errorf("start codec: %w", err)}
	}

	writeErr := writeSamplesLE(stdin, samples)
	closeErr := stdin.Close()

	waitErr := cmd.Wait()
	if waitErr != nil {
		return &recorder.CodecError{Stderr: tail(stderr.String()), Err: fmt.Errorf("codec exited: %w", waitErr)}
	}
	if writeErr != nil {
		return &recorder.CodecError{Stderr: tail(stderr.String()), Err: fmt.Errorf("write pcm: %w", writeErr)}
	}
	if closeErr != nil {
		return &recorder.CodecError{Stderr: tail(stderr.String()), Err: fmt.Errorf("close stdin: %w", closeErr)}
	}

	if _, statErr := os.Stat(outPath); statErr != nil {
		return &recorder.CodecError{Stderr: tail(stderr.String()), Err: fmt.Errorf("output missing: %w", statErr)}
	}
	return nil
}

// MixFiles spawns the codec with one -i argument per input plus a
// filter-complex mixing them, fixed to two output channels.
func (r *Runner) MixFiles(ctx context.Context, inputs []string, filterSpec, outPath string) error {
	args := []string{"-y"}
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-filter_complex", filterSpec, "-ac", "2", outPath)

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Cancel = func() error { return cmd.Process.Kill() }

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &recorder.CodecError{Stderr: tail(stderr.String()), Err: fmt.Errorf("mix exited: %w", err)}
	}
	if _, statErr := os.Stat(outPath); statErr != nil {
		return &recorder.CodecError{Stderr: tail(stderr.String()), Err: fmt.Errorf("output missing: %w", statErr)}
	}
	return nil
}

// ProbeDuration queries the codec for a file's duration in seconds. A
// missing or unparseable result yields (0, false) rather than an error, so
// listing callers can render an entry without a duration instead of
// failing the whole listing.
func (r *Runner) ProbeDuration(ctx context.Context, path string) (float64, bool) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	probeBinary := proberFor(r.Binary)

	out, err := exec.CommandContext(ctx, probeBinary, args...).Output()
	if err != nil {
		return 0, false
	}

	s := strings.TrimSpace(string(out))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// proberFor derives the probing tool's name from the encoder binary's name,
// e.g. "ffmpeg" -> "ffprobe", preserving any directory prefix.
func proberFor(encoderBinary string) string {
	if strings.HasSuffix(encoderBinary, "ffmpeg") {
		return strings.TrimSuffix(encoderBinary, "ffmpeg") + "ffprobe"
	}
	return encoderBinary
}

func writeSamplesLE(w interface{ Write([]byte) (int, error) }, samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	_, err := w.Write(buf)
	return err
}

func tail(s string) string {
	if len(s) <= stderrTailLimit {
		return s
	}
	return s[len(s)-stderrTailLimit:]
}
