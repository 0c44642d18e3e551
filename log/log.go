// Package log provides the structured logger used across the recording
// engine: a caller-annotated Error/Fatal with an optional channel-posting
// Sink. The engine itself never posts to a chat channel, but an embedding
// bot process can wire one in.
package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sink receives formatted log lines for out-of-process delivery, e.g. a bot
// forwarding error-level lines to an operations channel. Nil is valid and
// means console-only.
type Sink interface {
	Post(line string)
}

// Logger is the logging interface used by every package in this module.
type Logger interface {
	Info(msg string)
	Error(context string, err error)
	Fatal(context string, err error)
	// WithOperation returns a Logger whose lines carry a correlation id,
	// tying together the log lines of one snapshot or mix operation.
	WithOperation(name string) Logger
}

type logger struct {
	out       io.Writer
	sink      Sink
	operation string
	opID      string
}

// New creates a console logger. sink may be nil.
func New(sink Sink) Logger {
	return &logger{out: os.Stderr, sink: sink}
}

func (l *logger) WithOperation(name string) Logger {
	return &logger{
		out:       l.out,
		sink:      l.sink,
		operation: name,
		opID:      uuid.NewString(),
	}
}

func (l *logger) prefix() string {
	if l.operation == "" {
		return ""
	}
	return fmt.Sprintf("[%s %s] ", l.operation, l.opID[:8])
}

func (l *logger) Info(msg string) {
	fmt.Fprintf(l.out, "%s [INFO] %s%s\n", time.Now().Format(time.RFC3339), l.prefix(), msg)
}

func (l *logger) Error(context string, err error) {
	l.logError(2, context, err)
}

// logError renders an error line annotated with the call site skip frames
// above it, so both Error and Fatal name their own caller.
func (l *logger) logError(skip int, context string, err error) {
	_, file, line, ok := runtime.Caller(skip)
	var caller string
	if ok {
		parts := strings.Split(file, "/")
		if len(parts) > 2 {
			file = strings.Join(parts[len(parts)-2:], "/")
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}

	rendered := fmt.Sprintf("%s [ERROR] %sin %s: %s: %v", time.Now().Format(time.RFC3339), l.prefix(), caller, context, err)
	fmt.Fprintln(l.out, rendered)

	if l.sink != nil {
		l.sink.Post(rendered)
	}
}

func (l *logger) Fatal(context string, err error) {
	l.logError(2, context, err)
	os.Exit(1)
}
