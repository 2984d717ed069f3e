// Package logger provides a minimal named-component logger used across the
// codebase as `var fooLog = logger.New("pkg:file")`. Output is gated by the
// SYSLUA_DEBUG environment variable so routine runs stay quiet; set it to
// enable component tracing without changing call sites.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

var (
	debugOnce    sync.Once
	debugEnabled bool
)

func isDebugEnabled() bool {
	debugOnce.Do(func() {
		v := os.Getenv("SYSLUA_DEBUG")
		debugEnabled = v != "" && v != "0" && v != "false"
	})
	return debugEnabled
}

// Logger is a named component logger. The zero value is not usable; obtain
// one with New.
type Logger struct {
	name   string
	handle *slog.Logger
}

// New returns a Logger tagged with name (conventionally "pkg:file").
func New(name string) *Logger {
	return &Logger{
		name: name,
		handle: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})).With("component", name),
	}
}

// Enabled reports whether debug tracing is active, letting call sites skip
// building expensive debug strings when it is not.
func (l *Logger) Enabled() bool {
	return isDebugEnabled()
}

// Print logs a message built from args the way fmt.Sprint would.
func (l *Logger) Print(args ...any) {
	if !isDebugEnabled() {
		return
	}
	l.handle.Debug(fmt.Sprint(args...))
}

// Printf logs a formatted message.
func (l *Logger) Printf(format string, args ...any) {
	if !isDebugEnabled() {
		return
	}
	l.handle.Debug(fmt.Sprintf(format, args...))
}
