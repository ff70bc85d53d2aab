// Package logging builds the process zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var global atomic.Pointer[zerolog.Logger]

func init() {
	l := New("info", "console", os.Stderr)
	global.Store(&l)
}

// ParseLevel maps debug|info|warn|error|off (any case) to a zerolog level.
// Unknown values mean info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New returns a timestamped logger writing JSON when format is "json" and
// human-readable console output otherwise.
func New(level, format string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// Setup replaces the process logger and returns it.
func Setup(level, format string) zerolog.Logger {
	l := New(level, format, os.Stderr)
	Use(l)
	return l
}

// Use installs l as the process logger.
func Use(l zerolog.Logger) { global.Store(&l) }

// L returns the process logger.
func L() zerolog.Logger { return *global.Load() }
