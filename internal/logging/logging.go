// Package logging builds the zerolog logger shared by the server, the
// countdown streams and the queue consumer.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to stdout.  Level accepts the zerolog level
// names ("trace" through "error"); an unknown level falls back to info.
// Format "console" (or dev mode) produces human readable output, anything
// else JSON lines.
func New(level, format string, dev bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format, dev)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string, dev bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(format, "console") || dev {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "noxly-redemptions").Logger()
}

// RedactCode hides all but the last two digits of a redemption code outside
// development, so audit logs do not leak usable codes.
func RedactCode(code string, dev bool) string {
	if dev || len(code) <= 2 {
		return code
	}
	return strings.Repeat("*", len(code)-2) + code[len(code)-2:]
}
