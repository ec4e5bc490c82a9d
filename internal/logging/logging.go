// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// Options selects the log level and output format ("console" or "json").
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New returns a logger writing to Output (stderr when nil).
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger := &log.Logger{
		Level:      ParseLevel(opts.Level),
		TimeFormat: "15:04:05",
	}
	switch strings.ToLower(opts.Format) {
	case "json":
		logger.TimeFormat = ""
		logger.Writer = &log.IOWriter{Writer: out}
	default:
		logger.Writer = &log.ConsoleWriter{
			Writer:         out,
			ColorOutput:    out == os.Stderr,
			QuoteString:    true,
			EndWithMessage: true,
		}
	}
	return logger
}

// ParseLevel maps a level name to a log level, defaulting to info.
func ParseLevel(s string) log.Level {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel
	}
	return log.ParseLevel(strings.ToLower(s))
}

// Discard returns a logger that drops everything, for tests.
func Discard() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}
