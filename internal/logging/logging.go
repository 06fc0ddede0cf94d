// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// Setup configures log.DefaultLogger. format is "console" or "json".
func Setup(level, format string) {
	setup(level, format, os.Stderr)
}

func setup(level, format string, out io.Writer) {
	var writer log.Writer
	switch strings.ToLower(format) {
	case "json":
		writer = &log.IOWriter{Writer: out}
	default:
		writer = &log.ConsoleWriter{
			Writer:         out,
			ColorOutput:    isTerminal(out),
			EndWithMessage: true,
		}
	}

	log.DefaultLogger = log.Logger{
		Level:      ParseLevel(level),
		Caller:     0,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Writer:     writer,
	}
}

// ParseLevel maps a level name to a log.Level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.TraceLevel
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return log.IsTerminal(f.Fd())
}
