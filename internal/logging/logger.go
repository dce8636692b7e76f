// Package logging builds the charmbracelet logger used by the CLI from
// environment variables.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser wraps a logger and closes its log file, if any.
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// Level maps a level name to a log level. Unknown names mean info.
func Level(name string) log.Level {
	switch name {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewLoggerWithWriter creates a logger writing to w. The level and prefix
// come from PCODE_LOG_LEVEL and PCODE_LOG_PREFIX.
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	lg.SetLevel(Level(os.Getenv("PCODE_LOG_LEVEL")))

	prefix := os.Getenv("PCODE_LOG_PREFIX")
	if prefix == "" {
		prefix = "pcode "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a logger from the environment:
// PCODE_LOG_LEVEL: debug, info, warn, error (default: info)
// PCODE_LOG_PREFIX: prefix for log messages (default: "pcode ")
// PCODE_LOG_TO_FILE: when "1", logs to a timestamped file instead of stderr
func NewLogger() *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv("PCODE_LOG_TO_FILE") == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("pcode-%s-debug.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
		// fall back to stderr
	}

	return NewLoggerWithWriter(output)
}
