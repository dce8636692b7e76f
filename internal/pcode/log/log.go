package log

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"

	"pcode/internal/logging"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	closer      *logging.LoggerCloser
)

// Setup installs the charmbracelet logger as the slog default. A non-empty
// level overrides PCODE_LOG_LEVEL.
func Setup(level string, debug bool) {
	initOnce.Do(func() {
		closer = logging.NewLogger()
		if level != "" {
			closer.SetLevel(logging.Level(level))
		}
		if debug {
			closer.SetLevel(charmlog.DebugLevel)
			closer.SetReportCaller(true)
		}
		slog.SetDefault(slog.New(closer.Logger))
		initialized.Store(true)
	})
}

func Initialized() bool {
	return initialized.Load()
}

// Close flushes and closes the log file opened by Setup.
func Close() error {
	if closer == nil {
		return nil
	}
	return closer.Close()
}

func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
