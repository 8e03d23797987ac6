// Package debug provides opt-in diagnostic logging over log/slog. Output is
// discarded until Init enables it, so library code can log freely without
// polluting normal command output.
package debug

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	mu     sync.RWMutex

	enabled bool
)

// Init switches diagnostic logging on or off. When on, records go to stderr
// at debug level; when off they are discarded.
func Init(enable bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable
	if enable {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Enabled reports whether diagnostic logging is on.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Debug logs a debug record with the given attributes.
func Debug(msg string, args ...any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Debug(msg, args...)
}

// With returns a logger carrying the given attributes for repeated use.
func With(args ...any) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.With(args...)
}
