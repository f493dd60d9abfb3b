// Package log provides the process-wide debug logger.
//
// mcpbridge is a short-lived CLI most of the time, so by default nothing
// is logged beyond the daemon's own startup/shutdown banner (kept as
// plain fmt.Fprintf in internal/daemon, matching its historical shape).
// Setting MCP_DEBUG enables structured debug lines for retries, pool
// churn, and single-flight waits.
package log

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

func debugEnabled() bool {
	v := strings.TrimSpace(os.Getenv("MCP_DEBUG"))
	if v == "" {
		return false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return true
}

func get() zerolog.Logger {
	once.Do(func() {
		level := zerolog.Disabled
		if debugEnabled() {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).
			Level(level).
			With().Timestamp().Logger()
	})
	return logger
}

// Debug returns a debug-level event, a no-op unless MCP_DEBUG is set.
func Debug() *zerolog.Event {
	l := get()
	return l.Debug()
}

// With returns a child logger with the given server name attached, used
// by the pool and retry policy to tag every line with its target.
func With(server string) zerolog.Logger {
	return get().With().Str("server", server).Logger()
}
