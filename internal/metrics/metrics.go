// Package metrics accumulates the counters the daemon builds up over its
// lifetime: how many tool calls it served, split by server and outcome,
// how often the response cache paid off, and how many server connections
// the pool currently holds open. `mcpbridge daemon status --metrics` dumps them in
// the standard Prometheus text exposition format; nothing in this package
// starts an HTTP listener of its own.
package metrics

import (
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpbridge_tool_calls_total",
			Help: "Total tool calls served by the daemon, by server and exit code.",
		},
		[]string{"server", "exit_code"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpbridge_cache_hits_total",
			Help: "Total tool call responses served from cache, by server.",
		},
		[]string{"server"},
	)

	// poolSize is queried live rather than incremented/decremented on every
	// connect/close, so the gauge can never drift from the pool's own
	// bookkeeping across its several eviction paths (invalidate, Close,
	// CloseAll, Reset, stale-config reconnect).
	poolSize atomic.Value

	ActiveConnections = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "mcpbridge_pool_connections_active",
			Help: "Number of MCP server connections currently held open by the pool.",
		},
		func() float64 {
			fn, _ := poolSize.Load().(func() int)
			if fn == nil {
				return 0
			}
			return float64(fn())
		},
	)
)

func init() {
	poolSize.Store(func() int { return 0 })
}

// SetPoolSizeSource points the active-connections gauge at a running
// pool's Size method. The daemon calls this once at startup with its own
// long-lived pool.
func SetPoolSizeSource(fn func() int) {
	poolSize.Store(fn)
}

// RecordToolCall increments the tool call counter for server/exitCode.
func RecordToolCall(server string, exitCode int) {
	ToolCalls.WithLabelValues(server, strconv.Itoa(exitCode)).Inc()
}

// RecordCacheHit increments the cache hit counter for server.
func RecordCacheHit(server string) {
	CacheHits.WithLabelValues(server).Inc()
}

// WriteText dumps every registered metric family to w in the same shape a
// real /metrics HTTP endpoint would serve.
func WriteText(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := fmt.Fprintln(w, mf.String()); err != nil {
			return err
		}
	}
	return nil
}
