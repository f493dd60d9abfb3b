// Package router decides, for a single server/tool invocation, whether to
// route the call through the background daemon or to open a throwaway
// session directly, and enforces the allow/deny tool lists before either
// path ever reaches the factory. It also owns the shared timeout budget
// that governs the whole invocation: a slow daemon probe, a slow stdin
// read, and a slow tool call all draw against the same clock.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mcpbridge/mcpbridge/internal/brokererr"
	"github.com/mcpbridge/mcpbridge/internal/config"
	"github.com/mcpbridge/mcpbridge/internal/ipc"
	"github.com/mcpbridge/mcpbridge/internal/mcppool"
	"github.com/mcpbridge/mcpbridge/internal/response"
)

// DefaultTimeout is the shared budget for one invocation end to end
// (connect/retry, stdin read, tool call) when MCP_TIMEOUT is unset.
const DefaultTimeout = 1800 * time.Second

// TimeoutFromEnv reads MCP_TIMEOUT (seconds) and falls back to
// DefaultTimeout when it is unset, non-numeric, or non-positive.
func TimeoutFromEnv() time.Duration {
	raw := os.Getenv("MCP_TIMEOUT")
	if raw == "" {
		return DefaultTimeout
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(secs) * time.Second
}

// Decide reports whether an invocation should be routed through the
// daemon. It is true only when the daemon is already running and already
// knows about the target server; anything else takes the ephemeral path
// so a cold CLI invocation never pays for a daemon spawn it won't reuse.
func Decide(daemonAlive, daemonHasServer bool) bool {
	return daemonAlive && daemonHasServer
}

// CheckToolAllowed applies a server's disabled_tools/allowed_tools (or its
// include_tools alias) glob lists before any session is opened for tool.
// A disabled_tools match always refuses, even if the same name would also
// satisfy an allow-list. An empty allow-list admits everything.
func CheckToolAllowed(scfg config.ServerConfig, tool string) error {
	for _, pattern := range scfg.DisabledTools {
		if globMatchesAlias(pattern, tool) {
			return brokererr.New(brokererr.Client,
				fmt.Sprintf("tool %q is disabled for this server", tool), nil)
		}
	}

	allowed := scfg.EffectiveAllowedTools()
	if len(allowed) == 0 {
		return nil
	}
	for _, pattern := range allowed {
		if globMatchesAlias(pattern, tool) {
			return nil
		}
	}
	return brokererr.New(brokererr.Client,
		fmt.Sprintf("tool %q is not in the allowed list for this server", tool), nil)
}

// globMatchesAlias matches pattern against tool and its dash/underscore
// alias, since configs and callers freely mix mcp-tool and mcp_tool
// spellings for the same tool name.
func globMatchesAlias(pattern, tool string) bool {
	for _, name := range []string{tool, strings.ReplaceAll(tool, "-", "_"), strings.ReplaceAll(tool, "_", "-")} {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// ReadStdinBudgeted reads stdin to EOF, racing the read against ctx. On
// timeout it returns ctx.Err() and abandons the read goroutine (the
// caller's stdin is about to be gone anyway once the process exits).
func ReadStdinBudgeted(ctx context.Context, stdin io.Reader) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(stdin)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CallEphemeral resolves and calls a tool by opening a single-server pool
// scoped to this one call, and tearing it down on every exit path. It is
// used whenever Decide reports the daemon isn't already hosting server, so
// a cold invocation never leaves a connection behind for nobody to reuse.
func CallEphemeral(ctx context.Context, scfg config.ServerConfig, server, tool string, args json.RawMessage, verbose bool) *ipc.Response {
	if err := CheckToolAllowed(scfg, tool); err != nil {
		return &ipc.Response{ExitCode: brokererr.ExitCode(err), Stderr: err.Error()}
	}

	pool := mcppool.New(&config.Config{Servers: map[string]config.ServerConfig{server: scfg}})
	defer pool.CloseAll()

	info, err := pool.ToolInfoByName(ctx, server, tool)
	if err != nil {
		suggestion := didYouMean(ctx, pool, server, tool)
		msg := fmt.Sprintf("resolving tool: %v", err)
		if suggestion != "" {
			msg += "\n" + suggestion
		}
		return &ipc.Response{ExitCode: brokererr.ExitCodeForKind(brokererr.ClassifyToolError(err)), Stderr: msg}
	}

	result, err := pool.CallToolWithInfo(ctx, server, info, args)
	if err != nil {
		return &ipc.Response{ExitCode: brokererr.ExitCodeForKind(brokererr.ClassifyToolError(err)), Stderr: fmt.Sprintf("calling tool: %v", err)}
	}

	out, exitCode := response.Unwrap(result)
	var stderr string
	if verbose {
		stderr = "mcpbridge: ephemeral session (no daemon running for this server)"
	}
	return &ipc.Response{Content: out, ExitCode: exitCode, Stderr: stderr}
}

// didYouMean makes a best-effort attempt to list the server's actual tools
// after a failed lookup, so the error can suggest a close match instead of
// leaving the caller to guess. Failure to list is swallowed: the original
// lookup error is always more important than this suggestion.
func didYouMean(ctx context.Context, pool *mcppool.Pool, server, tool string) string {
	tools, err := pool.ListTools(ctx, server)
	if err != nil || len(tools) == 0 {
		return ""
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("did you mean one of these tools on %s?\n", server))
	for _, t := range tools {
		buf.WriteString("  " + t.Name + "\n")
	}
	return strings.TrimRight(buf.String(), "\n")
}
