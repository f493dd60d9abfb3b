package ipc

import (
	"encoding/json"
	"time"
)

// Request is sent from the CLI to the daemon over the Unix socket.
type Request struct {
	Nonce   string          `json:"nonce"`            // daemon nonce for auth
	Type    string          `json:"type"`             // "ping", "has", "list_servers", "list_tools", "call_tool", "tool_schema", "shutdown", "metrics"
	Server  string          `json:"server,omitempty"` // target server name
	Tool    string          `json:"tool,omitempty"`   // target tool name
	Args    json.RawMessage `json:"args,omitempty"`   // tool arguments
	Cache   *time.Duration  `json:"cache,omitempty"`  // cache TTL override
	Verbose bool            `json:"verbose,omitempty"`
	// Force, on a "shutdown" request, skips the active-session safety
	// check that otherwise refuses to stop a daemon holding more than
	// one open server connection.
	Force bool `json:"force,omitempty"`
	// CWD is the caller's working directory, used to resolve per-project
	// fallback server config (Claude Desktop / Codex CLI discovery).
	CWD string `json:"cwd,omitempty"`
	// ConfigSource is the config file path (or "<inline>"/"<none>") the
	// caller resolved its server catalog from. The CLI does not set it and
	// no daemon handler reads it; "list_servers" returns names only.
	ConfigSource string `json:"config_source,omitempty"`
	// RequestID correlates one CLI invocation's request/response pair (and
	// the debug log lines the daemon emits while handling it) across the
	// socket boundary. The client stamps a fresh one when empty; nothing
	// downstream ever needs to parse it, only compare or log it.
	RequestID string `json:"request_id,omitempty"`
}

// Response is sent from the daemon back to the CLI.
type Response struct {
	Content  []byte `json:"content"`          // raw output for stdout
	ExitCode int    `json:"exit_code"`        // 0=ok, 1=client error, 2=server/tool error, 3=network error
	Stderr   string `json:"stderr,omitempty"` // error message for stderr
}

// Exit codes, matching the client/server-tool/network error taxonomy:
// bad target syntax, unknown server, or disabled tool surfaces as 1;
// a reachable server rejecting or failing a tool call surfaces as 2;
// connect, dial, handshake, or retry-exhausted failures surface as 3.
const (
	ExitOK         = 0
	ExitClientErr  = 1
	ExitToolErr    = 2
	ExitNetworkErr = 3
)
