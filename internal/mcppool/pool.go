package mcppool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/config"
	"github.com/mcpbridge/mcpbridge/internal/retry"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolInfo is a simplified tool descriptor returned by ListTools.
type ToolInfo struct {
	Name         string
	Description  string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage

	// parsedInput caches the unmarshaled input schema so repeated
	// CallToolWithInfo invocations against the same ToolInfo (the
	// daemon's hot path) skip re-parsing JSON on every call.
	parsedInput any
}

// connection wraps an MCP session with the single-flight call lock
// that gives the "one in-flight request per server connection"
// guarantee without a pool-wide queue.
type connection struct {
	listTools  func(ctx context.Context) ([]mcp.Tool, error)
	callTool   func(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	close      func() error
	reqMu      sync.Mutex
	hash       string
	lastUsedAt time.Time
}

// ServerInfo describes a pooled connection for `daemon status`.
type ServerInfo struct {
	Name        string
	Connected   bool
	ConfigStale bool
	LastUsed    time.Time
}

// Pool manages MCP server connections, creating them on demand and
// reconnecting whenever the server's resolved config drifts from the
// config the live connection was opened with.
type Pool struct {
	cfg        *config.Config
	retryCfg   retry.Config
	mu         sync.Mutex
	conns      map[string]*connection
	connecting map[string]chan struct{}
	staleFn    func(server string) bool
}

// New creates a new connection pool using retry.FromEnv() for transient
// reconnect behavior.
func New(cfg *config.Config) *Pool {
	return &Pool{
		cfg:        cfg,
		retryCfg:   retry.FromEnv(),
		conns:      make(map[string]*connection),
		connecting: make(map[string]chan struct{}),
	}
}

// SetStaleFn installs a predicate the daemon uses to report whether a
// server's on-disk config has drifted since the pool last observed it
// (wired to an fsnotify watch in the daemon, not the pool itself).
func (p *Pool) SetStaleFn(fn func(server string) bool) {
	p.mu.Lock()
	p.staleFn = fn
	p.mu.Unlock()
}

// getOrCreate returns the live connection for server, opening one if
// absent or reconnecting if the resolved ServerConfig has drifted
// since the cached connection was built. Concurrent callers for the
// same server single-flight onto one connect attempt. A connection
// that exists with no corresponding (or transport-less) config entry
// is trusted as-is rather than torn down, which matters for the
// ephemeral path where a caller hands the pool an already-open
// connection it built itself.
func (p *Pool) getOrCreate(ctx context.Context, server string) (*connection, error) {
	for {
		p.mu.Lock()
		conn, exists := p.conns[server]
		scfg, known := p.cfg.Servers[server]
		hasTransport := known && (scfg.IsStdio() || scfg.IsHTTP())

		if exists && (!hasTransport || conn.hash == configHash(scfg)) {
			conn.lastUsedAt = time.Now()
			p.mu.Unlock()
			return conn, nil
		}
		if !known {
			p.mu.Unlock()
			return nil, fmt.Errorf("unknown server: %s", server)
		}
		if !hasTransport {
			p.mu.Unlock()
			return nil, fmt.Errorf("server %s: no command or url configured", server)
		}
		if wait, ok := p.connecting[server]; ok {
			p.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		done := make(chan struct{})
		if p.connecting == nil {
			p.connecting = make(map[string]chan struct{})
		}
		p.connecting[server] = done
		p.mu.Unlock()

		wantHash := configHash(scfg)
		newConn, err := p.connect(ctx, server, scfg, wantHash)

		p.mu.Lock()
		delete(p.connecting, server)
		close(done)
		if err == nil {
			p.conns[server] = newConn
		}
		p.mu.Unlock()

		return newConn, err
	}
}

func (p *Pool) connect(ctx context.Context, server string, scfg config.ServerConfig, hash string) (*connection, error) {
	if old, ok := p.takeConn(server); ok {
		go closeBusyAware(old)
	}

	session, err := openSession(ctx, server, scfg, p.retryCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", server, err)
	}

	conn := connectionFromSession(session)
	conn.hash = hash
	conn.lastUsedAt = time.Now()
	return conn, nil
}

func (p *Pool) takeConn(server string) (*connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[server]
	if ok {
		delete(p.conns, server)
	}
	return conn, ok
}

// closeBusyAware waits for any in-flight call on conn to finish before
// closing its underlying session, so a config-drift reconnect never
// cuts off a request that is already running.
func closeBusyAware(conn *connection) {
	if conn == nil {
		return
	}
	conn.reqMu.Lock()
	defer conn.reqMu.Unlock()
	if conn.close != nil {
		conn.close() //nolint: errcheck
	}
}

func (p *Pool) invalidate(server string, conn *connection) {
	p.mu.Lock()
	if current, ok := p.conns[server]; ok && current == conn {
		delete(p.conns, server)
	}
	p.mu.Unlock()

	if conn != nil && conn.close != nil {
		conn.close() //nolint: errcheck
	}
}

func callSerialized(ctx context.Context, conn *connection, name string, args map[string]any) (*mcp.CallToolResult, error) {
	conn.reqMu.Lock()
	defer conn.reqMu.Unlock()
	conn.lastUsedAt = time.Now()
	return conn.callTool(ctx, name, args)
}

// ListTools returns the tools available on a server.
func (p *Pool) ListTools(ctx context.Context, server string) ([]ToolInfo, error) {
	conn, err := p.getOrCreate(ctx, server)
	if err != nil {
		return nil, err
	}

	tools, err := conn.listTools(ctx)
	if err != nil {
		p.invalidate(server, conn)
		return nil, err
	}

	infos := make([]ToolInfo, len(tools))
	for i, t := range tools {
		inputSchema, _ := marshalInputSchema(t)
		outputSchema, _ := marshalOutputSchema(t)
		infos[i] = ToolInfo{
			Name:         t.Name,
			Description:  t.Description,
			InputSchema:  inputSchema,
			OutputSchema: outputSchema,
			parsedInput:  parseInputSchema(inputSchema),
		}
	}
	return infos, nil
}

// ToolSchema returns the input schema for a specific tool.
func (p *Pool) ToolSchema(ctx context.Context, server, tool string) (json.RawMessage, error) {
	info, err := p.ToolInfoByName(ctx, server, tool)
	if err != nil {
		return nil, err
	}
	return info.InputSchema, nil
}

// ToolInfoByName returns metadata and schemas for a specific tool.
func (p *Pool) ToolInfoByName(ctx context.Context, server, tool string) (*ToolInfo, error) {
	tools, err := p.ListTools(ctx, server)
	if err != nil {
		return nil, err
	}
	canonical, ok := canonicalToolName(tools, tool)
	if !ok {
		return nil, fmt.Errorf("tool %s not found on server %s", tool, server)
	}
	for _, t := range tools {
		if t.Name == canonical {
			toolCopy := t
			return &toolCopy, nil
		}
	}
	return nil, fmt.Errorf("tool %s not found on server %s", tool, server)
}

// CallTool invokes a tool on a server, resolving kebab/snake aliases
// and coercing args against the tool's input schema.
func (p *Pool) CallTool(ctx context.Context, server, tool string, argsJSON json.RawMessage) (*mcp.CallToolResult, error) {
	conn, err := p.getOrCreate(ctx, server)
	if err != nil {
		return nil, err
	}

	tools, err := p.ListTools(ctx, server)
	if err != nil {
		return nil, err
	}
	canonical, ok := canonicalToolName(tools, tool)
	if !ok {
		return nil, fmt.Errorf("tool %s not found on server %s", tool, server)
	}

	var toolSchema json.RawMessage
	for _, t := range tools {
		if t.Name != canonical {
			continue
		}
		toolSchema = t.InputSchema
		break
	}

	var args map[string]any
	if len(argsJSON) > 0 {
		if err := json.Unmarshal(argsJSON, &args); err != nil {
			return nil, fmt.Errorf("invalid args: %w", err)
		}
	} else {
		args = map[string]any{}
	}

	args, err = compileToolArgs(args, toolSchema)
	if err != nil {
		return nil, err
	}

	result, err := callSerialized(ctx, conn, canonical, args)
	if err != nil {
		p.invalidate(server, conn)
		return nil, err
	}
	return result, nil
}

// CallToolWithInfo invokes a tool using an already-resolved ToolInfo,
// skipping the ListTools round trip and reusing the cached parsed
// schema. This is the daemon's hot path once a tool has been looked up
// once in a session.
func (p *Pool) CallToolWithInfo(ctx context.Context, server string, info *ToolInfo, argsJSON json.RawMessage) (*mcp.CallToolResult, error) {
	conn, err := p.getOrCreate(ctx, server)
	if err != nil {
		return nil, err
	}

	name := server
	var schemaRaw json.RawMessage
	var parsed any
	if info != nil {
		if info.Name != "" {
			name = info.Name
		}
		schemaRaw = info.InputSchema
		parsed = info.parsedInput
	}

	args, err := compileJSONArgs(argsJSON, schemaRaw, parsed)
	if err != nil {
		return nil, err
	}

	result, err := callSerialized(ctx, conn, name, args)
	if err != nil {
		p.invalidate(server, conn)
		return nil, err
	}
	return result, nil
}

func canonicalToolName(tools []ToolInfo, requested string) (string, bool) {
	for _, t := range tools {
		if t.Name == requested {
			return t.Name, true
		}
	}

	alias := normalizeToolAlias(requested)
	if alias == requested {
		return "", false
	}
	for _, t := range tools {
		if t.Name == alias {
			return t.Name, true
		}
	}
	return "", false
}

func normalizeToolAlias(name string) string {
	if strings.Contains(name, "-") {
		return strings.ReplaceAll(name, "-", "_")
	}
	if strings.Contains(name, "_") {
		return strings.ReplaceAll(name, "_", "-")
	}
	return name
}

func marshalInputSchema(t mcp.Tool) (json.RawMessage, error) {
	if len(t.RawInputSchema) > 0 {
		return t.RawInputSchema, nil
	}
	b, err := json.Marshal(t.InputSchema)
	return b, err
}

func marshalOutputSchema(t mcp.Tool) (json.RawMessage, error) {
	if len(t.RawOutputSchema) > 0 {
		return t.RawOutputSchema, nil
	}
	if t.OutputSchema.Type == "" {
		return nil, nil
	}
	b, err := json.Marshal(t.OutputSchema)
	return b, err
}

// Close disconnects a specific server.
func (p *Pool) Close(server string) {
	p.mu.Lock()
	conn, ok := p.conns[server]
	if ok {
		delete(p.conns, server)
	}
	p.mu.Unlock()

	if ok && conn.close != nil {
		conn.close()
	}
}

// CloseAll disconnects all servers.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*connection)
	p.mu.Unlock()

	for _, conn := range conns {
		if conn.close != nil {
			conn.close()
		}
	}
}

// Reset swaps in a new Config and drops every existing connection.
// Connections with an in-flight call are closed once that call
// finishes, but Reset itself never blocks on one.
func (p *Pool) Reset(cfg *config.Config) {
	p.mu.Lock()
	p.cfg = cfg
	conns := p.conns
	p.conns = make(map[string]*connection)
	p.mu.Unlock()

	for _, conn := range conns {
		go closeBusyAware(conn)
	}
}

// Has reports whether server currently has a live pooled connection.
func (p *Pool) Has(server string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.conns[server]
	return ok
}

// List returns the names of servers with a live pooled connection, sorted.
func (p *Pool) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.conns))
	for name := range p.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Size returns the number of live pooled connections.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// ListDetailed returns per-server connection info for `daemon status`,
// including whether the on-disk config has drifted (via the staleFn
// installed by SetStaleFn).
func (p *Pool) ListDetailed() []ServerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	names := make([]string, 0, len(p.conns))
	for name := range p.conns {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ServerInfo, 0, len(names))
	for _, name := range names {
		conn := p.conns[name]
		stale := false
		if p.staleFn != nil {
			stale = p.staleFn(name)
		}
		out = append(out, ServerInfo{
			Name:        name,
			Connected:   true,
			ConfigStale: stale,
			LastUsed:    conn.lastUsedAt,
		})
	}
	return out
}
