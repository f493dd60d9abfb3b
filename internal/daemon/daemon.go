package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mcpbridge/mcpbridge/internal/brokererr"
	"github.com/mcpbridge/mcpbridge/internal/cache"
	"github.com/mcpbridge/mcpbridge/internal/config"
	"github.com/mcpbridge/mcpbridge/internal/configwatch"
	"github.com/mcpbridge/mcpbridge/internal/ipc"
	"github.com/mcpbridge/mcpbridge/internal/mcppool"
	"github.com/mcpbridge/mcpbridge/internal/metrics"
	"github.com/mcpbridge/mcpbridge/internal/paths"
	"github.com/mcpbridge/mcpbridge/internal/response"
	"github.com/mcpbridge/mcpbridge/internal/router"
	"github.com/mark3labs/mcp-go/mcp"
)

// codexAppsServerName is the connector through which Codex CLI exposes many
// third-party "apps" integrations (Linear, Slack, ...) as a single pooled
// connection. A call against a server name that has no entry of its own in
// cfg.Servers is routed here when this connector is configured, so users can
// invoke connector-prefixed tools (e.g. linear_get_profile) without listing
// every app as a server.
const codexAppsServerName = "codex-apps"

var (
	poolListTools = func(ctx context.Context, pool *mcppool.Pool, server string) ([]mcppool.ToolInfo, error) {
		return pool.ListTools(ctx, server)
	}
	poolToolInfoByName = func(ctx context.Context, pool *mcppool.Pool, server, tool string) (*mcppool.ToolInfo, error) {
		return pool.ToolInfoByName(ctx, server, tool)
	}
	poolCallToolWithInfo = func(ctx context.Context, pool *mcppool.Pool, server string, info *mcppool.ToolInfo, args json.RawMessage) (*mcp.CallToolResult, error) {
		return pool.CallToolWithInfo(ctx, server, info, args)
	}
	cacheGet         = cache.Get
	cacheGetMetadata = cache.GetMetadata
	cachePut         = cache.Put
	signalShutdownFn = func() {
		p, _ := os.FindProcess(os.Getpid())
		_ = p.Signal(syscall.SIGTERM)
	}

	loadConfigFn     = config.Load
	mergeFallbackFn  = config.MergeFallbackServersForCWD
	validateConfigFn = config.Validate
)

// runtimeDeps collects the daemon's pool and cache side effects behind
// function fields, so request handling can be exercised without a live
// mcppool.Pool or on-disk cache.
type runtimeDeps struct {
	poolListTools         func(ctx context.Context, pool *mcppool.Pool, server string) ([]mcppool.ToolInfo, error)
	poolToolInfoByName    func(ctx context.Context, pool *mcppool.Pool, server, tool string) (*mcppool.ToolInfo, error)
	poolCallToolWithInfo  func(ctx context.Context, pool *mcppool.Pool, server string, info *mcppool.ToolInfo, args json.RawMessage) (*mcp.CallToolResult, error)
	cacheGet              func(server, tool string, args json.RawMessage) ([]byte, int, bool)
	cacheGetMetadata      func(server, tool string, args json.RawMessage) (time.Duration, time.Duration, bool)
	cachePut              func(server, tool string, args json.RawMessage, content []byte, exitCode int, ttl time.Duration) error
	signalShutdownProcess func()
}

// runtimeDefaultDeps wires runtimeDeps to the package-level pool and cache
// hooks, so tests that mutate those vars directly and code that threads deps
// explicitly observe the same defaults.
func runtimeDefaultDeps() runtimeDeps {
	return runtimeDeps{
		poolListTools:         poolListTools,
		poolToolInfoByName:    poolToolInfoByName,
		poolCallToolWithInfo:  poolCallToolWithInfo,
		cacheGet:              cacheGet,
		cacheGetMetadata:      cacheGetMetadata,
		cachePut:              cachePut,
		signalShutdownProcess: signalShutdownFn,
	}
}

// Run starts the daemon process. Called when argv[1] == "__daemon".
func Run() error {
	if err := paths.EnsureDir(paths.RuntimeDir()); err != nil {
		return fmt.Errorf("creating runtime dir: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if ferr := config.MergeFallbackServers(cfg); ferr != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge daemon: warning: failed to load fallback MCP server config: %v\n", ferr)
	}
	if verr := config.Validate(cfg); verr != nil {
		return fmt.Errorf("invalid config: %w", verr)
	}

	nonce, err := readOrCreateNonce()
	if err != nil {
		return fmt.Errorf("nonce setup: %w", err)
	}

	pool := mcppool.New(cfg)
	defer pool.CloseAll()
	metrics.SetPoolSizeSource(pool.Size)

	ka := NewKeepalive(pool)
	ka.SetOnAllIdle(signalShutdownFn)
	defer ka.Stop()

	rh := newRuntimeRequestHandler(cfg, pool, ka)

	cw, err := configwatch.New(paths.ConfigFile(), func() {
		if err := rh.reloadFromDisk(); err != nil {
			fmt.Fprintf(os.Stderr, "mcpbridge daemon: warning: config reload failed: %v\n", err)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge daemon: warning: config watch disabled: %v\n", err)
	} else {
		defer cw.Close()
	}

	srv := ipc.NewServer(paths.SocketPath(), nonce, rh.handle)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	fmt.Fprintf(os.Stderr, "mcpbridge daemon: listening on %s\n", paths.SocketPath())

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Fprintln(os.Stderr, "mcpbridge daemon: shutting down")
	return nil
}

// runtimeRequestHandler serializes per-connection requests and keeps the
// daemon's in-memory config in sync with whichever working directory the
// caller last asked about, reloading fallback servers only when that
// directory changes.
type runtimeRequestHandler struct {
	mu        sync.Mutex
	cfg       *config.Config
	pool      *mcppool.Pool
	ka        *Keepalive
	deps      runtimeDeps
	activeCWD string
}

func newRuntimeRequestHandlerWithDeps(cfg *config.Config, pool *mcppool.Pool, ka *Keepalive, deps runtimeDeps) *runtimeRequestHandler {
	return &runtimeRequestHandler{cfg: cfg, pool: pool, ka: ka, deps: deps}
}

func newRuntimeRequestHandler(cfg *config.Config, pool *mcppool.Pool, ka *Keepalive) *runtimeRequestHandler {
	return newRuntimeRequestHandlerWithDeps(cfg, pool, ka, runtimeDefaultDeps())
}

// reloadFromDisk re-reads the config file unconditionally, the same merge
// and reset syncRuntimeConfigForRequest performs for a new working
// directory, but without the activeCWD cache check so it also fires when
// the on-disk file changes underneath an otherwise idle daemon.
func (h *runtimeRequestHandler) reloadFromDisk() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := loadConfigFn()
	if err != nil {
		return err
	}
	if err := mergeFallbackFn(cfg, h.activeCWD); err != nil {
		return err
	}
	if err := validateConfigFn(cfg); err != nil {
		return err
	}
	h.cfg = cfg
	if h.pool != nil {
		h.pool.Reset(cfg)
	}
	return nil
}

func (h *runtimeRequestHandler) handle(ctx context.Context, req *ipc.Request) *ipc.Response {
	h.mu.Lock()
	if requestNeedsRuntimeConfig(req) {
		if err := syncRuntimeConfigForRequest(req.CWD, &h.activeCWD, &h.cfg, h.pool, h.ka); err != nil {
			h.mu.Unlock()
			return &ipc.Response{ExitCode: ipc.ExitNetworkErr, Stderr: fmt.Sprintf("loading config: %v", err)}
		}
	}
	cfg, pool, ka, deps := h.cfg, h.pool, h.ka, h.deps
	h.mu.Unlock()

	return dispatchWithDeps(ctx, cfg, pool, ka, req, deps)
}

// requestNeedsRuntimeConfig reports whether a request depends on the
// server/tool catalog, and therefore needs the caller's working directory
// resolved against any per-project fallback config before it is dispatched.
func requestNeedsRuntimeConfig(req *ipc.Request) bool {
	if req == nil {
		return false
	}
	switch req.Type {
	case "list_servers", "list_tools", "tool_schema", "call_tool", "has":
		return true
	default:
		return false
	}
}

// syncRuntimeConfigForRequest reloads and re-merges config only when cwd
// differs from the handler's last-seen directory, so repeated requests from
// the same caller don't pay for a reload on every call.
func syncRuntimeConfigForRequest(cwd string, activeCWD *string, cfgPtr **config.Config, pool *mcppool.Pool, ka *Keepalive) error {
	if cwd == *activeCWD {
		return nil
	}

	cfg, err := loadConfigFn()
	if err != nil {
		return err
	}
	if err := mergeFallbackFn(cfg, cwd); err != nil {
		return err
	}
	if err := validateConfigFn(cfg); err != nil {
		return err
	}

	*cfgPtr = cfg
	*activeCWD = cwd
	if pool != nil {
		pool.Reset(cfg)
	}
	return nil
}

func dispatchWithDeps(ctx context.Context, cfg *config.Config, pool *mcppool.Pool, ka *Keepalive, req *ipc.Request, deps runtimeDeps) *ipc.Response {
	switch req.Type {
	case "ping":
		return &ipc.Response{ExitCode: ipc.ExitOK}
	case "has":
		return hasServer(cfg, req.Server)
	case "list_servers":
		return listServers(cfg)
	case "list_tools":
		return listTools(ctx, cfg, pool, ka, req.Server, req.Verbose)
	case "tool_schema":
		return toolSchema(ctx, cfg, pool, ka, req.Server, req.Tool)
	case "call_tool":
		return callToolWithDeps(ctx, cfg, pool, ka, req.Server, req.Tool, req.Args, req.Cache, req.Verbose, deps)
	case "shutdown":
		return shutdownWithDeps(pool, req.Force, deps)
	case "metrics":
		return metricsResponse()
	default:
		return &ipc.Response{ExitCode: ipc.ExitClientErr, Stderr: fmt.Sprintf("unknown request type: %s", req.Type)}
	}
}

// metricsResponse renders the daemon's in-process counters in the standard
// Prometheus text exposition format, without opening a network listener.
func metricsResponse() *ipc.Response {
	var buf bytes.Buffer
	if err := metrics.WriteText(&buf); err != nil {
		return &ipc.Response{ExitCode: ipc.ExitNetworkErr, Stderr: fmt.Sprintf("gathering metrics: %v", err)}
	}
	return &ipc.Response{ExitCode: ipc.ExitOK, Content: buf.Bytes()}
}

// hasServer answers the router's daemon-probe question: does this daemon's
// current catalog know about server. It never opens a connection.
func hasServer(cfg *config.Config, server string) *ipc.Response {
	_, ok := cfg.Servers[server]
	content := []byte("false\n")
	if ok {
		content = []byte("true\n")
	}
	return &ipc.Response{Content: content, ExitCode: ipc.ExitOK}
}

// shutdownWithDeps refuses a full stop when the daemon is holding open
// connections to more than one server, unless force is set: a shared
// daemon may be serving another agent's in-flight session, and tearing it
// down out from under that session is the failure mode this guards.
func shutdownWithDeps(pool *mcppool.Pool, force bool, deps runtimeDeps) *ipc.Response {
	var active []string
	if pool != nil {
		active = pool.List()
	}
	if refused, msg := shutdownRefusalMessage(active, force); refused {
		return &ipc.Response{ExitCode: ipc.ExitClientErr, Stderr: msg}
	}

	// Exit ~100ms after replying so the response flushes to the caller
	// before the process goes away.
	go func() {
		time.Sleep(100 * time.Millisecond)
		deps.signalShutdownProcess()
	}()
	return &ipc.Response{Content: []byte("shutting down\n")}
}

// shutdownRefusalMessage is the pure decision behind shutdownWithDeps,
// split out so it can be exercised without a live *mcppool.Pool.
func shutdownRefusalMessage(activeServers []string, force bool) (bool, string) {
	if force || len(activeServers) <= 1 {
		return false, ""
	}
	return true, fmt.Sprintf(
		"refusing to stop: %d servers have active connections (%s); pass --force to stop anyway",
		len(activeServers), strings.Join(activeServers, ", "),
	)
}

func listServers(cfg *config.Config) *ipc.Response {
	names := make([]string, 0, len(cfg.Servers))
	for name := range cfg.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []byte
	for _, name := range names {
		out = append(out, []byte(name+"\n")...)
	}
	return &ipc.Response{Content: out}
}

// shortToolDescriptionMaxLen bounds the description shown by a default
// (non-verbose) tool listing.
const shortToolDescriptionMaxLen = 80

func listTools(ctx context.Context, cfg *config.Config, pool *mcppool.Pool, ka *Keepalive, server string, verbose bool) *ipc.Response {
	if _, ok := cfg.Servers[server]; !ok {
		return &ipc.Response{ExitCode: ipc.ExitClientErr, Stderr: fmt.Sprintf("unknown server: %s", server)}
	}

	ka.Begin(server)
	defer ka.End(server)

	tools, err := poolListTools(ctx, pool, server)
	if err != nil {
		return &ipc.Response{ExitCode: ipc.ExitNetworkErr, Stderr: fmt.Sprintf("listing tools: %v", err)}
	}

	displayNames := make(map[string]string, len(tools))
	for _, t := range tools {
		name := toKebabToolName(t.Name)
		if _, exists := displayNames[name]; exists {
			continue
		}
		displayNames[name] = t.Description
	}

	names := make([]string, 0, len(displayNames))
	for name := range displayNames {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []byte
	for _, name := range names {
		desc := strings.TrimSpace(displayNames[name])
		if !verbose {
			desc = summarizeToolDescription(desc)
		}
		line := name
		if desc != "" {
			line += "\t" + desc
		}
		out = append(out, []byte(line+"\n")...)
	}
	return &ipc.Response{Content: out}
}

// summarizeToolDescription reduces a (possibly multi-line) tool description
// to its first line, truncated to shortToolDescriptionMaxLen.
func summarizeToolDescription(desc string) string {
	desc = strings.TrimSpace(desc)
	if idx := strings.IndexByte(desc, '\n'); idx >= 0 {
		desc = strings.TrimSpace(desc[:idx])
	}
	runes := []rune(desc)
	if len(runes) <= shortToolDescriptionMaxLen {
		return desc
	}
	cut := shortToolDescriptionMaxLen - 3
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRight(string(runes[:cut]), " ") + "..."
}

func toolSchema(ctx context.Context, cfg *config.Config, pool *mcppool.Pool, ka *Keepalive, server, tool string) *ipc.Response {
	if _, ok := cfg.Servers[server]; !ok {
		return &ipc.Response{ExitCode: ipc.ExitClientErr, Stderr: fmt.Sprintf("unknown server: %s", server)}
	}

	ka.Begin(server)
	defer ka.End(server)

	info, err := poolToolInfoByName(ctx, pool, server, tool)
	if err != nil {
		return &ipc.Response{
			ExitCode: classifyToolLookupError(err),
			Stderr:   fmt.Sprintf("getting schema: %v", err),
		}
	}

	payload := map[string]any{
		"name":        toKebabToolName(info.Name),
		"description": info.Description,
	}

	if len(info.InputSchema) > 0 {
		var in any
		if err := json.Unmarshal(info.InputSchema, &in); err == nil {
			payload["input_schema"] = in
		}
	}
	if len(info.OutputSchema) > 0 {
		var out any
		if err := json.Unmarshal(info.OutputSchema, &out); err == nil {
			payload["output_schema"] = out
		}
	}

	data, _ := json.MarshalIndent(payload, "", "  ")
	data = append(data, '\n')
	return &ipc.Response{Content: data}
}

// callToolWithDeps resolves server/cache config, serves a cached response
// when one exists, and otherwise invokes the tool through deps and writes
// the result back through the cache. A server name absent from cfg.Servers
// is routed to codexAppsServerName, if configured, bypassing normal tool
// lookup entirely: apps behind that connector aren't declared in cfg.Servers
// individually, so there is no catalog to resolve the tool name against.
// callToolWithDeps records the tool-call outcome to the process-wide
// metrics registry, then delegates to callToolWithDepsInner for the
// actual routing/caching/invocation logic.
func callToolWithDeps(ctx context.Context, cfg *config.Config, pool *mcppool.Pool, ka *Keepalive, server, tool string, args json.RawMessage, reqCache *time.Duration, verbose bool, deps runtimeDeps) *ipc.Response {
	resp := callToolWithDepsInner(ctx, cfg, pool, ka, server, tool, args, reqCache, verbose, deps)
	metrics.RecordToolCall(server, resp.ExitCode)
	return resp
}

func callToolWithDepsInner(ctx context.Context, cfg *config.Config, pool *mcppool.Pool, ka *Keepalive, server, tool string, args json.RawMessage, reqCache *time.Duration, verbose bool, deps runtimeDeps) *ipc.Response {
	scfg, ok := cfg.Servers[server]
	virtual := false
	if !ok {
		if _, hasApps := cfg.Servers[codexAppsServerName]; !hasApps {
			return &ipc.Response{ExitCode: ipc.ExitClientErr, Stderr: fmt.Sprintf("unknown server: %s", server)}
		}
		virtual = true
		scfg = cfg.Servers[codexAppsServerName]
	}

	targetServer := server
	if virtual {
		targetServer = codexAppsServerName
	}

	if !virtual {
		if err := router.CheckToolAllowed(scfg, tool); err != nil {
			return &ipc.Response{ExitCode: brokererr.ExitCode(err), Stderr: err.Error()}
		}
	}

	ka.Begin(targetServer)
	defer ka.End(targetServer)

	cacheTTL, shouldCache, err := effectiveCacheTTL(scfg, tool, reqCache)
	if err != nil {
		return &ipc.Response{
			ExitCode: ipc.ExitClientErr,
			Stderr:   fmt.Sprintf("cache configuration error: %v", err),
		}
	}

	var logs []string
	if shouldCache {
		for _, cacheTool := range toolAliases(tool) {
			if out, exitCode, ok := deps.cacheGet(server, cacheTool, args); ok {
				metrics.RecordCacheHit(server)
				if verbose {
					if age, ttl, ok := deps.cacheGetMetadata(server, cacheTool, args); ok {
						logs = append(logs, fmt.Sprintf("mcpbridge: cache hit (age=%s ttl=%s)", age, ttl))
					} else {
						logs = append(logs, "mcpbridge: cache hit")
					}
				}
				return &ipc.Response{Content: out, ExitCode: exitCode, Stderr: joinLogs(logs)}
			}
		}
		if verbose {
			logs = append(logs, "mcpbridge: cache miss")
		}
	}

	var info *mcppool.ToolInfo
	if virtual {
		info = &mcppool.ToolInfo{Name: tool}
	} else {
		info, err = resolveToolInfoWithDeps(ctx, pool, server, tool, deps)
		if err != nil {
			return &ipc.Response{
				ExitCode: classifyToolLookupError(err),
				Stderr:   fmt.Sprintf("resolving tool: %v", err),
			}
		}
	}
	cacheTool := info.Name

	result, err := deps.poolCallToolWithInfo(ctx, pool, targetServer, info, args)
	if err != nil {
		return &ipc.Response{
			ExitCode: classifyCallToolError(err),
			Stderr:   fmt.Sprintf("calling tool: %v", err),
		}
	}

	out, exitCode := response.Unwrap(result)
	if shouldCache && exitCode == ipc.ExitOK {
		_ = deps.cachePut(server, cacheTool, args, out, exitCode, cacheTTL)
		if verbose {
			logs = append(logs, fmt.Sprintf("mcpbridge: cache store (ttl=%s)", cacheTTL))
		}
	}
	return &ipc.Response{Content: out, ExitCode: exitCode, Stderr: joinLogs(logs)}
}

// resolveToolInfoWithDeps looks up the canonical ToolInfo for a requested
// tool name. With no pool (unit tests exercising the cache path alone) it
// passes the requested name through unresolved.
func resolveToolInfoWithDeps(ctx context.Context, pool *mcppool.Pool, server, requested string, deps runtimeDeps) (*mcppool.ToolInfo, error) {
	if pool == nil {
		return &mcppool.ToolInfo{Name: requested}, nil
	}

	info, err := deps.poolToolInfoByName(ctx, pool, server, requested)
	if err != nil {
		return nil, err
	}
	if info == nil || info.Name == "" {
		return &mcppool.ToolInfo{Name: requested}, nil
	}
	return info, nil
}

func effectiveCacheTTL(scfg config.ServerConfig, tool string, reqCache *time.Duration) (time.Duration, bool, error) {
	if reqCache != nil {
		if *reqCache <= 0 {
			return 0, false, nil
		}
		return *reqCache, true, nil
	}

	ttl, hasDefault, err := parseDefaultCacheTTL(scfg)
	if err != nil {
		return 0, false, err
	}
	enabled := hasDefault

	if hasDefault && matchesNoCachePattern(scfg, tool) {
		enabled = false
	}

	if override, ok := lookupToolCacheOverride(scfg, tool); ok {
		if override {
			enabled = hasDefault
		} else {
			enabled = false
		}
	}

	if !enabled {
		return 0, false, nil
	}
	return ttl, true, nil
}

func parseDefaultCacheTTL(scfg config.ServerConfig) (time.Duration, bool, error) {
	if scfg.DefaultCacheTTL == "" {
		return 0, false, nil
	}
	ttl, err := time.ParseDuration(scfg.DefaultCacheTTL)
	if err != nil {
		return 0, false, fmt.Errorf("invalid default_cache_ttl %q: %w", scfg.DefaultCacheTTL, err)
	}
	if ttl <= 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}

func lookupToolCacheOverride(scfg config.ServerConfig, tool string) (bool, bool) {
	for _, name := range toolAliases(tool) {
		if tc, ok := scfg.Tools[name]; ok && tc.Cache != nil {
			return *tc.Cache, true
		}
	}
	return false, false
}

func matchesNoCachePattern(scfg config.ServerConfig, tool string) bool {
	aliases := toolAliases(tool)
	for _, pattern := range scfg.NoCacheTools {
		for _, name := range aliases {
			matched, err := doublestar.Match(pattern, name)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

func toolAliases(tool string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 3)
	for _, name := range []string{
		tool,
		strings.ReplaceAll(tool, "-", "_"),
		strings.ReplaceAll(tool, "_", "-"),
	} {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func toKebabToolName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

func joinLogs(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}
