package mcppool

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mcpbridge/mcpbridge/internal/config"
	"github.com/mcpbridge/mcpbridge/internal/retry"
	"github.com/mcpbridge/mcpbridge/internal/transport"
)

// openSession resolves a server's tagged transport variant and opens a
// session against it, retrying transient failures per retryCfg. It is
// the one place stdio and HTTP connects are created, shared by the
// ephemeral CLI path and the daemon-side pool.
func openSession(ctx context.Context, name string, scfg config.ServerConfig, retryCfg retry.Config) (transport.Session, error) {
	var t transport.Transport

	switch v := scfg.Transport().(type) {
	case config.StdioVariant:
		t = &transport.Stdio{ServerName: name, Command: v.Command, Args: v.Args, Env: v.Env, Cwd: v.Cwd}
	case config.HTTPVariant:
		t = &transport.HTTP{ServerName: name, URL: v.URL, Headers: v.Headers}
	default:
		return nil, fmt.Errorf("server %s: no command or url configured", name)
	}

	var session transport.Session
	err := retryCfg.Do(ctx, "connect:"+name, func(ctx context.Context) error {
		s, openErr := t.Open(ctx)
		if openErr != nil {
			return openErr
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func connectionFromSession(session transport.Session) *connection {
	return &connection{
		listTools: session.ListTools,
		callTool:  session.CallTool,
		close:     session.Close,
	}
}

// configHash canonicalizes a ServerConfig's connection-relevant fields
// (transport identity, not tool filters or cache policy) and returns a
// short content hash, used to detect config drift under a pooled
// connection's key without reconnecting on every cache/filter edit.
func configHash(scfg config.ServerConfig) string {
	canon := struct {
		Command string            `json:"command,omitempty"`
		Args    []string          `json:"args,omitempty"`
		Env     map[string]string `json:"env,omitempty"`
		Cwd     string            `json:"cwd,omitempty"`
		URL     string            `json:"url,omitempty"`
		Headers map[string]string `json:"headers,omitempty"`
	}{
		Command: scfg.Command,
		Args:    scfg.Args,
		Env:     scfg.Env,
		Cwd:     scfg.Cwd,
		URL:     scfg.URL,
		Headers: scfg.Headers,
	}

	data, _ := json.Marshal(sortedCanonical(canon))
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:16]
}

// sortedCanonical round-trips through an ordered JSON marshal so map
// key order never affects the hash.
func sortedCanonical(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return canonicalizeMaps(m)
}

func canonicalizeMaps(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]any, len(m))
	for _, k := range keys {
		out[k] = m[k]
	}
	return out
}
