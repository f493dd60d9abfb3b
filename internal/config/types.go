package config

import (
	"strings"
)

// Config is the top-level mcpbridge configuration.
type Config struct {
	Servers         map[string]ServerConfig `toml:"servers"`
	FallbackSources []string                `toml:"fallback_sources"`

	// ServerOrigins tracks which file each entry in Servers was read
	// from. It is populated at load time, never persisted.
	ServerOrigins map[string]ServerOrigin `toml:"-"`
}

// ServerConfig is the file-shape (TOML-decodable) description of one
// server entry. TOML has no tagged unions, so this struct stays flat,
// but every consumer that needs to act on "which transport is this"
// goes through Transport(), not ad hoc field-presence checks.
type ServerConfig struct {
	// Stdio transport
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	Cwd     string            `toml:"cwd"`

	// HTTP transport
	URL     string            `toml:"url"`
	Headers map[string]string `toml:"headers"`

	// Glob filters, applied before a tool ever reaches the factory.
	// IncludeTools and AllowedTools are aliases; configuring both is a
	// config-kind error (validated in validate.go).
	IncludeTools  []string `toml:"include_tools"`
	AllowedTools  []string `toml:"allowed_tools"`
	DisabledTools []string `toml:"disabled_tools"`

	// Caching
	DefaultCacheTTL string                `toml:"default_cache_ttl"`
	NoCacheTools    []string              `toml:"no_cache_tools"`
	Tools           map[string]ToolConfig `toml:"tools"`
}

// ToolConfig holds per-tool overrides.
type ToolConfig struct {
	Cache *bool `toml:"cache"`
}

// IsStdio returns true if the server uses stdio transport.
func (s ServerConfig) IsStdio() bool {
	return strings.TrimSpace(s.Command) != ""
}

// IsHTTP returns true if the server uses HTTP transport.
func (s ServerConfig) IsHTTP() bool {
	return strings.TrimSpace(s.URL) != ""
}

// Transport is the tagged variant §3 names: a ServerConfig describes
// exactly one of these, never both and never neither (Validate rejects
// the configuration otherwise, so Transport is only called on already
// validated configs).
type Transport interface {
	transportVariant()
}

// StdioVariant describes a locally spawned subprocess MCP server.
type StdioVariant struct {
	Command string
	Args    []string
	Env     map[string]string
	Cwd     string
}

// HTTPVariant describes a remote MCP endpoint.
type HTTPVariant struct {
	URL     string
	Headers map[string]string
}

func (StdioVariant) transportVariant() {}
func (HTTPVariant) transportVariant()  {}

// Transport resolves the tagged variant for an already-validated
// ServerConfig. Validate rejects configs with neither or both
// transports set, so this only panics on a config that skipped
// validation.
func (s ServerConfig) Transport() Transport {
	switch {
	case s.IsStdio():
		return StdioVariant{Command: s.Command, Args: s.Args, Env: s.Env, Cwd: s.Cwd}
	case s.IsHTTP():
		return HTTPVariant{URL: s.URL, Headers: s.Headers}
	default:
		panic("config: server has neither command nor url configured")
	}
}

// EffectiveAllowedTools merges the includeTools/allowedTools aliases
// into a single glob list (Validate rejects configuring both).
func (s ServerConfig) EffectiveAllowedTools() []string {
	if len(s.IncludeTools) > 0 {
		return s.IncludeTools
	}
	return s.AllowedTools
}
