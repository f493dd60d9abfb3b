package config

// ServerOriginKind identifies which file a server definition was read
// from, so `list`/`add` can show provenance and edits land back in the
// right file.
type ServerOriginKind string

const (
	ServerOriginKindMCPBridgeConfig ServerOriginKind = "mcpbridge_config"
	ServerOriginKindClaudeDesktop   ServerOriginKind = "claude_desktop"
	ServerOriginKindCodexApps       ServerOriginKind = "codex_apps"
)

// ServerOrigin records where a ServerConfig entry came from.
type ServerOrigin struct {
	Kind ServerOriginKind `json:"kind"`
	Path string           `json:"path"`
}

// NewServerOrigin builds a ServerOrigin.
func NewServerOrigin(kind ServerOriginKind, path string) ServerOrigin {
	return ServerOrigin{Kind: kind, Path: path}
}
