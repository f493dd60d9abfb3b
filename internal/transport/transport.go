// Package transport gives the connection factory one Session shape over
// the two concrete MCP transports (local stdio subprocess, remote
// streaming HTTP), so retry and pooling logic never has to branch on
// which one it is holding.
package transport

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Session is the capability set an established MCP connection offers,
// regardless of transport (spec data model: listTools, callTool, close).
type Session interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	Close() error
	// Instructions returns the server-advertised instructions captured
	// at handshake, if any.
	Instructions() string
}

// Transport opens a fresh Session. Implementations are Stdio and HTTP.
type Transport interface {
	Open(ctx context.Context) (Session, error)
}
