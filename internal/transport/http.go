package transport

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// HTTP connects to a remote MCP endpoint speaking the streamable-HTTP
// JSON-RPC variant (a server-push channel plus client-initiated
// requests over HTTP/1.1+).
type HTTP struct {
	ServerName string
	URL        string
	Headers    map[string]string
}

func (h *HTTP) Open(ctx context.Context) (Session, error) {
	var opts []mcptransport.StreamableHTTPCOption
	if len(h.Headers) > 0 {
		opts = append(opts, mcptransport.WithHTTPHeaders(h.Headers))
	}

	c, err := mcpclient.NewStreamableHttpClient(h.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}

	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("starting HTTP client for %s: %w", h.ServerName, err)
	}

	result, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: "2025-11-25",
			ClientInfo: mcp.Implementation{
				Name:    "mcpbridge",
				Version: "0.1.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing %s: %w", h.ServerName, err)
	}

	instructions := ""
	if result != nil {
		instructions = result.Instructions
	}

	return &clientSession{c: c, instructions: instructions}, nil
}
