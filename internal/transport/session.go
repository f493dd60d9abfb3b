package transport

import (
	"context"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// clientSession adapts *mcpclient.Client (stdio or HTTP) to Session.
type clientSession struct {
	c            *mcpclient.Client
	instructions string
}

func (s *clientSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := s.c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

func (s *clientSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return s.c.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
}

func (s *clientSession) Close() error {
	return s.c.Close()
}

func (s *clientSession) Instructions() string {
	return s.instructions
}
