package transport

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// Stdio spawns command/args as a child process with a merged
// environment (process env union config env, config overriding) and
// speaks line-framed JSON-RPC over its stdio.
type Stdio struct {
	ServerName string
	Command    string
	Args       []string
	Env        map[string]string
	Cwd        string
}

func (s *Stdio) Open(ctx context.Context) (Session, error) {
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}

	c, err := mcpclient.NewStdioMCPClient(s.Command, env, s.Args...)
	if err != nil {
		return nil, fmt.Errorf("creating stdio client: %w", err)
	}

	var fwd *stderrForwarder
	if stdio, ok := c.GetTransport().(*mcptransport.Stdio); ok {
		if stderrPipe := stdio.Stderr(); stderrPipe != nil {
			fwd = newStderrForwarder(s.ServerName, stderrPipe)
		}
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
		detail := ""
		if fwd != nil {
			detail = fwd.Captured()
		}
		if detail != "" {
			return nil, fmt.Errorf("initializing %s: %w (stderr: %s)", s.ServerName, err, detail)
		}
		return nil, fmt.Errorf("initializing %s: %w", s.ServerName, err)
	}
	if fwd != nil {
		fwd.StopCapture()
	}

	instructions := ""
	if result != nil {
		instructions = result.Instructions
	}

	return &clientSession{c: c, instructions: instructions}, nil
}
