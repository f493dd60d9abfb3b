package daemon

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mcpbridge/mcpbridge/internal/ipc"
	"github.com/mark3labs/mcp-go/mcp"
)

func TestClassifyCallToolErrorUsageInvalidParams(t *testing.T) {
	if got := classifyCallToolError(mcp.ErrInvalidParams); got != ipc.ExitClientErr {
		t.Fatalf("classifyCallToolError(invalid params) = %d, want %d", got, ipc.ExitClientErr)
	}
}

func TestClassifyCallToolErrorToolMethodNotFound(t *testing.T) {
	err := fmt.Errorf("rpc failed: %w", mcp.ErrMethodNotFound)
	if got := classifyCallToolError(err); got != ipc.ExitToolErr {
		t.Fatalf("classifyCallToolError(method not found) = %d, want %d", got, ipc.ExitToolErr)
	}
}

func TestClassifyCallToolErrorUsageFromErrorCodeText(t *testing.T) {
	err := errors.New("json-rpc error -32602: invalid params")
	if got := classifyCallToolError(err); got != ipc.ExitClientErr {
		t.Fatalf("classifyCallToolError(-32602 text) = %d, want %d", got, ipc.ExitClientErr)
	}
}

func TestClassifyCallToolErrorToolLocalToolNotFound(t *testing.T) {
	err := errors.New("tool search not found on server github")
	if got := classifyCallToolError(err); got != ipc.ExitToolErr {
		t.Fatalf("classifyCallToolError(local tool not found) = %d, want %d", got, ipc.ExitToolErr)
	}
}

func TestClassifyCallToolErrorTransportDefault(t *testing.T) {
	err := errors.New("dial unix /tmp/mcpbridge.sock: connect: no such file or directory")
	if got := classifyCallToolError(err); got != ipc.ExitNetworkErr {
		t.Fatalf("classifyCallToolError(transport) = %d, want %d", got, ipc.ExitNetworkErr)
	}
}

func TestClassifyCallToolErrorParseErrorRemainsNetwork(t *testing.T) {
	if got := classifyCallToolError(mcp.ErrParseError); got != ipc.ExitNetworkErr {
		t.Fatalf("classifyCallToolError(parse error) = %d, want %d", got, ipc.ExitNetworkErr)
	}
}

func TestClassifyCallToolErrorInvalidRequestCodeRemainsNetwork(t *testing.T) {
	err := errors.New("json-rpc error -32600: invalid request")
	if got := classifyCallToolError(err); got != ipc.ExitNetworkErr {
		t.Fatalf("classifyCallToolError(-32600) = %d, want %d", got, ipc.ExitNetworkErr)
	}
}

func TestClassifyToolLookupErrorToolLocalToolNotFound(t *testing.T) {
	err := errors.New("tool read_file not found on server filesystem")
	if got := classifyToolLookupError(err); got != ipc.ExitToolErr {
		t.Fatalf("classifyToolLookupError(local tool not found) = %d, want %d", got, ipc.ExitToolErr)
	}
}

func TestClassifyToolLookupErrorNetworkDefault(t *testing.T) {
	err := errors.New("listing tools: timeout")
	if got := classifyToolLookupError(err); got != ipc.ExitNetworkErr {
		t.Fatalf("classifyToolLookupError(default) = %d, want %d", got, ipc.ExitNetworkErr)
	}
}
