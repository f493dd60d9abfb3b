package daemon

import (
	"errors"
	"strings"

	"github.com/mcpbridge/mcpbridge/internal/brokererr"
	"github.com/mcpbridge/mcpbridge/internal/ipc"
	"github.com/mark3labs/mcp-go/mcp"
)

// classifyCallToolError maps a tool-call failure to an exit code. The typed
// sentinels from mark3labs/mcp-go are checked first since they survive a
// local in-process call; everything that only reaches this daemon as a
// stringified JSON-RPC error (the common case once a request has crossed a
// transport) falls through to brokererr's message-based classifier, shared
// with the ephemeral call path in internal/router.
func classifyCallToolError(err error) int {
	if err == nil {
		return ipc.ExitOK
	}
	if isLocalToolNotFoundError(err) || errors.Is(err, mcp.ErrMethodNotFound) {
		return ipc.ExitToolErr
	}
	if errors.Is(err, mcp.ErrInvalidParams) {
		return ipc.ExitClientErr
	}
	return brokererr.ExitCodeForKind(brokererr.ClassifyToolError(err))
}

func classifyToolLookupError(err error) int {
	if err == nil {
		return ipc.ExitOK
	}
	if isLocalToolNotFoundError(err) {
		return ipc.ExitToolErr
	}
	return ipc.ExitNetworkErr
}

func isLocalToolNotFoundError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.HasPrefix(msg, "tool ") && strings.Contains(msg, " not found on server ")
}
