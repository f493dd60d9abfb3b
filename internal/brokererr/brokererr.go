// Package brokererr models the error taxonomy from the broker's design:
// every error surfaced across a component boundary carries a kind, a
// one-line message, optional details, and an optional remediation
// suggestion.
package brokererr

import (
	"fmt"
	"strings"
)

// Kind classifies an error for exit-code mapping and CLI presentation.
// It deliberately names the failure category, not a Go type.
type Kind string

const (
	Client     Kind = "client"
	ServerTool Kind = "server_tool"
	Network    Kind = "network"
	Config     Kind = "config"
)

// Error is the broker's error envelope.
type Error struct {
	Kind       Kind
	Message    string
	Details    string
	Suggestion string
	Cause      error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind, deriving a suggestion from the
// message when one of the common substrings is recognized (§7: "advisory;
// an implementer may do nothing beyond passing details through").
func New(kind Kind, message string, cause error) *Error {
	e := &Error{Kind: kind, Message: message, Cause: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	e.Suggestion = suggest(e.Details)
	return e
}

func suggest(detail string) string {
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "no such file"), strings.Contains(lower, "not found"):
		return "check the path or server name and try again"
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "401"), strings.Contains(lower, "403"), strings.Contains(lower, "forbidden"):
		return "check credentials or headers configured for this server"
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"):
		return "the server is rate-limiting requests; retry after a pause"
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return "the server took too long to respond; check MCP_TIMEOUT or server health"
	default:
		return ""
	}
}

// ExitCode maps a Kind to the CLI exit codes in §6: 0 success, 1 client
// error, 2 server/tool error, 3 network error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var be *Error
	if e, ok := err.(*Error); ok {
		be = e
	} else {
		return 1
	}
	return ExitCodeForKind(be.Kind)
}

// ExitCodeForKind maps a Kind directly to its §6 exit code, for callers that
// classify an error to a Kind without wrapping it in an *Error first.
func ExitCodeForKind(kind Kind) int {
	switch kind {
	case Client, Config:
		return 1
	case ServerTool:
		return 2
	case Network:
		return 3
	default:
		return 1
	}
}

// ClassifyToolError inspects an error message for the JSON-RPC method/params
// substrings a wire transport surfaces when the underlying error type has
// already been unwrapped away, and returns the Kind it corresponds to.
// Callers that still have a typed sentinel (e.g. mcp.ErrMethodNotFound)
// should check that first; this is the message-based fallback for
// transports or local lookups that only hand back a string.
func ClassifyToolError(err error) Kind {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	if strings.HasPrefix(msg, "tool ") && strings.Contains(msg, " not found on server ") {
		return ServerTool
	}
	if strings.Contains(msg, "-32601") || strings.Contains(msg, "method not found") {
		return ServerTool
	}
	if strings.Contains(msg, "-32602") || strings.Contains(msg, "invalid params") {
		return Client
	}
	return Network
}
