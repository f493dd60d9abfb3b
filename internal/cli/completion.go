package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mcpbridge/mcpbridge/internal/ipc"
)

func runCompletionCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "mcpbridge: usage: mcpbridge completion <bash|zsh|fish>")
		return ipc.ExitClientErr
	}

	script, ok := completionScripts[strings.ToLower(args[0])]
	if !ok {
		fmt.Fprintf(stderr, "mcpbridge: unknown shell for completion: %s\n", args[0])
		return ipc.ExitClientErr
	}

	_, _ = io.WriteString(stdout, script)
	return ipc.ExitOK
}

func runInternalCompletion(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "mcpbridge: usage: mcpbridge __complete <servers|tools|flags> ...")
		return ipc.ExitClientErr
	}

	switch args[0] {
	case "servers":
		if len(args) != 1 {
			fmt.Fprintln(stderr, "mcpbridge: usage: mcpbridge __complete servers")
			return ipc.ExitClientErr
		}
		return completeServers(stdout, stderr)
	case "tools":
		if len(args) != 2 {
			fmt.Fprintln(stderr, "mcpbridge: usage: mcpbridge __complete tools <server>")
			return ipc.ExitClientErr
		}
		return completeTools(args[1], stdout, stderr)
	case "flags":
		if len(args) != 3 {
			fmt.Fprintln(stderr, "mcpbridge: usage: mcpbridge __complete flags <server> <tool>")
			return ipc.ExitClientErr
		}
		return completeFlags(args[1], args[2], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "mcpbridge: unknown completion query: %s\n", args[0])
		return ipc.ExitClientErr
	}
}
