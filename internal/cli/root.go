package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/mcpbridge/mcpbridge/internal/config"
	"github.com/mcpbridge/mcpbridge/internal/daemon"
	"github.com/mcpbridge/mcpbridge/internal/ipc"
	"github.com/mcpbridge/mcpbridge/internal/router"
)

// Run is the main CLI entry point. Returns an exit code.
func Run(args []string) int {
	if handled, code := handleRootFlags(args); handled {
		return code
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		return ipc.ExitNetworkErr
	}

	if ferr := config.MergeFallbackServers(cfg); ferr != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: warning: failed to load fallback MCP server config: %v\n", ferr)
	}

	if handled, code := maybeHandleCompletionCommand(args, cfg, rootStdout, rootStderr); handled {
		return code
	}

	if handled, code := maybeHandleSkillCommand(args, cfg, rootStdout, rootStderr); handled {
		return code
	}

	if handled, code := maybeHandleAddCommand(args, cfg, rootStdout, rootStderr); handled {
		return code
	}

	if handled, code := maybeHandleShimCommand(args, cfg, rootStdout, rootStderr); handled {
		return code
	}

	if handled, code := maybeHandleStaticCommand(args, cfg, rootStdout, rootStderr); handled {
		return code
	}

	if verr := config.Validate(cfg); verr != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: invalid config: %v\n", verr)
		return ipc.ExitClientErr
	}

	// No args: list servers
	if len(args) == 0 {
		return listServers(cfg)
	}

	server := args[0]
	if _, ok := cfg.Servers[server]; !ok {
		fmt.Fprintf(os.Stderr, "mcpbridge: unknown server: %s\n", server)
		fmt.Fprintf(os.Stderr, "Available servers:\n")
		for name := range cfg.Servers {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
		return ipc.ExitClientErr
	}

	cmd, err := parseServerCommand(args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		return ipc.ExitClientErr
	}
	if cmd.list && cmd.listOpts.help {
		printToolListHelp(os.Stdout, server)
		return ipc.ExitOK
	}

	cwd := callerWorkingDirectory()

	if cmd.list {
		nonce, err := daemon.SpawnOrConnect()
		if err != nil {
			fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
			return ipc.ExitNetworkErr
		}
		client := ipc.NewClient(ipc.SocketPath(), nonce)
		return listTools(client, server, cwd, cmd.listOpts.verbose)
	}

	return callTool(cfg.Servers[server], server, cmd.tool, cmd.toolArgs, cwd)
}

// maybeHandleStaticCommand dispatches the subcommands that don't depend on
// the dynamically configured server list (daemon control, cross-server
// tool listing) through the cobra tree in cobra.go. A configured server
// named after one of these subcommands always wins, the same precedence
// rule completion and skill handling already follow.
func maybeHandleStaticCommand(args []string, cfg *config.Config, stdout, stderr io.Writer) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}
	switch args[0] {
	case "daemon", "tools":
	default:
		return false, 0
	}
	if cfg != nil {
		if _, ok := cfg.Servers[args[0]]; ok {
			return false, 0
		}
	}
	return true, runCobraCommand(newStaticCommandTree(cfg), args, stdout, stderr)
}

func maybeHandleCompletionCommand(args []string, cfg *config.Config, stdout, stderr io.Writer) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}

	switch args[0] {
	case "completion":
		if cfg != nil {
			if _, ok := cfg.Servers["completion"]; ok {
				return false, 0
			}
		}
		return true, runCompletionCommand(args[1:], stdout, stderr)
	case "__complete":
		if cfg != nil {
			if _, ok := cfg.Servers["__complete"]; ok {
				return false, 0
			}
		}
		return true, runInternalCompletion(args[1:], stdout, stderr)
	default:
		return false, 0
	}
}

func listServers(cfg *config.Config) int {
	if len(cfg.Servers) == 0 {
		fmt.Println("No MCP servers configured.")
		fmt.Printf("Create a config file at %s\n", config.ExampleConfigPath())
		return 0
	}
	names := make([]string, 0, len(cfg.Servers))
	for name := range cfg.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return 0
}

type toolListArgs struct {
	verbose bool
	help    bool
}

type serverCommand struct {
	list     bool
	listOpts toolListArgs
	tool     string
	toolArgs []string
}

func parseServerCommand(args []string) (serverCommand, error) {
	if len(args) == 0 {
		return serverCommand{list: true}, nil
	}

	// Force tool mode for dash-prefixed tool names:
	// mcpbridge <server> -- --help
	if args[0] == "--" {
		if len(args) == 1 {
			return serverCommand{}, fmt.Errorf("missing tool name after --")
		}
		return serverCommand{
			tool:     args[1],
			toolArgs: args[2:],
		}, nil
	}

	if strings.HasPrefix(args[0], "-") {
		opts, err := parseToolListArgs(args)
		if err == nil {
			return serverCommand{
				list:     true,
				listOpts: opts,
			}, nil
		}
		if isToolListFlag(args[0]) {
			return serverCommand{}, err
		}
	}

	return serverCommand{
		tool:     args[0],
		toolArgs: args[1:],
	}, nil
}

func parseToolListArgs(args []string) (toolListArgs, error) {
	parsed := toolListArgs{}
	for _, arg := range args {
		switch arg {
		case "-v", "--verbose":
			parsed.verbose = true
		case "-h", "--help":
			parsed.help = true
		default:
			return toolListArgs{}, fmt.Errorf("unsupported flag for tool listing: %s", arg)
		}
	}
	return parsed, nil
}

func isToolListFlag(arg string) bool {
	switch arg {
	case "-v", "--verbose", "-h", "--help":
		return true
	default:
		return false
	}
}

func printToolListHelp(out io.Writer, server string) {
	fmt.Fprintf(out, "Usage: mcpbridge %s [FLAGS]\n", server)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "List tools exposed by the server.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Flags:")
	fmt.Fprintln(out, "  --verbose, -v    Show full tool descriptions")
	fmt.Fprintln(out, "  --help, -h       Show this help output")
}

func listTools(client *ipc.Client, server, cwd string, verbose bool) int {
	resp, err := client.Send(&ipc.Request{
		Type:    "list_tools",
		Server:  server,
		Verbose: verbose,
		CWD:     cwd,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		return ipc.ExitNetworkErr
	}
	if resp.Stderr != "" {
		fmt.Fprintln(os.Stderr, resp.Stderr)
	}
	os.Stdout.Write(resp.Content)
	return resp.ExitCode
}

func showHelp(client *ipc.Client, server, tool, cwd string) int {
	resp, err := client.Send(&ipc.Request{
		Type:   "tool_schema",
		Server: server,
		Tool:   tool,
		CWD:    cwd,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		return ipc.ExitNetworkErr
	}
	if resp.Stderr != "" {
		fmt.Fprintln(os.Stderr, resp.Stderr)
		return resp.ExitCode
	}

	toolName, desc, inputSchema, outputSchema := parseToolHelpPayload(resp.Content)
	if inputSchema == nil {
		os.Stdout.Write(resp.Content)
		return 0
	}

	if toolName == "" {
		toolName = tool
	}

	printToolHelp(os.Stdout, server, toolName, desc, inputSchema, outputSchema)
	if _, err := writeManPage(server, toolName, desc, inputSchema, outputSchema); err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: warning: failed to write man page: %v\n", err)
	}
	return 0
}

// callTool implements the invocation router: a call is routed through the
// existing daemon only when one is already alive and already knows about
// server, so a cold CLI invocation is never the reason a daemon gets
// spawned. Otherwise it opens and tears down an ephemeral session for
// this one call. Either way, the whole invocation shares one timeout
// budget (MCP_TIMEOUT) across the stdin read and the call itself.
func callTool(scfg config.ServerConfig, server, tool string, rawArgs []string, cwd string) int {
	ctx, cancel := context.WithTimeout(context.Background(), router.TimeoutFromEnv())
	defer cancel()

	parsed, err := parseToolCallArgs(ctx, rawArgs, os.Stdin, stdinIsTTY(os.Stdin))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		return ipc.ExitClientErr
	}

	alive, hasServer, _ := daemon.Probe(server, cwd)
	if parsed.help {
		nonce, err := daemon.SpawnOrConnect()
		if err != nil {
			fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
			return ipc.ExitNetworkErr
		}
		return showHelp(ipc.NewClient(ipc.SocketPath(), nonce), server, tool, cwd)
	}

	argsJSON, err := json.Marshal(parsed.toolArgs)
	if err != nil {
		if !parsed.quiet {
			fmt.Fprintf(os.Stderr, "mcpbridge: invalid arguments: %v\n", err)
		}
		return ipc.ExitClientErr
	}

	if !router.Decide(alive, hasServer) {
		resp := router.CallEphemeral(ctx, scfg, server, tool, argsJSON, parsed.verbose)
		writeCallResponse(resp, parsed.quiet, os.Stdout, os.Stderr)
		return resp.ExitCode
	}

	nonce, err := daemon.SpawnOrConnect()
	if err != nil {
		if !parsed.quiet {
			fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		}
		return ipc.ExitNetworkErr
	}
	client := ipc.NewClient(ipc.SocketPath(), nonce)

	resp, err := client.Send(&ipc.Request{
		Type:    "call_tool",
		Server:  server,
		Tool:    tool,
		Args:    argsJSON,
		Cache:   parsed.cacheTTL,
		Verbose: parsed.verbose,
		CWD:     cwd,
	})
	if err != nil {
		if !parsed.quiet {
			fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		}
		return ipc.ExitNetworkErr
	}
	writeCallResponse(resp, parsed.quiet, os.Stdout, os.Stderr)
	return resp.ExitCode
}

func writeCallResponse(resp *ipc.Response, quiet bool, stdout, stderr io.Writer) {
	if resp == nil {
		return
	}
	if quiet {
		writeToolResponse(resp, true, stdout, stderr)
		return
	}
	if resp.Stderr != "" {
		fmt.Fprintln(stderr, resp.Stderr)
	}
	writeToolResponse(resp, false, stdout, stderr)
}

func writeToolResponse(resp *ipc.Response, quiet bool, stdout, stderr io.Writer) {
	if resp == nil {
		return
	}

	if resp.ExitCode == ipc.ExitOK {
		stdout.Write(resp.Content) //nolint:errcheck
		return
	}

	if quiet {
		return
	}

	if len(resp.Content) > 0 {
		stderr.Write(resp.Content) //nolint:errcheck
	}
}

func stdinIsTTY(file *os.File) bool {
	info, err := file.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&fs.ModeCharDevice != 0
}

func callerWorkingDirectory() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return cwd
}
