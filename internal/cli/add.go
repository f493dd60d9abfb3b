package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mcpbridge/mcpbridge/internal/bootstrap"
	"github.com/mcpbridge/mcpbridge/internal/config"
	"github.com/mcpbridge/mcpbridge/internal/ipc"
	"github.com/mcpbridge/mcpbridge/internal/paths"
)

type addArgs struct {
	source    string
	name      string
	overwrite bool
	help      bool
}

func maybeHandleAddCommand(args []string, cfg *config.Config, stdout, stderr io.Writer) (bool, int) {
	if len(args) == 0 || args[0] != "add" {
		return false, 0
	}

	if cfg != nil {
		if _, ok := cfg.Servers["add"]; ok {
			return false, 0
		}
	}

	return true, runAddCommand(args[1:], stdout, stderr)
}

func runAddCommand(args []string, stdout, stderr io.Writer) int {
	parsed, err := parseAddArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "mcpbridge: %v\n", err)
		printAddHelp(stderr)
		return ipc.ExitClientErr
	}
	if parsed.help {
		printAddHelp(stdout)
		return ipc.ExitOK
	}

	resolved, err := bootstrap.Resolve(context.Background(), parsed.source, bootstrap.ResolveOptions{
		Name: parsed.name,
	})
	if err != nil {
		fmt.Fprintf(stderr, "mcpbridge: add: %v\n", err)
		return classifyResolveErrorExitCode(err)
	}

	cfgPath := paths.ConfigFile()
	cfg, err := config.LoadForEditFrom(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "mcpbridge: add: loading config: %v\n", err)
		return ipc.ExitNetworkErr
	}
	if cfg.Servers == nil {
		cfg.Servers = make(map[string]config.ServerConfig)
	}

	_, exists := cfg.Servers[resolved.Name]
	if exists && !parsed.overwrite {
		fmt.Fprintf(stderr, "mcpbridge: add: server %q already exists; rerun with --overwrite to replace it\n", resolved.Name)
		return ipc.ExitClientErr
	}
	if err := bootstrap.CheckPrerequisites(config.ExpandServerForCurrentEnv(resolved.Server)); err != nil {
		fmt.Fprintf(stderr, "mcpbridge: add: %v\n", err)
		return ipc.ExitClientErr
	}

	cfg.Servers[resolved.Name] = resolved.Server
	if err := config.ValidateForCurrentEnv(cfg); err != nil {
		fmt.Fprintf(stderr, "mcpbridge: add: invalid resulting config: %v\n", err)
		return ipc.ExitClientErr
	}

	if err := config.SaveTo(cfgPath, cfg); err != nil {
		fmt.Fprintf(stderr, "mcpbridge: add: writing config: %v\n", err)
		return ipc.ExitNetworkErr
	}

	verb := "Added"
	if exists {
		verb = "Updated"
	}
	fmt.Fprintf(stdout, "%s server %q in %s\n", verb, resolved.Name, cfgPath)
	return ipc.ExitOK
}

func classifyResolveErrorExitCode(err error) int {
	if bootstrap.IsSourceAccessError(err) {
		return ipc.ExitNetworkErr
	}
	return ipc.ExitClientErr
}

func parseAddArgs(args []string) (*addArgs, error) {
	parsed := &addArgs{}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--help" || arg == "-h":
			parsed.help = true
		case arg == "--overwrite":
			parsed.overwrite = true
		case strings.HasPrefix(arg, "--name="):
			value := strings.TrimSpace(strings.TrimPrefix(arg, "--name="))
			if value == "" {
				return nil, fmt.Errorf("missing value for --name")
			}
			parsed.name = value
		case arg == "--name":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --name")
			}
			i++
			value := strings.TrimSpace(args[i])
			if value == "" || strings.HasPrefix(value, "-") {
				return nil, fmt.Errorf("missing value for --name")
			}
			parsed.name = value
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			if parsed.source != "" {
				return nil, fmt.Errorf("unexpected positional argument: %s", arg)
			}
			parsed.source = strings.TrimSpace(arg)
		}
	}

	if parsed.help {
		return parsed, nil
	}
	if parsed.source == "" {
		return nil, fmt.Errorf("missing source (usage: mcpbridge add <source>)")
	}

	return parsed, nil
}

func printAddHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  mcpbridge add <source> [--name <server>] [--overwrite]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Sources:")
	fmt.Fprintln(out, "  - install-link URL (for example cursor://.../mcp/install?... )")
	fmt.Fprintln(out, "  - manifest URL (http/https)")
	fmt.Fprintln(out, "  - local manifest file path (JSON or TOML)")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Flags:")
	fmt.Fprintln(out, "  --name <server>   Select or rename the server entry to add.")
	fmt.Fprintln(out, "  --overwrite       Replace existing server entry in mcpbridge config.")
	fmt.Fprintln(out, "  --help, -h        Show this help output.")
}
