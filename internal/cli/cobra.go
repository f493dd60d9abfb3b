package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mcpbridge/mcpbridge/internal/config"
	"github.com/mcpbridge/mcpbridge/internal/daemon"
	"github.com/mcpbridge/mcpbridge/internal/ipc"
	"github.com/mcpbridge/mcpbridge/internal/router"
	"github.com/mcpbridge/mcpbridge/internal/runner"
)

// exitCodeError lets a cobra RunE communicate the process exit code the
// hand-rolled dispatcher in root.go returns for everything else, instead of
// cobra's default of always exiting 1 on error.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func exitErr(code int, format string, args ...any) *exitCodeError {
	return &exitCodeError{code: code, err: fmt.Errorf(format, args...)}
}

// newStaticCommandTree builds the cobra command tree for the subcommands
// that don't depend on the dynamically configured server list: daemon
// lifecycle control and the cross-server tool listing. Per-server tool
// invocation stays on the hand-rolled parser in root.go, since pflag's
// fixed flag registration has no way to represent the arbitrary
// --flag=value surface a remote tool's own schema defines at runtime.
func newStaticCommandTree(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "mcpbridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newDaemonCommand())
	root.AddCommand(newToolsCommand(cfg))
	return root
}

func newDaemonCommand() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Control the background mcpbridge daemon",
	}

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the daemon if it isn't already running",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := daemon.SpawnOrConnect(); err != nil {
				return exitErr(ipc.ExitNetworkErr, "%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "daemon started")
			return nil
		},
	})

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the daemon to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return exitErr(ipc.ExitClientErr, "%v", err)
			}
			resp, err := daemon.Stop(force)
			if err != nil {
				return exitErr(ipc.ExitNetworkErr, "%v", err)
			}
			if resp.ExitCode != ipc.ExitOK {
				return &exitCodeError{code: resp.ExitCode, err: fmt.Errorf("%s", resp.Stderr)}
			}
			if resp.Stderr != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), resp.Stderr)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(resp.Content))
			return nil
		},
	}
	registerForceFlag(stopCmd.Flags())
	daemonCmd.AddCommand(stopCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			showMetrics, err := cmd.Flags().GetBool("metrics")
			if err != nil {
				return exitErr(ipc.ExitClientErr, "%v", err)
			}
			if showMetrics {
				resp, err := daemon.Metrics()
				if err != nil {
					return exitErr(ipc.ExitNetworkErr, "%v", err)
				}
				if resp.ExitCode != ipc.ExitOK {
					return &exitCodeError{code: resp.ExitCode, err: fmt.Errorf("%s", resp.Stderr)}
				}
				fmt.Fprint(cmd.OutOrStdout(), string(resp.Content))
				return nil
			}

			running, resp, err := daemon.Status()
			if err != nil {
				return exitErr(ipc.ExitNetworkErr, "%v", err)
			}
			out := cmd.OutOrStdout()
			if !running {
				fmt.Fprintln(out, "daemon: not running")
				return nil
			}
			fmt.Fprintln(out, "daemon: running")
			if len(resp.Content) > 0 {
				fmt.Fprintln(out, "servers:")
				fmt.Fprint(out, string(resp.Content))
			}
			return nil
		},
	}
	statusCmd.Flags().Bool("metrics", false, "print the daemon's Prometheus counters instead of its server catalog")
	daemonCmd.AddCommand(statusCmd)

	return daemonCmd
}

// serverToolListing holds one server's list_tools result for the tools
// command's fan-out across the configured servers.
type serverToolListing struct {
	server string
	resp   *ipc.Response
	err    error
}

func newToolsCommand(cfg *config.Config) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List tools exposed by every configured server",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return exitErr(ipc.ExitClientErr, "%v", err)
			}
			return runToolsCommand(cmd.Context(), cfg, verbose, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	toolsCmd.Flags().BoolP("verbose", "v", false, "show full tool descriptions")
	return toolsCmd
}

// runToolsCommand fans the daemon round trips for list_tools out across
// MCP_CONCURRENCY workers instead of the one-server-per-invocation path
// the rest of the CLI takes. Each server's failure is isolated: one
// unreachable server doesn't stop the others from printing.
func runToolsCommand(ctx context.Context, cfg *config.Config, verbose bool, stdout, stderr io.Writer) error {
	names := make([]string, 0, len(cfg.Servers))
	for name := range cfg.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		fmt.Fprintln(stdout, "No MCP servers configured.")
		return nil
	}

	nonce, err := daemon.SpawnOrConnect()
	if err != nil {
		return exitErr(ipc.ExitNetworkErr, "%v", err)
	}
	client := ipc.NewClient(ipc.SocketPath(), nonce)
	cwd := callerWorkingDirectory()

	ctx, cancel := context.WithTimeout(ctx, router.TimeoutFromEnv())
	defer cancel()

	results := runner.Run(ctx, names, runner.ConcurrencyFromEnv(),
		func(ctx context.Context, server string, _ int) serverToolListing {
			resp, err := client.Send(&ipc.Request{Type: "list_tools", Server: server, Verbose: verbose, CWD: cwd})
			return serverToolListing{server: server, resp: resp, err: err}
		},
		func(server string, _ int, recovered any) serverToolListing {
			return serverToolListing{server: server, err: fmt.Errorf("panic listing tools: %v", recovered)}
		},
	)

	exitCode := ipc.ExitOK
	for _, r := range results {
		fmt.Fprintf(stdout, "== %s ==\n", r.server)
		if r.err != nil {
			fmt.Fprintf(stderr, "  %s: %v\n", r.server, r.err)
			exitCode = ipc.ExitNetworkErr
			continue
		}
		if r.resp.Stderr != "" {
			fmt.Fprintln(stderr, r.resp.Stderr)
		}
		stdout.Write(r.resp.Content) //nolint:errcheck
		if r.resp.ExitCode != ipc.ExitOK && exitCode == ipc.ExitOK {
			exitCode = r.resp.ExitCode
		}
	}
	if exitCode != ipc.ExitOK {
		return &exitCodeError{code: exitCode, err: fmt.Errorf("one or more servers failed")}
	}
	return nil
}

// registerForceFlag centralizes the --force/-f flag definition shared by
// any subcommand that bypasses a safety check.
func registerForceFlag(flags *pflag.FlagSet) {
	flags.BoolP("force", "f", false, "bypass the active-connection safety check")
}

// runCobraCommand executes a static subcommand tree, buffering cobra's own
// usage/error output so it lands on the same writers the rest of the CLI
// uses, and translates the RunE error into the process exit code.
func runCobraCommand(root *cobra.Command, args []string, stdout, stderr io.Writer) int {
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)

	err := root.Execute()
	stdout.Write(outBuf.Bytes()) //nolint:errcheck
	stderr.Write(errBuf.Bytes()) //nolint:errcheck

	if err == nil {
		return ipc.ExitOK
	}

	var ce *exitCodeError
	if errors.As(err, &ce) {
		if ce.err != nil {
			fmt.Fprintf(stderr, "mcpbridge: %v\n", ce.err)
		}
		return ce.code
	}
	fmt.Fprintf(stderr, "mcpbridge: %v\n", err)
	return ipc.ExitClientErr
}
