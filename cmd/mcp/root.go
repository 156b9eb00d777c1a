package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcp-daemon/mcp-daemon/internal/mcperr"
)

var configPath string

// newRootCmd builds the client command tree: list, info, tool, call,
// search, status, plus the global --config flag — the CLI surface named in
// spec.md §7 (deliberately thin: every subcommand runs EnsureDaemon and
// then its own IPC requests; list --with-descriptions and search issue one
// ListTools request per configured server).
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mcp",
		Short:         "Query and invoke tools on configured MCP servers via the background daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the mcp_servers.toml config file")

	root.AddCommand(
		newListCmd(),
		newInfoCmd(),
		newToolCmd(),
		newCallCmd(),
		newSearchCmd(),
		newStatusCmd(),
	)
	return root
}

// exitCodeFor maps a client-visible error to a process exit code: the
// wire error code for classified daemon errors, 1 for anything else —
// spec.md §7 ("nonzero on error, taxonomy delegated to error-handling").
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if e, ok := err.(*mcperr.Error); ok {
		return e.Kind.Code()
	}
	return 1
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
