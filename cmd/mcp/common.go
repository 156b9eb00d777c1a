package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcp-daemon/mcp-daemon/internal/clientlifecycle"
	"github.com/mcp-daemon/mcp-daemon/internal/config"
)

// connect loads the configured servers and ensures a daemon is up and
// reachable, per spec.md §4.E — the one setup step every subcommand shares.
func connect() (*clientlifecycle.Client, error) {
	cfg, err := config.FindAndLoad(configPath)
	if err != nil {
		return nil, err
	}
	return clientlifecycle.EnsureDaemon(context.Background(), cfg)
}

// splitServerTool parses the "server/tool" argument shape used by the
// tool and call subcommands.
func splitServerTool(arg string) (server, tool string, err error) {
	parts := strings.SplitN(arg, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected <server>/<tool>, got %q", arg)
	}
	return parts[0], parts[1], nil
}
