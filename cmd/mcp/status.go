package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcp-daemon/mcp-daemon/internal/config"
)

// newStatusCmd reports whether the on-disk config still matches the
// fingerprint the running daemon started with, so a stale daemon (config
// edited after it started) is visible before a call silently runs against
// the old server list — spec.md §9's config drift detection, exercised from
// the CLI rather than left to the daemon's own startup check.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Compare the local config against the running daemon's fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ResolvePath(configPath)
			if err != nil {
				return err
			}
			local, err := config.ComputeFileFingerprint(path)
			if err != nil {
				return err
			}

			client, err := connect()
			if err != nil {
				return err
			}
			remote, err := client.GetConfigFingerprint()
			if err != nil {
				return err
			}

			fmt.Printf("config file:    %s\n", path)
			fmt.Printf("local hash:     %s\n", local.Hash)
			fmt.Printf("local mtime:    %s\n", local.Mtime.Format("2006-01-02T15:04:05Z07:00"))
			fmt.Printf("daemon hash:    %s\n", remote)

			if local.Hash != remote {
				fmt.Println("status:         STALE — restart the daemon to pick up the new config")
				return errStaleConfig
			}
			fmt.Println("status:         in sync")
			return nil
		},
	}
}

var errStaleConfig = fmt.Errorf("config fingerprint mismatch")
