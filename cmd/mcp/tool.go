package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newToolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tool <server>/<tool>",
		Short: "Show one tool's description and input schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, toolName, err := splitServerTool(args[0])
			if err != nil {
				return err
			}

			client, err := connect()
			if err != nil {
				return err
			}

			tools, err := client.ListTools(server)
			if err != nil {
				return err
			}

			for _, t := range tools {
				if t.Name == toolName {
					fmt.Printf("%s/%s\n%s\n\nInput schema:\n%s\n", server, t.Name, t.Description, t.InputSchema)
					return nil
				}
			}
			return fmt.Errorf("tool %q not found on server %q (or filtered out)", toolName, server)
		},
	}
}
