package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <server>",
		Short: "Show the tools exposed by one configured server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}

			server := args[0]
			tools, err := client.ListTools(server)
			if err != nil {
				return err
			}

			fmt.Printf("%s: %d tool(s)\n", server, len(tools))
			for _, t := range tools {
				fmt.Printf("  %s\n    %s\n", t.Name, t.Description)
			}
			return nil
		},
	}
}
