package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var withDescriptions bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := connect()
			if err != nil {
				return err
			}

			servers, err := client.ListServers()
			if err != nil {
				return err
			}

			for _, name := range servers {
				if !withDescriptions {
					fmt.Println(name)
					continue
				}
				tools, err := client.ListTools(name)
				if err != nil {
					fmt.Printf("%s\t(error: %v)\n", name, err)
					continue
				}
				fmt.Printf("%s\t%d tool(s)\n", name, len(tools))
				for _, t := range tools {
					fmt.Printf("  - %s: %s\n", t.Name, t.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withDescriptions, "with-descriptions", false, "also list each server's tools")
	return cmd
}
