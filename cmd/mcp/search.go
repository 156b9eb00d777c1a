package main

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <glob>",
		Short: "Find tools across every configured server whose name matches a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := glob.Compile(args[0])
			if err != nil {
				return fmt.Errorf("invalid glob %q: %w", args[0], err)
			}

			client, err := connect()
			if err != nil {
				return err
			}

			servers, err := client.ListServers()
			if err != nil {
				return err
			}

			matched := 0
			for _, server := range servers {
				tools, err := client.ListTools(server)
				if err != nil {
					fmt.Printf("%s: error: %v\n", server, err)
					continue
				}
				for _, t := range tools {
					if pattern.Match(t.Name) {
						fmt.Printf("%s/%s\t%s\n", server, t.Name, t.Description)
						matched++
					}
				}
			}
			if matched == 0 {
				fmt.Println("no matching tools")
			}
			return nil
		},
	}
}
