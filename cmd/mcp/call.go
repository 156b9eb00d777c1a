package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <server>/<tool> [JSON]",
		Short: "Invoke a tool, optionally passing JSON arguments",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, toolName, err := splitServerTool(args[0])
			if err != nil {
				return err
			}

			argsJSON := []byte("{}")
			if len(args) == 2 {
				argsJSON = []byte(args[1])
				var probe map[string]interface{}
				if err := json.Unmarshal(argsJSON, &probe); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}

			client, err := connect()
			if err != nil {
				return err
			}

			result, err := client.ExecuteTool(server, toolName, argsJSON)
			if err != nil {
				return err
			}

			fmt.Println(string(result))
			return nil
		},
	}
}
