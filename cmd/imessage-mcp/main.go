package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sameelarif/imessage-mcp/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "imessage-mcp",
		Short: "MCP server for the local iMessage history and address book",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetInfo())
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
