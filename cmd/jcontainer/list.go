package main

import (
	"os"

	"github.com/spf13/cobra"

	"jcontainer/pkg/lifecycle"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known containers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle.New(openRegistry()).List(os.Stdout)
	},
}
