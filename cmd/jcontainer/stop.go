package main

import (
	"os"

	"github.com/spf13/cobra"

	"jcontainer/pkg/lifecycle"
)

var stopCmd = &cobra.Command{
	Use:   "stop CONTAINER_ID",
	Short: "Stop a running container",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle.New(openRegistry()).Stop(args[0], os.Stderr)
	},
}
