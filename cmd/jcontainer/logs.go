package main

import (
	"os"

	"github.com/spf13/cobra"

	"jcontainer/pkg/lifecycle"
)

var logsCmd = &cobra.Command{
	Use:   "logs CONTAINER_ID",
	Short: "Print a container's captured stdout/stderr",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle.New(openRegistry()).Logs(args[0], os.Stdout, os.Stderr)
	},
}
