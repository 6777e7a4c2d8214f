package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jcontainer/pkg/child"
)

// childCmd is the internal re-exec target the Parent Driver spawns; it
// is not meant to be invoked directly by a user.
var childCmd = &cobra.Command{
	Use:                "child ROOTFS CMD [ARGS...]",
	Hidden:             true,
	DisableFlagParsing: true,
	Args:               cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootfs := args[0]
		argv := args[1:]

		if err := child.Run(rootfs, argv); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return nil
	},
}
