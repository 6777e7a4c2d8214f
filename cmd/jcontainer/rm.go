package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jcontainer/pkg/lifecycle"
)

var rmCmd = &cobra.Command{
	Use:   "rm CONTAINER_ID",
	Short: "Remove a stopped container's registry entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		ctl := lifecycle.New(openRegistry())
		if err := ctl.Remove(id); err != nil {
			if lifecycle.IsStillRunning(err) {
				return fmt.Errorf("still-running: %s is still running, stop it first", id)
			}
			return err
		}
		fmt.Printf("Removed %s\n", id)
		return nil
	},
}
