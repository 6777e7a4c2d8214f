// Command jcontainer is an OCI-compatible single-binary container
// runtime: it pulls images, extracts them, and runs a command inside
// Linux namespaces with optional cgroup and network isolation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jcontainer/pkg/config"
	"jcontainer/pkg/log"
	"jcontainer/pkg/registry"
)

func main() {
	log.Init(log.Config{Level: log.InfoLevel})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jcontainer",
	Short: "A small OCI-compatible container runtime",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(childCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(rmCmd)
}

func openRegistry() *registry.Registry {
	return registry.New(config.DefaultContainersRoot())
}
