package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jcontainer/pkg/config"
	"jcontainer/pkg/container"
	"jcontainer/pkg/image"
	"jcontainer/pkg/imageref"
	"jcontainer/pkg/parent"
	"jcontainer/pkg/registryclient"
)

// runCmd's grammar puts flags before positionals and treats the first
// non-flag token as ending option parsing; cobra/pflag's default
// interspersed parsing doesn't implement that rule (e.g. it would try
// to interpret "-la" in `run /rootfs /bin/ls -la` as a flag of its
// own), so flag parsing is disabled here and done by hand in
// parseRunArgs.
var runCmd = &cobra.Command{
	Use:                "run [--image REF] [--net] [--memory SIZE] [--cpu PERCENT] [ROOTFS] CMD [ARGS...]",
	Short:              "Run a command in a new container",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := parseRunArgs(args)
		if err != nil {
			return fmt.Errorf("config-error: %w", err)
		}
		return runContainer(cfg)
	},
}

// parseRunArgs hand-parses run's argv per the grammar described above.
func parseRunArgs(args []string) (container.Config, error) {
	var cfg container.Config

	i := 0
scan:
	for i < len(args) {
		switch args[i] {
		case "--image":
			if i+1 >= len(args) {
				return cfg, fmt.Errorf("--image requires a value")
			}
			cfg.Image = args[i+1]
			i += 2
		case "--net":
			cfg.NetworkEnabled = true
			i++
		case "--memory":
			if i+1 >= len(args) {
				return cfg, fmt.Errorf("--memory requires a value")
			}
			bytes, err := container.ParseMemory(args[i+1])
			if err != nil {
				return cfg, err
			}
			cfg.MemoryBytes = &bytes
			i += 2
		case "--cpu":
			if i+1 >= len(args) {
				return cfg, fmt.Errorf("--cpu requires a value")
			}
			percent, err := container.ParseCPUPercent(args[i+1])
			if err != nil {
				return cfg, err
			}
			cfg.CPUPercent = &percent
			i += 2
		default:
			// First non-flag token ends option parsing.
			break scan
		}
	}
	rest := args[i:]

	if cfg.Image != "" {
		cfg.Command = rest
	} else {
		if len(rest) < 2 {
			return cfg, fmt.Errorf("ROOTFS and a command are required when --image is not given")
		}
		cfg.Rootfs = rest[0]
		cfg.Command = rest[1:]
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runContainer(cfg container.Config) error {
	rootfs := cfg.Rootfs
	var imageRef *string

	if cfg.Image != "" {
		ref, err := imageref.Parse(cfg.Image)
		if err != nil {
			return fmt.Errorf("config-error: %w", err)
		}
		mgr := image.NewManager(config.DefaultCacheRoot(), registryclient.New())
		pulled, err := mgr.Pull(ref)
		if err != nil {
			return err
		}
		rootfs = pulled
		full := ref.FullName()
		imageRef = &full
	}

	driver := parent.New(openRegistry())
	exitCode, err := driver.Run(parent.Config{
		Rootfs:         rootfs,
		Command:        cfg.Command,
		Image:          imageRef,
		MemoryBytes:    cfg.MemoryBytes,
		CPUPercent:     cfg.CPUPercent,
		NetworkEnabled: cfg.NetworkEnabled,
	})
	if err != nil {
		return err
	}
	os.Exit(exitCode)
	return nil
}
