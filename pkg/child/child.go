// Package child implements the Child Initializer: the code that runs
// as PID 1 inside the freshly entered namespaces and execs the user's
// command.
package child

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"jcontainer/pkg/platform"
)

// Run sets the container hostname, finalizes the filesystem (pivot_root
// on Linux, chroot in degraded mode), and replaces the current process
// image with argv via exec. It only returns on failure — on success the
// process image is gone.
func Run(rootfs string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("child: no command given")
	}

	if err := platform.Current.SetHostname(); err != nil {
		return fmt.Errorf("child: set hostname: %w", err)
	}
	if err := platform.Current.SetupFilesystem(rootfs); err != nil {
		return fmt.Errorf("child: setup filesystem: %w", err)
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		// Let syscall.Exec produce the ENOENT diagnostic rather than
		// failing here on a lookup peculiarity.
		path = argv[0]
	}

	if err := syscall.Exec(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("child: exec %s: %w", argv[0], err)
	}
	return nil
}
