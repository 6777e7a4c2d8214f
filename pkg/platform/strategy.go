package platform

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Strategy is the small capability trait that isolates the
// platform-specific behaviors the Parent Driver and Child Initializer
// need, selected once at startup rather than dispatched dynamically at
// every call site.
type Strategy interface {
	// Name identifies the strategy for logging.
	Name() string

	// SetupParent performs whatever parent-process-local namespace setup
	// must happen before the child is spawned. On Linux this is
	// unshare(CLONE_NEWNS|CLONE_NEWUTS) in the current process.
	SetupParent() error

	// BuildChildCommand constructs the re-exec command line that will run
	// the Child Initializer in its own namespaces.
	BuildChildCommand(selfPath, rootfs string, argv []string, network bool) *exec.Cmd

	// SetupFilesystem finalizes the container's root filesystem from
	// inside the Child Initializer: pivot_root on Linux, chroot degraded.
	SetupFilesystem(rootfs string) error

	// SetHostname sets the container's hostname, a no-op in degraded mode.
	SetHostname() error
}

// Select inspects the running OS and returns the matching Strategy.
// Computed once by Current below; no runtime switching happens after
// startup.
func Select() Strategy {
	if strings.Contains(runtime.GOOS, "linux") {
		return linuxStrategy{}
	}
	return degradedStrategy{}
}

// Current is the process-wide Strategy, computed once at package
// initialization.
var Current = Select()

type linuxStrategy struct{}

func (linuxStrategy) Name() string { return "linux" }

func (linuxStrategy) SetupParent() error {
	return Unshare(CloneNewNS | CloneNewUTS)
}

func (linuxStrategy) BuildChildCommand(selfPath, rootfs string, argv []string, network bool) *exec.Cmd {
	args := []string{"--pid"}
	if network {
		args = append(args, "--net")
	}
	args = append(args, "--fork", selfPath, "child", rootfs)
	args = append(args, argv...)
	return exec.Command("unshare", args...)
}

func (linuxStrategy) SetupFilesystem(rootfs string) error {
	return setupFilesystemLinux(rootfs)
}

func (linuxStrategy) SetHostname() error {
	return Sethostname("container")
}

type degradedStrategy struct{}

func (degradedStrategy) Name() string { return "degraded" }

func (degradedStrategy) SetupParent() error {
	// No mount/UTS namespace available; nothing to unshare.
	return nil
}

func (degradedStrategy) BuildChildCommand(selfPath, rootfs string, argv []string, network bool) *exec.Cmd {
	args := append([]string{"child", rootfs}, argv...)
	return exec.Command(selfPath, args...)
}

func (degradedStrategy) SetupFilesystem(rootfs string) error {
	if err := Chroot(rootfs); err != nil {
		return fmt.Errorf("chroot: %w", err)
	}
	if err := Chdir("/"); err != nil {
		return fmt.Errorf("chdir: %w", err)
	}
	return nil
}

func (degradedStrategy) SetHostname() error {
	return nil
}
