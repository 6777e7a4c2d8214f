//go:build !linux

package platform

import (
	"errors"

	"golang.org/x/sys/unix"
)

var errUnsupported = errors.New("unsupported on this platform")

// Unshare is unavailable outside Linux.
func Unshare(flags int) error { return errUnsupported }

// Mount is unavailable outside Linux.
func Mount(source, target, fstype string, flags uintptr, data string) error { return errUnsupported }

// Unmount is unavailable outside Linux.
func Unmount(target string, flags int) error { return errUnsupported }

// PivotRoot is unavailable outside Linux.
func PivotRoot(newRoot, putOld string) error { return errUnsupported }

// Sethostname is unavailable outside Linux.
func Sethostname(name string) error { return errUnsupported }

// Chroot and Chdir remain available in degraded mode; they are plain
// POSIX syscalls present on every target this program is likely to run
// development builds on.
func Chroot(path string) error { return unix.Chroot(path) }

func Chdir(path string) error { return unix.Chdir(path) }
