//go:build linux

package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// pivotRootTrap returns the pivot_root syscall number for the running
// architecture. pivot_root has no libc wrapper, so it must be invoked
// through the generic syscall() trampoline with an architecture-selected
// trap number; other architectures fail closed.
func pivotRootTrap() (uintptr, error) {
	switch runtime.GOARCH {
	case "amd64":
		return 155, nil
	case "arm64":
		return 217, nil
	default:
		return 0, fmt.Errorf("pivot_root: unsupported architecture %q", runtime.GOARCH)
	}
}

// Unshare dissociates the calling process's execution context from its
// parent per the given clone flags.
func Unshare(flags int) error {
	return unix.Unshare(flags)
}

// Mount wraps the mount(2) syscall.
func Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

// Unmount wraps the umount2(2) syscall.
func Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

// PivotRoot wraps the pivot_root(2) syscall via the generic syscall
// trampoline, since golang.org/x/sys/unix carries no pivot_root wrapper.
func PivotRoot(newRoot, putOld string) error {
	trap, err := pivotRootTrap()
	if err != nil {
		return err
	}

	newRootPtr, err := unix.BytePtrFromString(newRoot)
	if err != nil {
		return err
	}
	putOldPtr, err := unix.BytePtrFromString(putOld)
	if err != nil {
		return err
	}

	_, _, errno := unix.Syscall(trap, uintptr(unsafe.Pointer(newRootPtr)), uintptr(unsafe.Pointer(putOldPtr)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// Sethostname wraps the sethostname(2) syscall.
func Sethostname(name string) error {
	return unix.Sethostname([]byte(name))
}

// Chroot wraps the chroot(2) syscall.
func Chroot(path string) error {
	return unix.Chroot(path)
}

// Chdir wraps the chdir(2) syscall.
func Chdir(path string) error {
	return unix.Chdir(path)
}
