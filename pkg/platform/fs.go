package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// setupFilesystemLinux performs the pivot_root sequence the Linux Child
// Initializer needs:
//
//  1. make all mounts private, so nothing here leaks back to the host
//     (the parent already unshared the mount namespace, but pivot_root
//     additionally requires the new root to be a mount point distinct
//     from "/")
//  2. bind-mount rootfs onto itself to satisfy that requirement
//  3. pivot_root into it, stashing the old root under <rootfs>/oldrootfs
//  4. mount /proc inside the new root
//  5. detach and remove the old root
//
// Any failure here is fatal; the caller (Child Initializer) aborts with
// a diagnostic and the parent observes a non-zero exit code.
func setupFilesystemLinux(rootfs string) error {
	if err := Mount("none", "/", "", MsRec|MsPrivate, ""); err != nil {
		return fmt.Errorf("mount / private: %w", err)
	}
	if err := Mount(rootfs, rootfs, "", MsBind, ""); err != nil {
		return fmt.Errorf("bind mount rootfs: %w", err)
	}

	oldRoot := filepath.Join(rootfs, "oldrootfs")
	if err := os.MkdirAll(oldRoot, 0o700); err != nil {
		return fmt.Errorf("create oldrootfs: %w", err)
	}

	if err := PivotRoot(rootfs, oldRoot); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	if err := Chdir("/"); err != nil {
		return fmt.Errorf("chdir /: %w", err)
	}

	if err := os.MkdirAll("/proc", 0o555); err != nil {
		return fmt.Errorf("create /proc: %w", err)
	}
	if err := Mount("proc", "/proc", "proc", 0, ""); err != nil {
		return fmt.Errorf("mount /proc: %w", err)
	}

	if err := Unmount("/oldrootfs", MntDetach); err != nil {
		return fmt.Errorf("unmount oldrootfs: %w", err)
	}
	if err := os.RemoveAll("/oldrootfs"); err != nil {
		return fmt.Errorf("remove oldrootfs: %w", err)
	}

	return nil
}
