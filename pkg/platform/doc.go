// Package platform wraps the raw namespace/mount syscalls this runtime
// needs (unshare, mount, umount2, pivot_root, sethostname, chroot, chdir)
// and selects, once at startup, which of two behavior sets — full Linux
// namespace isolation or a degraded chroot-only mode — the rest of the
// program should use.
//
// Callers never branch on runtime.GOOS themselves; they call methods on
// the Strategy returned by Current.
package platform
