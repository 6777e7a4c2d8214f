package platform

// Constants of record for the namespace/mount syscalls this package
// wraps. These are kernel ABI values, not golang.org/x/sys/unix
// re-exports, so that they stay exact and testable independent of which
// platform this code happens to be compiled for.
const (
	MsBind    = 4096
	MsRec     = 16384
	MsPrivate = 1 << 18

	MntDetach = 2

	CloneNewNS  = 0x00020000
	CloneNewUTS = 0x04000000
	CloneNewPID = 0x20000000
	CloneNewNet = 0x40000000
)
