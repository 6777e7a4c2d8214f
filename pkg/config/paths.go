// Package config resolves the process-wide default directories derived
// from $HOME, computed once at startup and threaded through the rest of
// the program rather than re-read from the environment at each call site.
package config

import (
	"os"
	"path/filepath"
)

const baseDirName = ".jcontainer"

// Resolved once, at package initialization.
var (
	cacheRoot      = filepath.Join(homeDir(), baseDirName, "cache")
	containersRoot = filepath.Join(homeDir(), baseDirName, "containers")
)

// DefaultCacheRoot returns $HOME/.jcontainer/cache, the default root for
// pulled image layers.
func DefaultCacheRoot() string {
	return cacheRoot
}

// DefaultContainersRoot returns $HOME/.jcontainer/containers, the default
// root for the container registry's per-container directories.
func DefaultContainersRoot() string {
	return containersRoot
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	// Fall back to the OS-specific user home when HOME isn't set (e.g. a
	// minimal exec environment); os.UserHomeDir consults the same
	// platform conventions cobra/pflag rely on elsewhere in this codebase.
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
