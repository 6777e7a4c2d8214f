// Package cgroup manages a per-container cgroup v2 hierarchy rooted at
// a configurable cgroup v2 mount, applying memory and CPU limits by
// writing the controller files directly.
package cgroup

import (
	"fmt"
	"os"
	"path/filepath"

	"jcontainer/pkg/log"
)

// DefaultRoot is the cgroup v2 unified hierarchy mount point on a
// standard Linux host.
const DefaultRoot = "/sys/fs/cgroup"

const groupName = "jcontainer"

// Manager controls the cgroup v2 directory for a single container.
type Manager struct {
	root string
	path string
}

// New returns a Manager for containerID under root. The cgroup
// directory is not created until Create is called.
func New(root, containerID string) *Manager {
	return &Manager{
		root: root,
		path: filepath.Join(root, groupName, containerID),
	}
}

// Create makes the container's cgroup directory and enables the cpu
// and memory controllers for inheritance on the parent jcontainer
// group. The kernel treats enabling an already-enabled controller as
// idempotent, so this is safe to call repeatedly.
func (m *Manager) Create() error {
	if err := os.MkdirAll(m.path, 0o755); err != nil {
		return fmt.Errorf("cgroup: mkdir %s: %w", m.path, err)
	}

	subtreeControl := filepath.Join(m.root, groupName, "cgroup.subtree_control")
	if err := os.WriteFile(subtreeControl, []byte("+cpu +memory\n"), 0o644); err != nil {
		return fmt.Errorf("cgroup: enable controllers on %s: %w", subtreeControl, err)
	}
	return nil
}

// SetMemoryLimit writes the memory.max controller file.
func (m *Manager) SetMemoryLimit(bytes int64) error {
	path := filepath.Join(m.path, "memory.max")
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", bytes)), 0o644); err != nil {
		return fmt.Errorf("cgroup: set memory limit on %s: %w", path, err)
	}
	return nil
}

// SetCPULimit writes the cpu.max controller file, encoding percent as
// a quota over a fixed 100000µs period (100 == one core).
func (m *Manager) SetCPULimit(percent int) error {
	path := filepath.Join(m.path, "cpu.max")
	quota := percent * 1000
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d 100000\n", quota)), 0o644); err != nil {
		return fmt.Errorf("cgroup: set cpu limit on %s: %w", path, err)
	}
	return nil
}

// AddProcess moves pid into the container's cgroup. Must be called
// after the target process has been spawned.
func (m *Manager) AddProcess(pid int) error {
	path := filepath.Join(m.path, "cgroup.procs")
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0o644); err != nil {
		return fmt.Errorf("cgroup: add pid %d to %s: %w", pid, path, err)
	}
	return nil
}

// Close deletes the container's cgroup directory, and the parent
// jcontainer group too if it is now empty. Both deletes are
// best-effort and never return an error.
func (m *Manager) Close() {
	if err := os.Remove(m.path); err != nil {
		logger := log.WithComponent("cgroup")
		logger.Warn().Err(err).Str("path", m.path).Msg("removing cgroup directory")
		return
	}

	// The group counts as empty once no child cgroup directory is left;
	// interface files such as cgroup.subtree_control are always listed.
	// Removing them fails harmlessly on cgroupfs, where rmdir drops them
	// together with the directory.
	parent := filepath.Join(m.root, groupName)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			return
		}
	}
	for _, e := range entries {
		os.Remove(filepath.Join(parent, e.Name()))
	}
	os.Remove(parent)
}
