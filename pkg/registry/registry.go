// Package registry persists container state to a directory-per-container
// tree on disk and reconciles recorded liveness against the OS process
// table.
package registry

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"jcontainer/pkg/container"
)

// ErrNotFound is returned by Get and Remove when no container with the
// given id is registered.
var ErrNotFound = errors.New("registry: container not found")

// ErrStillRunning is returned by Remove when the container's recorded
// PID is still alive.
var ErrStillRunning = errors.New("registry: container still running")

const (
	metadataFile = "metadata.json"
	stdoutFile   = "stdout.log"
	stderrFile   = "stderr.log"
)

// Registry persists ContainerState under baseDir/<id>/.
type Registry struct {
	baseDir string
}

// New returns a Registry rooted at baseDir. The directory is created
// lazily by Register.
func New(baseDir string) *Registry {
	return &Registry{baseDir: baseDir}
}

// NewID generates a random 8-hex-character container id.
func NewID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("registry: generate id: %w", err)
	}
	return fmt.Sprintf("%x", buf), nil
}

func (r *Registry) dir(id string) string {
	return filepath.Join(r.baseDir, id)
}

// StdoutPath returns the path the Parent Driver should tee the
// container's stdout into.
func (r *Registry) StdoutPath(id string) string {
	return filepath.Join(r.dir(id), stdoutFile)
}

// StderrPath returns the path the Parent Driver should tee the
// container's stderr into.
func (r *Registry) StderrPath(id string) string {
	return filepath.Join(r.dir(id), stderrFile)
}

// Register creates the container's directory and writes its initial
// state.
func (r *Registry) Register(state *container.State) error {
	dir := r.dir(state.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("registry: create container dir: %w", err)
	}
	return r.writeMetadata(state)
}

// Get loads the state for id, returning ErrNotFound if the directory
// or metadata is missing.
func (r *Registry) Get(id string) (*container.State, error) {
	return r.load(id)
}

// ListAll enumerates every registered container, reconciling any
// recorded "running" status against the OS process table. A missing
// base directory yields an empty list, not an error. Subdirectories
// without valid metadata are skipped silently.
func (r *Registry) ListAll() ([]*container.State, error) {
	entries, err := os.ReadDir(r.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read base dir: %w", err)
	}

	var states []*container.State
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		state, err := r.load(e.Name())
		if err != nil {
			continue
		}
		if state.Status == container.StatusRunning && !pidAlive(state.PID) {
			state.Status = container.StatusExited
			state.ExitCode = nil
			if err := r.writeMetadata(state); err != nil {
				continue
			}
		}
		states = append(states, state)
	}
	return states, nil
}

// UpdateStatus reads, mutates, and rewrites a container's status and
// optional exit code.
func (r *Registry) UpdateStatus(id string, status container.Status, exitCode *int) error {
	state, err := r.load(id)
	if err != nil {
		return err
	}
	state.Status = status
	state.ExitCode = exitCode
	return r.writeMetadata(state)
}

// Remove deletes a container's directory, refusing if it is still
// running.
func (r *Registry) Remove(id string) error {
	state, err := r.load(id)
	if err != nil {
		return err
	}
	if state.Status == container.StatusRunning && pidAlive(state.PID) {
		return ErrStillRunning
	}
	if err := os.RemoveAll(r.dir(id)); err != nil {
		return fmt.Errorf("registry: remove %s: %w", id, err)
	}
	return nil
}

func (r *Registry) load(id string) (*container.State, error) {
	path := filepath.Join(r.dir(id), metadataFile)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read metadata for %s: %w", id, err)
	}
	var state container.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("registry: decode metadata for %s: %w", id, err)
	}
	return &state, nil
}

func (r *Registry) writeMetadata(state *container.State) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode metadata for %s: %w", state.ID, err)
	}
	path := filepath.Join(r.dir(state.ID), metadataFile)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("registry: write metadata for %s: %w", state.ID, err)
	}
	return nil
}

// pidAlive reports whether the OS process table still has pid, using a
// signal-0 probe that checks existence without affecting the process.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
