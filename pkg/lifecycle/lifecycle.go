// Package lifecycle implements the list/stop/logs/rm operations that
// act on already-running or previously-run containers.
package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"text/tabwriter"
	"time"

	"jcontainer/pkg/container"
	"jcontainer/pkg/registry"
)

const (
	stopPollInterval = 100 * time.Millisecond
	stopTimeout      = 10 * time.Second
)

// Controller implements the Lifecycle Controller's operations against
// a single Registry.
type Controller struct {
	reg *registry.Registry
}

// New returns a Controller backed by reg.
func New(reg *registry.Registry) *Controller {
	return &Controller{reg: reg}
}

// List writes a table of every registered container to w, or
// "No containers found." if there are none.
func (c *Controller) List(w io.Writer) error {
	states, err := c.reg.ListAll()
	if err != nil {
		return fmt.Errorf("lifecycle: list: %w", err)
	}
	if len(states) == 0 {
		fmt.Fprintln(w, "No containers found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPID\tIMAGE\tSTATUS\tSTART TIME")
	for _, s := range states {
		image := "-"
		if s.Image != nil {
			image = *s.Image
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", s.ID, s.PID, image, statusText(s), s.StartTime.Format(time.RFC3339))
	}
	return tw.Flush()
}

func statusText(s *container.State) string {
	if s.Status == container.StatusExited && s.ExitCode != nil {
		return fmt.Sprintf("exited(%d)", *s.ExitCode)
	}
	return string(s.Status)
}

// Stop stops a running container: SIGTERM, poll for up to 10s, then
// SIGKILL if it hasn't exited. A container whose PID was already dead
// is transitioned to exited instead. A container that isn't running
// prints "not running" and returns nil.
func (c *Controller) Stop(id string, stderr io.Writer) error {
	state, err := c.reg.Get(id)
	if err != nil {
		return err
	}

	if state.Status != container.StatusRunning {
		fmt.Fprintln(stderr, "not running")
		return nil
	}

	proc, err := os.FindProcess(state.PID)
	if err != nil || !signalAlive(proc) {
		return c.reg.UpdateStatus(id, container.StatusExited, nil)
	}

	proc.Signal(syscall.SIGTERM)

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if !signalAlive(proc) {
			break
		}
		time.Sleep(stopPollInterval)
	}
	if signalAlive(proc) {
		proc.Signal(syscall.SIGKILL)
	}

	return c.reg.UpdateStatus(id, container.StatusStopped, nil)
}

// Logs writes a container's captured stdout and stderr to the given
// writers. If neither log file exists, it writes "No logs available"
// to stdout instead.
func (c *Controller) Logs(id string, stdout, stderr io.Writer) error {
	stdoutPath := c.reg.StdoutPath(id)
	stderrPath := c.reg.StderrPath(id)

	stdoutData, stdoutErr := os.ReadFile(stdoutPath)
	stderrData, stderrErr := os.ReadFile(stderrPath)

	if os.IsNotExist(stdoutErr) && os.IsNotExist(stderrErr) {
		fmt.Fprintln(stdout, "No logs available")
		return nil
	}
	if stdoutErr != nil && !os.IsNotExist(stdoutErr) {
		return fmt.Errorf("lifecycle: read stdout log: %w", stdoutErr)
	}
	if stderrErr != nil && !os.IsNotExist(stderrErr) {
		return fmt.Errorf("lifecycle: read stderr log: %w", stderrErr)
	}

	stdout.Write(stdoutData)
	stderr.Write(stderrData)
	return nil
}

// Remove deletes a container's registry entry, refusing with
// registry.ErrStillRunning if it's still alive.
func (c *Controller) Remove(id string) error {
	return c.reg.Remove(id)
}

func signalAlive(proc *os.Process) bool {
	return proc.Signal(syscall.Signal(0)) == nil
}

// IsNotFound reports whether err denotes a missing container, for
// callers translating errors into exit codes/messages.
func IsNotFound(err error) bool {
	return errors.Is(err, registry.ErrNotFound)
}

// IsStillRunning reports whether err denotes a still-running container
// blocking removal.
func IsStillRunning(err error) bool {
	return errors.Is(err, registry.ErrStillRunning)
}
