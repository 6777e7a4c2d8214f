// Package parent implements the Parent Driver: the end-to-end
// orchestration of one `run` invocation, from namespace setup through
// waiting on the child and recording its final state.
package parent

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"jcontainer/pkg/cgroup"
	"jcontainer/pkg/container"
	"jcontainer/pkg/log"
	"jcontainer/pkg/network"
	"jcontainer/pkg/platform"
	"jcontainer/pkg/registry"
)

const teeJoinTimeout = 5 * time.Second

// Config holds everything the Parent Driver needs to run one
// container, gathered from CLI parsing and image resolution.
type Config struct {
	Rootfs         string
	Command        []string
	Image          *string
	MemoryBytes    *int64
	CPUPercent     *int
	NetworkEnabled bool
}

// Driver runs a single container end to end against a Registry.
type Driver struct {
	reg *registry.Registry
}

// New returns a Driver backed by reg.
func New(reg *registry.Registry) *Driver {
	return &Driver{reg: reg}
}

// Run executes cfg's container, blocking until it exits, and returns
// the exit code the parent process should itself exit with.
func (d *Driver) Run(cfg Config) (int, error) {
	strategy := platform.Current

	if err := strategy.SetupParent(); err != nil {
		return 1, fmt.Errorf("parent: namespace setup: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return 1, fmt.Errorf("parent: resolve self path: %w", err)
	}

	cmd := strategy.BuildChildCommand(self, cfg.Rootfs, cfg.Command, cfg.NetworkEnabled)

	id, err := registry.NewID()
	if err != nil {
		return 1, err
	}
	clog := log.WithContainer(id)

	var cg *cgroup.Manager
	if cfg.hasResourceLimits() && strategy.Name() == "linux" {
		cg = cgroup.New(cgroup.DefaultRoot, id)
		if err := d.setupCgroup(cg, cfg); err != nil {
			clog.Warn().Err(err).Msg("cgroup setup failed; running without resource limits")
			cg.Close()
			cg = nil
		}
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return 1, fmt.Errorf("parent: create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return 1, fmt.Errorf("parent: create stderr pipe: %w", err)
	}
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		if cg != nil {
			cg.Close()
		}
		return 1, fmt.Errorf("parent: start child: %w", err)
	}

	state := &container.State{
		ID:        id,
		PID:       cmd.Process.Pid,
		StartTime: time.Now().UTC(),
		Rootfs:    cfg.Rootfs,
		Image:     cfg.Image,
		Command:   cfg.Command,
		Status:    container.StatusRunning,
	}
	if err := d.reg.Register(state); err != nil {
		clog.Warn().Err(err).Msg("failed to register container state")
	}
	fmt.Fprintf(os.Stderr, "Container %s started (PID %d)\n", id, state.PID)

	var teeWG sync.WaitGroup
	teeWG.Add(2)
	go tee(&teeWG, stdoutPipe, os.Stdout, d.reg.StdoutPath(id))
	go tee(&teeWG, stderrPipe, os.Stderr, d.reg.StderrPath(id))

	if cg != nil {
		if err := cg.AddProcess(state.PID); err != nil {
			clog.Warn().Err(err).Msg("failed to attach child to cgroup")
		}
	}

	var netMgr *network.Manager
	if cfg.NetworkEnabled && strategy.Name() == "linux" {
		netMgr = network.NewManager(id)
		if err := netMgr.Setup(state.PID); err != nil {
			clog.Warn().Err(err).Msg("network setup failed; running without network")
		}
	}

	defer func() {
		if netMgr != nil {
			netMgr.Close()
		}
		if cg != nil {
			cg.Close()
		}
	}()

	waitErr := cmd.Wait()
	joinTees(&teeWG)

	exitCode := exitCodeFromError(waitErr)
	if err := d.reg.UpdateStatus(id, container.StatusExited, &exitCode); err != nil {
		clog.Warn().Err(err).Msg("failed to record final status")
	}

	return exitCode, nil
}

func (cfg Config) hasResourceLimits() bool {
	return cfg.MemoryBytes != nil || cfg.CPUPercent != nil
}

func (d *Driver) setupCgroup(cg *cgroup.Manager, cfg Config) error {
	if err := cg.Create(); err != nil {
		return err
	}
	if cfg.MemoryBytes != nil {
		if err := cg.SetMemoryLimit(*cfg.MemoryBytes); err != nil {
			return err
		}
	}
	if cfg.CPUPercent != nil {
		if err := cg.SetCPULimit(*cfg.CPUPercent); err != nil {
			return err
		}
	}
	return nil
}

// tee copies src to both dst and a log file at logPath until EOF,
// signaling wg when done.
func tee(wg *sync.WaitGroup, src io.Reader, dst io.Writer, logPath string) {
	defer wg.Done()

	logFile, err := os.Create(logPath)
	if err != nil {
		io.Copy(dst, src)
		return
	}
	defer logFile.Close()

	io.Copy(io.MultiWriter(dst, logFile), src)
}

// joinTees waits for both tee goroutines, but gives up after
// teeJoinTimeout so a wedged pipe can't hang the parent forever.
func joinTees(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(teeJoinTimeout):
		logger := log.WithComponent("parent")
		logger.Warn().Msg("timed out waiting for output tee threads")
	}
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return 1
}

