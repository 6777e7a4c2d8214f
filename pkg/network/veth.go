package network

import (
	"fmt"
	"os/exec"
)

const (
	// gatewayAddr is the host side address of the veth pair, and the
	// container's default route target.
	gatewayAddr = "10.0.0.1"
	// hostAddr is the host side address in CIDR form.
	hostAddr = gatewayAddr + "/24"
	// containerAddr is the container side address, assigned inside the
	// container's network namespace.
	containerAddr = "10.0.0.2/24"
	// containerDev is the fixed interface name inside the container.
	containerDev = "eth0"
)

// Manager creates and tears down one veth pair per container, assigning
// a fixed point-to-point link between the host and the container's
// network namespace. It shells out to the ip and nsenter utilities
// rather than talking netlink directly.
type Manager struct {
	hostDev string
	up      bool
}

// NewManager returns a Manager for the given container id. The host side
// device name is derived from the id so that concurrent containers never
// collide on device names.
func NewManager(containerID string) *Manager {
	return &Manager{hostDev: "veth-" + containerID}
}

// Setup creates the veth pair, moves the container side into the target
// process's network namespace, and brings both ends up with the fixed
// address plan. It runs the eight commands in the exact order required
// for the container side namespace operations to succeed: the peer must
// be moved into the target netns before it can be addressed from inside
// that netns via nsenter.
func (m *Manager) Setup(pid int) error {
	netns := fmt.Sprintf("/proc/%d/ns/net", pid)

	steps := [][]string{
		{"ip", "link", "add", m.hostDev, "type", "veth", "peer", "name", containerDev},
		{"ip", "link", "set", containerDev, "netns", fmt.Sprintf("%d", pid)},
		{"ip", "addr", "add", hostAddr, "dev", m.hostDev},
		{"ip", "link", "set", m.hostDev, "up"},
		{"nsenter", "--net=" + netns, "ip", "addr", "add", containerAddr, "dev", containerDev},
		{"nsenter", "--net=" + netns, "ip", "link", "set", containerDev, "up"},
		{"nsenter", "--net=" + netns, "ip", "link", "set", "lo", "up"},
		{"nsenter", "--net=" + netns, "ip", "route", "add", "default", "via", gatewayAddr},
	}

	for i, args := range steps {
		if err := run(args); err != nil {
			return fmt.Errorf("network setup step %q: %w", args[0:2], err)
		}
		if i == 0 {
			// The host side device now exists; mark it for teardown so a
			// later step's failure doesn't leave Close skipping deletion.
			m.up = true
		}
	}

	return nil
}

// Close deletes the host side veth device; the kernel removes its peer
// automatically. Safe to call even if Setup was never called or failed
// before creating the device (up stays false and Close no-ops).
func (m *Manager) Close() error {
	if !m.up {
		return nil
	}
	m.up = false
	if err := run([]string{"ip", "link", "delete", m.hostDev}); err != nil {
		return fmt.Errorf("delete veth device %s: %w", m.hostDev, err)
	}
	return nil
}

func run(args []string) error {
	cmd := exec.Command(args[0], args[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", args[0], err, string(output))
	}
	return nil
}
