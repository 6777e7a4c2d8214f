// Package container defines the data model shared across jcontainer's
// subsystems: the persistent ContainerState record and the Config that
// validates a run invocation before any syscalls happen.
package container

import "time"

// Status is the lifecycle status of a container.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusStopped Status = "stopped"
)

// State is the persistent record for one container, serialized as
// metadata.json under the container's directory in the registry.
type State struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	StartTime time.Time `json:"startTime"`
	Rootfs    string    `json:"rootfs"`
	Image     *string   `json:"image"`
	Command   []string  `json:"command"`
	Status    Status    `json:"status"`
	ExitCode  *int      `json:"exitCode"`
}
