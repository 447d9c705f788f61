// Package schedule installs and removes the daily run of the backup script
// on an agent.
package schedule

import (
	"context"
	"fmt"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
)

// Scheduler installs the daily backup job through one scheduling backend.
//
// Add does not deduplicate: callers run Remove first so that at most one
// managed job exists per agent.
type Scheduler interface {
	Name() string

	// Probe is a read-only command that exits 0 when the backend is usable.
	Probe() string

	Add(ctx context.Context, agent config.AgentConfig, s remote.Session) error
	Remove(ctx context.Context, agent config.AgentConfig, s remote.Session) error
}

// New returns the Scheduler for kind ("cron" or "systemd").
func New(kind string) (Scheduler, error) {
	switch kind {
	case "", "cron":
		return Cron{}, nil
	case "systemd":
		return Systemd{}, nil
	default:
		return nil, fmt.Errorf("unknown scheduler type '%s' — must be one of: cron, systemd", kind)
	}
}

// Error is a scheduling failure. It wraps the underlying remote error,
// usually a *remote.ExitError carrying the command output.
type Error struct {
	Scheduler string
	Op        string // "add", "remove"
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s scheduler: %s schedule failed: %s", e.Scheduler, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
