package schedule

import (
	"context"
	"fmt"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/script"
)

// Unit names used by the systemd scheduler.
const (
	ServiceUnit = "multi-restic-backup.service"
	TimerUnit   = "multi-restic-backup.timer"

	userUnitDir = "~/.config/systemd/user"
)

// Systemd manages the job as a user-scope service and timer.
type Systemd struct{}

func (Systemd) Name() string  { return "systemd" }
func (Systemd) Probe() string { return "command -v systemctl" }

// ServiceFile renders the oneshot service unit.
func ServiceFile(agent config.AgentConfig) string {
	return fmt.Sprintf(`[Unit]
Description=Multi-Restic Backup Service
[Service]
Type=oneshot
ExecStart=%s
`, script.ScriptPath(agent.InstallLocation))
}

// TimerFile renders the daily timer unit.
func TimerFile() string {
	return `[Unit]
Description=Runs Multi-Restic Backup Service daily
[Timer]
OnCalendar=daily
Persistent=true
[Install]
WantedBy=timers.target
`
}

func unitPath(agent config.AgentConfig, unit string) string {
	return agent.InstallLocation + "/" + unit
}

// Add writes both units into the install location, links the service into
// the user unit directory and enables the timer.
func (sd Systemd) Add(ctx context.Context, agent config.AgentConfig, s remote.Session) error {
	servicePath := unitPath(agent, ServiceUnit)
	timerPath := unitPath(agent, TimerUnit)

	if err := s.WriteFile(servicePath, []byte(ServiceFile(agent)), 0644); err != nil {
		return &Error{Scheduler: sd.Name(), Op: "add", Err: err}
	}
	if err := s.WriteFile(timerPath, []byte(TimerFile()), 0644); err != nil {
		return &Error{Scheduler: sd.Name(), Op: "add", Err: err}
	}

	cmd := remote.Chain(
		"mkdir -p "+userUnitDir,
		fmt.Sprintf("ln -sf %s %s/%s", servicePath, userUnitDir, ServiceUnit),
		"systemctl --user daemon-reload",
		"systemctl --user enable --now "+timerPath,
	)
	if _, err := remote.Exec(ctx, s, cmd); err != nil {
		return &Error{Scheduler: sd.Name(), Op: "add", Err: err}
	}
	return nil
}

// Remove disables the timer, tolerating a timer that does not exist, and
// deletes the unit files and the symlink.
func (sd Systemd) Remove(ctx context.Context, agent config.AgentConfig, s remote.Session) error {
	cmd := remote.Chain(
		"(systemctl --user disable --now "+TimerUnit+" || true)",
		"rm -f "+unitPath(agent, ServiceUnit),
		"rm -f "+unitPath(agent, TimerUnit),
		fmt.Sprintf("rm -f %s/%s", userUnitDir, ServiceUnit),
	)
	if _, err := remote.Exec(ctx, s, cmd); err != nil {
		return &Error{Scheduler: sd.Name(), Op: "remove", Err: err}
	}
	return nil
}
