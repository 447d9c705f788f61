package schedule

import (
	"context"
	"fmt"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/script"
)

const (
	crontabRead  = "crontab -l 2>/dev/null"
	crontabWrite = "crontab -"
)

// Cron manages the job as a marker block in the user's crontab.
type Cron struct{}

func (Cron) Name() string  { return "cron" }
func (Cron) Probe() string { return "command -v crontab" }

// JobLine returns the crontab entry that runs the backup script.
func JobLine(agent config.AgentConfig) string {
	expr := agent.CronSchedule
	if expr == "" {
		expr = config.DefaultCronSchedule
	}
	return fmt.Sprintf("%s %s >> %s/backup.log 2>&1", expr, script.ScriptPath(agent.InstallLocation), agent.InstallLocation)
}

// Add appends the managed block to the current crontab.
func (c Cron) Add(ctx context.Context, agent config.AgentConfig, s remote.Session) error {
	current, err := readCrontab(ctx, s)
	if err != nil {
		return &Error{Scheduler: c.Name(), Op: "add", Err: err}
	}
	if err := writeCrontab(ctx, s, AppendManagedBlock(current, JobLine(agent))); err != nil {
		return &Error{Scheduler: c.Name(), Op: "add", Err: err}
	}
	return nil
}

// Remove strips the managed block from the crontab. A crontab without the
// marker is written back unchanged.
func (c Cron) Remove(ctx context.Context, agent config.AgentConfig, s remote.Session) error {
	current, err := readCrontab(ctx, s)
	if err != nil {
		return &Error{Scheduler: c.Name(), Op: "remove", Err: err}
	}
	if err := writeCrontab(ctx, s, RemoveManagedBlock(current)); err != nil {
		return &Error{Scheduler: c.Name(), Op: "remove", Err: err}
	}
	return nil
}

// readCrontab returns the current crontab. crontab -l exits non-zero when
// the user has none, which reads as empty.
func readCrontab(ctx context.Context, s remote.Session) (string, error) {
	res, err := s.Run(ctx, crontabRead)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", nil
	}
	return string(res.Stdout), nil
}

func writeCrontab(ctx context.Context, s remote.Session, text string) error {
	_, err := remote.ExecInput(ctx, s, crontabWrite, []byte(text))
	return err
}
