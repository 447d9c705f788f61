package engine

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/restic"
	"github.com/bianoble/multi-restic/internal/schedule"
	"github.com/bianoble/multi-restic/internal/script"
)

// CheckEngine reports the readiness of every agent without changing it.
type CheckEngine struct {
	Dialer remote.Dialer
	Logger zerolog.Logger
}

// Check visits agents in configuration order. A connection failure is
// recorded on that agent and the remaining agents are still checked.
func (e *CheckEngine) Check(ctx context.Context, cfg config.Config) (*CheckResult, error) {
	log := e.Logger.With().Str("component", "check").Logger()
	result := &CheckResult{}

	for _, agent := range cfg.Agents {
		sched, err := schedule.New(agent.Scheduler)
		if err != nil {
			return nil, &AgentError{Agent: agent.Name, Step: "select scheduler", Err: err}
		}

		target := Target(agent)
		ac := AgentCheck{Agent: agent.Name, Address: target.String()}

		s, err := e.Dialer.Dial(ctx, target)
		if err != nil {
			log.Warn().Err(err).Str("agent", agent.Name).Msg("agent unreachable")
			ac.Err = err
			result.Agents = append(result.Agents, ac)
			continue
		}
		log.Debug().Str("agent", agent.Name).Str("address", ac.Address).Msg("connected")

		e.probe(ctx, s, agent, sched, &ac)
		_ = s.Close()
		result.Agents = append(result.Agents, ac)
	}

	return result, nil
}

func (e *CheckEngine) probe(ctx context.Context, s remote.Session, agent config.AgentConfig, sched schedule.Scheduler, ac *AgentCheck) {
	ac.Installed = remote.Probe(ctx, s, "ls "+script.ScriptPath(agent.InstallLocation))

	ac.Scheduler = sched.Name()
	ac.SchedulerAvailable = remote.Probe(ctx, s, sched.Probe())

	for _, cmd := range restic.VersionCommands(agent.InstallLocation) {
		res, err := s.Run(ctx, cmd)
		if err == nil && res.OK() {
			ac.ResticVersion = strings.TrimSpace(string(res.Stdout))
			ac.ResticPath = strings.TrimSuffix(cmd, " version")
			break
		}
	}

	ac.BackupRoot = agent.BackupRoot
	ac.BackupRootExists = remote.Probe(ctx, s, "test -e "+agent.BackupRoot)
	if !ac.BackupRootExists {
		return
	}

	for _, item := range agent.ToBackup {
		path := agent.BackupRoot + "/" + item
		ac.Paths = append(ac.Paths, PathCheck{
			Path:   path,
			Exists: remote.Probe(ctx, s, "test -e "+path),
		})
	}
}
