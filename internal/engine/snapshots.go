package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/restic"
)

// RepositorySnapshots is the listing of one repository.
type RepositorySnapshots struct {
	Repository string
	Snapshots  []restic.Snapshot
	Err        error
}

// SnapshotsResult holds the listing of every repository of an agent, in
// configuration order.
type SnapshotsResult struct {
	Agent        string
	Repositories []RepositorySnapshots
}

// SnapshotsEngine lists the snapshots held in an agent's repositories.
type SnapshotsEngine struct {
	Dialer remote.Dialer
	Logger zerolog.Logger
}

// List queries each repository over a single session. A repository that
// cannot be listed is logged and recorded; the others are still listed.
func (e *SnapshotsEngine) List(ctx context.Context, cfg config.Config, agentName string) (*SnapshotsResult, error) {
	agent, err := lookupAgent(cfg, agentName)
	if err != nil {
		return nil, err
	}
	log := e.Logger.With().Str("component", "snapshots").Str("agent", agent.Name).Logger()

	s, err := e.Dialer.Dial(ctx, Target(agent))
	if err != nil {
		return nil, &AgentError{Agent: agent.Name, Step: "connect", Err: err}
	}
	defer s.Close()

	result := &SnapshotsResult{Agent: agent.Name}
	for _, repo := range agent.Repositories {
		rs := RepositorySnapshots{Repository: repo.Name}

		res, err := remote.Exec(ctx, s, restic.SnapshotsCommand(agent.InstallLocation, repo.Name))
		if err == nil {
			rs.Snapshots, err = restic.ParseSnapshots(res.Stdout)
		}
		if err != nil {
			rs.Err = &AgentError{Agent: agent.Name, Step: "list snapshots of " + repo.Name, Err: err, Hint: sshHint(agent.Name, repo.Name)}
			ev := log.Error().Err(err).Str("repository", repo.Name)
			var exitErr *remote.ExitError
			if errors.As(err, &exitErr) {
				ev = ev.Str("stdout", exitErr.Stdout).Str("stderr", exitErr.Stderr)
			}
			ev.Msg("failed to list snapshots")
		}
		result.Repositories = append(result.Repositories, rs)
	}
	return result, nil
}
