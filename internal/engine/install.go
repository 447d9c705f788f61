package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/restic"
	"github.com/bianoble/multi-restic/internal/schedule"
	"github.com/bianoble/multi-restic/internal/script"
)

// InstallEngine deploys the backup script, its environment files and the
// daily schedule onto agents.
type InstallEngine struct {
	Dialer    remote.Dialer
	Generator *script.Generator
	Logger    zerolog.Logger
}

// plannedAgent is everything installed on one agent, rendered up front.
type plannedAgent struct {
	agent     config.AgentConfig
	artifact  *script.Artifact
	scheduler schedule.Scheduler
}

// Install runs the install workflow on the selected agents, one at a time
// in configuration order. Artifacts for every selected agent are rendered
// before any agent is contacted, so configuration problems abort without
// side effects. The first failing agent stops the whole workflow; the
// returned result lists the agents completed before it.
func (e *InstallEngine) Install(ctx context.Context, cfg config.Config, opts InstallOptions) (*InstallResult, error) {
	selected, err := selectAgents(cfg, opts.Agents)
	if err != nil {
		return nil, err
	}

	plan := make([]plannedAgent, 0, len(selected))
	for _, agent := range selected {
		artifact, err := e.Generator.Generate(agent)
		if err != nil {
			return nil, &AgentError{Agent: agent.Name, Step: "generate backup script", Err: err}
		}
		sched, err := schedule.New(agent.Scheduler)
		if err != nil {
			return nil, &AgentError{Agent: agent.Name, Step: "select scheduler", Err: err}
		}
		plan = append(plan, plannedAgent{agent: agent, artifact: artifact, scheduler: sched})
	}

	result := &InstallResult{}
	for _, p := range plan {
		installed, err := e.installAgent(ctx, opts, p)
		if err != nil {
			return result, err
		}
		result.Installed = append(result.Installed, *installed)
	}
	return result, nil
}

// selectAgents returns the named agents in configuration order, or all of
// them when names is empty.
func selectAgents(cfg config.Config, names []string) ([]config.AgentConfig, error) {
	if len(names) == 0 {
		return cfg.Agents, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := lookupAgent(cfg, name); err != nil {
			return nil, err
		}
		wanted[name] = true
	}
	var out []config.AgentConfig
	for _, a := range cfg.Agents {
		if wanted[a.Name] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (e *InstallEngine) installAgent(ctx context.Context, opts InstallOptions, p plannedAgent) (*AgentInstall, error) {
	agent := p.agent
	loc := agent.InstallLocation
	log := e.Logger.With().Str("component", "install").Str("agent", agent.Name).Logger()

	fail := func(step string, err error, hint string) (*AgentInstall, error) {
		return nil, &AgentError{Agent: agent.Name, Step: step, Err: err, Hint: hint}
	}

	target := Target(agent)
	s, err := e.Dialer.Dial(ctx, target)
	if err != nil {
		return fail("connect", err, "")
	}
	defer s.Close()
	log.Info().Str("address", target.String()).Msg("connected")

	out := &AgentInstall{Agent: agent.Name, Scheduler: p.scheduler.Name()}

	// The install location goes on PATH, so only the SSH user may write it.
	if _, err := remote.Exec(ctx, s, fmt.Sprintf("install -d %s -m 700", loc)); err != nil {
		return fail("create install directory "+loc, err, "does the SSH user have the necessary permissions?")
	}

	if !e.resticAvailable(ctx, s, loc) {
		log.Warn().Str("path", loc+"/restic").Msg("restic not available, downloading")
		arch, err := e.detectArch(ctx, s)
		if err != nil {
			return fail("detect architecture", err, "")
		}
		if _, err := remote.Exec(ctx, s, restic.InstallCommand(loc, arch)); err != nil {
			return fail("download restic", err, "check that curl and bzip2 are installed on the agent")
		}
		out.ResticProvisioned = true
		out.ResticArch = arch
		log.Info().Str("arch", arch).Msg("restic downloaded")
	}

	for _, ef := range p.artifact.EnvFiles {
		path := script.EnvFilePath(loc, ef.Repository)
		if err := s.WriteFile(path, []byte(ef.Content), 0600); err != nil {
			return fail("upload "+path, err, "")
		}
		out.Uploaded = append(out.Uploaded, path)
		log.Info().Str("repository", ef.Repository).Str("path", path).Msg("uploaded environment file")
	}

	scriptPath := script.ScriptPath(loc)
	if err := s.WriteFile(scriptPath, []byte(p.artifact.Script), 0700); err != nil {
		return fail("upload "+scriptPath, err, "")
	}
	out.Uploaded = append(out.Uploaded, scriptPath)
	log.Info().Str("path", scriptPath).Msg("uploaded backup script")

	if !opts.SkipTestBackup {
		log.Info().Msg("running backup to test configuration")
		if _, err := remote.Exec(ctx, s, scriptPath); err != nil {
			return fail("test backup", err, sshHint(agent.Name, ""))
		}
		out.TestBackup = true
		log.Info().Msg("test backup completed")
	}

	if err := p.scheduler.Remove(ctx, agent, s); err != nil {
		return fail("remove previous schedule", err, "")
	}
	if err := p.scheduler.Add(ctx, agent, s); err != nil {
		return fail("schedule backups", err, "")
	}
	log.Info().Str("scheduler", p.scheduler.Name()).Msg("scheduled backups")

	return out, nil
}

func (e *InstallEngine) resticAvailable(ctx context.Context, s remote.Session, loc string) bool {
	for _, cmd := range restic.VersionCommands(loc) {
		if remote.Probe(ctx, s, cmd) {
			return true
		}
	}
	return false
}

func (e *InstallEngine) detectArch(ctx context.Context, s remote.Session) (string, error) {
	res, err := remote.Exec(ctx, s, restic.UnameCommand)
	if err != nil {
		return "", err
	}
	return restic.Arch(string(res.Stdout)), nil
}
