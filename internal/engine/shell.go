package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/script"
)

// DefaultShell is the remote shell used by the ssh command.
const DefaultShell = "/bin/bash"

// ShellCommand builds the remote command line of an interactive session:
// restic on PATH, the backup root as working directory and, when a
// repository is named, its environment loaded. With no command an
// interactive shell is started.
func ShellCommand(agent config.AgentConfig, repository, shell string, command []string) (string, error) {
	if shell == "" {
		shell = DefaultShell
	}
	parts := []string{
		fmt.Sprintf("export PATH=%s:$PATH", agent.InstallLocation),
		"cd " + agent.BackupRoot,
	}
	if repository != "" {
		if _, err := lookupRepository(agent, repository); err != nil {
			return "", err
		}
		parts = append(parts, "source "+script.EnvFilePath(agent.InstallLocation, repository))
	}
	if len(command) > 0 {
		parts = append(parts, strings.Join(command, " "))
	} else {
		parts = append(parts, shell+" -i")
	}
	return fmt.Sprintf("%s -c %s", shell, shellQuote(strings.Join(parts, "; "))), nil
}

// shellQuote wraps s in single quotes for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellOptions configures an interactive session.
type ShellOptions struct {
	Agent      string
	Repository string // optional
	Shell      string
	Command    []string // empty = interactive shell

	Stdin          *os.File
	Stdout, Stderr io.Writer
}

// ShellEngine attaches the local terminal to a shell on an agent.
type ShellEngine struct {
	Dialer remote.Dialer
	Logger zerolog.Logger
}

// Run opens the session and returns the remote exit status.
func (e *ShellEngine) Run(ctx context.Context, cfg config.Config, opts ShellOptions) (int, error) {
	agent, err := lookupAgent(cfg, opts.Agent)
	if err != nil {
		return -1, err
	}
	cmd, err := ShellCommand(agent, opts.Repository, opts.Shell, opts.Command)
	if err != nil {
		return -1, err
	}

	log := e.Logger.With().Str("component", "ssh").Str("agent", agent.Name).Logger()
	if opts.Repository != "" {
		log.Info().Str("repository", opts.Repository).Msg("loaded environment for repository")
	} else {
		log.Info().Msgf("no repository given; restic is on PATH, source one of %s/%s* to select a repository",
			agent.InstallLocation, script.EnvFilePrefix)
	}
	log.Debug().Str("command", cmd).Msg("starting remote shell")

	s, err := e.Dialer.Dial(ctx, Target(agent))
	if err != nil {
		return -1, &AgentError{Agent: agent.Name, Step: "connect", Err: err}
	}
	defer s.Close()

	term, ok := s.(remote.Interactor)
	if !ok {
		return -1, fmt.Errorf("session to %s does not support interactive use", agent.Name)
	}
	return term.Interactive(ctx, cmd, opts.Stdin, opts.Stdout, opts.Stderr)
}
