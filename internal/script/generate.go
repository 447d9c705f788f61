// Package script renders the backup script and per-repository environment
// files installed on an agent.
package script

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/secret"
)

// Remote file names inside the install location.
const (
	ScriptName    = "backup.sh"
	EnvFilePrefix = ".env."
)

// ScriptPath returns the remote path of the backup script.
func ScriptPath(installLocation string) string {
	return installLocation + "/" + ScriptName
}

// EnvFilePath returns the remote path of a repository's environment file.
func EnvFilePath(installLocation, repository string) string {
	return installLocation + "/" + EnvFilePrefix + repository
}

// Artifact is everything installed on one agent.
type Artifact struct {
	Script   string
	EnvFiles []EnvFile // configuration order
}

// EnvFile is the secret-bearing environment file of one repository.
type EnvFile struct {
	Repository string
	Content    string
}

// SecretError reports an env: directive whose source key does not resolve.
type SecretError struct {
	Agent      string
	Repository string
	Key        string
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("agent '%s' repository '%s': env var '%s' is not set in the env file or the environment", e.Agent, e.Repository, e.Key)
}

// Generator renders artifacts for agents.
type Generator struct {
	Secrets secret.Source
	Now     func() time.Time
}

// Generate renders the script and the environment files of an agent.
func (g *Generator) Generate(agent config.AgentConfig) (*Artifact, error) {
	envFiles, err := g.EnvFiles(agent)
	if err != nil {
		return nil, err
	}
	s, err := g.Script(agent)
	if err != nil {
		return nil, err
	}
	return &Artifact{Script: s, EnvFiles: envFiles}, nil
}

// EnvFiles renders one environment file per repository. An env: directive
// whose source cannot be resolved is an error.
func (g *Generator) EnvFiles(agent config.AgentConfig) ([]EnvFile, error) {
	files := make([]EnvFile, 0, len(agent.Repositories))
	for _, repo := range agent.Repositories {
		var b strings.Builder
		fmt.Fprintf(&b, "# Environment variables for repository %s\n", repo.Name)
		fmt.Fprintf(&b, "export RESTIC_REPOSITORY=%s\n", repo.Endpoint)

		for _, directive := range repo.EnvVars {
			ev, err := config.ParseEnvVar(directive)
			if err != nil {
				return nil, fmt.Errorf("agent '%s' repository '%s': %w", agent.Name, repo.Name, err)
			}
			switch ev.Kind {
			case config.EnvVarPlain:
				fmt.Fprintf(&b, "export %s\n", ev.Literal)
			case config.EnvVarEnv:
				value, ok := g.lookup(ev.Source)
				if !ok {
					return nil, &SecretError{Agent: agent.Name, Repository: repo.Name, Key: ev.Source}
				}
				fmt.Fprintf(&b, "export %s=%s\n", ev.Target, value)
			}
		}

		files = append(files, EnvFile{Repository: repo.Name, Content: b.String()})
	}
	return files, nil
}

func (g *Generator) lookup(key string) (string, bool) {
	if g.Secrets == nil {
		return "", false
	}
	return g.Secrets.Lookup(key)
}

var scriptTemplate = template.Must(template.New("backup.sh").Option("missingkey=error").Parse(`#!/bin/bash -e
# Generated on {{.Date}} by multi-restic

export PATH={{.InstallLocation}}:$PATH
cd {{.BackupRoot}}

# Pre-backup commands
{{.PreCommands}}

{{range .Repositories}}# START {{.Name}}
source {{.EnvFile}}

if ! restic cat config >/dev/null 2>&1; then
    # restic creates missing parent directories itself
    restic init
fi

restic backup {{$.Paths}}
{{if .ForgetArguments}}restic forget {{.ForgetArguments}} --prune
{{end}}# END {{.Name}}
{{end}}
# Post-backup commands
{{.PostCommands}}
`))

type scriptData struct {
	Date            string
	InstallLocation string
	BackupRoot      string
	PreCommands     string
	PostCommands    string
	Paths           string
	Repositories    []repositoryData
}

type repositoryData struct {
	Name            string
	EnvFile         string
	ForgetArguments string
}

// Script renders the backup script. The output depends only on the agent
// configuration and the generation timestamp.
func (g *Generator) Script(agent config.AgentConfig) (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	data := scriptData{
		Date:            now().Format(time.RFC3339),
		InstallLocation: agent.InstallLocation,
		BackupRoot:      agent.BackupRoot,
		PreCommands:     strings.Join(agent.PreCommand, " && "),
		PostCommands:    strings.Join(agent.PostCommand, " && "),
		Paths:           strings.Join(agent.ToBackup, " "),
	}
	for _, repo := range agent.Repositories {
		data.Repositories = append(data.Repositories, repositoryData{
			Name:            repo.Name,
			EnvFile:         EnvFilePath(agent.InstallLocation, repo.Name),
			ForgetArguments: strings.TrimSpace(repo.ForgetArguments),
		})
	}

	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering script for agent '%s': %w", agent.Name, err)
	}
	return buf.String(), nil
}
