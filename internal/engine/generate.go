package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/sandbox"
	"github.com/bianoble/multi-restic/internal/script"
)

// Generate renders an agent's artifacts into dir/<agent> with the
// permissions they get on the agent, without contacting it. It returns the
// written paths.
func Generate(gen *script.Generator, cfg config.Config, agentName, dir string) ([]string, error) {
	agent, err := lookupAgent(cfg, agentName)
	if err != nil {
		return nil, err
	}
	artifact, err := gen.Generate(agent)
	if err != nil {
		return nil, &AgentError{Agent: agent.Name, Step: "generate backup script", Err: err}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	write := func(name, content string, perm os.FileMode) error {
		rel := filepath.Join(agent.Name, name)
		if err := sandbox.SafeWrite(dir, rel, []byte(content), perm); err != nil {
			return err
		}
		written = append(written, filepath.Join(dir, rel))
		return nil
	}

	for _, ef := range artifact.EnvFiles {
		if err := write(script.EnvFilePrefix+ef.Repository, ef.Content, 0600); err != nil {
			return written, err
		}
	}
	if err := write(script.ScriptName, artifact.Script, 0700); err != nil {
		return written, err
	}
	return written, nil
}
