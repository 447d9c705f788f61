package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
)

// Configuration errors detected before any remote contact.
var (
	ErrUnknownAgent      = errors.New("unknown agent")
	ErrUnknownRepository = errors.New("unknown repository")
	ErrInvalidSnapshotID = errors.New("invalid snapshot id")
)

// AgentError is a failed step of a workflow on one agent.
type AgentError struct {
	Agent string
	Step  string
	Err   error
	Hint  string
}

func (e *AgentError) Error() string {
	msg := fmt.Sprintf("agent %s: %s failed: %s", e.Agent, e.Step, e.Err)
	if e.Hint != "" {
		msg += " — " + e.Hint
	}
	return msg
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// sshHint points the operator at an interactive shell on the agent.
func sshHint(agent, repository string) string {
	if repository == "" {
		repository = "[REPOSITORY]"
	}
	return fmt.Sprintf("you can SSH into the agent to investigate: multi-restic ssh %s %s", agent, repository)
}

// Target returns the dial target of an agent.
func Target(agent config.AgentConfig) remote.Target {
	return remote.Target{
		Name:         agent.Name,
		Host:         agent.Host,
		Port:         agent.SSHPort,
		User:         agent.SSHUser,
		IdentityFile: agent.IdentityFile,
	}
}

func lookupAgent(cfg config.Config, name string) (config.AgentConfig, error) {
	agent, ok := cfg.Agents.Get(name)
	if !ok {
		return config.AgentConfig{}, fmt.Errorf("%w '%s' (available: %s)", ErrUnknownAgent, name, strings.Join(cfg.Agents.Names(), ", "))
	}
	return agent, nil
}

func lookupRepository(agent config.AgentConfig, name string) (config.RepositoryConfig, error) {
	repo, ok := agent.Repository(name)
	if !ok {
		return config.RepositoryConfig{}, fmt.Errorf("%w '%s' for agent %s (available: %s)",
			ErrUnknownRepository, name, agent.Name, strings.Join(agent.RepositoryNames(), ", "))
	}
	return repo, nil
}

// PathCheck is the existence of one path to back up.
type PathCheck struct {
	Path   string
	Exists bool
}

// AgentCheck is the read-only report for one agent.
type AgentCheck struct {
	Agent   string
	Address string
	Err     error // connection failure; nothing else is set

	Installed          bool
	Scheduler          string
	SchedulerAvailable bool

	ResticVersion string // empty when no usable restic was found
	ResticPath    string // "restic" (on PATH) or the install location binary

	BackupRoot       string
	BackupRootExists bool
	Paths            []PathCheck // not checked when the backup root is missing
}

// Reachable reports whether a session could be opened.
func (c AgentCheck) Reachable() bool {
	return c.Err == nil
}

// CheckResult holds the outcome of a check operation.
type CheckResult struct {
	Agents []AgentCheck
}

// Unreachable returns the names of agents that could not be contacted.
func (r *CheckResult) Unreachable() []string {
	var names []string
	for _, a := range r.Agents {
		if !a.Reachable() {
			names = append(names, a.Agent)
		}
	}
	return names
}

// InstallOptions configures an install operation.
type InstallOptions struct {
	Agents         []string // empty = all agents
	SkipTestBackup bool
}

// AgentInstall records what install did on one agent.
type AgentInstall struct {
	Agent             string
	ResticProvisioned bool
	ResticArch        string
	Uploaded          []string // remote paths
	TestBackup        bool     // the test run happened and succeeded
	Scheduler         string
}

// InstallResult holds the agents installed before the workflow stopped.
type InstallResult struct {
	Installed []AgentInstall
}

// ProgressFunc receives byte progress of one snapshot transfer.
type ProgressFunc func(snapshotID string, written, total int64)

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	Destination string // local directory; must exist
	Progress    ProgressFunc
}

// SnapshotDownload is the outcome of one retrieval worker.
type SnapshotDownload struct {
	SnapshotID string
	Path       string // local archive; empty on failure
	Size       int64
	Err        error
}

// DownloadResult lists worker outcomes in request order.
type DownloadResult struct {
	Snapshots []SnapshotDownload
}

// Failed reports whether any worker failed.
func (r *DownloadResult) Failed() bool {
	for _, s := range r.Snapshots {
		if s.Err != nil {
			return true
		}
	}
	return false
}
