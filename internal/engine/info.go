package engine

import (
	"github.com/bianoble/multi-restic/internal/config"
)

// ConfigLayerStatus describes a config candidate for display.
type ConfigLayerStatus struct {
	Level  string // "project", "user", "system"
	Path   string
	Loaded bool
}

// InfoResult holds tool information for the info command.
type InfoResult struct {
	Version        string
	ConfigPath     string
	ConfigChain    []ConfigLayerStatus
	KnownHostsFile string
	Agents         []AgentInfo
}

// AgentInfo summarizes one configured agent.
type AgentInfo struct {
	Name            string
	Address         string
	Scheduler       string
	CronSchedule    string
	InstallLocation string
	Repositories    []string
}

// Info gathers tool information. cfg may be nil when no configuration
// could be loaded.
func Info(version string, cfg *config.Config, configPath, knownHostsFile string) *InfoResult {
	r := &InfoResult{
		Version:        version,
		ConfigPath:     configPath,
		KnownHostsFile: knownHostsFile,
	}
	if cfg == nil {
		return r
	}
	for _, a := range cfg.Agents {
		ai := AgentInfo{
			Name:            a.Name,
			Address:         Target(a).String(),
			Scheduler:       a.Scheduler,
			InstallLocation: a.InstallLocation,
			Repositories:    a.RepositoryNames(),
		}
		if a.Scheduler == "cron" {
			ai.CronSchedule = a.CronSchedule
		}
		r.Agents = append(r.Agents, ai)
	}
	return r
}
