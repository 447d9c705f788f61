package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Load reads, defaults and validates a central.yaml configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes configuration bytes. name is only used in error messages.
func Parse(data []byte, name string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", name, err)
	}

	ApplyDefaults(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &cfg, nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ApplyDefaults fills unset optional agent fields.
func ApplyDefaults(cfg *Config) {
	for i := range cfg.Agents {
		a := &cfg.Agents[i]
		if a.SSHPort == 0 {
			a.SSHPort = DefaultSSHPort
		}
		if a.SSHUser == "" {
			a.SSHUser = DefaultSSHUser
		}
		if a.InstallLocation == "" {
			a.InstallLocation = DefaultInstallLocation
		}
		a.InstallLocation = strings.TrimRight(a.InstallLocation, "/")
		if a.InstallLocation == "" {
			a.InstallLocation = "/"
		}
		if a.Scheduler == "" {
			a.Scheduler = DefaultScheduler
		}
		if a.CronSchedule == "" {
			a.CronSchedule = DefaultCronSchedule
		}
	}
}

// Validate checks a Config for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cfg *Config) []string {
	var errs []string

	if len(cfg.Agents) == 0 {
		errs = append(errs, "at least one agent is required under 'agents'")
	}

	for _, a := range cfg.Agents {
		prefix := fmt.Sprintf("agent '%s'", a.Name)

		if a.Name == "" {
			errs = append(errs, "agent names must not be empty")
		}
		if a.Host == "" {
			errs = append(errs, fmt.Sprintf("%s: 'ip' is required", prefix))
		}
		if a.SSHPort < 1 || a.SSHPort > 65535 {
			errs = append(errs, fmt.Sprintf("%s: invalid ssh_port %d", prefix, a.SSHPort))
		}
		if !path.IsAbs(a.InstallLocation) {
			errs = append(errs, fmt.Sprintf("%s: install_location '%s' must be an absolute path", prefix, a.InstallLocation))
		}

		switch a.Scheduler {
		case "cron":
			if _, err := cron.ParseStandard(a.CronSchedule); err != nil {
				errs = append(errs, fmt.Sprintf("%s: invalid cron_schedule '%s': %v", prefix, a.CronSchedule, err))
			}
		case "systemd":
		default:
			errs = append(errs, fmt.Sprintf("%s: invalid scheduler '%s' — must be one of: cron, systemd", prefix, a.Scheduler))
		}

		if a.BackupRoot == "" {
			errs = append(errs, fmt.Sprintf("%s: 'backup_root' is required", prefix))
		}
		if len(a.ToBackup) == 0 {
			errs = append(errs, fmt.Sprintf("%s: 'to_backup' must list at least one path", prefix))
		}
		if len(a.Repositories) == 0 {
			errs = append(errs, fmt.Sprintf("%s: at least one repository is required", prefix))
		}

		for _, r := range a.Repositories {
			errs = append(errs, validateRepository(r, fmt.Sprintf("%s repository '%s'", prefix, r.Name))...)
		}
	}

	return errs
}

func validateRepository(r RepositoryConfig, prefix string) []string {
	var errs []string

	if r.Name == "" || strings.ContainsAny(r.Name, "/ \t") {
		errs = append(errs, fmt.Sprintf("%s: name must be non-empty and contain no slashes or spaces", prefix))
	}
	if r.Endpoint == "" {
		errs = append(errs, fmt.Sprintf("%s: 'endpoint' is required", prefix))
	}
	for i, directive := range r.EnvVars {
		if _, err := ParseEnvVar(directive); err != nil {
			errs = append(errs, fmt.Sprintf("%s: env_vars[%d]: %v", prefix, i, err))
		}
	}

	return errs
}
