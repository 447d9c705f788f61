package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Defaults applied to agents that leave the field unset.
const (
	DefaultInstallLocation = "/opt/multi-restic"
	DefaultSSHPort         = 22
	DefaultSSHUser         = "root"
	DefaultScheduler       = "cron"
	DefaultCronSchedule    = "0 2 * * *"
)

// Config represents the central.yaml configuration file.
type Config struct {
	Agents Agents `yaml:"agents"`
}

// AgentConfig describes one remote machine and what to back up on it.
type AgentConfig struct {
	Name string `yaml:"-"`

	Host         string `yaml:"ip"`
	SSHPort      int    `yaml:"ssh_port,omitempty"`
	SSHUser      string `yaml:"ssh_user,omitempty"`
	IdentityFile string `yaml:"identity_file,omitempty"`

	InstallLocation string `yaml:"install_location,omitempty"`
	Scheduler       string `yaml:"scheduler,omitempty"` // "cron", "systemd"
	CronSchedule    string `yaml:"cron_schedule,omitempty"`

	BackupRoot   string       `yaml:"backup_root"`
	ToBackup     []string     `yaml:"to_backup"`
	Repositories Repositories `yaml:"repositories"`

	PreCommand  []string `yaml:"pre_command,omitempty"`
	PostCommand []string `yaml:"post_command,omitempty"`
}

// Address returns host:port for dialing.
func (a AgentConfig) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.SSHPort)
}

// Repository looks up a repository by name.
func (a AgentConfig) Repository(name string) (RepositoryConfig, bool) {
	for _, r := range a.Repositories {
		if r.Name == name {
			return r, true
		}
	}
	return RepositoryConfig{}, false
}

// RepositoryNames returns repository names in configuration order.
func (a AgentConfig) RepositoryNames() []string {
	names := make([]string, 0, len(a.Repositories))
	for _, r := range a.Repositories {
		names = append(names, r.Name)
	}
	return names
}

// RepositoryConfig is a named restic destination.
type RepositoryConfig struct {
	Name string `yaml:"-"`

	Endpoint        string   `yaml:"endpoint"`
	EnvVars         []string `yaml:"env_vars,omitempty"`
	ForgetArguments string   `yaml:"forget_arguments,omitempty"`
}

// Agents is the ordered agents mapping. Document order is kept because the
// check and install workflows visit agents in that order.
type Agents []AgentConfig

// Get looks up an agent by name.
func (as Agents) Get(name string) (AgentConfig, bool) {
	for _, a := range as {
		if a.Name == name {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// Names returns agent names in configuration order.
func (as Agents) Names() []string {
	names := make([]string, 0, len(as))
	for _, a := range as {
		names = append(names, a.Name)
	}
	return names
}

// UnmarshalYAML decodes a mapping of agent name to agent while keeping order.
func (as *Agents) UnmarshalYAML(node *yaml.Node) error {
	out := Agents{}
	err := decodeOrdered(node, "agents", func(name string, value *yaml.Node) error {
		var a AgentConfig
		if err := value.Decode(&a); err != nil {
			return fmt.Errorf("agent '%s': %w", name, err)
		}
		a.Name = name
		out = append(out, a)
		return nil
	})
	if err != nil {
		return err
	}
	*as = out
	return nil
}

// Repositories is the ordered repositories mapping of an agent. The order
// determines the order of repository sections in the generated script.
type Repositories []RepositoryConfig

// UnmarshalYAML decodes a mapping of repository name to repository while
// keeping order.
func (rs *Repositories) UnmarshalYAML(node *yaml.Node) error {
	out := Repositories{}
	err := decodeOrdered(node, "repositories", func(name string, value *yaml.Node) error {
		var r RepositoryConfig
		if err := value.Decode(&r); err != nil {
			return fmt.Errorf("repository '%s': %w", name, err)
		}
		r.Name = name
		out = append(out, r)
		return nil
	})
	if err != nil {
		return err
	}
	*rs = out
	return nil
}

func decodeOrdered(node *yaml.Node, what string, fn func(name string, value *yaml.Node) error) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: '%s' must be a mapping of name to definition", node.Line, what)
	}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return fmt.Errorf("line %d: duplicate %s entry '%s'", key.Line, what, key.Value)
		}
		seen[key.Value] = true
		if err := fn(key.Value, value); err != nil {
			return err
		}
	}
	return nil
}
