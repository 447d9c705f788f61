// Package multirestic provides the public Go library API for multi-restic.
//
// multi-restic deploys restic backup scripts to a fleet of machines over SSH,
// schedules them with cron or systemd, and fetches snapshots back as tar.gz
// archives.
//
// # Basic Usage
//
//	client, err := multirestic.New(multirestic.Options{
//	    ConfigPath: "central.yaml",
//	    EnvFile:    ".env",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Report reachability and installation state of every agent
//	report, err := client.Check(ctx)
//
//	// Deploy scripts and schedules
//	installed, err := client.Install(ctx, multirestic.InstallOptions{})
//
//	// Fetch snapshots into the current directory
//	downloads, err := client.Download(ctx, "web1", "offsite", []string{"4f2a9c0e"},
//	    multirestic.DownloadOptions{Destination: "."})
package multirestic

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/engine"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/script"
	"github.com/bianoble/multi-restic/internal/secret"
)

// Options configures a multi-restic client.
type Options struct {
	// ConfigPath is the path to the config file. Default: "central.yaml".
	ConfigPath string

	// EnvFile holds the values for env: directives. Default: ".env".
	// A missing file is not an error; the process environment is used.
	EnvFile string

	// KnownHostsFile is the known_hosts file used by the default dialer.
	// Default: ~/.ssh/known_hosts.
	KnownHostsFile string

	// Dialer overrides the SSH dialer.
	Dialer Dialer

	// Logger receives structured progress. Default: disabled.
	Logger *zerolog.Logger
}

// Client is the main entry point for the multi-restic library.
type Client struct {
	configPath string
	generator  *script.Generator
	dialer     remote.Dialer
	logger     zerolog.Logger
}

// New creates a new multi-restic Client.
func New(opts Options) (*Client, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.DefaultFileName
	}
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	secrets, err := secret.Default(opts.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	dialer := opts.Dialer
	if dialer == nil {
		knownHosts := opts.KnownHostsFile
		if knownHosts == "" {
			knownHosts = remote.DefaultKnownHostsFile()
		}
		dialer = &remote.SSHDialer{
			KnownHostsFile:    knownHosts,
			AcceptNewHostKeys: true,
			Logger:            logger,
		}
	}

	return &Client{
		configPath: opts.ConfigPath,
		generator:  &script.Generator{Secrets: secrets},
		dialer:     dialer,
		logger:     logger,
	}, nil
}

func (c *Client) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath)
}

// Check reports the state of every configured agent without modifying them.
func (c *Client) Check(ctx context.Context) (*CheckResult, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	eng := &engine.CheckEngine{Dialer: c.dialer, Logger: c.logger}
	return eng.Check(ctx, *cfg)
}

// Install deploys scripts, env files and schedules to the selected agents.
// On failure the agents installed so far are returned along with the error.
func (c *Client) Install(ctx context.Context, opts InstallOptions) (*InstallResult, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	eng := &engine.InstallEngine{Dialer: c.dialer, Generator: c.generator, Logger: c.logger}
	return eng.Install(ctx, *cfg, opts)
}

// ListSnapshots lists the snapshots of every repository of an agent.
func (c *Client) ListSnapshots(ctx context.Context, agent string) (*SnapshotsResult, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	eng := &engine.SnapshotsEngine{Dialer: c.dialer, Logger: c.logger}
	return eng.List(ctx, *cfg, agent)
}

// Download fetches snapshots concurrently as tar.gz archives.
func (c *Client) Download(ctx context.Context, agent, repository string, snapshotIDs []string, opts DownloadOptions) (*DownloadResult, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	eng := &engine.DownloadEngine{Dialer: c.dialer, Logger: c.logger}
	return eng.Download(ctx, *cfg, agent, repository, snapshotIDs, opts)
}

// Generate renders an agent's backup script and env files under dir/<agent>/.
func (c *Client) Generate(agent, dir string) ([]string, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return engine.Generate(c.generator, *cfg, agent, dir)
}
