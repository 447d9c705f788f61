package cmd

import (
	"fmt"
	"os"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/script"
	"github.com/bianoble/multi-restic/internal/secret"
)

// resolveConfigPath returns the config file to use. An explicit --config is
// used as given; otherwise the user and system locations are tried when
// ./central.yaml does not exist.
func resolveConfigPath() config.ConfigLayerInfo {
	if rootCmd.PersistentFlags().Changed("config") {
		_, err := os.Stat(configPath)
		return config.ConfigLayerInfo{Path: configPath, Level: config.LevelProject, Exists: err == nil}
	}
	return config.Discover(config.DiscoverOptions{ProjectPath: configPath})
}

// loadConfig reads and validates the config file.
func loadConfig() (*config.Config, error) {
	path := resolveConfigPath().Path
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	detail("config: %s", path)
	return cfg, nil
}

// newDialer returns the SSH dialer shared by all commands. Unknown hosts are
// trusted on first use and recorded; changed host keys are refused.
func newDialer() *remote.SSHDialer {
	return &remote.SSHDialer{
		KnownHostsFile:    knownHostsFile,
		AcceptNewHostKeys: true,
		Logger:            logger,
	}
}

// newGenerator returns a script generator resolving env: directives from
// the env file, then the process environment.
func newGenerator() (*script.Generator, error) {
	secrets, err := secret.Default(envFilePath)
	if err != nil {
		return nil, err
	}
	return &script.Generator{Secrets: secrets}, nil
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Printf("  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

func humanSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}
