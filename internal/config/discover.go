package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultFileName is the configuration file name looked up in each location.
const DefaultFileName = "central.yaml"

const configDirName = "multi-restic"

// ConfigLevel represents where a configuration file was found.
type ConfigLevel string

const (
	LevelSystem  ConfigLevel = "system"
	LevelUser    ConfigLevel = "user"
	LevelProject ConfigLevel = "project"
)

// ConfigLayerInfo describes a candidate config file.
type ConfigLayerInfo struct {
	Path   string
	Level  ConfigLevel
	Exists bool
}

// DiscoverOptions controls how config paths are discovered.
type DiscoverOptions struct {
	// ProjectPath is the path given on the command line (required).
	ProjectPath string

	// SystemConfigPath overrides the default system config path.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	SystemConfigPath string

	// UserConfigPath overrides the default user config path.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	UserConfigPath string
}

// DiscoverPaths returns candidate config paths from highest precedence
// (project) to lowest (system). Paths are deduplicated by absolute path.
func DiscoverPaths(opts DiscoverOptions) []ConfigLayerInfo {
	var layers []ConfigLayerInfo
	seen := make(map[string]bool)

	addLayer := func(level ConfigLevel, path string) {
		if path == "" {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		_, statErr := os.Stat(path)
		layers = append(layers, ConfigLayerInfo{
			Path:   path,
			Level:  level,
			Exists: statErr == nil,
		})
	}

	addLayer(LevelProject, opts.ProjectPath)

	userPath := opts.UserConfigPath
	if userPath == "" {
		userPath = defaultUserConfigPath()
	}
	addLayer(LevelUser, userPath)

	sysPath := opts.SystemConfigPath
	if sysPath == "" {
		sysPath = defaultSystemConfigPath()
	}
	addLayer(LevelSystem, sysPath)

	return layers
}

// Discover returns the first existing candidate, or the project path when
// none exists so the caller reports a sensible "not found" error.
func Discover(opts DiscoverOptions) ConfigLayerInfo {
	for _, l := range DiscoverPaths(opts) {
		if l.Exists {
			return l
		}
	}
	return ConfigLayerInfo{Path: opts.ProjectPath, Level: LevelProject}
}

func defaultSystemConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		pd := os.Getenv("ProgramData")
		if pd == "" {
			pd = `C:\ProgramData`
		}
		return filepath.Join(pd, configDirName, DefaultFileName)
	default:
		return filepath.Join("/etc", configDirName, DefaultFileName)
	}
}

func defaultUserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configDirName, DefaultFileName)
}
