package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/engine"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information about the multi-restic configuration",
	Long: `Displays the multi-restic version, the configuration lookup chain, the
known_hosts file and a summary of every configured agent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		layer := resolveConfigPath()

		// A missing or invalid config still shows the lookup chain.
		var cfg *config.Config
		if layer.Exists {
			loaded, err := config.Load(layer.Path)
			if err != nil {
				logger.Warn().Err(err).Str("path", layer.Path).Msg("config not loaded")
			} else {
				cfg = loaded
			}
		}

		result := engine.Info(version, cfg, layer.Path, knownHostsFile)
		if !rootCmd.PersistentFlags().Changed("config") {
			for _, l := range config.DiscoverPaths(config.DiscoverOptions{ProjectPath: configPath}) {
				result.ConfigChain = append(result.ConfigChain, engine.ConfigLayerStatus{
					Level:  string(l.Level),
					Path:   l.Path,
					Loaded: l.Exists && l.Path == layer.Path && cfg != nil,
				})
			}
		}

		fmt.Printf("multi-restic %s\n", result.Version)
		if len(result.ConfigChain) > 1 {
			fmt.Println("  config chain:")
			for _, l := range result.ConfigChain {
				status := "not found"
				switch {
				case l.Loaded:
					status = "loaded"
				case l.Path == result.ConfigPath && layer.Exists:
					status = "invalid"
				}
				fmt.Printf("    %-10s %s (%s)\n", l.Level+":", l.Path, status)
			}
		} else {
			fmt.Printf("  config:        %s\n", result.ConfigPath)
		}
		fmt.Printf("  known hosts:   %s\n", result.KnownHostsFile)

		if len(result.Agents) > 0 {
			fmt.Println("\nAgents:")
			for _, a := range result.Agents {
				sched := a.Scheduler
				if a.CronSchedule != "" {
					sched += " (" + a.CronSchedule + ")"
				}
				fmt.Printf("  %-15s %s\n", a.Name, a.Address)
				fmt.Printf("    scheduler:    %s\n", sched)
				fmt.Printf("    install:      %s\n", a.InstallLocation)
				fmt.Printf("    repositories: %s\n", strings.Join(a.Repositories, ", "))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
