package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bianoble/multi-restic/internal/engine"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the status of agents",
	Long: `Goes through all agents in the configuration file and checks:
  - SSH connectivity
  - whether multi-restic is installed
  - whether the configured scheduler (crontab or systemd) is available
  - whether restic is available, on PATH or in the install location
  - whether the backup root and every path to back up exist

No changes are made to the agents. Exits non-zero when an agent is unreachable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng := &engine.CheckEngine{Dialer: newDialer(), Logger: logger}
		result, err := eng.Check(cmd.Context(), *cfg)
		if err != nil {
			return err
		}

		for _, a := range result.Agents {
			printAgentCheck(a)
		}

		if down := result.Unreachable(); len(down) > 0 {
			return fmt.Errorf("check failed: %d agent(s) unreachable", len(down))
		}
		return nil
	},
}

func printAgentCheck(a engine.AgentCheck) {
	if !a.Reachable() {
		info("✗ %s (%s): %s", a.Agent, a.Address, a.Err)
		return
	}
	info("✓ %s (%s)", a.Agent, a.Address)

	if a.Installed {
		info("  ✓ multi-restic is installed")
	} else {
		info("  ! multi-restic is not installed")
	}

	switch {
	case a.SchedulerAvailable:
		info("  ✓ %s is available, will be used", a.Scheduler)
	case a.Scheduler == "cron":
		info("  ! crontab seems to be unavailable, consider 'scheduler: systemd'")
	default:
		info("  ! %s seems to be unavailable", a.Scheduler)
	}

	if a.ResticVersion != "" {
		info("  ✓ restic found at %s (%s)", a.ResticPath, a.ResticVersion)
	} else {
		info("  ! restic not found, install will download it")
	}

	if !a.BackupRootExists {
		info("  ! backup root does not exist: %s", a.BackupRoot)
		return
	}
	info("  ✓ backup root exists: %s", a.BackupRoot)
	for _, p := range a.Paths {
		if p.Exists {
			detail("  ✓ %s", p.Path)
		} else {
			info("  ✗ path to back up does not exist: %s (is it created by pre_command?)", p.Path)
		}
	}
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
