package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/multi-restic/internal/engine"
)

var installSkipTestBackup bool

var installCmd = &cobra.Command{
	Use:   "install [AGENT...]",
	Short: "Install multi-restic on the agents",
	Long: `Installs the backup script and repository environment files on the agents,
downloads restic where it is missing and schedules a daily backup.

Unless --skip-test-backup is given, one backup is run on every agent to check
that all its repositories are usable.

If no AGENTS are specified, all agents in the configuration file are processed.
The first agent that fails stops the installation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gen, err := newGenerator()
		if err != nil {
			return err
		}

		eng := &engine.InstallEngine{
			Dialer:    newDialer(),
			Generator: gen,
			Logger:    logger,
		}
		opts := engine.InstallOptions{Agents: args, SkipTestBackup: installSkipTestBackup}

		result, err := eng.Install(cmd.Context(), *cfg, opts)
		if result != nil {
			for _, a := range result.Installed {
				info("✓ %s installed (%s scheduler)", a.Agent, a.Scheduler)
				for _, p := range a.Uploaded {
					detail("uploaded %s", p)
				}
				if a.ResticProvisioned {
					detail("downloaded restic %s", a.ResticArch)
				}
			}
		}
		return err
	},
}

func init() {
	installCmd.Flags().BoolVar(&installSkipTestBackup, "skip-test-backup", false, "skip the test backup after installation")
	rootCmd.AddCommand(installCmd)
}
