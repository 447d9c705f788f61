package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initForce bool

// initTemplate is the default central.yaml scaffold.
const initTemplate = `# multi-restic configuration
# Each agent is a machine reachable over SSH that backs up to one or more
# restic repositories.
agents:
  web1:
    ip: 192.0.2.10
    # ssh_port: 22
    # ssh_user: root
    # identity_file: ~/.ssh/id_ed25519
    # install_location: /opt/multi-restic/
    # scheduler: cron           # cron or systemd
    # cron_schedule: 0 2 * * *
    backup_root: /srv
    to_backup:
      - www
      - db-dumps
    # pre_command:
    #   - pg_dumpall > /srv/db-dumps/all.sql
    # post_command:
    #   - rm /srv/db-dumps/all.sql
    repositories:
      offsite:
        endpoint: s3:s3.amazonaws.com/your-bucket/web1
        env_vars:
          # plain:NAME=value is written as is.
          - plain:RESTIC_PASSWORD=change-me
          # env:KEY:NAME reads KEY from the env file or the environment.
          # - env:WEB1_AWS_KEY:AWS_ACCESS_KEY_ID
        # forget_arguments: --keep-daily 7 --keep-weekly 4
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter central.yaml configuration",
	Long: `Creates a central.yaml file in the current directory with a commented
example agent and repository.

Use --force to overwrite an existing configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath := configPath
		if !filepath.IsAbs(outPath) {
			abs, err := filepath.Abs(outPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			outPath = abs
		}

		if !initForce {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
			}
		}

		if err := os.WriteFile(outPath, []byte(initTemplate), 0644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		info("Created %s", outPath)
		info("")
		info("Next steps:")
		info("  1. Edit the file to describe your agents and repositories")
		info("  2. Run 'multi-restic check' to verify SSH access")
		info("  3. Run 'multi-restic install' to deploy and schedule backups")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	rootCmd.AddCommand(initCmd)
}
