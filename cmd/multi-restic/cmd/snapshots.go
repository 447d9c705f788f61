package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bianoble/multi-restic/internal/engine"
)

var listSnapshotsCmd = &cobra.Command{
	Use:   "list-snapshots AGENT",
	Short: "List snapshots in all repositories of an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng := &engine.SnapshotsEngine{Dialer: newDialer(), Logger: logger}
		result, err := eng.List(cmd.Context(), *cfg, args[0])
		if err != nil {
			return err
		}

		failed := 0
		for _, repo := range result.Repositories {
			info("Snapshots for repository %s:", repo.Repository)
			if repo.Err != nil {
				failed++
				info("  failed to list snapshots")
				continue
			}
			if len(repo.Snapshots) == 0 {
				info("  No snapshots found.")
			}
			for _, s := range repo.Snapshots {
				info("  %s", s.Summary(time.Local))
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d repository listing(s) failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listSnapshotsCmd)
}
