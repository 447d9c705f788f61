package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/bianoble/multi-restic/internal/engine"
)

var downloadDestination string

var downloadCmd = &cobra.Command{
	Use:   "download-snapshot AGENT REPOSITORY SNAPSHOT...",
	Short: "Download snapshots as tar.gz archives",
	Long: `Restores each SNAPSHOT on the agent, archives it and downloads the archive
to <destination>/<AGENT>-<REPOSITORY>-<SNAPSHOT>.tar.gz.

Snapshots are fetched concurrently, one SSH session each. A failing snapshot
does not stop the others.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var mu sync.Mutex
		last := map[string]int64{}
		progress := func(id string, written, total int64) {
			mu.Lock()
			defer mu.Unlock()
			// Report every 64 MiB and on completion.
			if written != total && written-last[id] < 64*engine.ChunkSize {
				return
			}
			last[id] = written
			info("  %s: %s / %s", id, humanSize(written), humanSize(total))
		}

		eng := &engine.DownloadEngine{Dialer: newDialer(), Logger: logger}
		result, err := eng.Download(cmd.Context(), *cfg, args[0], args[1], args[2:], engine.DownloadOptions{
			Destination: downloadDestination,
			Progress:    progress,
		})
		if err != nil {
			return err
		}

		for _, s := range result.Snapshots {
			if s.Err != nil {
				info("✗ %s", s.SnapshotID)
				continue
			}
			info("✓ %s → %s (%s)", s.SnapshotID, s.Path, humanSize(s.Size))
		}
		if result.Failed() {
			return fmt.Errorf("some snapshots could not be downloaded")
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadDestination, "destination", "d", ".", "directory to write archives into")
	rootCmd.AddCommand(downloadCmd)
}
