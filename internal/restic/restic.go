// Package restic builds the restic command lines run on agents and decodes
// their output.
package restic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bianoble/multi-restic/internal/script"
)

// Version is the restic release provisioned on agents that lack restic.
const Version = "0.18.1"

// RestoreDir returns the remote scratch directory a snapshot is restored into.
func RestoreDir(snapshotID string) string {
	return "/tmp/multi-restic-restore-" + snapshotID
}

// ArchivePath returns the remote archive of a restored snapshot.
func ArchivePath(snapshotID string) string {
	return RestoreDir(snapshotID) + ".tar.gz"
}

// Snapshot is one entry of `restic snapshots --json`.
type Snapshot struct {
	ID       string    `json:"id"`
	ShortID  string    `json:"short_id"`
	Time     time.Time `json:"time"`
	Hostname string    `json:"hostname"`
	Username string    `json:"username"`
	Paths    []string  `json:"paths"`
	Tags     []string  `json:"tags,omitempty"`
}

// Summary renders the snapshot as a single line with its time in loc.
func (s Snapshot) Summary(loc *time.Location) string {
	return fmt.Sprintf("ID: %s, Time: %s, Host: %s, Paths: %s",
		s.ShortID, s.Time.In(loc).Format("2006-01-02 15:04:05"), s.Hostname, strings.Join(s.Paths, ", "))
}

// ParseSnapshots decodes `restic snapshots --json` output. restic prints
// "null" for an empty repository on some versions.
func ParseSnapshots(data []byte) ([]Snapshot, error) {
	var snapshots []Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("parsing snapshots: %w", err)
	}
	return snapshots, nil
}

var snapshotIDPattern = regexp.MustCompile(`^(latest|[0-9a-fA-F]{4,64})$`)

// ValidSnapshotID reports whether id is a (possibly abbreviated) snapshot
// ID or "latest". Snapshot IDs end up in remote shell commands and local
// file names, so nothing else is accepted.
func ValidSnapshotID(id string) bool {
	return snapshotIDPattern.MatchString(id)
}

// Environment returns the commands that put the install location on PATH
// and load the repository's environment file.
func Environment(installLocation, repository string) []string {
	return []string{
		fmt.Sprintf("export PATH=%s:$PATH", installLocation),
		"source " + script.EnvFilePath(installLocation, repository),
	}
}

func withEnvironment(installLocation, repository string, cmds ...string) string {
	return strings.Join(append(Environment(installLocation, repository), cmds...), " && ")
}

// SnapshotsCommand lists a repository's snapshots as JSON.
func SnapshotsCommand(installLocation, repository string) string {
	return withEnvironment(installLocation, repository, "restic snapshots --json")
}

// RestoreCommand restores a snapshot into RestoreDir, discarding leftovers
// of an earlier attempt first.
func RestoreCommand(installLocation, repository, snapshotID string) string {
	dir := RestoreDir(snapshotID)
	return withEnvironment(installLocation, repository,
		fmt.Sprintf("(rm -rf %s || true)", dir),
		fmt.Sprintf("restic restore %s --target %s", snapshotID, dir),
	)
}

// ArchiveCommand compresses a restored snapshot into ArchivePath.
func ArchiveCommand(snapshotID string) string {
	return fmt.Sprintf("tar -czf %s -C %s .", ArchivePath(snapshotID), RestoreDir(snapshotID))
}

// CleanupCommand removes the restore directory and archive of a snapshot.
func CleanupCommand(snapshotID string) string {
	return fmt.Sprintf("rm -rf %s %s", RestoreDir(snapshotID), ArchivePath(snapshotID))
}

// VersionCommands returns the probes for a usable restic binary: the one on
// PATH first, then the one in the install location.
func VersionCommands(installLocation string) []string {
	return []string{
		"restic version",
		installLocation + "/restic version",
	}
}
