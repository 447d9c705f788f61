package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/script"
	"github.com/bianoble/multi-restic/internal/secret"
)

// fleetYAML has a cron agent with two repositories and a systemd agent
// with non-default connection settings.
const fleetYAML = `
agents:
  a1:
    ip: 10.0.0.1
    backup_root: /srv
    to_backup: [data, etc]
    repositories:
      r1:
        endpoint: sftp:backup@nas:/r1
        env_vars:
          - plain:RESTIC_PASSWORD=pw1
      r2:
        endpoint: s3:https://s3.example.com/r2
        env_vars:
          - env:R2_KEY:AWS_ACCESS_KEY_ID
        forget_arguments: --keep-daily 7
  a2:
    ip: 10.0.0.2
    ssh_port: 2222
    ssh_user: backup
    scheduler: systemd
    install_location: /home/backup/mr/
    backup_root: /var/lib
    to_backup: [app]
    repositories:
      r1:
        endpoint: /mnt/r1
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(fleetYAML), "central.yaml")
	require.NoError(t, err)
	return *cfg
}

func testGenerator() *script.Generator {
	return &script.Generator{
		Secrets: secret.Map{"R2_KEY": "AKIAEXAMPLE"},
		Now:     func() time.Time { return time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC) },
	}
}
