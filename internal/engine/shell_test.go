package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/remote/remotetest"
)

func TestShellCommand(t *testing.T) {
	a1 := testConfig(t).Agents[0]

	tests := []struct {
		name    string
		repo    string
		shell   string
		command []string
		want    string
	}{
		{
			name: "interactive without repository",
			want: `/bin/bash -c 'export PATH=/opt/multi-restic:$PATH; cd /srv; /bin/bash -i'`,
		},
		{
			name:  "interactive with repository",
			repo:  "r2",
			shell: "/bin/zsh",
			want:  `/bin/zsh -c 'export PATH=/opt/multi-restic:$PATH; cd /srv; source /opt/multi-restic/.env.r2; /bin/zsh -i'`,
		},
		{
			name:    "command",
			repo:    "r1",
			command: []string{"restic", "check"},
			want:    `/bin/bash -c 'export PATH=/opt/multi-restic:$PATH; cd /srv; source /opt/multi-restic/.env.r1; restic check'`,
		},
		{
			name:    "single quotes are escaped",
			command: []string{"echo", "it's"},
			want:    `/bin/bash -c 'export PATH=/opt/multi-restic:$PATH; cd /srv; echo it'\''s'`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShellCommand(a1, tt.repo, tt.shell, tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShellCommandUnknownRepository(t *testing.T) {
	_, err := ShellCommand(testConfig(t).Agents[0], "offsite", "", nil)
	require.ErrorIs(t, err, ErrUnknownRepository)
	assert.Contains(t, err.Error(), "available: r1, r2")
}

func TestShellEngineRun(t *testing.T) {
	d := &remotetest.Dialer{Setup: func(_ remote.Target, s *remotetest.Session) {
		s.On("restic snapshots", 3, "listing\n", "")
	}}
	eng := &ShellEngine{Dialer: d, Logger: zerolog.Nop()}

	var stdout bytes.Buffer
	status, err := eng.Run(context.Background(), testConfig(t), ShellOptions{
		Agent:      "a1",
		Repository: "r1",
		Command:    []string{"restic", "snapshots"},
		Stdout:     &stdout,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, status)
	assert.Equal(t, "listing\n", stdout.String())

	require.Len(t, d.Sessions, 1)
	s := d.Sessions[0]
	assert.Equal(t, []string{`/bin/bash -c 'export PATH=/opt/multi-restic:$PATH; cd /srv; source /opt/multi-restic/.env.r1; restic snapshots'`}, s.Commands)
	assert.True(t, s.Closed)
}

func TestShellEngineUnknownRepositoryDoesNotConnect(t *testing.T) {
	d := &remotetest.Dialer{}
	eng := &ShellEngine{Dialer: d, Logger: zerolog.Nop()}

	_, err := eng.Run(context.Background(), testConfig(t), ShellOptions{Agent: "a2", Repository: "r2"})
	require.ErrorIs(t, err, ErrUnknownRepository)
	assert.Empty(t, d.Sessions)
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()

	written, err := Generate(testGenerator(), testConfig(t), "a1", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a1", ".env.r1"),
		filepath.Join(dir, "a1", ".env.r2"),
		filepath.Join(dir, "a1", "backup.sh"),
	}, written)

	info, err := os.Stat(filepath.Join(dir, "a1", ".env.r2"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(filepath.Join(dir, "a1", "backup.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Generated on 2025-03-01T02:00:00Z by multi-restic")

	_, err = Generate(testGenerator(), testConfig(t), "nope", dir)
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestInfo(t *testing.T) {
	cfg := testConfig(t)
	r := Info("1.2.0", &cfg, "central.yaml", "/home/op/.ssh/known_hosts")

	assert.Equal(t, "1.2.0", r.Version)
	require.Len(t, r.Agents, 2)
	assert.Equal(t, AgentInfo{
		Name:            "a1",
		Address:         "root@10.0.0.1:22",
		Scheduler:       "cron",
		CronSchedule:    "0 2 * * *",
		InstallLocation: "/opt/multi-restic",
		Repositories:    []string{"r1", "r2"},
	}, r.Agents[0])
	assert.Equal(t, "backup@10.0.0.2:2222", r.Agents[1].Address)
	assert.Empty(t, r.Agents[1].CronSchedule)

	empty := Info("1.2.0", nil, "central.yaml", "")
	assert.Empty(t, empty.Agents)
}
