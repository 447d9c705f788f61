package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/remote/remotetest"
)

func TestCheckReport(t *testing.T) {
	d := &remotetest.Dialer{Setup: func(_ remote.Target, s *remotetest.Session) {
		s.On("restic version", 0, "restic 0.18.1 compiled with go1.24.4 on linux/amd64\n", "")
	}}
	eng := &CheckEngine{Dialer: d, Logger: zerolog.Nop()}

	result, err := eng.Check(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.Len(t, result.Agents, 2)
	assert.Empty(t, result.Unreachable())

	a1 := result.Agents[0]
	assert.Equal(t, "a1", a1.Agent)
	assert.Equal(t, "root@10.0.0.1:22", a1.Address)
	assert.True(t, a1.Reachable())
	assert.True(t, a1.Installed)
	assert.Equal(t, "cron", a1.Scheduler)
	assert.True(t, a1.SchedulerAvailable)
	assert.Equal(t, "restic 0.18.1 compiled with go1.24.4 on linux/amd64", a1.ResticVersion)
	assert.Equal(t, "restic", a1.ResticPath)
	assert.True(t, a1.BackupRootExists)
	assert.Equal(t, []PathCheck{{Path: "/srv/data", Exists: true}, {Path: "/srv/etc", Exists: true}}, a1.Paths)

	a2 := result.Agents[1]
	assert.Equal(t, "backup@10.0.0.2:2222", a2.Address)
	assert.Equal(t, "systemd", a2.Scheduler)

	s := d.SessionsFor("a1")[0]
	assert.True(t, s.Ran("ls /opt/multi-restic/backup.sh"))
	assert.True(t, s.Ran("command -v crontab"))
	assert.True(t, d.SessionsFor("a2")[0].Ran("command -v systemctl"))
	assert.True(t, s.Closed)
}

func TestCheckFallsBackToInstalledRestic(t *testing.T) {
	d := &remotetest.Dialer{Setup: func(_ remote.Target, s *remotetest.Session) {
		s.On("/opt/multi-restic/restic version", 0, "restic 0.17.3\n", "")
		s.On("restic version", 127, "", "restic: command not found")
		s.On("ls ", 2, "", "No such file or directory")
	}}
	eng := &CheckEngine{Dialer: d, Logger: zerolog.Nop()}

	result, err := eng.Check(context.Background(), testConfig(t))
	require.NoError(t, err)

	a1 := result.Agents[0]
	assert.False(t, a1.Installed)
	assert.Equal(t, "restic 0.17.3", a1.ResticVersion)
	assert.Equal(t, "/opt/multi-restic/restic", a1.ResticPath)

	// a2 has its own install location, where no restic exists.
	assert.Empty(t, result.Agents[1].ResticVersion)
}

func TestCheckSkipsPathsWhenBackupRootMissing(t *testing.T) {
	d := &remotetest.Dialer{Setup: func(target remote.Target, s *remotetest.Session) {
		if target.Name != "a1" {
			return
		}
		s.Handler = func(cmd string, _ []byte) (*remote.Result, bool) {
			if cmd == "test -e /srv" {
				return &remote.Result{ExitStatus: 1}, true
			}
			return nil, false
		}
	}}
	eng := &CheckEngine{Dialer: d, Logger: zerolog.Nop()}

	result, err := eng.Check(context.Background(), testConfig(t))
	require.NoError(t, err)

	a1 := result.Agents[0]
	assert.False(t, a1.BackupRootExists)
	assert.Nil(t, a1.Paths)
	assert.False(t, d.SessionsFor("a1")[0].Ran("test -e /srv/"))

	assert.Len(t, result.Agents[1].Paths, 1)
}

func TestCheckIsolatesUnreachableAgent(t *testing.T) {
	d := &remotetest.Dialer{Fail: map[string]error{"a1": errors.New("i/o timeout")}}
	eng := &CheckEngine{Dialer: d, Logger: zerolog.Nop()}

	result, err := eng.Check(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.Len(t, result.Agents, 2)

	var dialErr *remote.DialError
	require.ErrorAs(t, result.Agents[0].Err, &dialErr)
	assert.False(t, result.Agents[0].Reachable())
	assert.False(t, result.Agents[0].Installed)

	assert.True(t, result.Agents[1].Reachable())
	assert.True(t, result.Agents[1].Installed)
	assert.Equal(t, []string{"a1"}, result.Unreachable())
}

func TestCheckDoesNotModifyAgents(t *testing.T) {
	d := &remotetest.Dialer{}
	eng := &CheckEngine{Dialer: d, Logger: zerolog.Nop()}

	_, err := eng.Check(context.Background(), testConfig(t))
	require.NoError(t, err)

	for _, s := range d.Sessions {
		assert.Empty(t, s.Files)
		assert.Empty(t, s.Inputs)
		for _, cmd := range s.Commands {
			assert.NotContains(t, cmd, "crontab -")
			assert.NotContains(t, cmd, "install -d")
			assert.NotContains(t, cmd, "rm ")
		}
	}
}
