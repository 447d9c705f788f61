package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/remote/remotetest"
)

const r1Snapshots = `[{"time":"2025-03-01T02:00:05Z","paths":["/srv/data","/srv/etc"],"hostname":"a1","username":"root","id":"4f2a9c0e7d3b1a5f","short_id":"4f2a9c0e"}]`

func TestSnapshotsList(t *testing.T) {
	d := &remotetest.Dialer{Setup: func(_ remote.Target, s *remotetest.Session) {
		s.On(".env.r1 && restic snapshots --json", 0, r1Snapshots, "")
		s.On(".env.r2 && restic snapshots --json", 1, "", "Fatal: unable to create lock in backend: repository is already locked")
	}}
	eng := &SnapshotsEngine{Dialer: d, Logger: zerolog.Nop()}

	result, err := eng.List(context.Background(), testConfig(t), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", result.Agent)
	require.Len(t, result.Repositories, 2)

	r1 := result.Repositories[0]
	assert.Equal(t, "r1", r1.Repository)
	require.NoError(t, r1.Err)
	require.Len(t, r1.Snapshots, 1)
	assert.Equal(t, "4f2a9c0e", r1.Snapshots[0].ShortID)
	assert.Equal(t, []string{"/srv/data", "/srv/etc"}, r1.Snapshots[0].Paths)

	r2 := result.Repositories[1]
	assert.Equal(t, "r2", r2.Repository)
	var exitErr *remote.ExitError
	require.ErrorAs(t, r2.Err, &exitErr)
	assert.Contains(t, exitErr.Stderr, "already locked")

	require.Len(t, d.Sessions, 1, "all repositories share one session")
	assert.Len(t, d.Sessions[0].Commands, 2)
}

func TestSnapshotsListEmptyRepository(t *testing.T) {
	d := &remotetest.Dialer{Setup: func(_ remote.Target, s *remotetest.Session) {
		s.On("restic snapshots --json", 0, "[]\n", "")
	}}
	eng := &SnapshotsEngine{Dialer: d, Logger: zerolog.Nop()}

	result, err := eng.List(context.Background(), testConfig(t), "a2")
	require.NoError(t, err)
	require.Len(t, result.Repositories, 1)
	assert.NoError(t, result.Repositories[0].Err)
	assert.Empty(t, result.Repositories[0].Snapshots)
	assert.Contains(t, d.Sessions[0].Commands[0], "source /home/backup/mr/.env.r1")
}

func TestSnapshotsListUnknownAgent(t *testing.T) {
	d := &remotetest.Dialer{}
	eng := &SnapshotsEngine{Dialer: d, Logger: zerolog.Nop()}

	_, err := eng.List(context.Background(), testConfig(t), "nope")
	require.ErrorIs(t, err, ErrUnknownAgent)
	assert.Empty(t, d.Sessions)
}
