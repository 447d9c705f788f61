package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bianoble/multi-restic/internal/config"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/restic"
	"github.com/bianoble/multi-restic/internal/sandbox"
)

// ChunkSize is the transfer unit of snapshot archives.
const ChunkSize = 1 << 20

// DownloadEngine restores snapshots on an agent and pulls them back as
// compressed archives.
type DownloadEngine struct {
	Dialer remote.Dialer
	Logger zerolog.Logger
}

// ArchiveName returns the local file name of a downloaded snapshot.
func ArchiveName(agent, repository, snapshotID string) string {
	return fmt.Sprintf("%s-%s-%s.tar.gz", agent, repository, snapshotID)
}

// Download starts one worker per snapshot id, each on its own session, and
// waits for all of them. There is no cap on the number of workers: every
// worker holds an SSH connection and a remote restore, so very large
// batches are bounded only by what the agent can take.
//
// Configuration problems are returned before any worker starts. A worker
// failure is logged and recorded in the result; it never stops the other
// workers and is not returned as an error.
func (e *DownloadEngine) Download(ctx context.Context, cfg config.Config, agentName, repository string, snapshotIDs []string, opts DownloadOptions) (*DownloadResult, error) {
	agent, err := lookupAgent(cfg, agentName)
	if err != nil {
		return nil, err
	}
	if _, err := lookupRepository(agent, repository); err != nil {
		return nil, err
	}
	ids, err := normalizeSnapshotIDs(snapshotIDs)
	if err != nil {
		return nil, err
	}
	dest := opts.Destination
	if dest == "" {
		dest = "."
	}
	if err := checkDestination(dest); err != nil {
		return nil, err
	}

	log := e.Logger.With().Str("component", "download").Str("agent", agent.Name).Str("repository", repository).Logger()

	// Fail fast on an unreachable agent instead of once per worker.
	s, err := e.Dialer.Dial(ctx, Target(agent))
	if err != nil {
		return nil, &AgentError{Agent: agent.Name, Step: "connect", Err: err}
	}
	_ = s.Close()

	result := &DownloadResult{Snapshots: make([]SnapshotDownload, len(ids))}
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			wlog := log.With().Str("snapshot", id).Logger()
			out := SnapshotDownload{SnapshotID: id}
			out.Path, out.Size, out.Err = e.fetch(ctx, agent, repository, id, dest, opts.Progress, wlog)
			if out.Err != nil {
				logFailure(wlog, out.Err)
			} else {
				wlog.Info().Str("path", out.Path).Int64("bytes", out.Size).Msg("snapshot downloaded")
			}
			result.Snapshots[i] = out
		}(i, id)
	}
	wg.Wait()

	return result, nil
}

// normalizeSnapshotIDs validates ids and drops repeats, which would race on
// the same remote scratch paths.
func normalizeSnapshotIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no snapshot ids given", ErrInvalidSnapshotID)
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !restic.ValidSnapshotID(id) {
			return nil, fmt.Errorf("%w '%s'", ErrInvalidSnapshotID, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func checkDestination(dest string) error {
	info, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("download destination: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("download destination %s is not a directory", dest)
	}
	return nil
}

// fetch is one retrieval worker: restore, compress, transfer, clean up.
func (e *DownloadEngine) fetch(ctx context.Context, agent config.AgentConfig, repository, id, dest string, progress ProgressFunc, log zerolog.Logger) (string, int64, error) {
	fail := func(step string, err error) (string, int64, error) {
		return "", 0, &AgentError{Agent: agent.Name, Step: step, Err: err, Hint: sshHint(agent.Name, repository)}
	}

	s, err := e.Dialer.Dial(ctx, Target(agent))
	if err != nil {
		return fail("connect", err)
	}
	defer s.Close()

	// Scratch files may exist even when a step fails half way.
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if res, err := s.Run(cleanupCtx, restic.CleanupCommand(id)); err != nil || !res.OK() {
			log.Debug().Msg("could not remove remote restore files")
		}
	}()

	log.Info().Msg("restoring snapshot")
	if _, err := remote.Exec(ctx, s, restic.RestoreCommand(agent.InstallLocation, repository, id)); err != nil {
		return fail("restore snapshot "+id, err)
	}

	log.Info().Msg("snapshot restored, compressing")
	if _, err := remote.Exec(ctx, s, restic.ArchiveCommand(id)); err != nil {
		return fail("compress snapshot "+id, err)
	}

	path, size, err := transfer(s, restic.ArchivePath(id), dest, ArchiveName(agent.Name, repository, id), func(written, total int64) {
		if progress != nil {
			progress(id, written, total)
		}
	})
	if err != nil {
		return fail("transfer snapshot "+id, err)
	}
	return path, size, nil
}

// transfer streams a remote file into dest/name in ChunkSize pieces. The
// local file only appears once the whole archive has arrived.
func transfer(s remote.Session, remotePath, dest, name string, progress func(written, total int64)) (string, int64, error) {
	src, err := s.Open(remotePath)
	if err != nil {
		return "", 0, err
	}
	defer src.Close()

	dst, err := sandbox.Create(dest, name, 0644)
	if err != nil {
		return "", 0, err
	}

	total := src.Size()
	buf := make([]byte, ChunkSize)
	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				dst.Abort()
				return "", 0, fmt.Errorf("writing %s: %w", dst.Path(), err)
			}
			written += int64(n)
			progress(written, total)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			dst.Abort()
			return "", 0, fmt.Errorf("reading %s: %w", remotePath, rerr)
		}
	}

	if err := dst.Commit(); err != nil {
		return "", 0, err
	}
	return dst.Path(), written, nil
}

// logFailure logs a worker failure with any captured remote output.
func logFailure(log zerolog.Logger, err error) {
	ev := log.Error().Err(err)
	var exitErr *remote.ExitError
	if errors.As(err, &exitErr) {
		ev = ev.Int("status", exitErr.Status).Str("stdout", exitErr.Stdout).Str("stderr", exitErr.Stderr)
	}
	ev.Msg("snapshot download failed")
}
