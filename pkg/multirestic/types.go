package multirestic

import (
	"github.com/bianoble/multi-restic/internal/engine"
	"github.com/bianoble/multi-restic/internal/remote"
	"github.com/bianoble/multi-restic/internal/restic"
)

// Type aliases re-export engine types as the public API.
// Users import "github.com/bianoble/multi-restic/pkg/multirestic" and use
// multirestic.CheckResult, multirestic.DownloadResult, etc.

type AgentError = engine.AgentError
type CheckResult = engine.CheckResult
type AgentCheck = engine.AgentCheck
type PathCheck = engine.PathCheck
type InstallOptions = engine.InstallOptions
type InstallResult = engine.InstallResult
type AgentInstall = engine.AgentInstall
type DownloadOptions = engine.DownloadOptions
type DownloadResult = engine.DownloadResult
type SnapshotDownload = engine.SnapshotDownload
type ProgressFunc = engine.ProgressFunc
type SnapshotsResult = engine.SnapshotsResult
type RepositorySnapshots = engine.RepositorySnapshots
type Snapshot = restic.Snapshot

// Dialer opens sessions to agents. The default dials SSH.
type Dialer = remote.Dialer

var (
	ErrUnknownAgent      = engine.ErrUnknownAgent
	ErrUnknownRepository = engine.ErrUnknownRepository
	ErrInvalidSnapshotID = engine.ErrInvalidSnapshotID
)
